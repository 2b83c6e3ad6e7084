package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/bakehouse/internal/access"
	"github.com/roach88/bakehouse/internal/catalog"
	"github.com/roach88/bakehouse/internal/inventory"
	"github.com/roach88/bakehouse/internal/ledger"
	"github.com/roach88/bakehouse/internal/production"
	"github.com/roach88/bakehouse/internal/reconcile"
	"github.com/roach88/bakehouse/internal/sales"
	"github.com/roach88/bakehouse/internal/service"
	"github.com/roach88/bakehouse/internal/store"
	"github.com/roach88/bakehouse/internal/tenancy"
	"github.com/roach88/bakehouse/internal/testutil"
)

// OwnerID is the user that owns every scenario tenant.
const OwnerID = "owner"

// Harness executes one scenario against its own database.
type Harness struct {
	env     service.Env
	tenant  string
	owner   access.Actor
	tenancy *tenancy.Service
	inv     *inventory.Service
	counts  *reconcile.Service
	sales   *sales.Service
	prod    *production.Service

	skus    map[string]string // item ID -> SKU
	places  map[string]string // location ID -> name
	countID string
}

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	log *zap.Logger
	dir string
}

// WithLogger sends service logs to log. Default: discarded.
func WithLogger(log *zap.Logger) Option {
	return func(c *runConfig) { c.log = log }
}

// WithDir places the scenario database in dir instead of a temporary
// directory, leaving it behind for inspection.
func WithDir(dir string) Option {
	return func(c *runConfig) { c.dir = dir }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh SQLite file with a stepping clock starting
// at testutil.Epoch and sequential IDs, so identical scenarios produce
// identical traces. A returned error means the scenario could not run at
// all; failed expectations and assertions are reported in Result.Errors.
func Run(ctx context.Context, sc *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	dir := cfg.dir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "bakehouse-scenario-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create scenario dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}
	st, err := store.Open(filepath.Join(dir, sc.Name+".db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario store: %w", err)
	}
	defer st.Close()

	env := service.New(st,
		service.WithLogger(cfg.log),
		service.WithClock(testutil.NewStepClock(testutil.Epoch, time.Second)),
		service.WithIDs(testutil.NewSequentialIDs("id")),
	)
	h := &Harness{
		env:     env,
		tenant:  sc.Tenant.ID,
		owner:   access.Actor{TenantID: sc.Tenant.ID, UserID: OwnerID, Role: access.RoleOwner},
		tenancy: tenancy.New(env),
		inv:     inventory.New(env),
		counts:  reconcile.New(env),
		sales:   sales.New(env),
		prod:    production.New(env),
		skus:    make(map[string]string),
		places:  make(map[string]string),
	}

	if err := h.setup(ctx, sc); err != nil {
		return nil, fmt.Errorf("failed to set up scenario: %w", err)
	}

	result := NewResult()
	for i, step := range sc.Steps {
		ev, err := h.execute(ctx, i+1, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
		result.Trace = append(result.Trace, ev)

		want := step.Expect
		if want == "" {
			want = OutcomeOK
		}
		if ev.Outcome != want {
			result.AddError(fmt.Sprintf("step %d (%s): expected %s, got %s", i+1, step.Op, want, ev.Outcome))
		}
	}

	if err := h.collectBalances(ctx, result); err != nil {
		return nil, err
	}

	actx := &AssertionContext{Ctx: ctx, Inventory: h.inv, Owner: h.owner}
	for _, msg := range EvaluateAssertions(result, sc.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// setup creates the tenant, its members and its catalog.
func (h *Harness) setup(ctx context.Context, sc *Scenario) error {
	_, err := h.tenancy.CreateTenant(ctx, tenancy.CreateTenantInput{
		ID:       sc.Tenant.ID,
		Name:     sc.Tenant.Name,
		Owner:    OwnerID,
		Settings: sc.Tenant.Settings,
	})
	if err != nil {
		return err
	}

	for _, m := range sc.Members {
		role, err := access.ParseRole(m.Role)
		if err != nil {
			return err
		}
		if _, err := h.tenancy.AddMember(ctx, h.owner, m.User, role); err != nil {
			return err
		}
	}

	if sc.Catalog != "" {
		c, err := catalog.Load(sc.Catalog)
		if err != nil {
			return err
		}
		if _, err := catalog.NewImporter(h.env).Import(ctx, h.owner, c); err != nil {
			return err
		}
	}
	return nil
}

// execute runs one step. Ledger errors become the event's outcome; any
// other error aborts the scenario.
func (h *Harness) execute(ctx context.Context, n int, st Step) (TraceEvent, error) {
	user := st.As
	if user == "" {
		user = OwnerID
	}
	ev := TraceEvent{Step: n, Op: st.Op, Actor: user, Outcome: OutcomeOK}

	movements, detail, err := h.dispatch(ctx, user, st)
	if err != nil {
		code := ledger.CodeOf(err)
		if code == "" {
			return ev, err
		}
		ev.Outcome = string(code)
		return ev, nil
	}

	for _, m := range movements {
		tm, err := h.traceMovement(ctx, m)
		if err != nil {
			return ev, err
		}
		ev.Movements = append(ev.Movements, tm)
	}
	ev.Detail = detail
	return ev, nil
}

func (h *Harness) dispatch(ctx context.Context, user string, st Step) ([]ledger.Movement, map[string]string, error) {
	actor, err := h.tenancy.Resolve(ctx, h.tenant, user)
	if err != nil {
		return nil, nil, err
	}

	switch st.Op {
	case OpPurchase, OpUsage, OpWaste, OpAdjust:
		typ := ledger.MovementType(st.Op)
		if st.Op == OpAdjust {
			typ = ledger.MovementAdjustment
		}
		item, loc, err := h.itemAt(ctx, st.Item, st.Location)
		if err != nil {
			return nil, nil, err
		}
		m, err := h.inv.Record(ctx, actor, inventory.RecordInput{
			Type:          typ,
			ItemID:        item,
			LocationID:    loc,
			Quantity:      st.Qty,
			Reason:        st.Reason,
			UnitCostCents: st.CostCents,
		})
		if err != nil {
			return nil, nil, err
		}
		return []ledger.Movement{m}, nil, nil

	case OpTransfer:
		item, from, err := h.itemAt(ctx, st.Item, st.From)
		if err != nil {
			return nil, nil, err
		}
		to, err := h.location(ctx, st.To)
		if err != nil {
			return nil, nil, err
		}
		res, err := h.inv.Transfer(ctx, actor, inventory.TransferInput{ItemID: item, From: from, To: to, Quantity: st.Qty})
		if err != nil {
			return nil, nil, err
		}
		return []ledger.Movement{res.Out, res.In}, nil, nil

	case OpSale:
		loc, err := h.location(ctx, st.Location)
		if err != nil {
			return nil, nil, err
		}
		lines := make([]ledger.SaleLine, 0, len(st.Lines))
		for _, l := range st.Lines {
			it, err := h.inv.ResolveItem(ctx, h.owner, l.Item)
			if err != nil {
				return nil, nil, err
			}
			lines = append(lines, ledger.SaleLine{ItemID: it.ID, Quantity: l.Qty, UnitPriceCents: l.PriceCents})
		}
		rc, err := h.sales.Record(ctx, actor, sales.RecordInput{LocationID: loc, Channel: st.Channel, Lines: lines})
		if err != nil {
			return nil, nil, err
		}
		return rc.Movements, map[string]string{"total_cents": money(rc.Sale.TotalCents)}, nil

	case OpProduce:
		loc, err := h.location(ctx, st.Location)
		if err != nil {
			return nil, nil, err
		}
		rec, err := h.prod.ResolveRecipe(ctx, actor, st.Recipe)
		if err != nil {
			return nil, nil, err
		}
		res, err := h.prod.LogBatch(ctx, actor, production.BatchInput{RecipeID: rec.ID, LocationID: loc, Output: st.Qty})
		if err != nil {
			return nil, nil, err
		}
		return res.Movements, nil, nil

	case OpCountOpen:
		loc, err := h.location(ctx, st.Location)
		if err != nil {
			return nil, nil, err
		}
		var ids []string
		for _, sku := range st.Items {
			it, err := h.inv.ResolveItem(ctx, h.owner, sku)
			if err != nil {
				return nil, nil, err
			}
			ids = append(ids, it.ID)
		}
		sess, err := h.counts.Open(ctx, actor, reconcile.OpenInput{LocationID: loc, ItemIDs: ids, Note: st.Reason})
		if err != nil {
			return nil, nil, err
		}
		h.countID = sess.ID
		return nil, map[string]string{
			"lines":        strconv.Itoa(len(sess.Lines)),
			"snapshot_seq": strconv.FormatInt(sess.SnapshotSeq, 10),
		}, nil

	case OpCountRecord:
		if err := h.needCount(); err != nil {
			return nil, nil, err
		}
		it, err := h.inv.ResolveItem(ctx, h.owner, st.Item)
		if err != nil {
			return nil, nil, err
		}
		_, err = h.counts.RecordCount(ctx, actor, h.countID, it.ID, st.Qty)
		return nil, nil, err

	case OpCountSubmit:
		if err := h.needCount(); err != nil {
			return nil, nil, err
		}
		r, err := h.counts.Submit(ctx, actor, h.countID)
		if err != nil {
			return nil, nil, err
		}
		return nil, map[string]string{
			"flagged":   strconv.Itoa(r.Flagged),
			"net_cents": money(r.NetCents),
			"uncounted": strconv.Itoa(len(r.Uncounted)),
		}, nil

	case OpCountApprove:
		if err := h.needCount(); err != nil {
			return nil, nil, err
		}
		d, err := h.counts.Approve(ctx, actor, h.countID, "")
		if err != nil {
			return nil, nil, err
		}
		return d.Adjustments, map[string]string{"status": string(d.Session.Status)}, nil

	case OpCountReject:
		if err := h.needCount(); err != nil {
			return nil, nil, err
		}
		d, err := h.counts.Reject(ctx, actor, h.countID, st.Reason)
		if err != nil {
			return nil, nil, err
		}
		return nil, map[string]string{"status": string(d.Session.Status)}, nil

	case OpCountCancel:
		if err := h.needCount(); err != nil {
			return nil, nil, err
		}
		sess, err := h.counts.Cancel(ctx, actor, h.countID)
		if err != nil {
			return nil, nil, err
		}
		return nil, map[string]string{"status": string(sess.Status)}, nil
	}
	return nil, nil, fmt.Errorf("unknown op %q", st.Op)
}

func (h *Harness) needCount() error {
	if h.countID == "" {
		return ledger.NewNotFoundError("count session", "current")
	}
	return nil
}

// itemAt resolves a SKU and a location name.
func (h *Harness) itemAt(ctx context.Context, sku, location string) (itemID, locationID string, err error) {
	it, err := h.inv.ResolveItem(ctx, h.owner, sku)
	if err != nil {
		return "", "", err
	}
	loc, err := h.location(ctx, location)
	if err != nil {
		return "", "", err
	}
	return it.ID, loc, nil
}

// location resolves a location name. Empty means the default location.
func (h *Harness) location(ctx context.Context, name string) (string, error) {
	loc, err := h.inv.ResolveLocation(ctx, h.owner, name)
	if err != nil {
		return "", err
	}
	return loc.ID, nil
}

func (h *Harness) traceMovement(ctx context.Context, m ledger.Movement) (TraceMovement, error) {
	sku, name, err := h.names(ctx, m.ItemID, m.LocationID)
	if err != nil {
		return TraceMovement{}, err
	}
	return TraceMovement{
		Seq:      m.Seq,
		Type:     m.Type,
		Item:     sku,
		Location: name,
		Delta:    m.Delta,
		Balance:  m.BalanceAfter,
	}, nil
}

// names maps IDs to SKU and location name, caching lookups.
func (h *Harness) names(ctx context.Context, itemID, locationID string) (sku, location string, err error) {
	sku, ok := h.skus[itemID]
	if !ok {
		it, err := h.env.Store.GetItem(ctx, h.tenant, itemID)
		if err != nil {
			return "", "", err
		}
		sku = it.SKU
		h.skus[itemID] = sku
	}
	location, ok = h.places[locationID]
	if !ok {
		loc, err := h.env.Store.GetLocation(ctx, h.tenant, locationID)
		if err != nil {
			return "", "", err
		}
		location = loc.Name
		h.places[locationID] = location
	}
	return sku, location, nil
}

func (h *Harness) collectBalances(ctx context.Context, result *Result) error {
	levels, err := h.env.Store.ListStockLevels(ctx, h.tenant, "")
	if err != nil {
		return fmt.Errorf("failed to read balances: %w", err)
	}
	for _, lvl := range levels {
		sku, name, err := h.names(ctx, lvl.ItemID, lvl.LocationID)
		if err != nil {
			return err
		}
		result.Balances[BalanceKey(sku, name)] = lvl.Balance
	}
	return nil
}

func money(c ledger.Money) string {
	return strconv.FormatInt(int64(c), 10)
}
