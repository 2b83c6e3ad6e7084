package reconcile

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/bakehouse/internal/access"
	"github.com/roach88/bakehouse/internal/ledger"
	"github.com/roach88/bakehouse/internal/service"
	"github.com/roach88/bakehouse/internal/store"
)

// Service runs count sessions for all tenants.
type Service struct {
	env service.Env
}

// New creates a reconcile service.
func New(env service.Env) *Service {
	return &Service{env: env.Named("reconcile")}
}

// Session is a count session with its lines.
type Session struct {
	ledger.CountSession
	Lines []ledger.CountLine `json:"lines"`
}

// OpenInput starts a count. Empty ItemIDs counts every active item.
type OpenInput struct {
	LocationID string   `json:"location_id"`
	ItemIDs    []string `json:"item_ids,omitempty"`
	Note       string   `json:"note,omitempty"`
}

// Open snapshots the expected balances at a location and starts a session.
// A location with an open or pending session yields CONFLICT.
func (s *Service) Open(ctx context.Context, actor access.Actor, in OpenInput) (Session, error) {
	if err := access.Require(actor, access.PermCountWrite); err != nil {
		return Session{}, err
	}

	now := s.env.Clock.Now()
	var out Session
	err := s.env.Store.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.GetLocation(ctx, actor.TenantID, in.LocationID); err != nil {
			return err
		}
		if active, ok, err := tx.ActiveCountSession(ctx, actor.TenantID, in.LocationID); err != nil {
			return err
		} else if ok {
			return ledger.NewConflictError(fmt.Sprintf("location already has %s count %s", active.Status, active.ID))
		}

		tenant, err := tx.GetTenant(ctx, actor.TenantID)
		if err != nil {
			return err
		}
		items, err := snapshotItems(ctx, tx, actor.TenantID, in.ItemIDs)
		if err != nil {
			return err
		}

		sess := ledger.CountSession{
			ID:          s.env.IDs.NewID(),
			TenantID:    actor.TenantID,
			LocationID:  in.LocationID,
			Status:      ledger.CountOpen,
			Note:        strings.TrimSpace(in.Note),
			SnapshotSeq: tenant.LedgerSeq,
			OpenedBy:    actor.UserID,
			OpenedAt:    now,
		}
		if err := tx.CreateCountSession(ctx, sess); err != nil {
			return err
		}

		lines := make([]ledger.CountLine, 0, len(items))
		for _, it := range items {
			lvl, err := tx.GetStockLevel(ctx, actor.TenantID, it.ID, in.LocationID)
			if err != nil {
				return err
			}
			lines = append(lines, ledger.CountLine{
				SessionID:     sess.ID,
				ItemID:        it.ID,
				Expected:      lvl.Balance,
				UnitCostCents: it.UnitCostCents,
			})
		}
		if err := tx.InsertCountLines(ctx, lines); err != nil {
			return err
		}

		out = Session{CountSession: sess, Lines: lines}
		return nil
	})
	if err != nil {
		return Session{}, err
	}

	s.env.Log.Info("count opened",
		zap.String("tenant", actor.TenantID),
		zap.String("count", out.ID),
		zap.String("location", out.LocationID),
		zap.Int64("snapshot_seq", out.SnapshotSeq),
		zap.Int("lines", len(out.Lines)),
	)
	return out, nil
}

func snapshotItems(ctx context.Context, tx *store.Tx, tenantID string, ids []string) ([]ledger.Item, error) {
	if len(ids) == 0 {
		return tx.ListItems(ctx, tenantID, store.ItemFilter{ActiveOnly: true})
	}
	items := make([]ledger.Item, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		// Listed items may be inactive so leftover stock can still be counted out.
		it, err := tx.GetItem(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

// RecordCount stores the counted quantity of an item. Only open sessions
// accept counts; recounting overwrites. An item outside the snapshot is
// added with its balance as of the snapshot (zero for never-moved stock).
// Inactive items are accepted.
func (s *Service) RecordCount(ctx context.Context, actor access.Actor, sessionID, itemID string, counted ledger.Quantity) (ledger.CountLine, error) {
	if err := access.Require(actor, access.PermCountWrite); err != nil {
		return ledger.CountLine{}, err
	}
	if counted < 0 {
		return ledger.CountLine{}, ledger.NewValidationError("counted quantity must not be negative")
	}

	now := s.env.Clock.Now()
	var out ledger.CountLine
	err := s.env.Store.WithTx(ctx, func(tx *store.Tx) error {
		sess, err := tx.GetCountSession(ctx, actor.TenantID, sessionID)
		if err != nil {
			return err
		}
		if sess.Status != ledger.CountOpen {
			return notOpen(sess)
		}

		lines, err := tx.ListCountLines(ctx, sessionID)
		if err != nil {
			return err
		}
		line, found := findLine(lines, itemID)
		if !found {
			it, err := tx.GetItem(ctx, actor.TenantID, itemID)
			if err != nil {
				return err
			}
			expected, err := balanceAsOf(ctx, tx, actor.TenantID, itemID, sess.LocationID, sess.SnapshotSeq)
			if err != nil {
				return err
			}
			line = ledger.CountLine{SessionID: sessionID, ItemID: it.ID, Expected: expected, UnitCostCents: it.UnitCostCents}
		}

		line.Counted = &counted
		line.CountedBy = actor.UserID
		line.CountedAt = &now
		if err := tx.RecordCountLine(ctx, line); err != nil {
			return err
		}
		out = line
		return nil
	})
	if err != nil {
		return ledger.CountLine{}, err
	}

	s.env.Log.Debug("count recorded",
		zap.String("count", sessionID),
		zap.String("item", itemID),
		zap.Stringer("counted", counted),
		zap.String("by", actor.UserID),
	)
	return out, nil
}

func findLine(lines []ledger.CountLine, itemID string) (ledger.CountLine, bool) {
	for _, l := range lines {
		if l.ItemID == itemID {
			return l, true
		}
	}
	return ledger.CountLine{}, false
}

// balanceAsOf returns the balance of an item at a location after the
// movement with the highest seq not exceeding seq.
func balanceAsOf(ctx context.Context, tx *store.Tx, tenantID, itemID, locationID string, seq int64) (ledger.Quantity, error) {
	movements, err := tx.ListMovements(ctx, tenantID, store.MovementFilter{ItemID: itemID, LocationID: locationID})
	if err != nil {
		return 0, err
	}
	var bal ledger.Quantity
	for _, m := range movements {
		if m.Seq > seq {
			break
		}
		bal = m.BalanceAfter
	}
	return bal, nil
}

// Submit moves an open session to pending. At least one line must be counted.
func (s *Service) Submit(ctx context.Context, actor access.Actor, sessionID string) (Report, error) {
	if err := access.Require(actor, access.PermCountWrite); err != nil {
		return Report{}, err
	}

	now := s.env.Clock.Now()
	var report Report
	err := s.env.Store.WithTx(ctx, func(tx *store.Tx) error {
		sess, err := tx.GetCountSession(ctx, actor.TenantID, sessionID)
		if err != nil {
			return err
		}
		if !ledger.CanTransition(sess.Status, ledger.CountPending) {
			return ledger.NewTransitionError(string(sess.Status), string(ledger.CountPending))
		}

		next := sess
		next.Status = ledger.CountPending
		next.SubmittedBy = actor.UserID
		next.SubmittedAt = &now

		report, err = buildReport(ctx, tx, next)
		if err != nil {
			return err
		}
		if len(report.Lines) == 0 {
			return ledger.NewValidationError("count has no counted lines")
		}
		next.ReportDigest = report.Digest
		return tx.TransitionCountSession(ctx, next, sess.Status)
	})
	if err != nil {
		return Report{}, err
	}

	s.env.Log.Info("count submitted",
		zap.String("tenant", actor.TenantID),
		zap.String("count", sessionID),
		zap.Int("lines", len(report.Lines)),
		zap.Int("uncounted", len(report.Uncounted)),
		zap.Int("flagged", report.Flagged),
		zap.String("digest", report.Digest),
	)
	return report, nil
}

// Report returns the current variance report of a session.
func (s *Service) Report(ctx context.Context, actor access.Actor, sessionID string) (Report, error) {
	if err := access.Require(actor, access.PermStockRead); err != nil {
		return Report{}, err
	}
	sess, err := s.env.Store.GetCountSession(ctx, actor.TenantID, sessionID)
	if err != nil {
		return Report{}, err
	}
	return buildReport(ctx, s.env.Store.Queries, sess)
}

// reportReader is satisfied by *store.Queries and *store.Tx.
type reportReader interface {
	GetTenant(ctx context.Context, id string) (ledger.Tenant, error)
	ListCountLines(ctx context.Context, sessionID string) ([]ledger.CountLine, error)
	ListItems(ctx context.Context, tenantID string, f store.ItemFilter) ([]ledger.Item, error)
}

func buildReport(ctx context.Context, r reportReader, sess ledger.CountSession) (Report, error) {
	tenant, err := r.GetTenant(ctx, sess.TenantID)
	if err != nil {
		return Report{}, err
	}
	lines, err := r.ListCountLines(ctx, sess.ID)
	if err != nil {
		return Report{}, err
	}
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ItemID
	}
	items := map[string]ledger.Item{}
	if len(ids) > 0 {
		list, err := r.ListItems(ctx, sess.TenantID, store.ItemFilter{IDs: ids})
		if err != nil {
			return Report{}, err
		}
		for _, it := range list {
			items[it.ID] = it
		}
	}
	return BuildReport(sess, lines, items, tenant.Settings.VarianceToleranceBP)
}

func notOpen(sess ledger.CountSession) error {
	return &ledger.Error{
		Code:    ledger.ErrCodeInvalidTransition,
		Message: fmt.Sprintf("count %s is %s; counts are only recorded while open", sess.ID, sess.Status),
		Details: map[string]string{"from": string(sess.Status), "to": string(ledger.CountOpen)},
	}
}
