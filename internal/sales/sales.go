// Package sales records sale tickets and the stock they consume.
package sales

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/bakehouse/internal/access"
	"github.com/roach88/bakehouse/internal/inventory"
	"github.com/roach88/bakehouse/internal/ledger"
	"github.com/roach88/bakehouse/internal/service"
	"github.com/roach88/bakehouse/internal/store"
)

// Service records sales for all tenants.
type Service struct {
	env service.Env
}

// New creates a sales service.
func New(env service.Env) *Service {
	return &Service{env: env.Named("sales")}
}

// RecordInput is one sale ticket. A zero OccurredAt means now.
type RecordInput struct {
	LocationID string            `json:"location_id"`
	Channel    string            `json:"channel,omitempty"`
	Lines      []ledger.SaleLine `json:"lines"`
	OccurredAt time.Time         `json:"occurred_at,omitempty"`
}

// Receipt is a recorded sale and the movements it wrote.
type Receipt struct {
	Sale      ledger.Sale       `json:"sale"`
	Movements []ledger.Movement `json:"movements"`
}

// Record writes the sale, its lines and one Sale movement per line in a
// single transaction. Any line that cannot be covered aborts the sale.
func (s *Service) Record(ctx context.Context, actor access.Actor, in RecordInput) (Receipt, error) {
	if err := access.Require(actor, access.PermSalesWrite); err != nil {
		return Receipt{}, err
	}
	if err := validateLines(in.Lines); err != nil {
		return Receipt{}, err
	}

	now := s.env.Clock.Now()
	occurred := in.OccurredAt.UTC()
	if in.OccurredAt.IsZero() {
		occurred = now
	}

	sale := ledger.Sale{
		ID:         s.env.IDs.NewID(),
		TenantID:   actor.TenantID,
		LocationID: in.LocationID,
		Channel:    strings.ToLower(strings.TrimSpace(in.Channel)),
		Lines:      in.Lines,
		RecordedBy: actor.UserID,
		OccurredAt: occurred,
		CreatedAt:  now,
	}
	for _, l := range in.Lines {
		sale.TotalCents += l.Total()
	}

	var rec Receipt
	err := s.env.Store.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.GetLocation(ctx, actor.TenantID, in.LocationID); err != nil {
			return err
		}
		if err := tx.InsertSale(ctx, sale); err != nil {
			return err
		}

		movements := make([]ledger.Movement, 0, len(in.Lines))
		for _, l := range in.Lines {
			it, err := inventory.ActiveItem(ctx, tx, actor.TenantID, l.ItemID)
			if err != nil {
				return err
			}
			m := s.env.Stamp(ledger.Movement{
				ItemID:        it.ID,
				LocationID:    in.LocationID,
				Type:          ledger.MovementSale,
				Delta:         -l.Quantity,
				Reference:     sale.ID,
				UnitCostCents: it.UnitCostCents,
			}, actor, now)
			out, err := tx.AppendMovement(ctx, m, store.AppendOptions{})
			if err != nil {
				return err
			}
			movements = append(movements, out)
		}
		rec = Receipt{Sale: sale, Movements: movements}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}

	s.env.Committed("sale movement", rec.Movements...)
	s.env.Log.Info("sale recorded",
		zap.String("tenant", actor.TenantID),
		zap.String("sale", sale.ID),
		zap.Int("lines", len(sale.Lines)),
		zap.Int64("total_cents", int64(sale.TotalCents)),
	)
	return rec, nil
}

func validateLines(lines []ledger.SaleLine) error {
	if len(lines) == 0 {
		return ledger.NewValidationError("a sale needs at least one line")
	}
	for i, l := range lines {
		if l.ItemID == "" {
			return ledger.NewValidationError(fmt.Sprintf("line %d: item is required", i+1))
		}
		if l.Quantity <= 0 {
			return ledger.NewValidationError(fmt.Sprintf("line %d: quantity must be positive", i+1))
		}
		if l.UnitPriceCents <= 0 {
			return ledger.NewValidationError(fmt.Sprintf("line %d: unit price must be positive", i+1))
		}
	}
	return nil
}

// Summary is revenue over a period.
type Summary struct {
	From       time.Time          `json:"from"`
	To         time.Time          `json:"to"`
	Days       []store.DailySales `json:"days"`
	Items      []store.ItemSales  `json:"items"`
	Tickets    int64              `json:"tickets"`
	TotalCents ledger.Money       `json:"total_cents"`
}

// Summary totals sales in [from, to) per UTC day and per item.
func (s *Service) Summary(ctx context.Context, actor access.Actor, from, to time.Time) (Summary, error) {
	if err := access.Require(actor, access.PermStockRead); err != nil {
		return Summary{}, err
	}
	if !to.After(from) {
		return Summary{}, ledger.NewValidationError("summary period must end after it starts")
	}

	days, err := s.env.Store.SalesSummary(ctx, actor.TenantID, from, to)
	if err != nil {
		return Summary{}, err
	}
	items, err := s.env.Store.TopSellers(ctx, actor.TenantID, from, to, 0)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{From: from.UTC(), To: to.UTC(), Days: days, Items: items}
	for _, d := range days {
		sum.Tickets += d.Tickets
		sum.TotalCents += d.TotalCents
	}
	return sum, nil
}
