package inventory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/bakehouse/internal/access"
	"github.com/roach88/bakehouse/internal/ledger"
	"github.com/roach88/bakehouse/internal/store"
)

// RecordInput is a single manual stock movement.
//
// Quantity is a magnitude for Purchase, Usage and Waste; Adjustment
// carries its own sign.
type RecordInput struct {
	Type          ledger.MovementType `json:"type"`
	ItemID        string              `json:"item_id"`
	LocationID    string              `json:"location_id"`
	Quantity      ledger.Quantity     `json:"quantity"`
	Reason        string              `json:"reason,omitempty"`
	Reference     string              `json:"reference,omitempty"`
	UnitCostCents ledger.Money        `json:"unit_cost_cents,omitempty"`
}

// recordable lists the types a user may record directly. Sales,
// production and transfers have their own operations.
var recordable = map[ledger.MovementType]bool{
	ledger.MovementPurchase:   true,
	ledger.MovementUsage:      true,
	ledger.MovementWaste:      true,
	ledger.MovementAdjustment: true,
}

// Record appends one movement and returns it with its seq and new balance.
//
// A purchase with a unit cost also updates the item's last cost. Other
// movements without a cost carry the item's current cost for valuation.
func (s *Service) Record(ctx context.Context, actor access.Actor, in RecordInput) (ledger.Movement, error) {
	if err := access.Require(actor, access.PermStockWrite); err != nil {
		return ledger.Movement{}, err
	}
	if !recordable[in.Type] {
		return ledger.Movement{}, ledger.NewValidationError(fmt.Sprintf("cannot record %q movements directly", in.Type))
	}
	delta, err := ledger.SignedDelta(in.Type, in.Quantity)
	if err != nil {
		return ledger.Movement{}, err
	}
	if in.UnitCostCents < 0 {
		return ledger.Movement{}, ledger.NewValidationError("unit cost must not be negative")
	}

	now := s.env.Clock.Now()
	var out ledger.Movement
	err = s.env.Store.WithTx(ctx, func(tx *store.Tx) error {
		it, err := ActiveItem(ctx, tx, actor.TenantID, in.ItemID)
		if err != nil {
			return err
		}
		if _, err := tx.GetLocation(ctx, actor.TenantID, in.LocationID); err != nil {
			return err
		}

		cost := in.UnitCostCents
		if cost == 0 {
			cost = it.UnitCostCents
		}
		m := s.env.Stamp(ledger.Movement{
			ItemID:        it.ID,
			LocationID:    in.LocationID,
			Type:          in.Type,
			Delta:         delta,
			Reason:        strings.TrimSpace(in.Reason),
			Reference:     strings.TrimSpace(in.Reference),
			UnitCostCents: cost,
		}, actor, now)

		if out, err = tx.AppendMovement(ctx, m, store.AppendOptions{}); err != nil {
			return err
		}
		if in.Type == ledger.MovementPurchase && in.UnitCostCents > 0 && in.UnitCostCents != it.UnitCostCents {
			return tx.SetItemCost(ctx, actor.TenantID, it.ID, in.UnitCostCents, now)
		}
		return nil
	})
	if err != nil {
		s.env.Log.Debug("movement rejected",
			zap.String("tenant", actor.TenantID), zap.String("item", in.ItemID),
			zap.String("type", string(in.Type)), zap.Error(err))
		return ledger.Movement{}, err
	}

	s.env.Committed("movement recorded", out)
	return out, nil
}

// TransferInput moves stock between two locations of the same tenant.
type TransferInput struct {
	ItemID    string          `json:"item_id"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Quantity  ledger.Quantity `json:"quantity"`
	Reference string          `json:"reference,omitempty"`
}

// TransferResult is the pair of legs a transfer wrote.
type TransferResult struct {
	TransferID string          `json:"transfer_id"`
	Out        ledger.Movement `json:"out"`
	In         ledger.Movement `json:"in"`
}

// Transfer writes the outgoing and incoming legs in one transaction.
// If the source cannot cover the quantity neither leg is written.
func (s *Service) Transfer(ctx context.Context, actor access.Actor, in TransferInput) (TransferResult, error) {
	if err := access.Require(actor, access.PermStockWrite); err != nil {
		return TransferResult{}, err
	}
	transferID := s.env.IDs.NewID()
	outLeg, inLeg, err := ledger.TransferLegs(in.ItemID, in.From, in.To, transferID, in.Quantity)
	if err != nil {
		return TransferResult{}, err
	}

	now := s.env.Clock.Now()
	res := TransferResult{TransferID: transferID}
	err = s.env.Store.WithTx(ctx, func(tx *store.Tx) error {
		it, err := ActiveItem(ctx, tx, actor.TenantID, in.ItemID)
		if err != nil {
			return err
		}
		for _, loc := range []string{in.From, in.To} {
			if _, err := tx.GetLocation(ctx, actor.TenantID, loc); err != nil {
				return err
			}
		}

		for _, leg := range []*ledger.Movement{&outLeg, &inLeg} {
			leg.Reference = strings.TrimSpace(in.Reference)
			leg.UnitCostCents = it.UnitCostCents
		}
		if res.Out, err = tx.AppendMovement(ctx, s.env.Stamp(outLeg, actor, now), store.AppendOptions{}); err != nil {
			return err
		}
		res.In, err = tx.AppendMovement(ctx, s.env.Stamp(inLeg, actor, now), store.AppendOptions{})
		return err
	})
	if err != nil {
		return TransferResult{}, err
	}

	s.env.Committed("transfer recorded", res.Out, res.In)
	return res, nil
}

// History returns an item's movements across all locations in ledger order.
// A positive limit keeps only the most recent movements.
func (s *Service) History(ctx context.Context, actor access.Actor, itemID string, limit int) ([]ledger.Movement, error) {
	if err := access.Require(actor, access.PermStockRead); err != nil {
		return nil, err
	}
	if _, err := s.env.Store.GetItem(ctx, actor.TenantID, itemID); err != nil {
		return nil, err
	}
	movements, err := s.env.Store.ListMovements(ctx, actor.TenantID, store.MovementFilter{ItemID: itemID})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(movements) > limit {
		movements = movements[len(movements)-limit:]
	}
	return movements, nil
}

// Movements returns the tenant's ledger filtered by f.
func (s *Service) Movements(ctx context.Context, actor access.Actor, f store.MovementFilter) ([]ledger.Movement, error) {
	if err := access.Require(actor, access.PermStockRead); err != nil {
		return nil, err
	}
	return s.env.Store.ListMovements(ctx, actor.TenantID, f)
}
