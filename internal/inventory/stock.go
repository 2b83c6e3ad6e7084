package inventory

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/bakehouse/internal/access"
	"github.com/roach88/bakehouse/internal/ledger"
	"github.com/roach88/bakehouse/internal/store"
)

// StockRow is one item's balance at one location, with catalog details.
type StockRow struct {
	ItemID       string          `json:"item_id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Unit         ledger.Unit     `json:"unit"`
	LocationID   string          `json:"location_id"`
	Location     string          `json:"location"`
	Balance      ledger.Quantity `json:"balance"`
	ValueCents   ledger.Money    `json:"value_cents"`
	LastSeq      int64           `json:"last_seq"`
	ReorderLevel ledger.Quantity `json:"reorder_level"`
}

// StockOnHand lists balances for every item that has moved, optionally at
// one location. Rows are ordered by SKU then location name.
func (s *Service) StockOnHand(ctx context.Context, actor access.Actor, locationID string) ([]StockRow, error) {
	if err := access.Require(actor, access.PermStockRead); err != nil {
		return nil, err
	}
	if locationID != "" {
		if _, err := s.env.Store.GetLocation(ctx, actor.TenantID, locationID); err != nil {
			return nil, err
		}
	}

	levels, err := s.env.Store.ListStockLevels(ctx, actor.TenantID, locationID)
	if err != nil {
		return nil, err
	}
	items, locs, err := s.catalog(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}

	rows := make([]StockRow, 0, len(levels))
	for _, lvl := range levels {
		it := items[lvl.ItemID]
		rows = append(rows, StockRow{
			ItemID:       lvl.ItemID,
			SKU:          it.SKU,
			Name:         it.Name,
			Unit:         it.Unit,
			LocationID:   lvl.LocationID,
			Location:     locs[lvl.LocationID].Name,
			Balance:      lvl.Balance,
			ValueCents:   lvl.Balance.Value(it.UnitCostCents),
			LastSeq:      lvl.LastSeq,
			ReorderLevel: it.ReorderLevel,
		})
	}
	sortStockRows(rows)
	return rows, nil
}

// LowStockRow is an active item whose total balance is at or below its
// reorder level.
type LowStockRow struct {
	ItemID       string          `json:"item_id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Unit         ledger.Unit     `json:"unit"`
	Total        ledger.Quantity `json:"total"`
	ReorderLevel ledger.Quantity `json:"reorder_level"`
	Shortfall    ledger.Quantity `json:"shortfall"`
}

// LowStock returns active items with a reorder level whose balance summed
// across all locations is at or below it. Items with a zero reorder level
// are never reported. Ordered by SKU.
func (s *Service) LowStock(ctx context.Context, actor access.Actor) ([]LowStockRow, error) {
	if err := access.Require(actor, access.PermStockRead); err != nil {
		return nil, err
	}
	items, err := s.env.Store.ListItems(ctx, actor.TenantID, store.ItemFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	levels, err := s.env.Store.ListStockLevels(ctx, actor.TenantID, "")
	if err != nil {
		return nil, err
	}
	totals := make(map[string]ledger.Quantity, len(levels))
	for _, lvl := range levels {
		totals[lvl.ItemID] += lvl.Balance
	}

	rows := []LowStockRow{}
	for _, it := range items {
		if it.ReorderLevel <= 0 {
			continue
		}
		total := totals[it.ID]
		if total > it.ReorderLevel {
			continue
		}
		rows = append(rows, LowStockRow{
			ItemID:       it.ID,
			SKU:          it.SKU,
			Name:         it.Name,
			Unit:         it.Unit,
			Total:        total,
			ReorderLevel: it.ReorderLevel,
			Shortfall:    it.ReorderLevel - total,
		})
	}
	return rows, nil
}

// VerifyReport is the result of replaying a tenant's ledger.
type VerifyReport struct {
	TenantID      string               `json:"tenant_id"`
	Movements     int                  `json:"movements"`
	LastSeq       int64                `json:"last_seq"`
	TenantSeq     int64                `json:"tenant_seq"`
	Discrepancies []ledger.Discrepancy `json:"discrepancies"`
	Drift         []ledger.Drift       `json:"drift"`
}

// OK reports whether the ledger and the stored balances agree.
func (r VerifyReport) OK() bool {
	return len(r.Discrepancies) == 0 && len(r.Drift) == 0 && r.LastSeq == r.TenantSeq
}

// Verify replays every movement of the tenant and compares the fold with
// each movement's recorded balance and with the stored stock levels.
func (s *Service) Verify(ctx context.Context, actor access.Actor) (VerifyReport, error) {
	if err := access.Require(actor, access.PermStockRead); err != nil {
		return VerifyReport{}, err
	}

	var (
		movements []ledger.Movement
		levels    []ledger.StockLevel
		tenant    ledger.Tenant
	)
	// One transaction gives a consistent snapshot of log, levels and seq.
	err := s.env.Store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		if tenant, err = tx.GetTenant(ctx, actor.TenantID); err != nil {
			return err
		}
		if movements, err = tx.ListMovements(ctx, actor.TenantID, store.MovementFilter{}); err != nil {
			return err
		}
		levels, err = tx.ListStockLevels(ctx, actor.TenantID, "")
		return err
	})
	if err != nil {
		return VerifyReport{}, err
	}

	res := ledger.Replay(movements)
	report := VerifyReport{
		TenantID:      actor.TenantID,
		Movements:     res.Movements,
		LastSeq:       res.LastSeq,
		TenantSeq:     tenant.LedgerSeq,
		Discrepancies: res.Discrepancies,
		Drift:         ledger.CompareLevels(res.Balances, levels),
	}

	if report.OK() {
		s.env.Log.Info("ledger verified", zap.String("tenant", actor.TenantID), zap.Int("movements", report.Movements))
	} else {
		s.env.Log.Warn("ledger drift detected",
			zap.String("tenant", actor.TenantID),
			zap.Int("discrepancies", len(report.Discrepancies)),
			zap.Int("drift", len(report.Drift)),
			zap.Int64("last_seq", report.LastSeq),
			zap.Int64("tenant_seq", report.TenantSeq),
		)
	}
	return report, nil
}

func (s *Service) catalog(ctx context.Context, tenantID string) (map[string]ledger.Item, map[string]ledger.Location, error) {
	items, err := s.env.Store.ListItems(ctx, tenantID, store.ItemFilter{})
	if err != nil {
		return nil, nil, err
	}
	locs, err := s.env.Store.ListLocations(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	byItem := make(map[string]ledger.Item, len(items))
	for _, it := range items {
		byItem[it.ID] = it
	}
	byLoc := make(map[string]ledger.Location, len(locs))
	for _, l := range locs {
		byLoc[l.ID] = l
	}
	return byItem, byLoc, nil
}

func sortStockRows(rows []StockRow) {
	slices.SortFunc(rows, func(a, b StockRow) int {
		if c := strings.Compare(a.SKU, b.SKU); c != 0 {
			return c
		}
		return strings.Compare(a.Location, b.Location)
	})
}
