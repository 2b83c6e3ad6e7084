package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/bakehouse/internal/ledger"
)

var testTime = time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedTenant creates tenant "t1" with a "main" location and the given SKUs.
// Item IDs are "item-<sku>"; the location ID is "loc-main".
func seedTenant(t *testing.T, s *Store, settings ledger.Settings, skus ...string) {
	t.Helper()
	ctx := context.Background()

	if err := s.CreateTenant(ctx, ledger.Tenant{ID: "t1", Name: "Corner Bakery", Settings: settings, CreatedAt: testTime}); err != nil {
		t.Fatalf("CreateTenant() failed: %v", err)
	}
	if err := s.CreateLocation(ctx, ledger.Location{ID: "loc-main", TenantID: "t1", Name: "main", CreatedAt: testTime}); err != nil {
		t.Fatalf("CreateLocation() failed: %v", err)
	}
	for _, sku := range skus {
		it := ledger.Item{
			ID: "item-" + sku, TenantID: "t1", SKU: sku, Name: sku, Unit: ledger.UnitKilogram,
			Category: ledger.CategoryIngredient, Active: true, CreatedAt: testTime, UpdatedAt: testTime,
		}
		if err := s.CreateItem(ctx, it); err != nil {
			t.Fatalf("CreateItem(%s) failed: %v", sku, err)
		}
	}
}

// createTestMovement builds a movement with the minimal required fields.
func createTestMovement(n int, itemID string, typ ledger.MovementType, delta ledger.Quantity) ledger.Movement {
	m := ledger.Movement{
		ID:         fmt.Sprintf("mv-%03d", n),
		TenantID:   "t1",
		ItemID:     itemID,
		LocationID: "loc-main",
		Type:       typ,
		Delta:      delta,
		CreatedBy:  "u1",
		CreatedAt:  testTime.Add(time.Duration(n) * time.Minute),
	}
	if typ.RequiresReason() {
		m.Reason = "test"
	}
	return m
}

// appendTestMovement appends m in its own transaction.
func appendTestMovement(t *testing.T, s *Store, m ledger.Movement, opts AppendOptions) (ledger.Movement, error) {
	t.Helper()
	var out ledger.Movement
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		var err error
		out, err = tx.AppendMovement(context.Background(), m, opts)
		return err
	})
	return out, err
}

func defaultTestSettings() ledger.Settings {
	return ledger.DefaultSettings()
}
