package sales

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bakehouse/internal/inventory"
	"github.com/roach88/bakehouse/internal/ledger"
	"github.com/roach88/bakehouse/internal/store"
	"github.com/roach88/bakehouse/internal/testutil"
)

func TestRecord(t *testing.T) {
	env := testutil.NewEnv(t)
	tn := testutil.SeedTenant(t, env, "t1", ledger.DefaultSettings())
	croissant := testutil.SeedItem(t, env, "t1", "CROISSANT", ledger.UnitPiece, 0, 60)
	baguette := testutil.SeedItem(t, env, "t1", "BAGUETTE", ledger.UnitPiece, 0, 45)
	inv := inventory.New(env)
	svc := New(env)
	ctx := context.Background()

	for _, it := range []ledger.Item{croissant, baguette} {
		_, err := inv.Record(ctx, tn.Staff, inventory.RecordInput{
			Type: ledger.MovementPurchase, ItemID: it.ID, LocationID: tn.MainID, Quantity: ledger.Units(20),
		})
		require.NoError(t, err)
	}

	rec, err := svc.Record(ctx, tn.Staff, RecordInput{
		LocationID: tn.MainID,
		Channel:    " Counter ",
		Lines: []ledger.SaleLine{
			{ItemID: croissant.ID, Quantity: ledger.Units(3), UnitPriceCents: 250},
			{ItemID: baguette.ID, Quantity: ledger.Units(2), UnitPriceCents: 320},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.Money(1390), rec.Sale.TotalCents)
	assert.Equal(t, "counter", rec.Sale.Channel)
	require.Len(t, rec.Movements, 2)
	assert.Equal(t, ledger.Units(17), rec.Movements[0].BalanceAfter)
	assert.Equal(t, ledger.Units(18), rec.Movements[1].BalanceAfter)
	assert.Equal(t, rec.Sale.ID, rec.Movements[0].Reference)
	assert.Equal(t, ledger.MovementSale, rec.Movements[0].Type)
}

func TestRecord_AllOrNothing(t *testing.T) {
	env := testutil.NewEnv(t)
	tn := testutil.SeedTenant(t, env, "t1", ledger.DefaultSettings())
	croissant := testutil.SeedItem(t, env, "t1", "CROISSANT", ledger.UnitPiece, 0, 60)
	baguette := testutil.SeedItem(t, env, "t1", "BAGUETTE", ledger.UnitPiece, 0, 45)
	inv := inventory.New(env)
	svc := New(env)
	ctx := context.Background()

	_, err := inv.Record(ctx, tn.Staff, inventory.RecordInput{
		Type: ledger.MovementPurchase, ItemID: croissant.ID, LocationID: tn.MainID, Quantity: ledger.Units(5),
	})
	require.NoError(t, err)

	_, err = svc.Record(ctx, tn.Staff, RecordInput{
		LocationID: tn.MainID,
		Lines: []ledger.SaleLine{
			{ItemID: croissant.ID, Quantity: ledger.Units(3), UnitPriceCents: 250},
			{ItemID: baguette.ID, Quantity: ledger.Units(1), UnitPriceCents: 320},
		},
	})
	assert.True(t, ledger.IsCode(err, ledger.ErrCodeInsufficientStock))

	lvl, err := env.Store.GetStockLevel(ctx, "t1", croissant.ID, tn.MainID)
	require.NoError(t, err)
	assert.Equal(t, ledger.Units(5), lvl.Balance)

	sum, err := svc.Summary(ctx, tn.Staff, testutil.Epoch.Add(-time.Hour), testutil.Epoch.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, sum.Tickets)
}

func TestRecord_Validation(t *testing.T) {
	env := testutil.NewEnv(t)
	tn := testutil.SeedTenant(t, env, "t1", ledger.DefaultSettings())
	item := testutil.SeedItem(t, env, "t1", "CROISSANT", ledger.UnitPiece, 0, 60)
	svc := New(env)
	ctx := context.Background()

	tests := []struct {
		name  string
		lines []ledger.SaleLine
	}{
		{"empty", nil},
		{"zero quantity", []ledger.SaleLine{{ItemID: item.ID, UnitPriceCents: 100}}},
		{"free", []ledger.SaleLine{{ItemID: item.ID, Quantity: 1000}}},
		{"no item", []ledger.SaleLine{{Quantity: 1000, UnitPriceCents: 100}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Record(ctx, tn.Staff, RecordInput{LocationID: tn.MainID, Lines: tt.lines})
			assert.True(t, ledger.IsCode(err, ledger.ErrCodeValidation), "got %v", err)
		})
	}
}

func TestSummary(t *testing.T) {
	env := testutil.NewEnv(t)
	tn := testutil.SeedTenant(t, env, "t1", ledger.DefaultSettings())
	croissant := testutil.SeedItem(t, env, "t1", "CROISSANT", ledger.UnitPiece, 0, 60)
	inv := inventory.New(env)
	svc := New(env)
	ctx := context.Background()

	_, err := inv.Record(ctx, tn.Staff, inventory.RecordInput{
		Type: ledger.MovementPurchase, ItemID: croissant.ID, LocationID: tn.MainID, Quantity: ledger.Units(50),
	})
	require.NoError(t, err)

	day1 := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	for i, at := range []time.Time{day1, day1.Add(3 * time.Hour), day1.Add(24 * time.Hour)} {
		_, err := svc.Record(ctx, tn.Staff, RecordInput{
			LocationID: tn.MainID,
			Lines:      []ledger.SaleLine{{ItemID: croissant.ID, Quantity: ledger.Units(int64(i + 1)), UnitPriceCents: 250}},
			OccurredAt: at,
		})
		require.NoError(t, err)
	}

	sum, err := svc.Summary(ctx, tn.Manager, day1.Truncate(24*time.Hour), day1.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), sum.Tickets)
	assert.Equal(t, ledger.Money(1500), sum.TotalCents)
	assert.Equal(t, []store.DailySales{
		{Day: "2025-03-03", Tickets: 2, TotalCents: 750},
		{Day: "2025-03-04", Tickets: 1, TotalCents: 750},
	}, sum.Days)
	require.Len(t, sum.Items, 1)
	assert.Equal(t, ledger.Units(6), sum.Items[0].Quantity)

	_, err = svc.Summary(ctx, tn.Manager, day1, day1)
	assert.True(t, ledger.IsCode(err, ledger.ErrCodeValidation))
}
