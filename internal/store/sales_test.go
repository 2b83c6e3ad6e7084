package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bakehouse/internal/ledger"
)

func TestSalesSummary_GroupsByDay(t *testing.T) {
	s := createTestStore(t)
	seedTenant(t, s, defaultTestSettings(), "CROISSANT", "BAGUETTE")
	ctx := context.Background()

	sales := []ledger.Sale{
		{ID: "s1", OccurredAt: testTime, Lines: []ledger.SaleLine{
			{ItemID: "item-CROISSANT", Quantity: 3000, UnitPriceCents: 250},
		}},
		{ID: "s2", OccurredAt: testTime.Add(2 * time.Hour), Lines: []ledger.SaleLine{
			{ItemID: "item-BAGUETTE", Quantity: 2000, UnitPriceCents: 300},
		}},
		{ID: "s3", OccurredAt: testTime.Add(24 * time.Hour), Lines: []ledger.SaleLine{
			{ItemID: "item-CROISSANT", Quantity: 1000, UnitPriceCents: 250},
			{ItemID: "item-BAGUETTE", Quantity: 1000, UnitPriceCents: 300},
		}},
	}
	for _, sale := range sales {
		sale.TenantID = "t1"
		sale.LocationID = "loc-main"
		sale.RecordedBy = "u1"
		sale.CreatedAt = sale.OccurredAt
		for _, l := range sale.Lines {
			sale.TotalCents += l.Total()
		}
		require.NoError(t, s.InsertSale(ctx, sale))
	}

	days, err := s.SalesSummary(ctx, "t1", testTime.Add(-time.Hour), testTime.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []DailySales{
		{Day: "2025-03-01", Tickets: 2, TotalCents: 1350},
		{Day: "2025-03-02", Tickets: 1, TotalCents: 550},
	}, days)

	top, err := s.TopSellers(ctx, "t1", testTime.Add(-time.Hour), testTime.Add(48*time.Hour), 1)
	require.NoError(t, err)
	assert.Equal(t, []ItemSales{{ItemID: "item-CROISSANT", Quantity: 4000, TotalCents: 1000}}, top)

	empty, err := s.SalesSummary(ctx, "t1", testTime.Add(72*time.Hour), testTime.Add(96*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestInsertSale_Duplicate(t *testing.T) {
	s := createTestStore(t)
	seedTenant(t, s, defaultTestSettings(), "CROISSANT")
	ctx := context.Background()

	sale := ledger.Sale{ID: "s1", TenantID: "t1", LocationID: "loc-main", RecordedBy: "u1", OccurredAt: testTime, CreatedAt: testTime}
	require.NoError(t, s.InsertSale(ctx, sale))
	err := s.InsertSale(ctx, sale)
	assert.True(t, ledger.IsCode(err, ledger.ErrCodeConflict))
}

func TestRecipe_CreateAndGet(t *testing.T) {
	s := createTestStore(t)
	seedTenant(t, s, defaultTestSettings(), "FLOUR", "BUTTER", "CROISSANT")
	ctx := context.Background()

	r := ledger.Recipe{
		ID: "r1", TenantID: "t1", Name: "Croissant", ProductItemID: "item-CROISSANT", Yield: 24000,
		Ingredients: []ledger.Ingredient{
			{ItemID: "item-FLOUR", Quantity: 1000},
			{ItemID: "item-BUTTER", Quantity: 500},
		},
		CreatedAt: testTime,
	}
	require.NoError(t, s.CreateRecipe(ctx, r))

	got, err := s.GetRecipe(ctx, "t1", "r1")
	require.NoError(t, err)
	assert.Equal(t, "item-BUTTER", got.Ingredients[0].ItemID, "ingredients are ordered by item")
	assert.Equal(t, ledger.Quantity(24000), got.Yield)
	assert.Len(t, got.Ingredients, 2)

	dup := r
	dup.ID = "r2"
	err = s.CreateRecipe(ctx, dup)
	assert.True(t, ledger.IsCode(err, ledger.ErrCodeConflict))

	ids, err := s.ListRecipeIDs(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids)

	require.NoError(t, s.InsertBatch(ctx, ledger.Batch{
		ID: "b1", TenantID: "t1", RecipeID: "r1", LocationID: "loc-main", Output: 24000, ProducedBy: "u1", ProducedAt: testTime,
	}))
}
