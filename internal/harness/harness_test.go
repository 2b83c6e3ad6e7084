package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/bakehouse/internal/ledger"
)

func TestRun_CroissantDay(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/croissant_day.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), sc, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Trace, 13)

	assert.Equal(t, map[string]ledger.Quantity{
		"FLOUR@kitchen":     ledger.MustParseQuantity("7.5"),
		"BUTTER@kitchen":    ledger.Units(1),
		"CROISSANT@kitchen": ledger.Units(4),
		"CROISSANT@shop":    ledger.Units(13),
	}, result.Balances)

	produce := result.Trace[2]
	require.Len(t, produce.Movements, 3)
	assert.Equal(t, ledger.MovementProduction, produce.Movements[2].Type)
	assert.Equal(t, ledger.MustParseQuantity("-2.4"), produce.Movements[1].Delta)

	assert.Equal(t, "INSUFFICIENT_STOCK", result.Trace[6].Outcome)
	assert.Empty(t, result.Trace[6].Movements)
	assert.Equal(t, "9", result.Trace[7].Detail["snapshot_seq"])
}

func TestRun_Deterministic(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/croissant_day.yaml")
	require.NoError(t, err)

	first, err := Run(context.Background(), sc)
	require.NoError(t, err)
	second, err := Run(context.Background(), sc)
	require.NoError(t, err)

	a, err := MarshalTrace(sc.Name, first)
	require.NoError(t, err)
	b, err := MarshalTrace(sc.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_UnexpectedOutcome(t *testing.T) {
	sc := &Scenario{
		Name:        "unexpected",
		Description: "usage without stock",
		Tenant:      TenantSetup{ID: "t1"},
		Catalog:     "testdata/catalog.cue",
		Steps: []Step{
			{Op: OpUsage, Item: "FLOUR", Location: "kitchen", Qty: ledger.Units(1)},
			{Op: OpPurchase, As: "stranger", Item: "FLOUR", Qty: ledger.Units(1), Expect: "FORBIDDEN"},
		},
		Assertions: []Assertion{{Type: AssertConsistent}},
	}

	result, err := Run(context.Background(), sc)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "step 1 (usage): expected ok, got INSUFFICIENT_STOCK", result.Errors[0])
	assert.Equal(t, "FORBIDDEN", result.Trace[1].Outcome)
	assert.Empty(t, result.Balances)
}

func TestRun_CountLifecycle(t *testing.T) {
	settings := ledger.DefaultSettings()
	settings.RequireDistinctApprover = false
	sc := &Scenario{
		Name:        "count_lifecycle",
		Description: "reject, cancel and step without a session",
		Tenant:      TenantSetup{ID: "t1", Settings: &settings},
		Catalog:     "testdata/catalog.cue",
		Steps: []Step{
			{Op: OpCountSubmit, Expect: "NOT_FOUND"},
			{Op: OpPurchase, Item: "BUTTER", Qty: ledger.Units(3)},
			{Op: OpCountOpen, Items: []string{"BUTTER"}},
			{Op: OpCountOpen, Expect: "CONFLICT"},
			{Op: OpCountRecord, Item: "BUTTER", Qty: ledger.Units(2)},
			{Op: OpCountSubmit},
			{Op: OpCountReject, Reason: "recount the walk-in"},
			{Op: OpCountOpen},
			{Op: OpCountCancel},
			{Op: OpCountApprove, Expect: "INVALID_TRANSITION"},
		},
		Assertions: []Assertion{
			{Type: AssertBalance, Item: "BUTTER", Qty: ledger.Units(3)},
			{Type: AssertTraceCount, Op: OpCountOpen, Outcome: OutcomeOK, Count: 2},
			{Type: AssertConsistent},
		},
	}

	result, err := Run(context.Background(), sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "1", result.Trace[2].Detail["lines"])
	assert.Equal(t, "1", result.Trace[5].Detail["flagged"])
	assert.Equal(t, "rejected", result.Trace[6].Detail["status"])
	assert.Equal(t, "cancelled", result.Trace[8].Detail["status"])
}

func TestRun_WithDir(t *testing.T) {
	dir := t.TempDir()
	sc := &Scenario{
		Name:        "kept",
		Description: "database left for inspection",
		Tenant:      TenantSetup{ID: "t1"},
		Catalog:     "testdata/catalog.cue",
		Steps:       []Step{{Op: OpPurchase, Item: "FLOUR", Qty: ledger.Units(2)}},
		Assertions:  []Assertion{{Type: AssertBalance, Item: "flour", Qty: ledger.Units(2)}},
	}

	result, err := Run(context.Background(), sc, WithDir(dir))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	_, err = os.Stat(filepath.Join(dir, "kept.db"))
	assert.NoError(t, err)
}

func TestRun_SetupFailure(t *testing.T) {
	sc := &Scenario{
		Name:        "bad_setup",
		Description: "catalog that does not compile",
		Tenant:      TenantSetup{ID: "t1"},
		Catalog:     filepath.Join(t.TempDir(), "broken.cue"),
		Steps:       []Step{{Op: OpCountOpen}},
		Assertions:  []Assertion{{Type: AssertConsistent}},
	}
	require.NoError(t, os.WriteFile(sc.Catalog, []byte(`items: {flour: {unit: "kg"}}`), 0644))

	_, err := Run(context.Background(), sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to set up scenario")
}
