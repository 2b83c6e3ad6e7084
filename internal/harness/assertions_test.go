package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bakehouse/internal/ledger"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Step: 1, Op: OpPurchase, Actor: "owner", Outcome: OutcomeOK},
		{Step: 2, Op: OpUsage, Actor: "sam", Outcome: "INSUFFICIENT_STOCK"},
		{Step: 3, Op: OpUsage, Actor: "sam", Outcome: OutcomeOK},
		{Step: 4, Op: OpCountOpen, Actor: "sam", Outcome: OutcomeOK},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpUsage}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpUsage, Outcome: "INSUFFICIENT_STOCK"}))

	err := assertTraceContains(trace, Assertion{Op: OpPurchase, Outcome: "FORBIDDEN"})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, err.Error(), "purchase with outcome FORBIDDEN")
	assert.Contains(t, err.Error(), "[2] usage as sam: INSUFFICIENT_STOCK")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{OpPurchase, OpUsage, OpCountOpen}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{OpPurchase, OpCountOpen}}))

	err := assertTraceOrder(trace, Assertion{Ops: []string{OpCountOpen, OpPurchase}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count_open (step 4) should be before purchase (step 1)")

	err = assertTraceOrder(trace, Assertion{Ops: []string{OpPurchase, OpSale}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing op: sale")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpUsage, Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpUsage, Outcome: OutcomeOK, Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpSale, Count: 0}))

	err := assertTraceCount(trace, Assertion{Op: OpUsage, Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 occurrences of usage")
	assert.Contains(t, err.Error(), "Actual: 2 occurrences")
}

func TestAssertBalance(t *testing.T) {
	balances := map[string]ledger.Quantity{
		"FLOUR@main": ledger.MustParseQuantity("2.5"),
		"FLOUR@shop": ledger.Units(1),
	}

	assert.NoError(t, assertBalance(balances, Assertion{Item: "flour", Qty: ledger.MustParseQuantity("2.5")}))
	assert.NoError(t, assertBalance(balances, Assertion{Item: "FLOUR", Location: "Shop", Qty: ledger.Units(1)}))
	assert.NoError(t, assertBalance(balances, Assertion{Item: "SUGAR", Qty: 0}))

	err := assertBalance(balances, Assertion{Item: "FLOUR", Qty: ledger.Units(3)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FLOUR@main = 3")
	assert.Contains(t, err.Error(), "FLOUR@main = 2.5")
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Op: OpPurchase},
		{Type: AssertTraceCount, Op: OpPurchase, Count: 2},
		{Type: AssertConsistent},
		{Type: "bogus"},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "2 occurrences of purchase")
	assert.Contains(t, errs[1], "ledger_consistent requires a ledger")
	assert.Contains(t, errs[2], `unknown assertion type "bogus"`)
}
