package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/bakehouse/internal/access"
	"github.com/roach88/bakehouse/internal/inventory"
	"github.com/roach88/bakehouse/internal/ledger"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s as %s: %s\n", event.Step, event.Op, event.Actor, event.Outcome)
		}
	}

	return buf.String()
}

// matches reports whether an event has the op and, when given, the outcome.
func matches(event TraceEvent, op, outcome string) bool {
	if event.Op != op {
		return false
	}
	return outcome == "" || event.Outcome == outcome
}

func describe(op, outcome string) string {
	if outcome == "" {
		return op
	}
	return op + " with outcome " + outcome
}

// assertTraceContains checks that some step ran op with the given outcome.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if matches(event, assertion.Op, assertion.Outcome) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describe(assertion.Op, assertion.Outcome),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that ops first appear in the specified order.
// Other steps may run in between.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for _, event := range trace {
		if positions[event.Op] == 0 {
			positions[event.Op] = event.Step
		}
	}

	for _, op := range assertion.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all ops present: %v", assertion.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Ops); i++ {
		prev, curr := assertion.Ops[i-1], assertion.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", assertion.Ops),
				Actual: fmt.Sprintf("%s (step %d) should be before %s (step %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that op ran exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matches(event, assertion.Op, assertion.Outcome) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, describe(assertion.Op, assertion.Outcome)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertBalance checks a final balance. An item never moved at a location
// has balance zero there.
func assertBalance(balances map[string]ledger.Quantity, assertion Assertion) error {
	location := assertion.Location
	if location == "" {
		location = ledger.DefaultLocationName
	}
	key := BalanceKey(ledger.NormalizeSKU(assertion.Item), strings.ToLower(location))
	got := balances[key]
	if got != assertion.Qty {
		return &AssertionError{
			Type:     AssertBalance,
			Expected: fmt.Sprintf("%s = %s", key, assertion.Qty),
			Actual:   fmt.Sprintf("%s = %s", key, got),
		}
	}
	return nil
}

// assertConsistent replays the tenant's ledger and checks it against the
// stored balances.
func assertConsistent(actx *AssertionContext) error {
	report, err := actx.Inventory.Verify(actx.Ctx, actx.Owner)
	if err != nil {
		return err
	}
	if !report.OK() {
		return &AssertionError{
			Type:     AssertConsistent,
			Expected: "replayed ledger matches stored balances",
			Actual: fmt.Sprintf("%d discrepancies, %d drifted balances, last seq %d vs tenant seq %d",
				len(report.Discrepancies), len(report.Drift), report.LastSeq, report.TenantSeq),
		}
	}
	return nil
}

// AssertionContext provides what ledger_consistent needs to verify the ledger.
type AssertionContext struct {
	Ctx       context.Context
	Inventory *inventory.Service
	Owner     access.Actor
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertBalance:
			err = assertBalance(result.Balances, assertion)
		case AssertConsistent:
			if actx == nil || actx.Inventory == nil {
				err = fmt.Errorf("assertion[%d]: ledger_consistent requires a ledger", i)
			} else {
				err = assertConsistent(actx)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
