package harness

import "github.com/roach88/bakehouse/internal/ledger"

// OutcomeOK is the outcome of a step that succeeded.
const OutcomeOK = "ok"

// TraceEvent records one executed step.
// Items appear by SKU and locations by name so traces stay readable and
// independent of generated identifiers.
type TraceEvent struct {
	Step      int               `json:"step"`
	Op        string            `json:"op"`
	Actor     string            `json:"actor"`
	Outcome   string            `json:"outcome"` // OutcomeOK or an error code
	Movements []TraceMovement   `json:"movements,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// TraceMovement is a movement as it appears in a trace.
type TraceMovement struct {
	Seq      int64               `json:"seq"`
	Type     ledger.MovementType `json:"type"`
	Item     string              `json:"item"`
	Location string              `json:"location"`
	Delta    ledger.Quantity     `json:"delta"`
	Balance  ledger.Quantity     `json:"balance"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step matched its expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Balances are the final stock levels keyed "SKU@location".
	Balances map[string]ledger.Quantity `json:"balances"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		Balances: make(map[string]ledger.Quantity),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// BalanceKey is the Balances key for an item at a location.
func BalanceKey(sku, location string) string {
	return sku + "@" + location
}
