// Package harness runs scripted ledger scenarios.
//
// A scenario creates a tenant, imports a catalog and then performs a list of
// ledger operations as named members, each with an expected outcome. The
// trace of executed steps and the final balances are checked by assertions
// and the trace can be compared against a golden file.
//
// # Scenario Format
//
//	name: croissant_day
//	description: "What this scenario demonstrates"
//	tenant:
//	  id: bakery
//	members:
//	  - {user: sam, role: staff}
//	catalog: ../catalog.cue
//	steps:
//	  - {op: purchase, item: FLOUR, location: kitchen, qty: "10"}
//	  - {op: usage, as: sam, item: FLOUR, qty: "20", expect: INSUFFICIENT_STOCK}
//	assertions:
//	  - {type: balance, item: FLOUR, location: kitchen, qty: "10"}
//	  - {type: ledger_consistent}
//
// Items are referenced by SKU and locations by name; an empty location is
// the tenant's default location. Steps run as "owner" unless "as" names
// another member.
//
// # Assertion Types
//
//   - trace_contains: some step ran op (with outcome, if given)
//   - trace_order: ops first appear in the given order
//   - trace_count: op (with outcome, if given) ran exactly count times
//   - balance: final balance of an item at a location
//   - ledger_consistent: replaying the ledger reproduces the stored balances
//
// # Deterministic Testing
//
// Every run uses a fresh SQLite file, a clock stepping one second from
// testutil.Epoch and sequential IDs, so the same scenario always produces
// the same trace. Traces are rendered with canon.Marshal for golden files.
package harness
