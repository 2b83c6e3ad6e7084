// Package ledger defines the stock ledger domain model.
//
// Every inventory item carries a running balance per location. The balance
// is never written directly: it only changes through typed movements, and
// each movement records the balance it produced.
//
// # Invariants
//
//   - Balance = sum of signed movement deltas for (tenant, item, location)
//   - Delta is never zero, and its sign is fixed by the movement type
//   - BalanceAfter of a movement = previous BalanceAfter + Delta
//   - Seq strictly increases per tenant (logical clock, never wall time)
//   - Movements are append-only
//
// Quantities are fixed-point with three decimals so that kilograms, litres
// and pieces share one exact integer representation.
package ledger
