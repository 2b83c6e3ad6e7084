// Package inventory manages items and locations and records stock movements.
//
// Every balance change goes through store.Tx.AppendMovement inside a single
// transaction, so a stock level always equals the sum of its movements.
// Verify replays a tenant's whole ledger to prove it.
package inventory
