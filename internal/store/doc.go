// Package store provides SQLite-backed durable storage for the stock ledger.
//
// The store keeps:
//   - Tenants, members, locations and items (the catalog)
//   - Movements: the append-only ledger (UPDATE and DELETE abort via triggers)
//   - Stock levels: the running balance per (item, location)
//   - Count sessions and lines, recipes, production batches and sales
//
// # Critical Patterns
//
// Single-row balance update:
//   - AppendMovement runs inside a transaction: bump the tenant's ledger_seq,
//     read the stock level, apply the delta, upsert the level, insert the movement
//   - The stock level therefore always equals the sum of its movements
//
// Logical ordering:
//   - Movements are ordered by seq (per-tenant logical clock), never timestamps
//   - Ledger queries use ORDER BY seq ASC, id ASC COLLATE BINARY
//
// Tenant scoping:
//   - Every query filters by tenant_id; a record in another tenant is NOT_FOUND
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
