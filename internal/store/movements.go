package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/bakehouse/internal/ledger"
)

// AppendOptions tune AppendMovement.
type AppendOptions struct {
	// Force bypasses the tenant's negative stock policy. Used by count
	// approvals, where the physical count is authoritative.
	Force bool
}

// AppendMovement appends one movement and moves the running balance.
//
// Within the transaction it:
//  1. Validates the movement (ledger.ValidateMovement)
//  2. Bumps the tenant's ledger_seq (the movement's Seq)
//  3. Applies Delta to the current stock level, honoring the negative policy
//  4. Upserts the stock level and inserts the movement
//
// ID, TenantID, CreatedBy and CreatedAt must be set by the caller.
// Returns the stored movement with Seq and BalanceAfter filled in.
func (tx *Tx) AppendMovement(ctx context.Context, m ledger.Movement, opts AppendOptions) (ledger.Movement, error) {
	if err := ledger.ValidateMovement(m); err != nil {
		return ledger.Movement{}, err
	}

	var (
		seq           int64
		allowNegative bool
	)
	err := tx.tx.QueryRowContext(ctx, `
		UPDATE tenants SET ledger_seq = ledger_seq + 1
		WHERE id = ?
		RETURNING ledger_seq, allow_negative_stock
	`, m.TenantID).Scan(&seq, &allowNegative)
	if err != nil {
		return ledger.Movement{}, fmt.Errorf("append movement: bump seq: %w", notFound(err, "tenant", m.TenantID))
	}

	balance, err := tx.currentBalance(ctx, m.ItemID, m.LocationID)
	if err != nil {
		return ledger.Movement{}, fmt.Errorf("append movement: %w", err)
	}

	next, err := ledger.Apply(m.ItemID, m.LocationID, balance, m.Delta, allowNegative || opts.Force)
	if err != nil {
		return ledger.Movement{}, err
	}

	m.Seq = seq
	m.BalanceAfter = next

	_, err = tx.tx.ExecContext(ctx, `
		INSERT INTO stock_levels (tenant_id, item_id, location_id, balance, last_seq, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id, location_id) DO UPDATE SET
			balance = excluded.balance,
			last_seq = excluded.last_seq,
			updated_at = excluded.updated_at
	`, m.TenantID, m.ItemID, m.LocationID, int64(next), seq, formatTime(m.CreatedAt))
	if err != nil {
		return ledger.Movement{}, fmt.Errorf("append movement: update stock level: %w", err)
	}

	_, err = tx.tx.ExecContext(ctx, `
		INSERT INTO movements
		(id, tenant_id, item_id, location_id, type, delta, balance_after, seq,
		 reason, reference, transfer_id, count_id, unit_cost_cents, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.ID, m.TenantID, m.ItemID, m.LocationID, string(m.Type), int64(m.Delta), int64(m.BalanceAfter), m.Seq,
		m.Reason, m.Reference, m.TransferID, m.CountID, int64(m.UnitCostCents), m.CreatedBy, formatTime(m.CreatedAt),
	)
	if err != nil {
		return ledger.Movement{}, fmt.Errorf("append movement: insert: %w", conflictOr(err, fmt.Sprintf("movement %q already exists", m.ID)))
	}

	return m, nil
}

func (tx *Tx) currentBalance(ctx context.Context, itemID, locationID string) (ledger.Quantity, error) {
	var balance int64
	err := tx.tx.QueryRowContext(ctx, `
		SELECT balance FROM stock_levels
		WHERE item_id = ? AND location_id = ?
	`, itemID, locationID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return ledger.Quantity(balance), nil
}

// GetStockLevel returns the balance of an item at a location.
// An item that never moved there has a zero level (not an error).
func (q *Queries) GetStockLevel(ctx context.Context, tenantID, itemID, locationID string) (ledger.StockLevel, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT item_id, location_id, balance, last_seq, updated_at
		FROM stock_levels
		WHERE tenant_id = ? AND item_id = ? AND location_id = ?
	`, tenantID, itemID, locationID)
	lvl, err := scanStockLevel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.StockLevel{ItemID: itemID, LocationID: locationID}, nil
	}
	if err != nil {
		return ledger.StockLevel{}, fmt.Errorf("get stock level: %w", err)
	}
	return lvl, nil
}

// ListStockLevels returns a tenant's stock levels, optionally for one location.
// Ordered by item then location for deterministic output.
func (q *Queries) ListStockLevels(ctx context.Context, tenantID, locationID string) ([]ledger.StockLevel, error) {
	query := `
		SELECT item_id, location_id, balance, last_seq, updated_at
		FROM stock_levels
		WHERE tenant_id = ?`
	args := []any{tenantID}
	if locationID != "" {
		query += ` AND location_id = ?`
		args = append(args, locationID)
	}
	query += ` ORDER BY item_id COLLATE BINARY ASC, location_id COLLATE BINARY ASC`

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stock levels: %w", err)
	}
	defer rows.Close()

	levels := []ledger.StockLevel{}
	for rows.Next() {
		lvl, err := scanStockLevel(rows)
		if err != nil {
			return nil, fmt.Errorf("list stock levels: %w", err)
		}
		levels = append(levels, lvl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock levels: %w", err)
	}
	return levels, nil
}

func scanStockLevel(sc scanner) (ledger.StockLevel, error) {
	var (
		lvl       ledger.StockLevel
		balance   int64
		updatedAt string
	)
	if err := sc.Scan(&lvl.ItemID, &lvl.LocationID, &balance, &lvl.LastSeq, &updatedAt); err != nil {
		return ledger.StockLevel{}, err
	}
	lvl.Balance = ledger.Quantity(balance)
	var err error
	if lvl.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return ledger.StockLevel{}, err
	}
	return lvl, nil
}

// MovementFilter narrows ListMovements. Zero values mean "any".
type MovementFilter struct {
	ItemID     string
	LocationID string
	CountID    string
	TransferID string
	AfterSeq   int64
	Limit      int
}

const movementColumns = `id, tenant_id, item_id, location_id, type, delta, balance_after, seq,
	reason, reference, transfer_id, count_id, unit_cost_cents, created_by, created_at`

// ListMovements returns a tenant's movements in ledger order:
// ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if nothing matches.
func (q *Queries) ListMovements(ctx context.Context, tenantID string, f MovementFilter) ([]ledger.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements WHERE tenant_id = ?`
	args := []any{tenantID}
	if f.ItemID != "" {
		query += ` AND item_id = ?`
		args = append(args, f.ItemID)
	}
	if f.LocationID != "" {
		query += ` AND location_id = ?`
		args = append(args, f.LocationID)
	}
	if f.CountID != "" {
		query += ` AND count_id = ?`
		args = append(args, f.CountID)
	}
	if f.TransferID != "" {
		query += ` AND transfer_id = ?`
		args = append(args, f.TransferID)
	}
	if f.AfterSeq > 0 {
		query += ` AND seq > ?`
		args = append(args, f.AfterSeq)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	defer rows.Close()

	movements := []ledger.Movement{}
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movements: %w", err)
	}
	return movements, nil
}

func scanMovement(sc scanner) (ledger.Movement, error) {
	var (
		m                    ledger.Movement
		typ, createdAt       string
		delta, balance, cost int64
	)
	if err := sc.Scan(
		&m.ID, &m.TenantID, &m.ItemID, &m.LocationID, &typ, &delta, &balance, &m.Seq,
		&m.Reason, &m.Reference, &m.TransferID, &m.CountID, &cost, &m.CreatedBy, &createdAt,
	); err != nil {
		return ledger.Movement{}, err
	}
	m.Type = ledger.MovementType(typ)
	m.Delta = ledger.Quantity(delta)
	m.BalanceAfter = ledger.Quantity(balance)
	m.UnitCostCents = ledger.Money(cost)
	var err error
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return ledger.Movement{}, err
	}
	return m, nil
}
