package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/bakehouse/internal/ledger"
)

// CreateLocation inserts a location. A duplicate name within the tenant is a CONFLICT.
func (q *Queries) CreateLocation(ctx context.Context, loc ledger.Location) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO locations (id, tenant_id, name, created_at)
		VALUES (?, ?, ?, ?)
	`, loc.ID, loc.TenantID, loc.Name, formatTime(loc.CreatedAt))
	if err != nil {
		return fmt.Errorf("create location: %w", conflictOr(err, fmt.Sprintf("location %q already exists", loc.Name)))
	}
	return nil
}

// GetLocation retrieves a location by ID within a tenant.
func (q *Queries) GetLocation(ctx context.Context, tenantID, id string) (ledger.Location, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, created_at
		FROM locations
		WHERE tenant_id = ? AND id = ?
	`, tenantID, id)
	loc, err := scanLocation(row)
	if err != nil {
		return ledger.Location{}, fmt.Errorf("get location: %w", notFound(err, "location", id))
	}
	return loc, nil
}

// GetLocationByName retrieves a location by its name within a tenant.
func (q *Queries) GetLocationByName(ctx context.Context, tenantID, name string) (ledger.Location, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, created_at
		FROM locations
		WHERE tenant_id = ? AND name = ?
	`, tenantID, name)
	loc, err := scanLocation(row)
	if err != nil {
		return ledger.Location{}, fmt.Errorf("get location: %w", notFound(err, "location", name))
	}
	return loc, nil
}

// ListLocations returns a tenant's locations ordered by name.
func (q *Queries) ListLocations(ctx context.Context, tenantID string) ([]ledger.Location, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, tenant_id, name, created_at
		FROM locations
		WHERE tenant_id = ?
		ORDER BY name COLLATE BINARY ASC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	locs := []ledger.Location{}
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("list locations: %w", err)
		}
		locs = append(locs, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}
	return locs, nil
}

func scanLocation(sc scanner) (ledger.Location, error) {
	var (
		loc       ledger.Location
		createdAt string
	)
	if err := sc.Scan(&loc.ID, &loc.TenantID, &loc.Name, &createdAt); err != nil {
		return ledger.Location{}, err
	}
	var err error
	if loc.CreatedAt, err = parseTime(createdAt); err != nil {
		return ledger.Location{}, err
	}
	return loc, nil
}

const itemColumns = `id, tenant_id, sku, name, unit, category, reorder_level, unit_cost_cents, active, created_at, updated_at`

// CreateItem inserts an item. A duplicate SKU within the tenant is a CONFLICT.
func (q *Queries) CreateItem(ctx context.Context, it ledger.Item) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		it.ID, it.TenantID, it.SKU, it.Name, string(it.Unit), string(it.Category),
		int64(it.ReorderLevel), int64(it.UnitCostCents), boolToInt(it.Active),
		formatTime(it.CreatedAt), formatTime(it.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create item: %w", conflictOr(err, fmt.Sprintf("sku %q already exists", it.SKU)))
	}
	return nil
}

// UpdateItem replaces an item's mutable fields.
func (q *Queries) UpdateItem(ctx context.Context, it ledger.Item) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE items
		SET sku = ?, name = ?, unit = ?, category = ?, reorder_level = ?,
		    unit_cost_cents = ?, active = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`,
		it.SKU, it.Name, string(it.Unit), string(it.Category), int64(it.ReorderLevel),
		int64(it.UnitCostCents), boolToInt(it.Active), formatTime(it.UpdatedAt),
		it.TenantID, it.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", conflictOr(err, fmt.Sprintf("sku %q already exists", it.SKU)))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update item: %w", ledger.NewNotFoundError("item", it.ID))
	}
	return nil
}

// SetItemCost records the latest unit cost of an item.
func (q *Queries) SetItemCost(ctx context.Context, tenantID, id string, cost ledger.Money, at time.Time) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE items SET unit_cost_cents = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`, int64(cost), formatTime(at), tenantID, id)
	if err != nil {
		return fmt.Errorf("set item cost: %w", err)
	}
	return nil
}

// GetItem retrieves an item by ID within a tenant.
func (q *Queries) GetItem(ctx context.Context, tenantID, id string) (ledger.Item, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE tenant_id = ? AND id = ?
	`, tenantID, id)
	it, err := scanItem(row)
	if err != nil {
		return ledger.Item{}, fmt.Errorf("get item: %w", notFound(err, "item", id))
	}
	return it, nil
}

// GetItemBySKU retrieves an item by SKU within a tenant.
func (q *Queries) GetItemBySKU(ctx context.Context, tenantID, sku string) (ledger.Item, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE tenant_id = ? AND sku = ?
	`, tenantID, sku)
	it, err := scanItem(row)
	if err != nil {
		return ledger.Item{}, fmt.Errorf("get item: %w", notFound(err, "item", sku))
	}
	return it, nil
}

// ItemFilter narrows ListItems.
type ItemFilter struct {
	ActiveOnly bool
	Category   ledger.Category
	IDs        []string
}

// ListItems returns a tenant's items ordered by SKU.
func (q *Queries) ListItems(ctx context.Context, tenantID string, f ItemFilter) ([]ledger.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE tenant_id = ?`
	args := []any{tenantID}
	if f.ActiveOnly {
		query += ` AND active = 1`
	}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, string(f.Category))
	}
	if len(f.IDs) > 0 {
		query += ` AND id IN (` + placeholders(len(f.IDs)) + `)`
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY sku COLLATE BINARY ASC`

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []ledger.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanItem(sc scanner) (ledger.Item, error) {
	var (
		it                   ledger.Item
		unit, category       string
		reorder, cost        int64
		createdAt, updatedAt string
	)
	if err := sc.Scan(
		&it.ID, &it.TenantID, &it.SKU, &it.Name, &unit, &category,
		&reorder, &cost, &it.Active, &createdAt, &updatedAt,
	); err != nil {
		return ledger.Item{}, err
	}
	it.Unit = ledger.Unit(unit)
	it.Category = ledger.Category(category)
	it.ReorderLevel = ledger.Quantity(reorder)
	it.UnitCostCents = ledger.Money(cost)

	var err error
	if it.CreatedAt, err = parseTime(createdAt); err != nil {
		return ledger.Item{}, err
	}
	if it.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return ledger.Item{}, err
	}
	return it, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}

var _ scanner = (*sql.Row)(nil)
