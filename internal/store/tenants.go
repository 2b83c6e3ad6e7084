package store

import (
	"context"
	"fmt"

	"github.com/roach88/bakehouse/internal/ledger"
)

// CreateTenant inserts a tenant. A duplicate ID is a CONFLICT.
func (q *Queries) CreateTenant(ctx context.Context, t ledger.Tenant) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO tenants
		(id, name, allow_negative_stock, variance_tolerance_bp, require_distinct_approver, ledger_seq, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)
	`,
		t.ID,
		t.Name,
		boolToInt(t.Settings.AllowNegativeStock),
		t.Settings.VarianceToleranceBP,
		boolToInt(t.Settings.RequireDistinctApprover),
		formatTime(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create tenant: %w", conflictOr(err, fmt.Sprintf("tenant %q already exists", t.ID)))
	}
	return nil
}

// GetTenant retrieves a tenant by ID.
func (q *Queries) GetTenant(ctx context.Context, id string) (ledger.Tenant, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT id, name, allow_negative_stock, variance_tolerance_bp, require_distinct_approver, ledger_seq, created_at
		FROM tenants
		WHERE id = ?
	`, id)

	var (
		t         ledger.Tenant
		createdAt string
	)
	if err := row.Scan(
		&t.ID, &t.Name, &t.Settings.AllowNegativeStock, &t.Settings.VarianceToleranceBP,
		&t.Settings.RequireDistinctApprover, &t.LedgerSeq, &createdAt,
	); err != nil {
		return ledger.Tenant{}, fmt.Errorf("get tenant: %w", notFound(err, "tenant", id))
	}
	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return ledger.Tenant{}, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

// ListTenantIDs returns every tenant ID in ascending order.
func (q *Queries) ListTenantIDs(ctx context.Context) ([]string, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT id FROM tenants ORDER BY id COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenants: %w", err)
	}
	return ids, nil
}

// UpdateTenantSettings replaces a tenant's ledger policies.
func (q *Queries) UpdateTenantSettings(ctx context.Context, id string, s ledger.Settings) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE tenants
		SET allow_negative_stock = ?, variance_tolerance_bp = ?, require_distinct_approver = ?
		WHERE id = ?
	`, boolToInt(s.AllowNegativeStock), s.VarianceToleranceBP, boolToInt(s.RequireDistinctApprover), id)
	if err != nil {
		return fmt.Errorf("update tenant settings: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update tenant settings: %w", ledger.NewNotFoundError("tenant", id))
	}
	return nil
}

// UpsertMember sets a user's role within a tenant.
func (q *Queries) UpsertMember(ctx context.Context, m ledger.Member) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO members (tenant_id, user_id, role, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tenant_id, user_id) DO UPDATE SET role = excluded.role
	`, m.TenantID, m.UserID, m.Role, formatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	return nil
}

// GetMember retrieves a member of a tenant.
func (q *Queries) GetMember(ctx context.Context, tenantID, userID string) (ledger.Member, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT tenant_id, user_id, role, created_at
		FROM members
		WHERE tenant_id = ? AND user_id = ?
	`, tenantID, userID)

	var (
		m         ledger.Member
		createdAt string
	)
	if err := row.Scan(&m.TenantID, &m.UserID, &m.Role, &createdAt); err != nil {
		return ledger.Member{}, fmt.Errorf("get member: %w", notFound(err, "member", userID))
	}
	var err error
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return ledger.Member{}, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// ListMembers returns a tenant's members ordered by user ID.
func (q *Queries) ListMembers(ctx context.Context, tenantID string) ([]ledger.Member, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT tenant_id, user_id, role, created_at
		FROM members
		WHERE tenant_id = ?
		ORDER BY user_id COLLATE BINARY ASC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := []ledger.Member{}
	for rows.Next() {
		var (
			m         ledger.Member
			createdAt string
		)
		if err := rows.Scan(&m.TenantID, &m.UserID, &m.Role, &createdAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}
