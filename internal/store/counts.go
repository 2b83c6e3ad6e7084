package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/bakehouse/internal/ledger"
)

const sessionColumns = `id, tenant_id, location_id, status, note, snapshot_seq, opened_by, opened_at,
	submitted_by, submitted_at, decided_by, decided_at, decision_reason, report_digest`

// CreateCountSession inserts a session. A location that already has an
// open or pending session yields a CONFLICT.
func (q *Queries) CreateCountSession(ctx context.Context, s ledger.CountSession) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO count_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.ID, s.TenantID, s.LocationID, string(s.Status), s.Note, s.SnapshotSeq, s.OpenedBy, formatTime(s.OpenedAt),
		s.SubmittedBy, formatNullTime(s.SubmittedAt), s.DecidedBy, formatNullTime(s.DecidedAt),
		s.DecisionReason, s.ReportDigest,
	)
	if err != nil {
		return fmt.Errorf("create count session: %w",
			conflictOr(err, fmt.Sprintf("location %q already has an active count", s.LocationID)))
	}
	return nil
}

// GetCountSession retrieves a session by ID within a tenant.
func (q *Queries) GetCountSession(ctx context.Context, tenantID, id string) (ledger.CountSession, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM count_sessions
		WHERE tenant_id = ? AND id = ?
	`, tenantID, id)
	s, err := scanSession(row)
	if err != nil {
		return ledger.CountSession{}, fmt.Errorf("get count session: %w", notFound(err, "count", id))
	}
	return s, nil
}

// ActiveCountSession returns the open or pending session for a location.
// ok is false when there is none.
func (q *Queries) ActiveCountSession(ctx context.Context, tenantID, locationID string) (s ledger.CountSession, ok bool, err error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM count_sessions
		WHERE tenant_id = ? AND location_id = ? AND status IN ('open', 'pending')
	`, tenantID, locationID)
	s, err = scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.CountSession{}, false, nil
	}
	if err != nil {
		return ledger.CountSession{}, false, fmt.Errorf("active count session: %w", err)
	}
	return s, true, nil
}

// SessionFilter narrows ListCountSessions. Zero values mean "any".
type SessionFilter struct {
	Status     ledger.CountStatus
	LocationID string
}

// ListCountSessions returns a tenant's sessions, newest first.
func (q *Queries) ListCountSessions(ctx context.Context, tenantID string, f SessionFilter) ([]ledger.CountSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM count_sessions WHERE tenant_id = ?`
	args := []any{tenantID}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.LocationID != "" {
		query += ` AND location_id = ?`
		args = append(args, f.LocationID)
	}
	query += ` ORDER BY opened_at DESC, id COLLATE BINARY ASC`

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list count sessions: %w", err)
	}
	defer rows.Close()

	sessions := []ledger.CountSession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan count session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate count sessions: %w", err)
	}
	return sessions, nil
}

// TransitionCountSession moves a session from one status to another.
//
// The update is a compare-and-set on the current status: if another writer
// already moved the session, nothing changes and INVALID_TRANSITION is returned.
// The submitted/decided fields of s are written according to the target status.
func (q *Queries) TransitionCountSession(ctx context.Context, s ledger.CountSession, from ledger.CountStatus) error {
	if !ledger.CanTransition(from, s.Status) {
		return ledger.NewTransitionError(string(from), string(s.Status))
	}

	res, err := q.q.ExecContext(ctx, `
		UPDATE count_sessions
		SET status = ?, submitted_by = ?, submitted_at = ?, decided_by = ?, decided_at = ?,
		    decision_reason = ?, report_digest = ?
		WHERE tenant_id = ? AND id = ? AND status = ?
	`,
		string(s.Status), s.SubmittedBy, formatNullTime(s.SubmittedAt), s.DecidedBy, formatNullTime(s.DecidedAt),
		s.DecisionReason, s.ReportDigest,
		s.TenantID, s.ID, string(from),
	)
	if err != nil {
		return fmt.Errorf("transition count session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition count session: %w", err)
	}
	if n == 0 {
		current, err := q.GetCountSession(ctx, s.TenantID, s.ID)
		if err != nil {
			return err
		}
		return ledger.NewTransitionError(string(current.Status), string(s.Status))
	}
	return nil
}

func scanSession(sc scanner) (ledger.CountSession, error) {
	var (
		s                      ledger.CountSession
		status, openedAt       string
		submittedAt, decidedAt sql.NullString
	)
	if err := sc.Scan(
		&s.ID, &s.TenantID, &s.LocationID, &status, &s.Note, &s.SnapshotSeq, &s.OpenedBy, &openedAt,
		&s.SubmittedBy, &submittedAt, &s.DecidedBy, &decidedAt, &s.DecisionReason, &s.ReportDigest,
	); err != nil {
		return ledger.CountSession{}, err
	}
	s.Status = ledger.CountStatus(status)
	var err error
	if s.OpenedAt, err = parseTime(openedAt); err != nil {
		return ledger.CountSession{}, err
	}
	if s.SubmittedAt, err = parseNullTime(submittedAt); err != nil {
		return ledger.CountSession{}, err
	}
	if s.DecidedAt, err = parseNullTime(decidedAt); err != nil {
		return ledger.CountSession{}, err
	}
	return s, nil
}

// InsertCountLines adds snapshot lines to a session.
func (q *Queries) InsertCountLines(ctx context.Context, lines []ledger.CountLine) error {
	for _, l := range lines {
		if err := q.insertCountLine(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queries) insertCountLine(ctx context.Context, l ledger.CountLine) error {
	var counted sql.NullInt64
	if l.Counted != nil {
		counted = sql.NullInt64{Int64: int64(*l.Counted), Valid: true}
	}
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO count_lines (session_id, item_id, expected, counted, unit_cost_cents, counted_by, counted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		l.SessionID, l.ItemID, int64(l.Expected), counted, int64(l.UnitCostCents),
		l.CountedBy, formatNullTime(l.CountedAt),
	)
	if err != nil {
		return fmt.Errorf("insert count line: %w",
			conflictOr(err, fmt.Sprintf("item %q already on count %q", l.ItemID, l.SessionID)))
	}
	return nil
}

// RecordCountLine stores a counted quantity, inserting the line if the
// item was not part of the snapshot. Recounting overwrites.
func (q *Queries) RecordCountLine(ctx context.Context, l ledger.CountLine) error {
	if l.Counted == nil {
		return ledger.NewValidationError("counted quantity is required")
	}
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO count_lines (session_id, item_id, expected, counted, unit_cost_cents, counted_by, counted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, item_id) DO UPDATE SET
			counted = excluded.counted,
			counted_by = excluded.counted_by,
			counted_at = excluded.counted_at
	`,
		l.SessionID, l.ItemID, int64(l.Expected), int64(*l.Counted), int64(l.UnitCostCents),
		l.CountedBy, formatNullTime(l.CountedAt),
	)
	if err != nil {
		return fmt.Errorf("record count line: %w", err)
	}
	return nil
}

// ListCountLines returns a session's lines ordered by item ID.
func (q *Queries) ListCountLines(ctx context.Context, sessionID string) ([]ledger.CountLine, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT session_id, item_id, expected, counted, unit_cost_cents, counted_by, counted_at
		FROM count_lines
		WHERE session_id = ?
		ORDER BY item_id COLLATE BINARY ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list count lines: %w", err)
	}
	defer rows.Close()

	lines := []ledger.CountLine{}
	for rows.Next() {
		var (
			l              ledger.CountLine
			expected, cost int64
			counted        sql.NullInt64
			countedAt      sql.NullString
		)
		if err := rows.Scan(&l.SessionID, &l.ItemID, &expected, &counted, &cost, &l.CountedBy, &countedAt); err != nil {
			return nil, fmt.Errorf("scan count line: %w", err)
		}
		l.Expected = ledger.Quantity(expected)
		l.UnitCostCents = ledger.Money(cost)
		if counted.Valid {
			c := ledger.Quantity(counted.Int64)
			l.Counted = &c
		}
		if l.CountedAt, err = parseNullTime(countedAt); err != nil {
			return nil, fmt.Errorf("scan count line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate count lines: %w", err)
	}
	return lines, nil
}
