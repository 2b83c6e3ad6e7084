package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{
		"tenants", "members", "locations", "items", "stock_levels", "movements",
		"count_sessions", "count_lines", "recipes", "recipe_ingredients",
		"production_batches", "sales", "sale_lines",
	}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name string
		want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.verifyPragma(tt.name, tt.want); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestSchema_MovementsTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "movements")
	expected := []string{
		"id", "tenant_id", "item_id", "location_id", "type", "delta", "balance_after", "seq",
		"reason", "reference", "transfer_id", "count_id", "unit_cost_cents", "created_by", "created_at",
	}
	for _, col := range expected {
		if !slices.Contains(columns, col) {
			t.Errorf("movements table missing column %q", col)
		}
	}
}

func TestSchema_MovementsAppendOnly(t *testing.T) {
	s := createTestStore(t)
	seedTenant(t, s, defaultTestSettings(), "FLOUR")

	if _, err := appendTestMovement(t, s, createTestMovement(1, "item-FLOUR", "purchase", 5000), AppendOptions{}); err != nil {
		t.Fatalf("AppendMovement() failed: %v", err)
	}

	if _, err := s.db.Exec(`UPDATE movements SET delta = 1`); err == nil {
		t.Error("expected UPDATE on movements to fail")
	}
	if _, err := s.db.Exec(`DELETE FROM movements`); err == nil {
		t.Error("expected DELETE on movements to fail")
	}
}

func TestSchema_MovementsRejectZeroDelta(t *testing.T) {
	s := createTestStore(t)
	seedTenant(t, s, defaultTestSettings(), "FLOUR")

	_, err := s.db.Exec(`
		INSERT INTO movements (id, tenant_id, item_id, location_id, type, delta, balance_after, seq, created_by, created_at)
		VALUES ('m1', 't1', 'item-FLOUR', 'loc-main', 'adjustment', 0, 0, 1, 'u1', '2025-03-01T06:00:00.000000000Z')
	`)
	if err == nil {
		t.Error("expected CHECK (delta <> 0) to reject zero delta")
	}
}

func TestMigration_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigration_UpgradeFromV0(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 0"); err != nil {
		t.Fatalf("failed to set user_version: %v", err)
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d after migration", version, currentSchemaVersion)
	}

	if !slices.Contains(getTableIndexes(t, s.db, "count_sessions"), "idx_count_sessions_active") {
		t.Error("expected idx_count_sessions_active after migration")
	}
	if !slices.Contains(getTableIndexes(t, s.db, "movements"), "idx_movements_count") {
		t.Error("expected idx_movements_count after migration")
	}
}

// Helper functions

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}
