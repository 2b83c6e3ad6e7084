package store

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations_FromV0(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("PRAGMA user_version")).
		WillReturnRows(sqlmock.NewRows([]string{"user_version"}).AddRow(0))
	mock.ExpectExec("CREATE UNIQUE INDEX IF NOT EXISTS idx_count_sessions_active").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_movements_count").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("PRAGMA user_version = 2")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, runMigrations(db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_SkipsApplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("PRAGMA user_version")).
		WillReturnRows(sqlmock.NewRows([]string{"user_version"}).AddRow(1))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_movements_count").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("PRAGMA user_version = 2")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, runMigrations(db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_StopsOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("PRAGMA user_version")).
		WillReturnRows(sqlmock.NewRows([]string{"user_version"}).AddRow(0))
	mock.ExpectExec("CREATE UNIQUE INDEX IF NOT EXISTS idx_count_sessions_active").
		WillReturnError(errors.New("disk I/O error"))

	err = runMigrations(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate to v1")
	assert.NoError(t, mock.ExpectationsWereMet())
}
