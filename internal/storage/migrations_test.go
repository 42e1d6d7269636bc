package storage

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrationRunner_FreshDB(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db)

	err := runner.Run()
	require.NoError(t, err)

	for _, table := range []string{"kv", "schema_migrations"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}

	var idx string
	err = db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_kv_updated_at'",
	).Scan(&idx)
	require.NoError(t, err)
}

func TestMigrationRunner_Idempotent(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, NewMigrationRunner(db).Run())
	require.NoError(t, NewMigrationRunner(db).Run())

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "each migration is recorded once")
}

func TestMigrationRunner_RecordsVersionAndName(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db).Run())

	var version int
	var name string
	err := db.QueryRow("SELECT version, name FROM schema_migrations").Scan(&version, &name)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.Equal(t, "initial_schema", name)
}

func TestMigrationRunner_RejectsUnknownJournalMode(t *testing.T) {
	db := openTestDB(t)

	err := NewMigrationRunner(db).WithJournalMode("wal; DROP TABLE kv").Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported journal mode")
}

func TestMigrationRunner_AcceptsDeleteJournalMode(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, NewMigrationRunner(db).WithJournalMode("delete").Run())
}
