package db_test

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"feedloop/internal/db"

	_ "modernc.org/sqlite"
)

func TestBuildDSN(t *testing.T) {
	dsn := db.BuildDSN("/tmp/feedloop.db")
	require.Contains(t, dsn, "file:/tmp/feedloop.db")
	require.Contains(t, dsn, "journal_mode(WAL)")
	require.Contains(t, dsn, "foreign_keys(ON)")
	require.Contains(t, dsn, "busy_timeout(5000)")
}

func TestOpenCreatesAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "feedloop.db")

	database, err := db.Open(path)
	require.NoError(t, err)
	defer database.Close()

	for _, table := range []string{"users", "feeds", "entries", "subscriptions", "user_entry_states", "tags", "entry_tags", "settings", "user_plugin_optouts"} {
		var name string
		err := database.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
	}

	// Incremental migration added the icon column.
	var count int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('feeds') WHERE name = 'icon_cached_at'`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestMigrateIsIdempotent(t *testing.T) {
	database, err := sql.Open("sqlite", "file:migrate_idempotent?mode=memory&cache=shared")
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, db.Migrate(database))
	require.NoError(t, db.Migrate(database))
}
