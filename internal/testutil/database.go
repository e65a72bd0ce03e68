package testutil

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/teranos/atomdb/db"
)

// SetupTestDB creates an in-memory SQLite database for testing.
// Uses real migrations to ensure test schema matches production schema.
func SetupTestDB(t testing.TB) *sql.DB {
	t.Helper()
	testDB, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	// :memory: is per connection
	testDB.SetMaxOpenConns(1)

	_, err = db.Migrate(testDB, nil)
	require.NoError(t, err, "Failed to run migrations")

	t.Cleanup(func() { testDB.Close() })
	return testDB
}

// SetupEmptyDB creates an in-memory SQLite database without any tables.
// Used for testing error handling when schema is missing.
func SetupEmptyDB(t testing.TB) *sql.DB {
	t.Helper()
	emptyDB, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	emptyDB.SetMaxOpenConns(1)
	t.Cleanup(func() { emptyDB.Close() })
	return emptyDB
}
