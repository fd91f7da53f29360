package implementation

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.ApiService/health"
)

// newTestDB opens an in-memory sqlite database with the production schema.
// A single connection keeps the memory database alive for the test's
// lifetime and matches how the service configures sqlite.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	dm := health.NewDatabaseManager(db, "sqlite3")
	require.NoError(t, dm.CreateTables(context.Background()))

	return db
}
