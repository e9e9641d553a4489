package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/daleelapp/daleel/internal/database"
	"github.com/daleelapp/daleel/internal/log"
	"github.com/daleelapp/daleel/internal/store"
)

// NewSQLiteStore opens a migrated throwaway SQLite store backed by a file
// in t.TempDir. The store is closed when the test ends.
func NewSQLiteStore(t *testing.T) *store.SQLite {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := database.OpenSQLite(path, log.NewNop())
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	if err := database.MigrateSQLite(db, log.NewNop()); err != nil {
		t.Fatalf("migrating sqlite: %v", err)
	}

	st := store.NewSQLite(db)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// PostgresStore opens the store named by DALEEL_TEST_DATABASE_URL, or skips
// the test when the variable is unset.
func PostgresStore(t *testing.T) *store.Postgres {
	t.Helper()

	connURL := os.Getenv("DALEEL_TEST_DATABASE_URL")
	if connURL == "" {
		t.Skip("DALEEL_TEST_DATABASE_URL not set - skipping postgres test")
	}

	if err := database.MigratePostgres(connURL, log.NewNop()); err != nil {
		t.Fatalf("migrating postgres: %v", err)
	}
	pool, err := database.OpenPostgres(context.Background(), connURL, log.NewNop())
	if err != nil {
		t.Fatalf("opening postgres: %v", err)
	}

	st := store.NewPostgres(pool)
	t.Cleanup(func() { _ = st.Close() })
	return st
}
