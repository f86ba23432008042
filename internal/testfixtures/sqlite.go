package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/salafacil/salafacil/internal/persistence/sqlstore"
)

// NewSQLiteStore opens a migrated SQLite store in a temporary directory. The
// store is closed when the test ends.
func NewSQLiteStore(tb testing.TB) *sqlstore.Store {
	tb.Helper()

	ctx := context.Background()
	store, err := sqlstore.Open(ctx, sqlstore.DialectSQLite, filepath.Join(tb.TempDir(), "salafacil.db"))
	if err != nil {
		tb.Fatalf("failed to open sqlite store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate sqlite store: %v", err)
	}

	tb.Cleanup(func() { _ = store.Close() })
	return store
}
