package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/named-data/ndn-cpp-sub006/internal/persistence/sqlite"
)

// NewSQLiteStore opens and migrates a store backed by a temporary database
// file. The store is closed when the test finishes.
func NewSQLiteStore(tb testing.TB) *sqlite.Store {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "gep.db")
	store, err := sqlite.Open(sqlite.DefaultConfig(path), nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() {
		_ = store.Close()
	})

	if err := store.Migrate(context.Background()); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	return store
}
