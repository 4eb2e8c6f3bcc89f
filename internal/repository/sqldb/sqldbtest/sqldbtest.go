// Package sqldbtest opens throwaway in-memory stores for tests.
package sqldbtest

import (
	"context"
	"testing"

	"github.com/mamadbah2/sitecost/internal/repository/sqldb"
)

// Open returns a fresh in-memory SQLite store closed when the test ends.
func Open(t testing.TB) *sqldb.Store {
	t.Helper()
	store, err := sqldb.Open(context.Background(), sqldb.DialectSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
