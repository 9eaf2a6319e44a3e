package testutil

import (
	"testing"

	"ronin-go/internal/history"
)

// NewTestHistoryStore creates an in-memory history store with the schema
// applied. The store is closed when the test completes.
func NewTestHistoryStore(t *testing.T) *history.SQLiteStore {
	t.Helper()

	store, err := history.NewSQLiteStore(history.MemoryPath)
	if err != nil {
		t.Fatalf("failed to open history store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
