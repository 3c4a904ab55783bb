package testsupport

import (
	"context"
	"testing"

	"lectern/internal/config"
	"lectern/internal/content"
	"lectern/internal/contentstore"
	"lectern/internal/ledger"
)

// MustOpenLedger opens a ledger.Store for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenItems opens a contentstore.Store for tests and registers cleanup.
func MustOpenItems(t testing.TB, cfg *config.Config) *contentstore.Store {
	t.Helper()

	store, err := contentstore.Open(cfg)
	if err != nil {
		t.Fatalf("contentstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewItem persists a content item for tests using the provided store.
func NewItem(t testing.TB, store *contentstore.Store, item *content.Item) *content.Item {
	t.Helper()

	created, err := store.Create(context.Background(), item)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return created
}
