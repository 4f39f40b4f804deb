package testsupport

import (
	"context"
	"testing"

	"inboxq/internal/config"
	"inboxq/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenPostgresStore opens a store against INBOXQ_TEST_POSTGRES_DSN, clears
// it, and skips the test when the variable is unset.
func MustOpenPostgresStore(t testing.TB) *queue.Store {
	t.Helper()

	store := MustOpenStore(t, NewConfig(t, WithPostgres(PostgresDSN(t))))
	if _, err := store.Clear(context.Background()); err != nil {
		t.Fatalf("clear postgres store: %v", err)
	}
	return store
}

// Enqueue adds values at priority and fails the test on error.
func Enqueue(t testing.TB, store *queue.Store, priority queue.Priority, values ...string) {
	t.Helper()

	if _, err := store.AddOrUpdate(context.Background(), values, priority); err != nil {
		t.Fatalf("AddOrUpdate: %v", err)
	}
}

// MustGetByValue fetches the row for value and fails the test when it is missing.
func MustGetByValue(t testing.TB, store *queue.Store, value string) *queue.Item {
	t.Helper()

	item, err := store.GetByValue(context.Background(), value)
	if err != nil {
		t.Fatalf("GetByValue(%q): %v", value, err)
	}
	if item == nil {
		t.Fatalf("GetByValue(%q): not found", value)
	}
	return item
}
