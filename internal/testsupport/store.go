package testsupport

import (
	"context"
	"testing"

	"courier/internal/config"
	"courier/internal/queue"
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

// MustOpenMemory returns an in-memory backend for tests.
func MustOpenMemory(t testing.TB) *queue.MemoryBackend {
	t.Helper()
	return queue.NewMemoryBackend()
}

// SeedRequest enqueues a request for tests using the provided backend.
func SeedRequest(t testing.TB, backend queue.Backend, class, url string, maxRetries int) *queue.Request {
	t.Helper()

	req, err := backend.Add(context.Background(), &queue.Request{
		Class:      class,
		URL:        url,
		Method:     "POST",
		MaxRetries: maxRetries,
	})
	if err != nil {
		t.Fatalf("backend.Add: %v", err)
	}
	return req
}
