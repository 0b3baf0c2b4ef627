package queue_test

import (
	"context"
	"testing"
	"time"

	"courier/internal/queue"
	"courier/internal/testsupport"
)

// eachBackend runs a subtest against both Backend implementations so
// the durable store and the degraded-mode fallback stay interchangeable.
func eachBackend(t *testing.T, test func(t *testing.T, backend queue.Backend)) {
	t.Helper()

	t.Run("sqlite", func(t *testing.T) {
		cfg := testsupport.NewConfig(t)
		test(t, testsupport.MustOpenStore(t, cfg))
	})
	t.Run("memory", func(t *testing.T) {
		test(t, testsupport.MustOpenMemory(t))
	})
}

func TestAddAssignsIDAndNormalizes(t *testing.T) {
	eachBackend(t, func(t *testing.T, backend queue.Backend) {
		ctx := context.Background()
		req, err := backend.Add(ctx, &queue.Request{
			Class:  "  Telemetry ",
			URL:    "https://api.example.com/v1/events",
			Method: "post",
			Headers: map[string]string{
				"Content-Type": "application/json",
			},
			Body:       []byte(`{"event":"boot"}`),
			MaxRetries: 3,
		})
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if req.ID == 0 {
			t.Fatal("expected request ID to be assigned")
		}
		if req.Class != "telemetry" {
			t.Fatalf("expected normalized class, got %q", req.Class)
		}
		if req.Method != "POST" {
			t.Fatalf("expected normalized method, got %q", req.Method)
		}
		if req.EnqueuedAt.IsZero() {
			t.Fatal("expected enqueue time to be set")
		}
		if req.RetryCount != 0 {
			t.Fatalf("expected zero retry count, got %d", req.RetryCount)
		}

		fetched, err := backend.GetByID(ctx, req.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if fetched == nil {
			t.Fatal("expected stored request")
		}
		if fetched.Headers["Content-Type"] != "application/json" {
			t.Fatalf("headers not persisted: %#v", fetched.Headers)
		}
		if string(fetched.Body) != `{"event":"boot"}` {
			t.Fatalf("body not persisted: %q", fetched.Body)
		}
		if fetched.MaxRetries != 3 {
			t.Fatalf("expected max retries 3, got %d", fetched.MaxRetries)
		}
	})
}

func TestGetByIDAbsentReturnsNil(t *testing.T) {
	eachBackend(t, func(t *testing.T, backend queue.Backend) {
		req, err := backend.GetByID(context.Background(), 12345)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if req != nil {
			t.Fatalf("expected nil for absent request, got %#v", req)
		}
	})
}

func TestNextForClassReturnsOldestFirst(t *testing.T) {
	eachBackend(t, func(t *testing.T, backend queue.Backend) {
		ctx := context.Background()
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		var ids []int64
		for i := 0; i < 3; i++ {
			req, err := backend.Add(ctx, &queue.Request{
				Class:      "sync",
				URL:        "https://api.example.com/v1/items",
				Method:     "PUT",
				EnqueuedAt: base.Add(time.Duration(i) * time.Second),
			})
			if err != nil {
				t.Fatalf("Add failed: %v", err)
			}
			ids = append(ids, req.ID)
		}

		for _, wantID := range ids {
			head, err := backend.NextForClass(ctx, "sync")
			if err != nil {
				t.Fatalf("NextForClass failed: %v", err)
			}
			if head == nil {
				t.Fatal("expected a pending request")
			}
			if head.ID != wantID {
				t.Fatalf("expected head %d, got %d", wantID, head.ID)
			}
			if _, err := backend.Remove(ctx, head.ID); err != nil {
				t.Fatalf("Remove failed: %v", err)
			}
		}

		head, err := backend.NextForClass(ctx, "sync")
		if err != nil {
			t.Fatalf("NextForClass on drained class failed: %v", err)
		}
		if head != nil {
			t.Fatalf("expected drained class, got %#v", head)
		}
	})
}

func TestNextForClassIgnoresOtherClasses(t *testing.T) {
	eachBackend(t, func(t *testing.T, backend queue.Backend) {
		ctx := context.Background()
		testsupport.SeedRequest(t, backend, "uploads", "https://api.example.com/upload", 2)
		head, err := backend.NextForClass(ctx, "telemetry")
		if err != nil {
			t.Fatalf("NextForClass failed: %v", err)
		}
		if head != nil {
			t.Fatalf("expected empty class, got %#v", head)
		}
	})
}

func TestRecordAttemptPersistsOutcome(t *testing.T) {
	eachBackend(t, func(t *testing.T, backend queue.Backend) {
		ctx := context.Background()
		req := testsupport.SeedRequest(t, backend, "sync", "https://api.example.com/v1/items", 5)

		attemptAt := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
		if err := backend.RecordAttempt(ctx, req.ID, 2, "503 from upstream", attemptAt); err != nil {
			t.Fatalf("RecordAttempt failed: %v", err)
		}

		updated, err := backend.GetByID(ctx, req.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if updated.RetryCount != 2 {
			t.Fatalf("expected retry count 2, got %d", updated.RetryCount)
		}
		if updated.LastError != "503 from upstream" {
			t.Fatalf("expected last error persisted, got %q", updated.LastError)
		}
		if updated.LastAttemptAt == nil || !updated.LastAttemptAt.Equal(attemptAt) {
			t.Fatalf("expected last attempt %v, got %v", attemptAt, updated.LastAttemptAt)
		}
	})
}

func TestRemoveReportsExistence(t *testing.T) {
	eachBackend(t, func(t *testing.T, backend queue.Backend) {
		ctx := context.Background()
		req := testsupport.SeedRequest(t, backend, "sync", "https://api.example.com/v1/items", 1)

		removed, err := backend.Remove(ctx, req.ID)
		if err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
		if !removed {
			t.Fatal("expected removal of existing request")
		}

		removed, err = backend.Remove(ctx, req.ID)
		if err != nil {
			t.Fatalf("second Remove failed: %v", err)
		}
		if removed {
			t.Fatal("expected false for already-removed request")
		}
	})
}

func TestListFiltersAndOrders(t *testing.T) {
	eachBackend(t, func(t *testing.T, backend queue.Backend) {
		ctx := context.Background()
		base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

		add := func(class string, offset time.Duration) *queue.Request {
			req, err := backend.Add(ctx, &queue.Request{
				Class:      class,
				URL:        "https://api.example.com/v1/items",
				EnqueuedAt: base.Add(offset),
			})
			if err != nil {
				t.Fatalf("Add failed: %v", err)
			}
			return req
		}

		first := add("alpha", 0)
		second := add("beta", time.Second)
		third := add("alpha", 2*time.Second)

		all, err := backend.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 requests, got %d", len(all))
		}
		if all[0].ID != first.ID || all[1].ID != second.ID || all[2].ID != third.ID {
			t.Fatalf("unexpected order: %d,%d,%d", all[0].ID, all[1].ID, all[2].ID)
		}

		alphas, err := backend.List(ctx, "alpha")
		if err != nil {
			t.Fatalf("filtered List failed: %v", err)
		}
		if len(alphas) != 2 {
			t.Fatalf("expected 2 alpha requests, got %d", len(alphas))
		}
		if alphas[0].ID != first.ID || alphas[1].ID != third.ID {
			t.Fatalf("unexpected alpha order: %d,%d", alphas[0].ID, alphas[1].ID)
		}
	})
}

func TestClassCounts(t *testing.T) {
	eachBackend(t, func(t *testing.T, backend queue.Backend) {
		ctx := context.Background()
		testsupport.SeedRequest(t, backend, "alpha", "https://api.example.com/a", 1)
		testsupport.SeedRequest(t, backend, "alpha", "https://api.example.com/a", 1)
		testsupport.SeedRequest(t, backend, "beta", "https://api.example.com/b", 1)

		classes, err := backend.Classes(ctx)
		if err != nil {
			t.Fatalf("Classes failed: %v", err)
		}
		if len(classes) != 2 || classes[0] != "alpha" || classes[1] != "beta" {
			t.Fatalf("unexpected classes: %v", classes)
		}

		total, err := backend.CountPending(ctx)
		if err != nil {
			t.Fatalf("CountPending failed: %v", err)
		}
		if total != 3 {
			t.Fatalf("expected 3 pending, got %d", total)
		}

		counts, err := backend.CountByClass(ctx)
		if err != nil {
			t.Fatalf("CountByClass failed: %v", err)
		}
		if counts["alpha"] != 2 || counts["beta"] != 1 {
			t.Fatalf("unexpected counts: %v", counts)
		}

		removed, err := backend.ClearClass(ctx, "alpha")
		if err != nil {
			t.Fatalf("ClearClass failed: %v", err)
		}
		if removed != 2 {
			t.Fatalf("expected 2 removed, got %d", removed)
		}

		removed, err = backend.Clear(ctx)
		if err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		if removed != 1 {
			t.Fatalf("expected 1 removed, got %d", removed)
		}
	})
}

func TestHealthAggregatesClasses(t *testing.T) {
	eachBackend(t, func(t *testing.T, backend queue.Backend) {
		ctx := context.Background()
		oldest := time.Date(2026, 2, 28, 8, 0, 0, 0, time.UTC)
		if _, err := backend.Add(ctx, &queue.Request{Class: "alpha", URL: "https://x.example.com", EnqueuedAt: oldest}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		testsupport.SeedRequest(t, backend, "beta", "https://x.example.com", 1)

		health, err := backend.Health(ctx)
		if err != nil {
			t.Fatalf("Health failed: %v", err)
		}
		if health.Total != 2 {
			t.Fatalf("expected total 2, got %d", health.Total)
		}
		if health.ByClass["alpha"] != 1 || health.ByClass["beta"] != 1 {
			t.Fatalf("unexpected class counts: %v", health.ByClass)
		}
		if health.Oldest == nil || !health.Oldest.Equal(oldest) {
			t.Fatalf("expected oldest %v, got %v", oldest, health.Oldest)
		}
		if got := health.Classes(); len(got) != 2 || got[0] != "alpha" {
			t.Fatalf("unexpected sorted classes: %v", got)
		}
	})
}

func TestCacheItemLifecycle(t *testing.T) {
	eachBackend(t, func(t *testing.T, backend queue.Backend) {
		ctx := context.Background()
		expires := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

		if err := backend.PutCacheItem(ctx, &queue.CachedItem{
			Type:      "profile",
			Key:       "user-42",
			Payload:   []byte(`{"name":"Ada"}`),
			ExpiresAt: &expires,
		}); err != nil {
			t.Fatalf("PutCacheItem failed: %v", err)
		}

		item, err := backend.GetCacheItem(ctx, "profile", "user-42")
		if err != nil {
			t.Fatalf("GetCacheItem failed: %v", err)
		}
		if item == nil || string(item.Payload) != `{"name":"Ada"}` {
			t.Fatalf("unexpected cache item: %#v", item)
		}
		if item.ExpiresAt == nil || !item.ExpiresAt.Equal(expires) {
			t.Fatalf("expected expiry %v, got %v", expires, item.ExpiresAt)
		}

		// Replace keeps the (type, key) address and swaps the payload.
		if err := backend.PutCacheItem(ctx, &queue.CachedItem{
			Type:    "profile",
			Key:     "user-42",
			Payload: []byte(`{"name":"Grace"}`),
		}); err != nil {
			t.Fatalf("replace PutCacheItem failed: %v", err)
		}
		item, err = backend.GetCacheItem(ctx, "profile", "user-42")
		if err != nil {
			t.Fatalf("GetCacheItem after replace failed: %v", err)
		}
		if string(item.Payload) != `{"name":"Grace"}` {
			t.Fatalf("expected replaced payload, got %q", item.Payload)
		}
		if item.ExpiresAt != nil {
			t.Fatalf("expected expiry cleared by replace, got %v", item.ExpiresAt)
		}

		removed, err := backend.DeleteCacheItem(ctx, "profile", "user-42")
		if err != nil {
			t.Fatalf("DeleteCacheItem failed: %v", err)
		}
		if !removed {
			t.Fatal("expected deletion of existing item")
		}
		item, err = backend.GetCacheItem(ctx, "profile", "user-42")
		if err != nil {
			t.Fatalf("GetCacheItem after delete failed: %v", err)
		}
		if item != nil {
			t.Fatalf("expected nil after delete, got %#v", item)
		}
	})
}

func TestDeleteExpiredCacheItems(t *testing.T) {
	eachBackend(t, func(t *testing.T, backend queue.Backend) {
		ctx := context.Background()
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		past := now.Add(-time.Hour)
		future := now.Add(time.Hour)

		put := func(key string, expires *time.Time) {
			if err := backend.PutCacheItem(ctx, &queue.CachedItem{
				Type:      "weather",
				Key:       key,
				Payload:   []byte("data"),
				ExpiresAt: expires,
			}); err != nil {
				t.Fatalf("PutCacheItem %s failed: %v", key, err)
			}
		}
		put("stale", &past)
		put("fresh", &future)
		put("pinned", nil)

		removed, err := backend.DeleteExpiredCacheItems(ctx, now)
		if err != nil {
			t.Fatalf("DeleteExpiredCacheItems failed: %v", err)
		}
		if removed != 1 {
			t.Fatalf("expected 1 removed, got %d", removed)
		}

		for key, want := range map[string]bool{"stale": false, "fresh": true, "pinned": true} {
			item, err := backend.GetCacheItem(ctx, "weather", key)
			if err != nil {
				t.Fatalf("GetCacheItem %s failed: %v", key, err)
			}
			if (item != nil) != want {
				t.Fatalf("key %s: expected present=%v, got %#v", key, want, item)
			}
		}
	})
}

func TestCacheStatsCountsPayloadBytes(t *testing.T) {
	eachBackend(t, func(t *testing.T, backend queue.Backend) {
		ctx := context.Background()
		if err := backend.PutCacheItem(ctx, &queue.CachedItem{Type: "a", Key: "1", Payload: []byte("12345")}); err != nil {
			t.Fatalf("PutCacheItem failed: %v", err)
		}
		if err := backend.PutCacheItem(ctx, &queue.CachedItem{Type: "a", Key: "2", Payload: []byte("123")}); err != nil {
			t.Fatalf("PutCacheItem failed: %v", err)
		}
		if err := backend.PutCacheItem(ctx, &queue.CachedItem{Type: "b", Key: "1", Payload: nil}); err != nil {
			t.Fatalf("PutCacheItem failed: %v", err)
		}

		stats, err := backend.CacheStats(ctx)
		if err != nil {
			t.Fatalf("CacheStats failed: %v", err)
		}
		if stats.Entries != 3 {
			t.Fatalf("expected 3 entries, got %d", stats.Entries)
		}
		if stats.PayloadBytes != 8 {
			t.Fatalf("expected 8 payload bytes, got %d", stats.PayloadBytes)
		}
		if stats.ByType["a"] != 2 || stats.ByType["b"] != 1 {
			t.Fatalf("unexpected type counts: %v", stats.ByType)
		}
	})
}
