package queue

import (
	"context"
	"time"
)

// Backend is the persistence contract the delivery engine, cache, and
// daemon operate against. Store is the durable SQLite implementation;
// MemoryBackend keeps the daemon serving when the database cannot be
// opened, at the cost of losing queued work on restart.
//
// Implementations must preserve delivery order: within a class,
// requests drain oldest first (enqueue time, then ID).
type Backend interface {
	// Add persists a request and returns it with its assigned ID and
	// normalized fields. A nil error is the durability acknowledgement:
	// the request will survive a crash and be replayed until delivered
	// or dropped.
	Add(ctx context.Context, req *Request) (*Request, error)

	// GetByID fetches a request by identifier, returning nil when
	// absent.
	GetByID(ctx context.Context, id int64) (*Request, error)

	// NextForClass returns the oldest pending request in a class, or
	// nil when the class is drained.
	NextForClass(ctx context.Context, class string) (*Request, error)

	// List returns pending requests in delivery order, optionally
	// filtered to the given classes.
	List(ctx context.Context, classes ...string) ([]*Request, error)

	// Classes returns the distinct classes with pending requests.
	Classes(ctx context.Context) ([]string, error)

	// RecordAttempt persists the outcome of a failed delivery attempt:
	// the new retry count, the error text, and when it happened.
	RecordAttempt(ctx context.Context, id int64, retryCount int, lastError string, at time.Time) error

	// Remove deletes a request, reporting whether it existed.
	Remove(ctx context.Context, id int64) (bool, error)

	// Clear removes all pending requests and returns the count removed.
	Clear(ctx context.Context) (int64, error)

	// ClearClass removes all pending requests in one class.
	ClearClass(ctx context.Context, class string) (int64, error)

	// CountPending returns the number of queued requests.
	CountPending(ctx context.Context) (int, error)

	// CountByClass returns pending counts grouped by class.
	CountByClass(ctx context.Context) (map[string]int, error)

	// PutCacheItem stores or replaces a cached payload.
	PutCacheItem(ctx context.Context, item *CachedItem) error

	// GetCacheItem fetches a cached payload without evaluating expiry,
	// returning nil when absent. Expiry policy belongs to the cache
	// layer.
	GetCacheItem(ctx context.Context, typ, key string) (*CachedItem, error)

	// DeleteCacheItem removes one cached payload, reporting whether it
	// existed.
	DeleteCacheItem(ctx context.Context, typ, key string) (bool, error)

	// DeleteExpiredCacheItems removes items whose expiry is at or
	// before now and returns the count removed.
	DeleteExpiredCacheItems(ctx context.Context, now time.Time) (int64, error)

	// CacheStats summarizes cache storage usage.
	CacheStats(ctx context.Context) (CacheStats, error)

	// Health aggregates pending request counts for diagnostics.
	Health(ctx context.Context) (HealthSummary, error)

	// Path returns the backing database file path, or "" when the
	// backend has no file.
	Path() string

	// Close releases the backend. Safe to call on a nil receiver.
	Close() error
}
