package queue

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryBackend is a volatile Backend used when the SQLite store cannot
// be opened. It preserves delivery order and the rest of the Backend
// contract but loses all state on process exit, so the daemon logs and
// notifies when it falls back to it.
type MemoryBackend struct {
	mu       sync.RWMutex
	nextID   int64
	requests []*Request
	cache    map[cacheKey]*CachedItem
}

type cacheKey struct {
	typ string
	key string
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{cache: make(map[cacheKey]*CachedItem)}
}

func (m *MemoryBackend) Add(_ context.Context, req *Request) (*Request, error) {
	if req == nil {
		return nil, errNilRequest
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	stored := req.Clone()
	stored.ID = m.nextID
	stored.Class = NormalizeClass(req.Class)
	stored.Method = NormalizeMethod(req.Method)
	if stored.EnqueuedAt.IsZero() {
		stored.EnqueuedAt = time.Now().UTC()
	}
	m.requests = append(m.requests, stored)
	return stored.Clone(), nil
}

func (m *MemoryBackend) GetByID(_ context.Context, id int64) (*Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, req := range m.requests {
		if req.ID == id {
			return req.Clone(), nil
		}
	}
	return nil, nil
}

func (m *MemoryBackend) NextForClass(_ context.Context, class string) (*Request, error) {
	class = NormalizeClass(class)
	m.mu.RLock()
	defer m.mu.RUnlock()

	var head *Request
	for _, req := range m.requests {
		if req.Class != class {
			continue
		}
		if head == nil || requestBefore(req, head) {
			head = req
		}
	}
	return head.Clone(), nil
}

func (m *MemoryBackend) List(_ context.Context, classes ...string) ([]*Request, error) {
	wanted := make(map[string]struct{}, len(classes))
	for _, class := range classes {
		wanted[NormalizeClass(class)] = struct{}{}
	}

	m.mu.RLock()
	var matched []*Request
	for _, req := range m.requests {
		if len(wanted) > 0 {
			if _, ok := wanted[req.Class]; !ok {
				continue
			}
		}
		matched = append(matched, req.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return requestBefore(matched[i], matched[j]) })
	return matched, nil
}

func (m *MemoryBackend) Classes(_ context.Context) ([]string, error) {
	m.mu.RLock()
	seen := make(map[string]struct{})
	for _, req := range m.requests {
		seen[req.Class] = struct{}{}
	}
	m.mu.RUnlock()

	classes := make([]string, 0, len(seen))
	for class := range seen {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	return classes, nil
}

func (m *MemoryBackend) RecordAttempt(_ context.Context, id int64, retryCount int, lastError string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, req := range m.requests {
		if req.ID == id {
			attemptAt := at.UTC()
			req.RetryCount = retryCount
			req.LastError = lastError
			req.LastAttemptAt = &attemptAt
			return nil
		}
	}
	return nil
}

func (m *MemoryBackend) Remove(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, req := range m.requests {
		if req.ID == id {
			m.requests = append(m.requests[:i], m.requests[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryBackend) Clear(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := int64(len(m.requests))
	m.requests = nil
	return removed, nil
}

func (m *MemoryBackend) ClearClass(_ context.Context, class string) (int64, error) {
	class = NormalizeClass(class)
	m.mu.Lock()
	defer m.mu.Unlock()

	var kept []*Request
	var removed int64
	for _, req := range m.requests {
		if req.Class == class {
			removed++
			continue
		}
		kept = append(kept, req)
	}
	m.requests = kept
	return removed, nil
}

func (m *MemoryBackend) CountPending(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests), nil
}

func (m *MemoryBackend) CountByClass(_ context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, req := range m.requests {
		counts[req.Class]++
	}
	return counts, nil
}

func (m *MemoryBackend) PutCacheItem(_ context.Context, item *CachedItem) error {
	if item == nil {
		return errNilCacheItem
	}
	stored := item.Clone()
	if stored.StoredAt.IsZero() {
		stored.StoredAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[cacheKey{typ: item.Type, key: item.Key}] = stored
	return nil
}

func (m *MemoryBackend) GetCacheItem(_ context.Context, typ, key string) (*CachedItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cache[cacheKey{typ: typ, key: key}].Clone(), nil
}

func (m *MemoryBackend) DeleteCacheItem(_ context.Context, typ, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ck := cacheKey{typ: typ, key: key}
	if _, ok := m.cache[ck]; !ok {
		return false, nil
	}
	delete(m.cache, ck)
	return true, nil
}

func (m *MemoryBackend) DeleteExpiredCacheItems(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for ck, item := range m.cache {
		if item.Expired(now) {
			delete(m.cache, ck)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryBackend) CacheStats(_ context.Context) (CacheStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := CacheStats{ByType: make(map[string]int)}
	for ck, item := range m.cache {
		stats.Entries++
		stats.PayloadBytes += int64(len(item.Payload))
		stats.ByType[ck.typ]++
	}
	return stats, nil
}

func (m *MemoryBackend) Health(_ context.Context) (HealthSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	health := HealthSummary{ByClass: make(map[string]int)}
	for _, req := range m.requests {
		health.Total++
		health.ByClass[req.Class]++
		if health.Oldest == nil || req.EnqueuedAt.Before(*health.Oldest) {
			at := req.EnqueuedAt
			health.Oldest = &at
		}
	}
	return health, nil
}

// Path returns "" because the backend has no backing file.
func (m *MemoryBackend) Path() string { return "" }

func (m *MemoryBackend) Close() error { return nil }

func requestBefore(a, b *Request) bool {
	if !a.EnqueuedAt.Equal(b.EnqueuedAt) {
		return a.EnqueuedAt.Before(b.EnqueuedAt)
	}
	return a.ID < b.ID
}
