package queue

import (
	"sort"
	"strings"
	"time"
)

// DefaultClass is the queue class assigned when callers do not provide
// one. Classes partition the queue into independent FIFO lanes.
const DefaultClass = "default"

// Request is a durably queued HTTP request awaiting delivery.
type Request struct {
	ID         int64
	Class      string
	URL        string
	Method     string
	Headers    map[string]string
	Body       []byte
	EnqueuedAt time.Time

	// RetryCount is the number of delivery attempts recorded so far.
	// MaxRetries bounds the total attempts; once RetryCount reaches it
	// the request is dropped.
	RetryCount int
	MaxRetries int

	LastError     string
	LastAttemptAt *time.Time
}

// Clone returns a deep copy so callers can mutate the result without
// aliasing stored state.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Headers != nil {
		cp.Headers = make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			cp.Headers[k] = v
		}
	}
	if r.Body != nil {
		cp.Body = append([]byte(nil), r.Body...)
	}
	if r.LastAttemptAt != nil {
		at := *r.LastAttemptAt
		cp.LastAttemptAt = &at
	}
	return &cp
}

// NormalizeClass trims and lowercases a queue class, substituting
// DefaultClass when the result is empty.
func NormalizeClass(value string) string {
	cleaned := strings.ToLower(strings.TrimSpace(value))
	if cleaned == "" {
		return DefaultClass
	}
	return cleaned
}

// NormalizeMethod trims and uppercases an HTTP method, defaulting to
// GET when empty.
func NormalizeMethod(value string) string {
	cleaned := strings.ToUpper(strings.TrimSpace(value))
	if cleaned == "" {
		return "GET"
	}
	return cleaned
}

// CachedItem is one cached payload addressed by (type, key). A nil
// ExpiresAt means the item never expires.
type CachedItem struct {
	Type      string
	Key       string
	Payload   []byte
	StoredAt  time.Time
	ExpiresAt *time.Time
}

// Expired reports whether the item carries an expiry at or before now.
func (c *CachedItem) Expired(now time.Time) bool {
	return c != nil && c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// Clone returns a deep copy of the cached item.
func (c *CachedItem) Clone() *CachedItem {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Payload != nil {
		cp.Payload = append([]byte(nil), c.Payload...)
	}
	if c.ExpiresAt != nil {
		at := *c.ExpiresAt
		cp.ExpiresAt = &at
	}
	return &cp
}

// CacheStats summarizes cache storage usage.
type CacheStats struct {
	Entries      int
	PayloadBytes int64
	ByType       map[string]int
}

// HealthSummary aggregates pending request counts for diagnostics.
type HealthSummary struct {
	Total   int
	ByClass map[string]int

	// Oldest is the enqueue time of the longest-waiting request, nil
	// when the queue is empty.
	Oldest *time.Time
}

// Classes returns the class names present in the summary, sorted.
func (h HealthSummary) Classes() []string {
	names := make([]string, 0, len(h.ByClass))
	for name := range h.ByClass {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalRequests    int
	Error            string
}
