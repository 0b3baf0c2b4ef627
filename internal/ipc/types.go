package ipc

import "courier/internal/api"

// QueueItem mirrors the shared queue DTO for IPC callers.
type QueueItem = api.QueueItem

// NetworkStatus mirrors the shared connectivity DTO.
type NetworkStatus = api.NetworkStatus

// CacheEntry mirrors the shared cache DTO.
type CacheEntry = api.CacheEntry

// CacheUsage mirrors the shared cache usage DTO.
type CacheUsage = api.CacheUsage

// StatusSummary mirrors the shared daemon status DTO.
type StatusSummary = api.StatusSummary

// HealthReport mirrors the shared health DTO.
type HealthReport = api.HealthReport

// PingRequest checks daemon liveness.
type PingRequest struct{}

// PingResponse reports daemon liveness.
type PingResponse struct {
	Pong bool `json:"pong"`
	PID  int  `json:"pid"`
}

// StatusRequest fetches the daemon status snapshot.
type StatusRequest struct{}

// StatusResponse carries the daemon status snapshot.
type StatusResponse struct {
	Status StatusSummary `json:"status"`
}

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse acknowledges the shutdown request.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// QueueListRequest filters queue listing by class. Empty means all classes.
type QueueListRequest struct {
	Classes []string `json:"classes"`
}

// QueueListResponse contains queue entries.
type QueueListResponse = api.QueueListResponse

// QueueDepthRequest fetches pending request counts.
type QueueDepthRequest struct{}

// QueueDepthResponse reports pending request counts per class.
type QueueDepthResponse = api.DepthResponse

// QueueClearRequest removes pending requests. An empty class clears the
// whole queue.
type QueueClearRequest struct {
	Class string `json:"class"`
}

// QueueClearResponse reports number of removed entries.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// QueueRemoveRequest removes a single pending request by ID.
type QueueRemoveRequest struct {
	ID int64 `json:"id"`
}

// QueueRemoveResponse reports whether the request existed.
type QueueRemoveResponse struct {
	Removed bool `json:"removed"`
}

// QueueHealthRequest fetches aggregate queue and database diagnostics.
type QueueHealthRequest struct{}

// QueueHealthResponse reports queue health information.
type QueueHealthResponse struct {
	Report HealthReport `json:"report"`
}

// EnqueueRequest stores a request for background delivery. MaxRetries
// below zero selects the configured default; zero allows a single
// attempt.
type EnqueueRequest struct {
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	Headers    map[string]string `json:"headers"`
	Body       []byte            `json:"body"`
	Class      string            `json:"class"`
	MaxRetries int               `json:"max_retries"`
}

// EnqueueResponse returns the stored queue entry.
type EnqueueResponse struct {
	Item QueueItem `json:"item"`
}

// SubmitRequest attempts one live delivery, falling back to the queue on
// transport failure. MaxRetries follows the enqueue semantics.
type SubmitRequest struct {
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	Headers    map[string]string `json:"headers"`
	Body       []byte            `json:"body"`
	Class      string            `json:"class"`
	MaxRetries int               `json:"max_retries"`
}

// SubmitResponse reports the live attempt outcome. Exactly one of
// Delivered and Queued is set.
type SubmitResponse struct {
	Delivered  bool   `json:"delivered"`
	StatusCode int    `json:"status_code,omitempty"`
	Body       []byte `json:"body,omitempty"`
	Queued     bool   `json:"queued"`
	RequestID  int64  `json:"request_id,omitempty"`
}

// FlushRequest triggers a synchronous delivery pass.
type FlushRequest struct{}

// FlushResponse reports the pass outcome and the depth left behind.
type FlushResponse struct {
	Flushed   bool `json:"flushed"`
	Remaining int  `json:"remaining"`
}

// NetworkStatusRequest fetches connectivity state.
type NetworkStatusRequest struct{}

// NetworkStatusResponse reports connectivity state.
type NetworkStatusResponse struct {
	Network NetworkStatus `json:"network"`
}

// CacheGetRequest fetches a cached payload by type and key.
type CacheGetRequest struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

// CacheGetResponse returns the cached payload when present and fresh.
type CacheGetResponse struct {
	Found bool        `json:"found"`
	Entry *CacheEntry `json:"entry,omitempty"`
}

// CacheSetRequest stores a payload. TTLSeconds zero selects the
// configured default TTL; negative stores without expiry.
type CacheSetRequest struct {
	Type       string `json:"type"`
	Key        string `json:"key"`
	Payload    []byte `json:"payload"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// CacheSetResponse acknowledges the store.
type CacheSetResponse struct {
	Stored bool `json:"stored"`
}

// CacheDeleteRequest removes a cached payload.
type CacheDeleteRequest struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

// CacheDeleteResponse reports whether the entry existed.
type CacheDeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// CacheStatsRequest fetches cache usage figures.
type CacheStatsRequest struct{}

// CacheStatsResponse reports cache usage figures.
type CacheStatsResponse struct {
	Usage CacheUsage `json:"usage"`
}

// CacheSweepRequest purges expired cache entries.
type CacheSweepRequest struct{}

// CacheSweepResponse reports number of purged entries.
type CacheSweepResponse struct {
	Removed int64 `json:"removed"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
