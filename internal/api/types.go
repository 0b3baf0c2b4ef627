package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a queued request in a transport-friendly format.
// The payload itself is summarized as a byte count; no consumer renders
// request bodies.
type QueueItem struct {
	ID            int64             `json:"id"`
	Class         string            `json:"class"`
	URL           string            `json:"url"`
	Method        string            `json:"method"`
	Headers       map[string]string `json:"headers,omitempty"`
	BodyBytes     int               `json:"bodyBytes"`
	EnqueuedAt    string            `json:"enqueuedAt,omitempty"`
	RetryCount    int               `json:"retryCount"`
	MaxRetries    int               `json:"maxRetries"`
	LastError     string            `json:"lastError,omitempty"`
	LastAttemptAt string            `json:"lastAttemptAt,omitempty"`
}

// NetworkStatus reports the committed connectivity state.
type NetworkStatus struct {
	Online        bool   `json:"online"`
	Since         string `json:"since,omitempty"`
	NetlinkActive bool   `json:"netlinkActive"`
	ProbeURL      string `json:"probeUrl,omitempty"`
	PollSeconds   int    `json:"pollSeconds"`
}

// CacheEntry is a cached payload with its expiry metadata.
type CacheEntry struct {
	Type      string `json:"type"`
	Key       string `json:"key"`
	Payload   []byte `json:"payload,omitempty"`
	StoredAt  string `json:"storedAt,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

// CacheUsage summarizes cache storage consumption against the advisory
// quota.
type CacheUsage struct {
	Entries    int            `json:"entries"`
	UsedBytes  int64          `json:"usedBytes"`
	ByType     map[string]int `json:"byType,omitempty"`
	QuotaBytes int64          `json:"quotaBytes"`
	FreeBytes  uint64         `json:"freeBytes"`
}

// QueueHealth aggregates pending request counts.
type QueueHealth struct {
	Total   int            `json:"total"`
	ByClass map[string]int `json:"byClass,omitempty"`
	Oldest  string         `json:"oldest,omitempty"`
}

// DatabaseHealth carries queue database diagnostics.
type DatabaseHealth struct {
	Path           string   `json:"path,omitempty"`
	Exists         bool     `json:"exists"`
	Readable       bool     `json:"readable"`
	SchemaVersion  string   `json:"schemaVersion,omitempty"`
	TableExists    bool     `json:"tableExists"`
	ColumnsPresent []string `json:"columnsPresent,omitempty"`
	MissingColumns []string `json:"missingColumns,omitempty"`
	IntegrityCheck bool     `json:"integrityCheck"`
	TotalRequests  int      `json:"totalRequests"`
	Error          string   `json:"error,omitempty"`
}

// HealthReport combines queue counts with database diagnostics. Database
// is nil when the daemon runs on the memory backend.
type HealthReport struct {
	Queue    QueueHealth     `json:"queue"`
	Database *DatabaseHealth `json:"database,omitempty"`
	Degraded bool            `json:"degraded"`
}

// StatusSummary aggregates daemon runtime information for API consumers.
type StatusSummary struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	Version      string         `json:"version,omitempty"`
	StartedAt    string         `json:"startedAt,omitempty"`
	Degraded     bool           `json:"degraded"`
	StorePath    string         `json:"storePath,omitempty"`
	LockPath     string         `json:"lockPath,omitempty"`
	SocketPath   string         `json:"socketPath,omitempty"`
	Network      NetworkStatus  `json:"network"`
	QueueDepth   int            `json:"queueDepth"`
	DepthByClass map[string]int `json:"depthByClass,omitempty"`
	Cache        *CacheUsage    `json:"cache,omitempty"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// DepthResponse reports pending request counts.
type DepthResponse struct {
	Total   int            `json:"total"`
	ByClass map[string]int `json:"byClass,omitempty"`
}
