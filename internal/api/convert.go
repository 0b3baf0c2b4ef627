package api

import (
	"time"

	"courier/internal/cache"
	"courier/internal/connectivity"
	"courier/internal/queue"
)

// FromRequest converts a queue record to its API representation.
func FromRequest(req *queue.Request) QueueItem {
	if req == nil {
		return QueueItem{}
	}

	dto := QueueItem{
		ID:         req.ID,
		Class:      req.Class,
		URL:        req.URL,
		Method:     req.Method,
		BodyBytes:  len(req.Body),
		RetryCount: req.RetryCount,
		MaxRetries: req.MaxRetries,
		LastError:  req.LastError,
	}
	if len(req.Headers) > 0 {
		dto.Headers = make(map[string]string, len(req.Headers))
		for key, value := range req.Headers {
			dto.Headers[key] = value
		}
	}
	dto.EnqueuedAt = FormatTime(req.EnqueuedAt)
	if req.LastAttemptAt != nil {
		dto.LastAttemptAt = FormatTime(*req.LastAttemptAt)
	}
	return dto
}

// FromRequests converts a slice of queue records into API DTOs.
func FromRequests(reqs []*queue.Request) []QueueItem {
	if len(reqs) == 0 {
		return nil
	}
	out := make([]QueueItem, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, FromRequest(req))
	}
	return out
}

// FromConnectivityStatus converts the monitor's snapshot to API payload.
func FromConnectivityStatus(status connectivity.Status) NetworkStatus {
	return NetworkStatus{
		Online:        status.Online,
		Since:         FormatTime(status.Since),
		NetlinkActive: status.NetlinkActive,
		ProbeURL:      status.ProbeURL,
		PollSeconds:   int(status.PollInterval / time.Second),
	}
}

// FromCachedItem converts a cached payload to API payload.
func FromCachedItem(item *queue.CachedItem) CacheEntry {
	if item == nil {
		return CacheEntry{}
	}
	dto := CacheEntry{
		Type:     item.Type,
		Key:      item.Key,
		Payload:  append([]byte(nil), item.Payload...),
		StoredAt: FormatTime(item.StoredAt),
	}
	if item.ExpiresAt != nil {
		dto.ExpiresAt = FormatTime(*item.ExpiresAt)
	}
	return dto
}

// FromCacheUsage converts cache usage figures to API payload.
func FromCacheUsage(usage cache.Usage) CacheUsage {
	dto := CacheUsage{
		Entries:    usage.Entries,
		UsedBytes:  usage.UsedBytes,
		QuotaBytes: usage.QuotaBytes,
		FreeBytes:  usage.FreeBytes,
	}
	if len(usage.ByType) > 0 {
		dto.ByType = make(map[string]int, len(usage.ByType))
		for typ, count := range usage.ByType {
			dto.ByType[typ] = count
		}
	}
	return dto
}

// FromHealthSummary converts queue counts to API payload.
func FromHealthSummary(summary queue.HealthSummary) QueueHealth {
	dto := QueueHealth{Total: summary.Total}
	if len(summary.ByClass) > 0 {
		dto.ByClass = make(map[string]int, len(summary.ByClass))
		for class, count := range summary.ByClass {
			dto.ByClass[class] = count
		}
	}
	if summary.Oldest != nil {
		dto.Oldest = FormatTime(*summary.Oldest)
	}
	return dto
}

// FromDatabaseHealth converts store diagnostics to API payload.
func FromDatabaseHealth(health queue.DatabaseHealth) DatabaseHealth {
	return DatabaseHealth{
		Path:           health.DBPath,
		Exists:         health.DatabaseExists,
		Readable:       health.DatabaseReadable,
		SchemaVersion:  health.SchemaVersion,
		TableExists:    health.TableExists,
		ColumnsPresent: append([]string(nil), health.ColumnsPresent...),
		MissingColumns: append([]string(nil), health.MissingColumns...),
		IntegrityCheck: health.IntegrityCheck,
		TotalRequests:  health.TotalRequests,
		Error:          health.Error,
	}
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
