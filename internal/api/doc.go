// Package api defines wire-format types and converters for the IPC layer.
// It translates internal queue, cache, and connectivity models into
// transport-friendly DTOs so CLI and socket consumers never couple to
// internal types.
//
// # Key Types
//
// QueueItem: transport representation of a queued request with its retry
// bookkeeping. Bodies are summarized as byte counts.
//
// StatusSummary: daemon running state, degraded-store flag, connectivity
// snapshot, and queue depth.
//
// HealthReport: queue counts plus database diagnostics; the database
// section is absent when the daemon runs memory-only.
//
// CacheEntry/CacheUsage: cached payloads and storage consumption against
// the advisory quota.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with
// milliseconds. Cache payloads ride as raw bytes, which encoding/json
// transports as base64.
package api
