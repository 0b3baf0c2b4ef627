// Package services defines shared utilities consumed by the delivery engine
// and its surrounding components.
//
// Key responsibilities:
//   - Context helpers that stamp queued request IDs, class names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the delivery taxonomy (retryable vs terminal vs storage).
//
// Use these helpers when wiring new components so operational behaviour
// (error handling, observability, retries) stays uniform across the system.
package services
