package logging

import (
	"context"
	"log/slog"

	"courier/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRequestID is the standardized structured logging key for queued request identifiers.
	FieldRequestID = "request_id"
	// FieldClass is the standardized structured logging key for queue class names.
	FieldClass = "queue_class"
	// FieldEventType is the standardized structured logging key for machine-readable event names.
	FieldEventType = "event_type"
	// FieldErrorHint is the standardized structured logging key for operator remediation hints.
	FieldErrorHint = "error_hint"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
	// FieldURL is the structured logging key for the destination URL of a delivery.
	FieldURL = "url"
	// FieldMethod is the structured logging key for the HTTP method of a delivery.
	FieldMethod = "method"
	// FieldStatusCode is the structured logging key for upstream HTTP status codes.
	FieldStatusCode = "status_code"
	// FieldAttempt is the structured logging key for the retry counter of a request.
	FieldAttempt = "attempt"
	// FieldDepth is the structured logging key for queue depth readings.
	FieldDepth = "depth"
	// FieldOnline is the structured logging key for connectivity state.
	FieldOnline = "online"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldRequestID, id))
	}
	if class, ok := services.ClassFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldClass, class))
	}
	if cid, ok := services.CorrelationIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, cid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
