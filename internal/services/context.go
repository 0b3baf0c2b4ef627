package services

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDKey     contextKey = "request_id"
	classKey         contextKey = "queue_class"
	correlationIDKey contextKey = "correlation_id"
)

// WithRequestID annotates context with the queued request identifier.
func WithRequestID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the queued request identifier if present.
func RequestIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(requestIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithClass annotates context with the queue class name.
func WithClass(ctx context.Context, class string) context.Context {
	if class == "" {
		return ctx
	}
	return context.WithValue(ctx, classKey, class)
}

// ClassFromContext returns the queue class name if present.
func ClassFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(classKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithCorrelationID annotates context with a correlation identifier.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext extracts the correlation identifier if present.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(correlationIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// EnsureCorrelationID returns the context's correlation identifier, minting
// and attaching a new one when absent.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id, ok := CorrelationIDFromContext(ctx); ok {
		return ctx, id
	}
	id := uuid.NewString()
	return WithCorrelationID(ctx, id), id
}
