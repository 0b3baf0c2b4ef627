package delivery

import (
	"context"
	"errors"

	"courier/internal/logging"
	"courier/internal/queue"
	"courier/internal/services"
)

// CallRequest describes one outbound HTTP request, either for immediate
// delivery through Call or for durable queueing through Enqueue.
type CallRequest struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
	Class   string

	// MaxRetries bounds total delivery attempts once queued. Negative
	// means use the configured default; zero means a single attempt.
	MaxRetries int
}

// Result reports how a Call concluded: delivered live with a response,
// or parked in the durable queue.
type Result struct {
	Delivered bool
	Response  *Response

	Queued    bool
	RequestID int64
}

// Enqueue validates and durably stores a request for later delivery.
// It never performs network I/O; a nil error means the request is on
// disk and will be replayed until delivered or its retry budget is
// spent.
func (m *Manager) Enqueue(ctx context.Context, cr CallRequest) (*queue.Request, error) {
	req, err := m.validate(cr)
	if err != nil {
		return nil, err
	}
	ctx, _ = services.EnsureCorrelationID(ctx)
	stored, err := m.store.Add(ctx, req)
	if err != nil {
		return nil, err
	}
	ctx = services.WithClass(ctx, stored.Class)
	ctx = services.WithRequestID(ctx, stored.ID)
	logging.WithContext(ctx, m.logger).Info("request enqueued",
		logging.String(logging.FieldEventType, "request_enqueued"),
		logging.String(logging.FieldMethod, stored.Method),
		logging.String(logging.FieldURL, stored.URL))
	m.emitDepth(ctx, stored.Class)
	m.kickFlush()
	return stored, nil
}

// Call attempts one live delivery and falls back to the durable queue
// on transport failure. Any HTTP response, success or not, concludes
// the call without queueing; the returned error is reserved for
// validation and storage problems.
func (m *Manager) Call(ctx context.Context, cr CallRequest) (Result, error) {
	req, err := m.validate(cr)
	if err != nil {
		return Result{}, err
	}
	ctx, _ = services.EnsureCorrelationID(ctx)
	logger := logging.WithContext(ctx, m.logger)

	resp, sendErr := m.sender.Do(ctx, req)
	if sendErr == nil {
		logger.Debug("live call delivered",
			logging.String(logging.FieldMethod, req.Method),
			logging.String(logging.FieldURL, req.URL),
			logging.Int(logging.FieldStatusCode, resp.StatusCode))
		return Result{Delivered: true, Response: resp}, nil
	}
	if errors.Is(sendErr, services.ErrValidation) {
		return Result{}, sendErr
	}

	stored, err := m.store.Add(ctx, req)
	if err != nil {
		return Result{}, err
	}
	ctx = services.WithClass(ctx, stored.Class)
	ctx = services.WithRequestID(ctx, stored.ID)
	logging.WithContext(ctx, m.logger).Info("live call failed; request queued",
		logging.String(logging.FieldEventType, "request_queued_after_failure"),
		logging.String(logging.FieldMethod, stored.Method),
		logging.String(logging.FieldURL, stored.URL),
		logging.Error(sendErr))
	m.emitDepth(ctx, stored.Class)
	m.kickFlush()
	return Result{Queued: true, RequestID: stored.ID}, nil
}
