package delivery

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"courier/internal/queue"
	"courier/internal/services"
)

// maxResponseBody bounds how much of an upstream reply is retained for
// callers; larger bodies are truncated, not failed.
const maxResponseBody = 256 << 10

// Response is the upstream answer captured for a delivered request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Sender performs one HTTP attempt for a queued request. Implementations
// must return an error only when no HTTP response was received; an error
// status from the upstream is a Response, not an error.
type Sender interface {
	Do(ctx context.Context, req *queue.Request) (*Response, error)
}

// HTTPSender delivers requests with a shared http.Client.
type HTTPSender struct {
	client *http.Client
}

// NewHTTPSender builds a sender whose attempts are bounded by timeout.
func NewHTTPSender(timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSender{client: &http.Client{Timeout: timeout}}
}

func (s *HTTPSender) Do(ctx context.Context, req *queue.Request) (*Response, error) {
	if req == nil {
		return nil, services.Wrap(services.ErrValidation, "delivery", "send", "nil request", nil)
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "delivery", "send", "build request", err)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, services.Wrap(services.ErrNetwork, "delivery", "send", req.URL, err)
	}
	defer resp.Body.Close()

	// The status line already proves the server saw the request; a torn
	// body must not trigger a resend.
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       data,
	}, nil
}
