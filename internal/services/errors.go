package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNetwork marks transport-layer failures where no HTTP response was
	// received. These are always safe to retry.
	ErrNetwork = errors.New("network error")
	// ErrServer marks upstream responses that indicate a server-side or
	// throttling problem (5xx and 429). Retryable.
	ErrServer = errors.New("server error")
	// ErrClient marks upstream responses the caller got wrong (remaining 4xx
	// and other non-success statuses). Retrying cannot change the answer.
	ErrClient = errors.New("client error")
	// ErrStorage marks persistence failures.
	ErrStorage = errors.New("storage error")
	// ErrStorageFull marks persistence failures caused by an exhausted disk
	// or database quota.
	ErrStorageFull = errors.New("storage full")
	// ErrRetriesExhausted marks a request dropped after its retry budget.
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrValidation       = errors.New("validation error")
	ErrConfiguration    = errors.New("configuration error")
	ErrNotFound         = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrNetwork
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the delivery engine may attempt the failed send
// again: transport failures and server-side rejections qualify, everything
// else is terminal.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrServer)
}

// FromHTTPStatus classifies an upstream response status into the delivery
// error taxonomy. 2xx yields nil; 5xx and 429 yield ErrServer-tagged errors;
// every other status yields ErrClient.
func FromHTTPStatus(code int, url string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code >= 500 || code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: upstream returned %d for %s", ErrServer, code, url)
	default:
		return fmt.Errorf("%w: upstream returned %d for %s", ErrClient, code, url)
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
