package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrStorageFull indicates the database cannot accept writes because
// the disk or database is full. Callers should surface this to the
// user rather than retry.
var ErrStorageFull = errors.New("queue storage full")

// ErrStorageUnavailable indicates the database rejected an operation
// for a reason other than capacity. The daemon falls back to the
// in-memory backend when this happens at startup.
var ErrStorageUnavailable = errors.New("queue storage unavailable")

var (
	errNilRequest   = errors.New("request is nil")
	errNilCacheItem = errors.New("cache item is nil")
)

func isDiskFull(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database or disk is full") || strings.Contains(msg, "SQLITE_FULL")
}

// wrapStoreErr classifies a database failure under the storage
// sentinels while preserving the original chain. Context cancellation
// passes through unclassified so shutdown does not read as a storage
// fault.
func wrapStoreErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	case isDiskFull(err):
		return fmt.Errorf("%w: %s: %w", ErrStorageFull, op, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
	}
}
