package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Add persists a request and returns the stored row. The returned nil
// error is the durability acknowledgement.
func (s *Store) Add(ctx context.Context, req *Request) (*Request, error) {
	if req == nil {
		return nil, errNilRequest
	}
	enqueuedAt := req.EnqueuedAt
	if enqueuedAt.IsZero() {
		enqueuedAt = time.Now().UTC()
	}
	headersJSON, err := encodeHeaders(req.Headers)
	if err != nil {
		return nil, fmt.Errorf("encode headers: %w", err)
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO queued_requests (
            queue_class, url, method, headers_json, body,
            enqueued_at, retry_count, max_retries
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		NormalizeClass(req.Class),
		req.URL,
		NormalizeMethod(req.Method),
		headersJSON,
		req.Body,
		enqueuedAt.UTC().Format(time.RFC3339Nano),
		req.RetryCount,
		req.MaxRetries,
	)
	if err != nil {
		return nil, wrapStoreErr("insert request", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapStoreErr("last insert id", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a request by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Request, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM queued_requests WHERE id = ?`, id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStoreErr("get request", err)
	}
	return req, nil
}

// NextForClass returns the oldest pending request in a class, or nil
// when the class is drained.
func (s *Store) NextForClass(ctx context.Context, class string) (*Request, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+requestColumns+` FROM queued_requests WHERE queue_class = ? ORDER BY enqueued_at, id LIMIT 1`,
		NormalizeClass(class),
	)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStoreErr("next for class", err)
	}
	return req, nil
}

// List returns pending requests in delivery order, filtered by class
// when any classes are provided.
func (s *Store) List(ctx context.Context, classes ...string) ([]*Request, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + requestColumns + ` FROM queued_requests`
	orderClause := ` ORDER BY enqueued_at, id`

	if len(classes) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(classes))
		args := make([]any, len(classes))
		for i, class := range classes {
			args[i] = NormalizeClass(class)
		}
		query := baseQuery + ` WHERE queue_class IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, wrapStoreErr("list requests", err)
	}
	defer rows.Close()

	var requests []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// Classes returns the distinct classes with pending requests.
func (s *Store) Classes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT queue_class FROM queued_requests ORDER BY queue_class`)
	if err != nil {
		return nil, wrapStoreErr("list classes", err)
	}
	defer rows.Close()

	var classes []string
	for rows.Next() {
		var class string
		if err := rows.Scan(&class); err != nil {
			return nil, err
		}
		classes = append(classes, class)
	}
	return classes, rows.Err()
}

// RecordAttempt persists a failed delivery attempt against a request.
func (s *Store) RecordAttempt(ctx context.Context, id int64, retryCount int, lastError string, at time.Time) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE queued_requests SET retry_count = ?, last_error = ?, last_attempt_at = ? WHERE id = ?`,
		retryCount,
		nullableString(lastError),
		at.UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return wrapStoreErr("record attempt", err)
	}
	return nil
}

// Remove deletes a request by identifier, reporting whether it existed.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queued_requests WHERE id = ?`, id)
	if err != nil {
		return false, wrapStoreErr("delete request", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, wrapStoreErr("rows affected", err)
	}
	return affected > 0, nil
}

// Clear removes all pending requests.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queued_requests`)
	if err != nil {
		return 0, wrapStoreErr("clear queue", err)
	}
	return res.RowsAffected()
}

// ClearClass removes all pending requests in one class.
func (s *Store) ClearClass(ctx context.Context, class string) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queued_requests WHERE queue_class = ?`, NormalizeClass(class))
	if err != nil {
		return 0, wrapStoreErr("clear class", err)
	}
	return res.RowsAffected()
}

// CountPending returns the number of queued requests.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM queued_requests`)
	if err := row.Scan(&count); err != nil {
		return 0, wrapStoreErr("count pending", err)
	}
	return count, nil
}

// CountByClass returns pending counts grouped by class.
func (s *Store) CountByClass(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT queue_class, COUNT(1) FROM queued_requests GROUP BY queue_class`)
	if err != nil {
		return nil, wrapStoreErr("count by class", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var class string
		var count int
		if err := rows.Scan(&class, &count); err != nil {
			return nil, err
		}
		counts[class] = count
	}
	return counts, rows.Err()
}
