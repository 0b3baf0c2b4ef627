package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const requestColumns = "id, queue_class, url, method, headers_json, body, enqueued_at, retry_count, max_retries, last_error, last_attempt_at"

const cacheColumns = "type, key, payload, stored_at, expires_at"

func scanRequest(scanner interface{ Scan(dest ...any) error }) (*Request, error) {
	var (
		id             int64
		class          string
		url            string
		method         string
		headersRaw     sql.NullString
		body           []byte
		enqueuedRaw    string
		retryCount     int
		maxRetries     int
		lastError      sql.NullString
		lastAttemptRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&class,
		&url,
		&method,
		&headersRaw,
		&body,
		&enqueuedRaw,
		&retryCount,
		&maxRetries,
		&lastError,
		&lastAttemptRaw,
	); err != nil {
		return nil, err
	}

	req := &Request{
		ID:         id,
		Class:      class,
		URL:        url,
		Method:     method,
		Body:       body,
		RetryCount: retryCount,
		MaxRetries: maxRetries,
		LastError:  lastError.String,
	}

	if headersRaw.Valid && headersRaw.String != "" {
		headers, err := decodeHeaders(headersRaw.String)
		if err != nil {
			return nil, fmt.Errorf("decode headers for request %d: %w", id, err)
		}
		req.Headers = headers
	}

	if enqueued, err := parseTimeString(enqueuedRaw); err == nil {
		req.EnqueuedAt = enqueued
	}
	if lastAttemptRaw.Valid {
		if attempt, err := parseTimeString(lastAttemptRaw.String); err == nil {
			req.LastAttemptAt = &attempt
		}
	}
	return req, nil
}

func scanCacheItem(scanner interface{ Scan(dest ...any) error }) (*CachedItem, error) {
	var (
		typ        string
		key        string
		payload    []byte
		storedRaw  string
		expiresRaw sql.NullString
	)

	if err := scanner.Scan(&typ, &key, &payload, &storedRaw, &expiresRaw); err != nil {
		return nil, err
	}

	item := &CachedItem{Type: typ, Key: key, Payload: payload}
	if stored, err := parseTimeString(storedRaw); err == nil {
		item.StoredAt = stored
	}
	if expiresRaw.Valid {
		if expires, err := parseTimeString(expiresRaw.String); err == nil {
			item.ExpiresAt = &expires
		}
	}
	return item, nil
}

func encodeHeaders(headers map[string]string) (any, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(headers)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeHeaders(raw string) (map[string]string, error) {
	headers := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &headers); err != nil {
		return nil, err
	}
	return headers, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
