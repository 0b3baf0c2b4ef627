package queue

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PutCacheItem stores or replaces a cached payload.
func (s *Store) PutCacheItem(ctx context.Context, item *CachedItem) error {
	if item == nil {
		return errNilCacheItem
	}
	storedAt := item.StoredAt
	if storedAt.IsZero() {
		storedAt = time.Now().UTC()
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO cache_items (type, key, payload, stored_at, expires_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT (type, key) DO UPDATE SET
             payload = excluded.payload,
             stored_at = excluded.stored_at,
             expires_at = excluded.expires_at`,
		item.Type,
		item.Key,
		item.Payload,
		storedAt.UTC().Format(time.RFC3339Nano),
		nullableTime(item.ExpiresAt),
	); err != nil {
		return wrapStoreErr("put cache item", err)
	}
	return nil
}

// GetCacheItem fetches a cached payload by (type, key). Expiry is not
// evaluated here; callers decide what stale means.
func (s *Store) GetCacheItem(ctx context.Context, typ, key string) (*CachedItem, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+cacheColumns+` FROM cache_items WHERE type = ? AND key = ?`,
		typ,
		key,
	)
	item, err := scanCacheItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStoreErr("get cache item", err)
	}
	return item, nil
}

// DeleteCacheItem removes one cached payload, reporting whether it
// existed.
func (s *Store) DeleteCacheItem(ctx context.Context, typ, key string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM cache_items WHERE type = ? AND key = ?`, typ, key)
	if err != nil {
		return false, wrapStoreErr("delete cache item", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, wrapStoreErr("rows affected", err)
	}
	return affected > 0, nil
}

// DeleteExpiredCacheItems removes items whose expiry is at or before
// now, returning the count removed.
func (s *Store) DeleteExpiredCacheItems(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM cache_items WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, wrapStoreErr("delete expired cache items", err)
	}
	return res.RowsAffected()
}

// CacheStats summarizes cache storage usage.
func (s *Store) CacheStats(ctx context.Context) (CacheStats, error) {
	stats := CacheStats{ByType: make(map[string]int)}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1), COALESCE(SUM(LENGTH(payload)), 0) FROM cache_items`)
	if err := row.Scan(&stats.Entries, &stats.PayloadBytes); err != nil {
		return CacheStats{}, wrapStoreErr("cache stats", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(1) FROM cache_items GROUP BY type`)
	if err != nil {
		return CacheStats{}, wrapStoreErr("cache stats by type", err)
	}
	defer rows.Close()

	for rows.Next() {
		var typ string
		var count int
		if err := rows.Scan(&typ, &count); err != nil {
			return CacheStats{}, err
		}
		stats.ByType[typ] = count
	}
	return stats, rows.Err()
}
