package cache

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"courier/internal/clock"
	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/queue"
	"courier/internal/services"
)

// Cache layers TTL policy over the store's cache tables. Entries are
// addressed by (type, key); expiry is evaluated lazily on Fetch and in
// bulk by the sweeper.
type Cache struct {
	store      queue.Backend
	clk        clock.Clock
	logger     *slog.Logger
	defaultTTL time.Duration
	sweepEvery time.Duration
	quotaBytes int64

	mu          sync.Mutex
	quotaWarned bool
}

// Usage reports cache storage consumption alongside the advisory quota
// and the free space on the backing filesystem.
type Usage struct {
	Entries    int
	UsedBytes  int64
	ByType     map[string]int
	QuotaBytes int64
	FreeBytes  uint64
}

// Option adjusts optional Cache dependencies.
type Option func(*Cache)

// WithClock substitutes the time source, primarily for tests.
func WithClock(clk clock.Clock) Option {
	return func(c *Cache) {
		if clk != nil {
			c.clk = clk
		}
	}
}

// New builds a Cache over the provided store.
func New(cfg *config.Config, store queue.Backend, logger *slog.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Cache{
		store:      store,
		clk:        clock.System(),
		logger:     logging.NewComponentLogger(logger, "cache"),
		defaultTTL: time.Duration(cfg.Cache.DefaultTTLHours) * time.Hour,
		sweepEvery: time.Duration(cfg.Cache.SweepInterval) * time.Second,
		quotaBytes: int64(cfg.Cache.QuotaMiB) * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store persists a payload under (typ, key). A positive ttl sets the
// expiry that far from now, zero applies the configured default, and a
// negative ttl pins the entry forever.
func (c *Cache) Store(ctx context.Context, typ, key string, payload []byte, ttl time.Duration) error {
	typ = strings.TrimSpace(typ)
	key = strings.TrimSpace(key)
	if typ == "" || key == "" {
		return services.Wrap(services.ErrValidation, "cache", "store", "cache type and key are required", nil)
	}

	now := c.clk.Now().UTC()
	item := &queue.CachedItem{
		Type:     typ,
		Key:      key,
		Payload:  payload,
		StoredAt: now,
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	if ttl > 0 {
		expires := now.Add(ttl)
		item.ExpiresAt = &expires
	}

	if err := c.store.PutCacheItem(ctx, item); err != nil {
		return services.Wrap(services.ErrStorage, "cache", "store", "persist cache item", err)
	}

	c.logger.Debug("stored cache entry",
		logging.String("cache_type", typ),
		logging.String("cache_key", key),
		logging.Int("payload_bytes", len(payload)),
		logging.Duration("ttl", ttl))

	c.checkQuota(ctx)
	return nil
}

// FetchItem returns the entry for (typ, key) when present and fresh. An
// expired entry is deleted on the way out and reported as absent.
func (c *Cache) FetchItem(ctx context.Context, typ, key string) (*queue.CachedItem, error) {
	item, err := c.store.GetCacheItem(ctx, typ, key)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "cache", "fetch", "read cache item", err)
	}
	if item == nil {
		return nil, nil
	}
	if item.Expired(c.clk.Now().UTC()) {
		if _, err := c.store.DeleteCacheItem(ctx, typ, key); err != nil {
			c.logger.Warn("failed to drop expired cache entry",
				logging.String("cache_type", typ),
				logging.String("cache_key", key),
				logging.Error(err))
		} else {
			c.logger.Debug("dropped expired cache entry",
				logging.String("cache_type", typ),
				logging.String("cache_key", key))
		}
		return nil, nil
	}
	return item, nil
}

// Fetch returns just the payload for (typ, key) when present and fresh.
func (c *Cache) Fetch(ctx context.Context, typ, key string) ([]byte, bool, error) {
	item, err := c.FetchItem(ctx, typ, key)
	if err != nil {
		return nil, false, err
	}
	if item == nil {
		return nil, false, nil
	}
	return item.Payload, true, nil
}

// Delete removes one entry, reporting whether it existed.
func (c *Cache) Delete(ctx context.Context, typ, key string) (bool, error) {
	removed, err := c.store.DeleteCacheItem(ctx, typ, key)
	if err != nil {
		return false, services.Wrap(services.ErrStorage, "cache", "delete", "delete cache item", err)
	}
	return removed, nil
}

// SweepExpired removes every entry whose expiry has passed and returns
// the count removed.
func (c *Cache) SweepExpired(ctx context.Context) (int64, error) {
	removed, err := c.store.DeleteExpiredCacheItems(ctx, c.clk.Now().UTC())
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "cache", "sweep", "delete expired cache items", err)
	}
	if removed > 0 {
		c.logger.Debug("swept expired cache entries", logging.Int64("expired_removed", removed))
	}
	return removed, nil
}

// RunSweeper periodically sweeps expired entries until ctx is done.
// Intended to run as a daemon goroutine.
func (c *Cache) RunSweeper(ctx context.Context) {
	if c.sweepEvery <= 0 {
		return
	}
	ticker := c.clk.NewTicker(c.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.SweepExpired(ctx); err != nil && ctx.Err() == nil {
				c.logger.Warn("cache sweep failed", logging.Error(err))
			}
		}
	}
}

// Usage reports entry counts, payload bytes, the advisory quota, and
// free space on the filesystem backing the store.
func (c *Cache) Usage(ctx context.Context) (Usage, error) {
	stats, err := c.store.CacheStats(ctx)
	if err != nil {
		return Usage{}, services.Wrap(services.ErrStorage, "cache", "usage", "read cache stats", err)
	}
	usage := Usage{
		Entries:    stats.Entries,
		UsedBytes:  stats.PayloadBytes,
		ByType:     stats.ByType,
		QuotaBytes: c.quotaBytes,
	}
	if path := c.store.Path(); path != "" {
		var stat unix.Statfs_t
		if err := unix.Statfs(filepath.Dir(path), &stat); err == nil {
			usage.FreeBytes = stat.Bavail * uint64(stat.Bsize)
		}
	}
	return usage, nil
}

// checkQuota warns once when payload bytes cross the advisory quota and
// rearms after usage drops back under it. Nothing is evicted.
func (c *Cache) checkQuota(ctx context.Context) {
	if c.quotaBytes <= 0 {
		return
	}
	stats, err := c.store.CacheStats(ctx)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	over := stats.PayloadBytes > c.quotaBytes
	switch {
	case over && !c.quotaWarned:
		c.quotaWarned = true
		logging.WarnWithContext(c.logger, "cache over advisory quota", "cache_quota_exceeded",
			logging.Int64("used_bytes", stats.PayloadBytes),
			logging.Int64("quota_bytes", c.quotaBytes),
			logging.String(logging.FieldImpact, "cache keeps growing; nothing is evicted automatically"),
			logging.String(logging.FieldErrorHint, "delete unused entries or raise cache.quota_mib"))
	case !over:
		c.quotaWarned = false
	}
}
