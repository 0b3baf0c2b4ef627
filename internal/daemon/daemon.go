package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"courier/internal/cache"
	"courier/internal/config"
	"courier/internal/connectivity"
	"courier/internal/delivery"
	"courier/internal/logging"
	"courier/internal/notifications"
	"courier/internal/queue"
)

// Daemon is the composition root: it owns the connectivity monitor and
// delivery manager lifecycles, enforces single-instance execution with a
// lock file, and exposes the pass-through operations the IPC layer
// serves.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   queue.Backend
	monitor *connectivity.Monitor
	manager *delivery.Manager
	cache   *cache.Cache

	lockPath string
	lock     *flock.Flock

	degraded  bool
	startedAt time.Time

	running atomic.Bool
	cancel  context.CancelFunc
}

// Version is stamped at build time; local builds report "dev".
var Version = "dev"

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Version      string
	StartedAt    time.Time
	Degraded     bool
	StorePath    string
	LockPath     string
	SocketPath   string
	Network      connectivity.Status
	QueueDepth   int
	DepthByClass map[string]int
	CacheUsage   *cache.Usage
}

// Option adjusts optional daemon state.
type Option func(*Daemon)

// WithDegradedStore marks the daemon as running on the volatile memory
// backend after the durable store failed to open.
func WithDegradedStore() Option {
	return func(d *Daemon) { d.degraded = true }
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store queue.Backend, monitor *connectivity.Monitor, manager *delivery.Manager, dataCache *cache.Cache, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || monitor == nil || manager == nil || dataCache == nil {
		return nil, errors.New("daemon requires config, store, monitor, manager, and cache")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "courierd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		monitor:  monitor,
		manager:  manager,
		cache:    dataCache,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the single-instance lock and launches the monitor and
// delivery manager.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another courier daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.monitor.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start connectivity monitor: %w", err)
	}
	if err := d.manager.Start(runCtx); err != nil {
		d.monitor.Stop()
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start delivery manager: %w", err)
	}

	d.cancel = cancel
	d.startedAt = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("courier daemon started",
		logging.String("lock", d.lockPath),
		logging.Bool("degraded", d.degraded))
	return nil
}

// Stop halts the manager and monitor without the final flush and
// releases the lock. Safe to call on a stopped daemon.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.manager.Stop()
	d.monitor.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("courier daemon stopped")
}

// Close shuts everything down in order: delivery manager with its
// bounded final flush, the monitor, the lock, and finally the store.
func (d *Daemon) Close(ctx context.Context) error {
	if d.running.Load() {
		if d.cancel != nil {
			d.cancel()
			d.cancel = nil
		}
		d.manager.Close(ctx)
		d.monitor.Stop()
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
		d.running.Store(false)
		d.logger.Info("courier daemon stopped")
	}
	return d.store.Close()
}

// Enqueue stores a request for durable delivery.
func (d *Daemon) Enqueue(ctx context.Context, cr delivery.CallRequest) (*queue.Request, error) {
	return d.manager.Enqueue(ctx, cr)
}

// Submit attempts one live delivery with queue fallback.
func (d *Daemon) Submit(ctx context.Context, cr delivery.CallRequest) (delivery.Result, error) {
	return d.manager.Call(ctx, cr)
}

// Flush runs one synchronous flush pass.
func (d *Daemon) Flush(ctx context.Context) error {
	return d.manager.Flush(ctx)
}

// ListQueue returns pending requests, optionally filtered by class.
func (d *Daemon) ListQueue(ctx context.Context, classes ...string) ([]*queue.Request, error) {
	return d.manager.List(ctx, classes...)
}

// QueueDepth reports pending counts in total and per class.
func (d *Daemon) QueueDepth(ctx context.Context) (int, map[string]int, error) {
	byClass, err := d.manager.DepthByClass(ctx)
	if err != nil {
		return 0, nil, err
	}
	total := 0
	for _, count := range byClass {
		total += count
	}
	return total, byClass, nil
}

// ClearQueue removes all pending requests.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	return d.manager.Clear(ctx)
}

// ClearClass removes all pending requests in one class.
func (d *Daemon) ClearClass(ctx context.Context, class string) (int64, error) {
	return d.manager.ClearClass(ctx, class)
}

// RemoveRequest deletes one pending request by ID.
func (d *Daemon) RemoveRequest(ctx context.Context, id int64) (bool, error) {
	return d.manager.Remove(ctx, id)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.manager.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics, or nil when the
// daemon runs on the memory backend.
func (d *Daemon) DatabaseHealth(ctx context.Context) (*queue.DatabaseHealth, error) {
	store, ok := d.store.(*queue.Store)
	if !ok {
		return nil, nil
	}
	health, err := store.CheckHealth(ctx)
	if err != nil && health.Error == "" {
		return nil, err
	}
	return &health, err
}

// Degraded reports whether the daemon fell back to the memory backend.
func (d *Daemon) Degraded() bool {
	return d.degraded
}

// NetworkStatus returns the monitor's committed connectivity snapshot.
func (d *Daemon) NetworkStatus() connectivity.Status {
	return d.monitor.Status()
}

// CacheGet fetches a cached payload, honoring expiry.
func (d *Daemon) CacheGet(ctx context.Context, typ, key string) (*queue.CachedItem, error) {
	return d.cache.FetchItem(ctx, typ, key)
}

// CacheSet stores a cached payload with the given TTL.
func (d *Daemon) CacheSet(ctx context.Context, typ, key string, payload []byte, ttl time.Duration) error {
	return d.cache.Store(ctx, typ, key, payload, ttl)
}

// CacheDelete removes one cached payload.
func (d *Daemon) CacheDelete(ctx context.Context, typ, key string) (bool, error) {
	return d.cache.Delete(ctx, typ, key)
}

// CacheStats summarizes cache usage.
func (d *Daemon) CacheStats(ctx context.Context) (cache.Usage, error) {
	return d.cache.Usage(ctx)
}

// CacheSweep purges expired cache entries now.
func (d *Daemon) CacheSweep(ctx context.Context) (int64, error) {
	return d.cache.SweepExpired(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:    d.running.Load(),
		PID:        os.Getpid(),
		Version:    Version,
		StartedAt:  d.startedAt,
		Degraded:   d.degraded,
		StorePath:  d.store.Path(),
		LockPath:   d.lockPath,
		SocketPath: d.cfg.Paths.Socket,
		Network:    d.monitor.Status(),
	}
	if total, byClass, err := d.QueueDepth(ctx); err == nil {
		status.QueueDepth = total
		status.DepthByClass = byClass
	}
	if usage, err := d.cache.Usage(ctx); err == nil {
		status.CacheUsage = &usage
	}
	return status
}
