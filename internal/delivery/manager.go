package delivery

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"courier/internal/clock"
	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/notifications"
	"courier/internal/queue"
	"courier/internal/services"
)

// OnlineSource is the connectivity surface the manager depends on.
// connectivity.Monitor satisfies it.
type OnlineSource interface {
	IsOnline() bool
	Subscribe(fn func(online bool)) (cancel func())
}

type backoffState struct {
	delay       time.Duration
	nextAttempt time.Time
}

// Manager owns the durable queue's delivery lifecycle: enqueueing,
// scheduled and kicked flush passes, the resilient Call façade, and the
// depth/drop event registries.
type Manager struct {
	cfg      *config.Config
	store    queue.Backend
	monitor  OnlineSource
	sender   Sender
	notifier notifications.Service
	clk      clock.Clock
	logger   *slog.Logger

	flushInterval     time.Duration
	workers           int
	backoffInitial    time.Duration
	backoffMax        time.Duration
	finalFlushTimeout time.Duration
	defaultMaxRetries int

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	unsubscribe func()
	inflight    map[string]bool
	backoff     map[string]backoffState

	wg   sync.WaitGroup
	kick chan struct{}

	subMu     sync.Mutex
	nextSubID int64
	depthSubs map[int64]func(DepthEvent)
	dropSubs  map[int64]func(DropEvent)
}

// ManagerOption overrides optional Manager dependencies.
type ManagerOption func(*Manager)

// WithSender substitutes the HTTP sender, primarily for tests.
func WithSender(sender Sender) ManagerOption {
	return func(m *Manager) {
		if sender != nil {
			m.sender = sender
		}
	}
}

// WithNotifier substitutes the notification service.
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithClock substitutes the time source, primarily for tests.
func WithClock(clk clock.Clock) ManagerOption {
	return func(m *Manager) {
		if clk != nil {
			m.clk = clk
		}
	}
}

// New builds a Manager over the given store and connectivity source.
func New(cfg *config.Config, store queue.Backend, monitor OnlineSource, logger *slog.Logger, opts ...ManagerOption) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("delivery: config is required")
	}
	if store == nil {
		return nil, errors.New("delivery: store is required")
	}
	if monitor == nil {
		return nil, errors.New("delivery: connectivity monitor is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	interval := time.Duration(cfg.Sync.FlushInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	workers := cfg.Sync.Workers
	if workers <= 0 {
		workers = 2
	}

	m := &Manager{
		cfg:               cfg,
		store:             store,
		monitor:           monitor,
		sender:            NewHTTPSender(time.Duration(cfg.Sync.RequestTimeout) * time.Second),
		notifier:          notifications.NewService(cfg),
		clk:               clock.System(),
		logger:            logging.NewComponentLogger(logger, "delivery"),
		flushInterval:     interval,
		workers:           workers,
		backoffInitial:    time.Duration(cfg.Sync.BackoffInitial) * time.Second,
		backoffMax:        time.Duration(cfg.Sync.BackoffMax) * time.Second,
		finalFlushTimeout: time.Duration(cfg.Sync.FinalFlushTimeout) * time.Second,
		defaultMaxRetries: cfg.Sync.DefaultMaxRetries,
		inflight:          make(map[string]bool),
		backoff:           make(map[string]backoffState),
		kick:              make(chan struct{}, 1),
		depthSubs:         make(map[int64]func(DepthEvent)),
		dropSubs:          make(map[int64]func(DropEvent)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Depth reports how many requests are pending across all classes.
func (m *Manager) Depth(ctx context.Context) (int, error) {
	return m.store.CountPending(ctx)
}

// DepthByClass reports pending requests per class.
func (m *Manager) DepthByClass(ctx context.Context) (map[string]int, error) {
	return m.store.CountByClass(ctx)
}

// DepthForClass reports pending requests for one class.
func (m *Manager) DepthForClass(ctx context.Context, class string) (int, error) {
	byClass, err := m.store.CountByClass(ctx)
	if err != nil {
		return 0, err
	}
	return byClass[queue.NormalizeClass(class)], nil
}

// List returns pending requests in delivery order, optionally filtered
// by class.
func (m *Manager) List(ctx context.Context, classes ...string) ([]*queue.Request, error) {
	normalized := make([]string, 0, len(classes))
	for _, class := range classes {
		normalized = append(normalized, queue.NormalizeClass(class))
	}
	return m.store.List(ctx, normalized...)
}

// Remove deletes one pending request by ID, reporting whether it existed.
func (m *Manager) Remove(ctx context.Context, id int64) (bool, error) {
	req, err := m.store.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if req == nil {
		return false, nil
	}
	removed, err := m.store.Remove(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		m.emitDepth(ctx, req.Class)
	}
	return removed, nil
}

// Clear purges every pending request and reports how many were removed.
func (m *Manager) Clear(ctx context.Context) (int64, error) {
	removed, err := m.store.Clear(ctx)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		m.dispatchDepth(DepthEvent{})
		m.logger.Info("queue cleared",
			logging.String(logging.FieldEventType, "queue_cleared"),
			logging.Int64("removed", removed))
	}
	return removed, nil
}

// ClearClass purges one class and reports how many were removed.
func (m *Manager) ClearClass(ctx context.Context, class string) (int64, error) {
	class = queue.NormalizeClass(class)
	removed, err := m.store.ClearClass(ctx, class)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		m.emitDepth(ctx, class)
		m.logger.Info("queue class cleared",
			logging.String(logging.FieldEventType, "queue_class_cleared"),
			logging.String(logging.FieldClass, class),
			logging.Int64("removed", removed))
	}
	return removed, nil
}

// Health summarizes pending work for status surfaces.
func (m *Manager) Health(ctx context.Context) (queue.HealthSummary, error) {
	return m.store.Health(ctx)
}

// validate normalizes a CallRequest into a storable queue.Request.
func (m *Manager) validate(cr CallRequest) (*queue.Request, error) {
	rawURL := strings.TrimSpace(cr.URL)
	if rawURL == "" {
		return nil, services.Wrap(services.ErrValidation, "delivery", "validate", "url is required", nil)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "delivery", "validate", "url does not parse", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, services.Wrap(services.ErrValidation, "delivery", "validate", "url scheme must be http or https", nil)
	}
	if parsed.Host == "" {
		return nil, services.Wrap(services.ErrValidation, "delivery", "validate", "url host is required", nil)
	}

	maxRetries := cr.MaxRetries
	if maxRetries < 0 {
		maxRetries = m.defaultMaxRetries
	}

	var headers map[string]string
	if len(cr.Headers) > 0 {
		headers = make(map[string]string, len(cr.Headers))
		for key, value := range cr.Headers {
			headers[key] = value
		}
	}
	var body []byte
	if len(cr.Body) > 0 {
		body = append([]byte(nil), cr.Body...)
	}

	return &queue.Request{
		Class:      queue.NormalizeClass(cr.Class),
		URL:        rawURL,
		Method:     queue.NormalizeMethod(cr.Method),
		Headers:    headers,
		Body:       body,
		EnqueuedAt: m.clk.Now().UTC(),
		MaxRetries: maxRetries,
	}, nil
}
