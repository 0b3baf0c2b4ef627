package connectivity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"courier/internal/clock"
	"courier/internal/config"
	"courier/internal/logging"
)

// Monitor tracks whether the host is online by combining interface
// polling, optional netlink events, and an optional HTTP probe. Raw
// probe results are debounced: a differing result must persist for the
// configured window before the committed state flips and subscribers
// fire. Flapping links collapse into at most one transition per window.
type Monitor struct {
	logger *slog.Logger
	clk    clock.Clock

	probers  []Prober
	netlink  *netlinkWatcher
	probeURL string

	pollInterval time.Duration
	debounce     time.Duration

	online atomic.Bool

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	lastChange time.Time
	nextSubID  int64
	subs       map[int64]func(bool)

	wg      sync.WaitGroup
	recheck chan struct{}

	// Candidate state is owned by the run goroutine.
	hasCandidate   bool
	candidate      bool
	candidateSince time.Time
}

// Status is a point-in-time snapshot of the monitor.
type Status struct {
	Online        bool
	Since         time.Time
	NetlinkActive bool
	ProbeURL      string
	PollInterval  time.Duration
}

// Option adjusts optional Monitor dependencies.
type Option func(*Monitor)

// WithClock substitutes the time source, primarily for tests.
func WithClock(clk clock.Clock) Option {
	return func(m *Monitor) {
		if clk != nil {
			m.clk = clk
		}
	}
}

// WithProbers replaces the configured signal sources.
func WithProbers(probers ...Prober) Option {
	return func(m *Monitor) {
		m.probers = probers
	}
}

// New builds a Monitor from configuration. The link prober is always
// installed; the HTTP prober joins it when connectivity.probe_url is
// set, and netlink events are enabled per connectivity.netlink.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}

	poll := time.Duration(cfg.Connectivity.PollInterval) * time.Second
	if poll <= 0 {
		poll = 15 * time.Second
	}
	debounce := time.Duration(cfg.Connectivity.Debounce) * time.Second
	if debounce < 0 {
		debounce = 0
	}

	m := &Monitor{
		logger:       logging.NewComponentLogger(logger, "connectivity"),
		clk:          clock.System(),
		probeURL:     cfg.Connectivity.ProbeURL,
		pollInterval: poll,
		debounce:     debounce,
		subs:         make(map[int64]func(bool)),
		recheck:      make(chan struct{}, 1),
	}

	m.probers = []Prober{NewLinkProber(logger)}
	if m.probeURL != "" {
		timeout := time.Duration(cfg.Connectivity.ProbeTimeout) * time.Second
		m.probers = append(m.probers, NewHTTPProber(m.probeURL, timeout, logger))
	}
	if cfg.Connectivity.Netlink {
		m.netlink = newNetlinkWatcher(logger, m.Recheck)
	}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start probes once to establish the starting state and launches the
// poll loop plus the netlink watcher.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errors.New("connectivity monitor already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.online.Store(m.probe(runCtx))
	m.lastChange = m.clk.Now().UTC()
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go m.run(runCtx)

	if err := m.netlink.Start(runCtx); err != nil {
		m.logger.Warn("netlink watcher start failed", logging.Error(err))
	}

	m.logger.Info("connectivity monitor started",
		logging.String(logging.FieldEventType, "connectivity_monitor_started"),
		logging.Bool("online", m.online.Load()),
		logging.Duration("poll_interval", m.pollInterval),
		logging.Duration("debounce", m.debounce),
		logging.Bool("http_probe", m.probeURL != ""),
	)
	return nil
}

// Stop halts the poll loop and the netlink watcher and waits for them.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	m.netlink.Stop()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// IsOnline reports the committed connectivity state.
func (m *Monitor) IsOnline() bool {
	return m.online.Load()
}

// Subscribe registers fn to run on every committed transition. The
// returned cancel removes the subscription and is safe to call more
// than once. Callbacks run synchronously on the monitor goroutine and
// must not block.
func (m *Monitor) Subscribe(fn func(online bool)) (cancel func()) {
	if fn == nil {
		return func() {}
	}

	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Recheck asks the monitor to re-probe ahead of the next poll tick.
// Safe to call from any goroutine; repeated calls coalesce.
func (m *Monitor) Recheck() {
	select {
	case m.recheck <- struct{}{}:
	default:
	}
}

// Status snapshots the committed state and signal sources.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	since := m.lastChange
	m.mu.Unlock()

	return Status{
		Online:        m.online.Load(),
		Since:         since,
		NetlinkActive: m.netlink.Running(),
		ProbeURL:      m.probeURL,
		PollInterval:  m.pollInterval,
	}
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := m.clk.NewTicker(m.pollInterval)
	defer ticker.Stop()

	var wake <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-m.recheck:
		case <-wake:
			wake = nil
		}
		wake = m.check(ctx, wake)
	}
}

// check probes once and advances the debounce state machine. It returns
// the timer channel the run loop should wait on to revisit a pending
// candidate, or nil when none is pending.
func (m *Monitor) check(ctx context.Context, wake <-chan time.Time) <-chan time.Time {
	observed := m.probe(ctx)
	now := m.clk.Now().UTC()

	if observed == m.online.Load() {
		// Reversal inside the window cancels the candidate.
		m.hasCandidate = false
		return nil
	}

	if !m.hasCandidate || m.candidate != observed {
		m.hasCandidate = true
		m.candidate = observed
		m.candidateSince = now
		if m.debounce > 0 {
			m.logger.Debug("connectivity candidate",
				logging.Bool("online", observed),
				logging.Duration("debounce", m.debounce))
			return m.clk.After(m.debounce)
		}
	}

	if m.debounce > 0 && now.Sub(m.candidateSince) < m.debounce {
		return wake
	}

	m.hasCandidate = false
	m.commit(observed, now)
	return nil
}

// probe asks every signal source in order; all must agree before the
// host counts as online.
func (m *Monitor) probe(ctx context.Context) bool {
	for _, p := range m.probers {
		if !p.Probe(ctx) {
			return false
		}
	}
	return true
}

func (m *Monitor) commit(observed bool, now time.Time) {
	m.online.Store(observed)

	m.mu.Lock()
	m.lastChange = now
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	eventType := "connectivity_offline"
	if observed {
		eventType = "connectivity_online"
	}
	m.logger.Info("connectivity changed",
		logging.String(logging.FieldEventType, eventType),
		logging.Bool("online", observed),
	)

	for _, fn := range subs {
		fn(observed)
	}
}
