package connectivity

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"courier/internal/logging"
)

// netlinkWatcher listens for kernel uevents on the net subsystem and
// triggers an immediate connectivity re-probe when interfaces appear,
// vanish, or change state. Losing the socket is non-fatal; the monitor
// then relies on interval polling alone.
type netlinkWatcher struct {
	logger  *slog.Logger
	onEvent func()

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func newNetlinkWatcher(logger *slog.Logger, onEvent func()) *netlinkWatcher {
	return &netlinkWatcher{
		logger:  logging.NewComponentLogger(logger, "netlink-watcher"),
		onEvent: onEvent,
	}
}

// Start begins listening for udev netlink events.
func (w *netlinkWatcher) Start(ctx context.Context) error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		w.logger.Warn("failed to connect to netlink socket; relying on interval polling",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon may open netlink sockets"),
			logging.String(logging.FieldImpact, "connectivity transitions detected only at poll interval"),
		)
		return nil
	}

	w.conn = conn
	w.quit = make(chan struct{})
	w.running = true

	// Pass quit channel to goroutine to avoid reading w.quit without lock
	quit := w.quit
	go w.watchLoop(ctx, quit)

	w.logger.Info("netlink watcher started",
		logging.String(logging.FieldEventType, "netlink_watcher_started"),
	)
	return nil
}

// Stop shuts down the netlink watcher.
func (w *netlinkWatcher) Stop() {
	if w == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	if w.quit != nil {
		close(w.quit)
		w.quit = nil
	}

	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}

	w.running = false

	w.logger.Info("netlink watcher stopped",
		logging.String(logging.FieldEventType, "netlink_watcher_stopped"),
	)
}

// Running reports whether the watcher holds a live netlink socket.
func (w *netlinkWatcher) Running() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *netlinkWatcher) watchLoop(ctx context.Context, quit <-chan struct{}) {
	events := make(chan netlink.UEvent)
	errs := make(chan error)

	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(events, errs, w.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-events:
			w.handleEvent(uevent)
		case err := <-errs:
			w.logger.Warn("netlink watcher error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_watcher_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "connectivity transitions may lag until the next poll"),
			)
		}
	}
}

// buildMatcher matches uevents for network interfaces:
// SUBSYSTEM=net, ACTION=add|remove|change|move
func (w *netlinkWatcher) buildMatcher() netlink.Matcher {
	action := "add|remove|change|move"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "net",
		},
	})
	return rules
}

// handleEvent nudges the monitor to re-probe. The event itself never
// decides the state; the probe does.
func (w *netlinkWatcher) handleEvent(uevent netlink.UEvent) {
	w.logger.Debug("network interface event",
		logging.String("action", string(uevent.Action)),
		logging.String("interface", extractInterface(uevent)),
	)
	if w.onEvent != nil {
		w.onEvent()
	}
}

// extractInterface pulls the interface name from a uevent.
func extractInterface(uevent netlink.UEvent) string {
	if name := uevent.Env["INTERFACE"]; name != "" {
		return name
	}

	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}
