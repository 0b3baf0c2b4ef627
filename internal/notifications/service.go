package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"courier/internal/clock"
	"courier/internal/config"
	"courier/internal/queue"
)

const userAgent = "Courier/0.1.0"

// Service defines the notification surface exposed to the daemon and the
// delivery engine. Every method is best-effort: callers log failures but
// never let a push problem disturb queue processing.
type Service interface {
	NotifyConnectivityChanged(ctx context.Context, online bool) error
	NotifyRequestDropped(ctx context.Context, req *queue.Request, reason string) error
	NotifyRetriesExhausted(ctx context.Context, req *queue.Request) error
	NotifyDegradedStorage(ctx context.Context, cause error) error
	NotifyFlushCompleted(ctx context.Context, delivered, dropped int, duration time.Duration) error
	TestNotification(ctx context.Context) error
}

// Option adjusts optional service dependencies.
type Option func(*ntfyService)

// WithClock substitutes the time source used for dedup bookkeeping.
func WithClock(clk clock.Clock) Option {
	return func(n *ntfyService) {
		if clk != nil {
			n.clk = clk
		}
	}
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config, opts ...Option) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	svc := &ntfyService{
		endpoint:           topic,
		client:             &http.Client{Timeout: timeout},
		clk:                clock.System(),
		dedupWindow:        time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second,
		notifyDrops:        cfg.Notifications.Drops,
		notifyConnectivity: cfg.Notifications.Connectivity,
		notifyDegraded:     cfg.Notifications.Degraded,
		flushSummaries:     cfg.Notifications.FlushSummaries,
		flushMinDelivered:  cfg.Notifications.FlushMinDelivered,
		lastSent:           make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	clk      clock.Clock

	dedupWindow        time.Duration
	notifyDrops        bool
	notifyConnectivity bool
	notifyDegraded     bool
	flushSummaries     bool
	flushMinDelivered  int

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func (n *ntfyService) NotifyConnectivityChanged(ctx context.Context, online bool) error {
	if !n.notifyConnectivity {
		return nil
	}

	var data payload
	var key string
	if online {
		key = "connectivity_online"
		data = payload{
			title:   "Courier - Online",
			message: "🌐 Back online: queued requests will be delivered",
			tags:    []string{"courier", "network", "online"},
		}
	} else {
		key = "connectivity_offline"
		data = payload{
			title:   "Courier - Offline",
			message: "📴 Offline: requests will queue until the connection returns",
			tags:    []string{"courier", "network", "offline"},
		}
	}
	if !n.shouldSend(key) {
		return nil
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRequestDropped(ctx context.Context, req *queue.Request, reason string) error {
	if !n.notifyDrops {
		return nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "rejected"
	}
	if !n.shouldSend("drop:" + reason + ":" + requestLabel(req)) {
		return nil
	}
	data := payload{
		title:    "Courier - Request Dropped",
		message:  fmt.Sprintf("🗑️ Dropped %s: %s", requestLabel(req), reason),
		tags:     []string{"courier", "queue", "dropped"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRetriesExhausted(ctx context.Context, req *queue.Request) error {
	if !n.notifyDrops {
		return nil
	}
	if !n.shouldSend("exhausted:" + requestLabel(req)) {
		return nil
	}
	attempts := 0
	if req != nil {
		attempts = req.RetryCount + 1
	}
	data := payload{
		title:    "Courier - Retries Exhausted",
		message:  fmt.Sprintf("❌ Gave up on %s after %d attempts", requestLabel(req), attempts),
		tags:     []string{"courier", "queue", "exhausted"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDegradedStorage(ctx context.Context, cause error) error {
	if !n.notifyDegraded {
		return nil
	}
	if !n.shouldSend("degraded_storage") {
		return nil
	}

	var builder strings.Builder
	builder.WriteString("⚠️ Storage degraded: queued requests are memory-only until restart")
	if cause != nil {
		builder.WriteString(": ")
		builder.WriteString(strings.TrimSpace(cause.Error()))
	}
	data := payload{
		title:    "Courier - Degraded Storage",
		message:  builder.String(),
		tags:     []string{"courier", "storage", "degraded"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyFlushCompleted(ctx context.Context, delivered, dropped int, duration time.Duration) error {
	if !n.flushSummaries {
		return nil
	}
	if delivered < n.flushMinDelivered && dropped == 0 {
		return nil
	}

	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var message string
	if dropped == 0 {
		message = fmt.Sprintf("📤 Delivered %d queued requests in %s", delivered, durationText)
	} else {
		message = fmt.Sprintf("📤 Delivered %d queued requests, dropped %d, in %s", delivered, dropped, durationText)
	}
	data := payload{
		title:   "Courier - Flush Complete",
		message: message,
		tags:    []string{"courier", "queue", "flushed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Courier - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"courier", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

// shouldSend rate-limits repeated identical events. Each key may fire at
// most once per dedup window; an empty window disables suppression.
func (n *ntfyService) shouldSend(key string) bool {
	if n.dedupWindow <= 0 || key == "" {
		return true
	}
	now := n.clk.Now()

	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.lastSent[key]; ok && now.Sub(last) < n.dedupWindow {
		return false
	}
	n.lastSent[key] = now
	return true
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func requestLabel(req *queue.Request) string {
	if req == nil {
		return "unknown request"
	}
	return fmt.Sprintf("%s %s", req.Method, req.URL)
}

type noopService struct{}

func (noopService) NotifyConnectivityChanged(context.Context, bool) error { return nil }
func (noopService) NotifyRequestDropped(context.Context, *queue.Request, string) error {
	return nil
}
func (noopService) NotifyRetriesExhausted(context.Context, *queue.Request) error { return nil }
func (noopService) NotifyDegradedStorage(context.Context, error) error           { return nil }
func (noopService) NotifyFlushCompleted(context.Context, int, int, time.Duration) error {
	return nil
}
func (noopService) TestNotification(context.Context) error { return nil }
