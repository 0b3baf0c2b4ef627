package ipc_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"courier/internal/cache"
	"courier/internal/config"
	"courier/internal/connectivity"
	"courier/internal/daemon"
	"courier/internal/delivery"
	"courier/internal/ipc"
	"courier/internal/logging"
	"courier/internal/queue"
	"courier/internal/services"
	"courier/internal/testsupport"
)

type onlineProber struct{}

func (onlineProber) Probe(context.Context) bool { return true }

// wireSender delivers everything except URLs containing "unreachable",
// which fail as transport errors.
type wireSender struct{}

func (wireSender) Do(_ context.Context, req *queue.Request) (*delivery.Response, error) {
	if strings.Contains(req.URL, "unreachable") {
		return nil, services.Wrap(services.ErrNetwork, "test", "do", "connection refused", nil)
	}
	return &delivery.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: []byte("ok")}, nil
}

func newStack(t *testing.T, cfg *config.Config, store queue.Backend) *daemon.Daemon {
	t.Helper()

	cfg.Connectivity.Netlink = false
	logger := logging.NewNop()
	monitor := connectivity.New(cfg, logger, connectivity.WithProbers(onlineProber{}))
	manager, err := delivery.New(cfg, store, monitor, logger, delivery.WithSender(wireSender{}))
	if err != nil {
		t.Fatalf("delivery.New: %v", err)
	}
	dataCache := cache.New(cfg, store, logger)
	d, err := daemon.New(cfg, store, monitor, manager, dataCache, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func serveAndDial(t *testing.T, ctx context.Context, d *daemon.Daemon, socket string, srvOpts ...ipc.ServerOption) *ipc.Client {
	t.Helper()

	srv, err := ipc.NewServer(ctx, socket, d, logging.NewNop(), srvOpts...)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})
	return client
}

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	// The running scheduler attempts queued requests on every enqueue
	// kick; a generous budget keeps them queued for the assertions below.
	cfg.Sync.DefaultMaxRetries = 25
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	d := newStack(t, cfg, store)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	client := serveAndDial(t, ctx, d, cfg.Paths.Socket)

	ping, err := client.Ping()
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if !ping.Pong || ping.PID <= 0 {
		t.Fatalf("unexpected ping response: %+v", ping)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Status.Running {
		t.Fatal("expected daemon to report running")
	}
	if !strings.HasSuffix(status.Status.StorePath, "courier.db") {
		t.Fatalf("unexpected store path: %s", status.Status.StorePath)
	}
	if !status.Status.Network.Online {
		t.Fatal("expected online network status")
	}
	if status.Status.Degraded {
		t.Fatal("durable store reported degraded")
	}

	enq, err := client.Enqueue(ipc.EnqueueRequest{
		URL:        "https://unreachable.example.com/v1/events",
		Method:     "post",
		Headers:    map[string]string{"Authorization": "Bearer token"},
		Body:       []byte(`{"n":1}`),
		Class:      "Telemetry",
		MaxRetries: -1,
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if enq.Item.ID == 0 {
		t.Fatal("enqueue returned no ID")
	}
	if enq.Item.Method != "POST" || enq.Item.Class != "telemetry" {
		t.Fatalf("normalization lost over the wire: %+v", enq.Item)
	}
	if enq.Item.BodyBytes != 7 {
		t.Fatalf("body bytes = %d", enq.Item.BodyBytes)
	}

	list, err := client.QueueList(nil)
	if err != nil {
		t.Fatalf("QueueList failed: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].ID != enq.Item.ID {
		t.Fatalf("unexpected list: %+v", list.Items)
	}
	filtered, err := client.QueueList([]string{"telemetry"})
	if err != nil {
		t.Fatalf("QueueList filter failed: %v", err)
	}
	if len(filtered.Items) != 1 {
		t.Fatalf("expected 1 telemetry item, got %d", len(filtered.Items))
	}
	empty, err := client.QueueList([]string{"other"})
	if err != nil {
		t.Fatalf("QueueList other failed: %v", err)
	}
	if len(empty.Items) != 0 {
		t.Fatalf("expected no items for unknown class, got %d", len(empty.Items))
	}

	depth, err := client.QueueDepth()
	if err != nil {
		t.Fatalf("QueueDepth failed: %v", err)
	}
	if depth.Total != 1 || depth.ByClass["telemetry"] != 1 {
		t.Fatalf("unexpected depth: %+v", depth)
	}

	health, err := client.QueueHealth()
	if err != nil {
		t.Fatalf("QueueHealth failed: %v", err)
	}
	if health.Report.Queue.Total != 1 {
		t.Fatalf("health total = %d", health.Report.Queue.Total)
	}
	if health.Report.Database == nil || !health.Report.Database.TableExists {
		t.Fatalf("expected database diagnostics, got %+v", health.Report.Database)
	}
	if health.Report.Degraded {
		t.Fatal("unexpected degraded report")
	}

	flush, err := client.Flush()
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if !flush.Flushed || flush.Remaining != 1 {
		t.Fatalf("unexpected flush response: %+v", flush)
	}

	removed, err := client.QueueRemove(enq.Item.ID)
	if err != nil {
		t.Fatalf("QueueRemove failed: %v", err)
	}
	if !removed.Removed {
		t.Fatal("expected queued request to be removed")
	}
	if _, err := client.QueueRemove(0); err == nil {
		t.Fatal("expected error for invalid id")
	}

	submit, err := client.Submit(ipc.SubmitRequest{
		URL:   "https://api.example.com/v1/profile",
		Class: "sync",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !submit.Delivered || submit.StatusCode != http.StatusOK {
		t.Fatalf("unexpected submit response: %+v", submit)
	}
	if string(submit.Body) != "ok" {
		t.Fatalf("submit body = %q", submit.Body)
	}

	fallback, err := client.Submit(ipc.SubmitRequest{
		URL:        "https://unreachable.example.com/v1/events",
		Class:      "sync",
		MaxRetries: -1,
	})
	if err != nil {
		t.Fatalf("Submit fallback failed: %v", err)
	}
	if fallback.Delivered || !fallback.Queued || fallback.RequestID == 0 {
		t.Fatalf("unexpected fallback response: %+v", fallback)
	}

	fallbackRemoved, err := client.QueueRemove(fallback.RequestID)
	if err != nil {
		t.Fatalf("QueueRemove fallback failed: %v", err)
	}
	if !fallbackRemoved.Removed {
		t.Fatal("expected queued fallback request to be removed")
	}

	for _, class := range []string{"alpha", "alpha", "beta"} {
		if _, err := client.Enqueue(ipc.EnqueueRequest{
			URL:        "https://unreachable.example.com/v1/batch",
			Class:      class,
			MaxRetries: -1,
		}); err != nil {
			t.Fatalf("Enqueue %s failed: %v", class, err)
		}
	}
	cleared, err := client.QueueClear("alpha")
	if err != nil {
		t.Fatalf("QueueClear class failed: %v", err)
	}
	if cleared.Removed != 2 {
		t.Fatalf("expected 2 alpha items cleared, got %d", cleared.Removed)
	}
	clearedAll, err := client.QueueClear("")
	if err != nil {
		t.Fatalf("QueueClear all failed: %v", err)
	}
	if clearedAll.Removed != 1 {
		t.Fatalf("expected 1 remaining item cleared, got %d", clearedAll.Removed)
	}

	set, err := client.CacheSet(ipc.CacheSetRequest{
		Type:    "profile",
		Key:     "user-1",
		Payload: []byte(`{"name":"ada"}`),
	})
	if err != nil {
		t.Fatalf("CacheSet failed: %v", err)
	}
	if !set.Stored {
		t.Fatal("expected cache store ack")
	}
	got, err := client.CacheGet("profile", "user-1")
	if err != nil {
		t.Fatalf("CacheGet failed: %v", err)
	}
	if !got.Found || got.Entry == nil || string(got.Entry.Payload) != `{"name":"ada"}` {
		t.Fatalf("unexpected cache get: %+v", got)
	}
	stats, err := client.CacheStats()
	if err != nil {
		t.Fatalf("CacheStats failed: %v", err)
	}
	if stats.Usage.Entries != 1 {
		t.Fatalf("cache entries = %d", stats.Usage.Entries)
	}
	swept, err := client.CacheSweep()
	if err != nil {
		t.Fatalf("CacheSweep failed: %v", err)
	}
	if swept.Removed != 0 {
		t.Fatalf("expected nothing expired, got %d", swept.Removed)
	}
	deleted, err := client.CacheDelete("profile", "user-1")
	if err != nil {
		t.Fatalf("CacheDelete failed: %v", err)
	}
	if !deleted.Deleted {
		t.Fatal("expected cache delete ack")
	}
	gone, err := client.CacheGet("profile", "user-1")
	if err != nil {
		t.Fatalf("CacheGet after delete failed: %v", err)
	}
	if gone.Found {
		t.Fatal("expected cache miss after delete")
	}

	network, err := client.NetworkStatus()
	if err != nil {
		t.Fatalf("NetworkStatus failed: %v", err)
	}
	if !network.Network.Online {
		t.Fatal("expected online network")
	}

	notify, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if notify.Sent || notify.Message != "ntfy topic not configured" {
		t.Fatalf("unexpected notification response: %+v", notify)
	}
}

func TestIPCStopRunsShutdownHook(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	d := newStack(t, cfg, queue.NewMemoryBackend())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	fired := make(chan struct{})
	client := serveAndDial(t, ctx, d, cfg.Paths.Socket, ipc.WithShutdown(func() {
		close(fired)
	}))

	resp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !resp.Stopped {
		t.Fatal("expected stop ack")
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown hook did not run")
	}
}
