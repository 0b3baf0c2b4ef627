package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
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

// wireSender accepts everything except URLs containing "unreachable",
// which fail as transport errors and stay queued.
type wireSender struct{}

func (wireSender) Do(_ context.Context, req *queue.Request) (*delivery.Response, error) {
	if strings.Contains(req.URL, "unreachable") {
		return nil, services.Wrap(services.ErrNetwork, "test", "do", "connection refused", nil)
	}
	return &delivery.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: []byte("ok")}, nil
}

// cliTestEnv runs a live daemon stack behind a real socket so commands
// exercise the IPC path end to end.
type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	cancel     context.CancelFunc
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Connectivity.Netlink = false
	// The running scheduler attempts queued requests on every enqueue
	// kick; a generous budget keeps unreachable ones queued for the
	// assertions below.
	cfg.Sync.DefaultMaxRetries = 25
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	configPath := writeTestConfig(t, cfg)

	store := testsupport.MustOpenStore(t, cfg)
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

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}

	var srv *ipc.Server
	srv, err = ipc.NewServer(ctx, cfg.Paths.Socket, d, logger, ipc.WithShutdown(func() {
		srv.Close()
	}))
	if err != nil {
		d.Stop()
		cancel()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	time.Sleep(50 * time.Millisecond)

	t.Cleanup(func() {
		srv.Close()
		d.Stop()
		cancel()
	})

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		server:     srv,
		socketPath: cfg.Paths.Socket,
		configPath: configPath,
		cancel:     cancel,
	}
}

// setupOfflineEnv prepares config and directories with no daemon
// listening, so commands take the direct-store path.
func setupOfflineEnv(t *testing.T) (*config.Config, string) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Connectivity.Netlink = false
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return cfg, writeTestConfig(t, cfg)
}

func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()

	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	body := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
socket = %q

[sync]
default_max_retries = %d

[connectivity]
netlink = false

[notifications]
ntfy_topic = %q
`, cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.Socket, cfg.Sync.DefaultMaxRetries, cfg.Notifications.NtfyTopic)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, socketPath, configPath string, args ...string) (string, string, error) {
	t.Helper()

	root := newRootCommand()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(append([]string{"--socket", socketPath, "--config", configPath}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("output %q does not contain %q", output, substr)
	}
}

func waitFor(t *testing.T, timeout time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}
