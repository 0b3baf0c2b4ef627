package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"courier/internal/cache"
	"courier/internal/config"
	"courier/internal/connectivity"
	"courier/internal/daemon"
	"courier/internal/delivery"
	"courier/internal/ipc"
	"courier/internal/logging"
	"courier/internal/notifications"
	"courier/internal/queue"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// ConfigPath is the resolved config file, watched for log-level
	// changes while the daemon runs. Empty disables the watcher.
	ConfigPath  string
	LogLevel    string
	Development bool
}

// Run starts the courier daemon runtime loop and blocks until a signal
// arrives or an IPC stop request is served.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := uuid.NewString()
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("courier-%s.log", runID))

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, levelVar, err := logging.NewLeveled(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update courier.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "courier-*.log", Exclude: []string{logPath}},
	)

	pidPath := filepath.Join(cfg.Paths.LogDir, "courierd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	logRuntimeSnapshot(logger, cfg, runID)

	notifier := notifications.NewService(cfg)
	store, degraded := openStore(signalCtx, cfg, logger, notifier)

	monitor := connectivity.New(cfg, logger)
	manager, err := delivery.New(cfg, store, monitor, logger, delivery.WithNotifier(notifier))
	if err != nil {
		store.Close()
		return fmt.Errorf("create delivery manager: %w", err)
	}
	dataCache := cache.New(cfg, store, logger)

	var daemonOpts []daemon.Option
	if degraded {
		daemonOpts = append(daemonOpts, daemon.WithDegradedStore())
	}
	d, err := daemon.New(cfg, store, monitor, manager, dataCache, logger, daemonOpts...)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}

	if err := d.Start(signalCtx); err != nil {
		store.Close()
		return err
	}

	go dataCache.RunSweeper(signalCtx)

	stopWatcher := watchConfig(signalCtx, opts.ConfigPath, logger, levelVar)
	defer stopWatcher()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.Paths.Socket, d, logger, ipc.WithShutdown(cancel))
	if err != nil {
		closeErr := d.Close(signalCtx)
		if closeErr != nil {
			logger.Warn("daemon close failed", logging.Error(closeErr))
		}
		return fmt.Errorf("start IPC server: %w", err)
	}
	ipcServer.Serve()

	logger.Info("courier daemon ready",
		logging.String(logging.FieldEventType, "daemon_ready"),
		logging.String("run_id", runID),
		logging.String("version", daemon.Version),
		logging.String("socket", cfg.Paths.Socket),
		logging.Bool("degraded", degraded),
		logging.Bool(logging.FieldOnline, monitor.IsOnline()),
	)

	<-signalCtx.Done()

	logger.Info("courier daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"))
	ipcServer.Close()
	if err := d.Close(signalCtx); err != nil {
		logger.Warn("daemon close failed", logging.Error(err))
	}
	return nil
}

// openStore opens the durable queue database, falling back to the
// volatile memory backend when it cannot be opened. Requests queued in
// degraded mode do not survive a restart.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, notifier notifications.Service) (queue.Backend, bool) {
	store, err := queue.Open(cfg)
	if err == nil {
		return store, false
	}
	logging.ErrorWithContext(logger, "durable queue store unavailable; falling back to memory", "store_degraded",
		logging.Error(err),
		logging.String("db_path", cfg.DatabasePath()),
		logging.String(logging.FieldErrorHint, "check data_dir permissions and free disk space"),
		logging.String(logging.FieldImpact, "queued requests will not survive a daemon restart"),
	)
	if notifyErr := notifier.NotifyDegradedStorage(ctx, err); notifyErr != nil {
		logger.Warn("degraded storage notification failed", logging.Error(notifyErr))
	}
	return queue.NewMemoryBackend(), true
}

// watchConfig reloads the log level when the config file changes. The
// directory is watched rather than the file so editor rename-saves keep
// firing events.
func watchConfig(ctx context.Context, path string, logger *slog.Logger, level *slog.LevelVar) func() {
	if strings.TrimSpace(path) == "" || level == nil {
		return func() {}
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("config watcher unavailable", logging.Error(err))
		return func() {}
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		logger.Warn("config watcher unavailable",
			logging.Error(err),
			logging.String("config_path", path))
		watcher.Close()
		return func() {}
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				applyLogLevel(path, logger, level)
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", logging.Error(watchErr))
			}
		}
	}()
	return func() { watcher.Close() }
}

func applyLogLevel(path string, logger *slog.Logger, level *slog.LevelVar) {
	cfg, _, _, err := config.Load(path)
	if err != nil {
		logger.Warn("config reload failed",
			logging.Error(err),
			logging.String("config_path", path))
		return
	}
	next := logging.ParseLevel(cfg.Logging.Level)
	if level.Level() == next {
		return
	}
	level.Set(next)
	logger.Info("log level updated",
		logging.String(logging.FieldEventType, "log_level_changed"),
		logging.String("level", cfg.Logging.Level))
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "courier.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logRuntimeSnapshot(logger *slog.Logger, cfg *config.Config, runID string) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("runtime snapshot",
		logging.String(logging.FieldEventType, "runtime_snapshot"),
		logging.String("run_id", runID),
		logging.String("db_path", cfg.DatabasePath()),
		logging.Int("flush_interval", cfg.Sync.FlushInterval),
		logging.Int("workers", cfg.Sync.Workers),
		logging.Int("default_max_retries", cfg.Sync.DefaultMaxRetries),
		logging.Bool("netlink", cfg.Connectivity.Netlink),
		logging.String("probe_url", cfg.Connectivity.ProbeURL),
		logging.Bool("ntfy_topic_present", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Int("cache_quota_mib", cfg.Cache.QuotaMiB),
	)
}
