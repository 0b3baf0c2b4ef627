package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSync()
	c.normalizeConnectivity()
	c.normalizeCache()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.Socket = strings.TrimSpace(c.Paths.Socket)
	if c.Paths.Socket == "" {
		c.Paths.Socket = filepath.Join(c.Paths.DataDir, "courier.sock")
	}
	if c.Paths.Socket, err = expandPath(c.Paths.Socket); err != nil {
		return fmt.Errorf("paths.socket: %w", err)
	}
	return nil
}

func (c *Config) normalizeSync() {
	if c.Sync.FlushInterval <= 0 {
		c.Sync.FlushInterval = defaultFlushInterval
	}
	if c.Sync.Workers <= 0 {
		c.Sync.Workers = defaultSyncWorkers
	}
	if c.Sync.RequestTimeout <= 0 {
		c.Sync.RequestTimeout = defaultRequestTimeout
	}
	if c.Sync.BackoffInitial < 0 {
		c.Sync.BackoffInitial = 0
	}
	if c.Sync.BackoffMax <= 0 {
		c.Sync.BackoffMax = defaultBackoffMax
	}
	if c.Sync.FinalFlushTimeout <= 0 {
		c.Sync.FinalFlushTimeout = defaultFinalFlushTimeout
	}
	if c.Sync.DefaultMaxRetries < 0 {
		c.Sync.DefaultMaxRetries = defaultMaxRetries
	}
}

func (c *Config) normalizeConnectivity() {
	c.Connectivity.ProbeURL = strings.TrimSpace(c.Connectivity.ProbeURL)
	if c.Connectivity.ProbeTimeout <= 0 {
		c.Connectivity.ProbeTimeout = defaultProbeTimeout
	}
	if c.Connectivity.PollInterval <= 0 {
		c.Connectivity.PollInterval = defaultPollInterval
	}
	if c.Connectivity.Debounce < 0 {
		c.Connectivity.Debounce = defaultDebounce
	}
}

func (c *Config) normalizeCache() {
	if c.Cache.DefaultTTLHours <= 0 {
		c.Cache.DefaultTTLHours = defaultCacheTTLHours
	}
	if c.Cache.SweepInterval <= 0 {
		c.Cache.SweepInterval = defaultCacheSweepInterval
	}
	if c.Cache.QuotaMiB < 0 {
		c.Cache.QuotaMiB = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("COURIER_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	if c.Notifications.FlushMinDelivered < 1 {
		c.Notifications.FlushMinDelivered = defaultNotifyFlushMinDelivered
	}
	if c.Notifications.DedupWindowSeconds < 0 {
		c.Notifications.DedupWindowSeconds = defaultNotifyDedupWindow
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
