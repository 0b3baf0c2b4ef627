package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateConnectivity(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSync() error {
	if err := ensurePositiveMap(map[string]int{
		"sync.flush_interval":      c.Sync.FlushInterval,
		"sync.workers":             c.Sync.Workers,
		"sync.request_timeout":     c.Sync.RequestTimeout,
		"sync.final_flush_timeout": c.Sync.FinalFlushTimeout,
	}); err != nil {
		return err
	}
	if c.Sync.BackoffInitial < 0 {
		return errors.New("sync.backoff_initial must be >= 0 (0 disables backoff)")
	}
	if c.Sync.BackoffInitial > 0 && c.Sync.BackoffMax < c.Sync.BackoffInitial {
		return errors.New("sync.backoff_max must be >= sync.backoff_initial")
	}
	if c.Sync.DefaultMaxRetries < 0 {
		return errors.New("sync.default_max_retries must be >= 0")
	}
	return nil
}

func (c *Config) validateConnectivity() error {
	if err := ensurePositiveMap(map[string]int{
		"connectivity.poll_interval": c.Connectivity.PollInterval,
		"connectivity.probe_timeout": c.Connectivity.ProbeTimeout,
	}); err != nil {
		return err
	}
	if c.Connectivity.Debounce < 0 {
		return errors.New("connectivity.debounce must be >= 0")
	}
	if probe := strings.TrimSpace(c.Connectivity.ProbeURL); probe != "" {
		parsed, err := url.Parse(probe)
		if err != nil {
			return fmt.Errorf("connectivity.probe_url is not a valid URL: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return errors.New("connectivity.probe_url must use http or https")
		}
		if parsed.Host == "" {
			return errors.New("connectivity.probe_url must include a host")
		}
	}
	return nil
}

func (c *Config) validateCache() error {
	if err := ensurePositiveMap(map[string]int{
		"cache.default_ttl_hours": c.Cache.DefaultTTLHours,
		"cache.sweep_interval":    c.Cache.SweepInterval,
	}); err != nil {
		return err
	}
	if c.Cache.QuotaMiB < 0 {
		return errors.New("cache.quota_mib must be >= 0 (0 disables the advisory quota)")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
	}
	if c.Notifications.FlushMinDelivered < 1 {
		return errors.New("notifications.flush_min_delivered must be >= 1")
	}
	if c.Notifications.DedupWindowSeconds < 0 {
		return errors.New("notifications.dedup_window_seconds must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
