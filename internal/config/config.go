package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and socket configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	Socket  string `toml:"socket"`
}

// Sync contains configuration for the delivery engine.
type Sync struct {
	FlushInterval     int `toml:"flush_interval"`
	Workers           int `toml:"workers"`
	RequestTimeout    int `toml:"request_timeout"`
	BackoffInitial    int `toml:"backoff_initial"`
	BackoffMax        int `toml:"backoff_max"`
	FinalFlushTimeout int `toml:"final_flush_timeout"`
	DefaultMaxRetries int `toml:"default_max_retries"`
}

// Connectivity contains configuration for online/offline detection.
type Connectivity struct {
	ProbeURL     string `toml:"probe_url"`
	ProbeTimeout int    `toml:"probe_timeout"`
	PollInterval int    `toml:"poll_interval"`
	Debounce     int    `toml:"debounce"`
	Netlink      bool   `toml:"netlink"`
}

// Cache contains configuration for the TTL data cache.
type Cache struct {
	DefaultTTLHours int `toml:"default_ttl_hours"`
	SweepInterval   int `toml:"sweep_interval"`
	QuotaMiB        int `toml:"quota_mib"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic          string `toml:"ntfy_topic"`
	RequestTimeout     int    `toml:"request_timeout"`
	Drops              bool   `toml:"drops"`
	Connectivity       bool   `toml:"connectivity"`
	Degraded           bool   `toml:"degraded"`
	FlushSummaries     bool   `toml:"flush_summaries"`
	FlushMinDelivered  int    `toml:"flush_min_delivered"`
	DedupWindowSeconds int    `toml:"dedup_window_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for courier.
//
// Configuration sections by subsystem:
//   - Paths: data directory, log directory, and control socket
//   - Sync: flush cadence, worker pool size, per-request timeout, backoff
//   - Connectivity: probe source, poll interval, transition debounce
//   - Cache: default TTL, sweep cadence, advisory quota
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Sync          Sync          `toml:"sync"`
	Connectivity  Connectivity  `toml:"connectivity"`
	Cache         Cache         `toml:"cache"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/courier/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/courier/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("courier.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if socketDir := filepath.Dir(c.Paths.Socket); strings.TrimSpace(socketDir) != "" {
		if err := os.MkdirAll(socketDir, 0o755); err != nil {
			return fmt.Errorf("create socket directory %q: %w", socketDir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the SQLite store inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "courier.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
