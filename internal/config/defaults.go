package config

const (
	defaultDataDir                 = "~/.local/share/courier"
	defaultLogDir                  = "~/.local/share/courier/logs"
	defaultLogRetentionDays        = 30
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultFlushInterval           = 30
	defaultSyncWorkers             = 2
	defaultRequestTimeout          = 30
	defaultBackoffMax              = 300
	defaultFinalFlushTimeout       = 5
	defaultMaxRetries              = 5
	defaultProbeTimeout            = 5
	defaultPollInterval            = 15
	defaultDebounce                = 2
	defaultCacheTTLHours           = 24
	defaultCacheSweepInterval      = 3600
	defaultCacheQuotaMiB           = 512
	defaultNotifyRequestTimeout    = 10
	defaultNotifyFlushMinDelivered = 2
	defaultNotifyDedupWindow       = 600
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Sync: Sync{
			FlushInterval:     defaultFlushInterval,
			Workers:           defaultSyncWorkers,
			RequestTimeout:    defaultRequestTimeout,
			BackoffInitial:    0,
			BackoffMax:        defaultBackoffMax,
			FinalFlushTimeout: defaultFinalFlushTimeout,
			DefaultMaxRetries: defaultMaxRetries,
		},
		Connectivity: Connectivity{
			ProbeTimeout: defaultProbeTimeout,
			PollInterval: defaultPollInterval,
			Debounce:     defaultDebounce,
			Netlink:      true,
		},
		Cache: Cache{
			DefaultTTLHours: defaultCacheTTLHours,
			SweepInterval:   defaultCacheSweepInterval,
			QuotaMiB:        defaultCacheQuotaMiB,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyRequestTimeout,
			Drops:              true,
			Connectivity:       true,
			Degraded:           true,
			FlushSummaries:     true,
			FlushMinDelivered:  defaultNotifyFlushMinDelivered,
			DedupWindowSeconds: defaultNotifyDedupWindow,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
