package config

import "time"

// Default configuration values.
const (
	DefaultAddr               = "127.0.0.1:5080"
	DefaultNotifyPath         = "/__snapql/ws"
	DefaultNotifyPingInterval = 30 * time.Second
	DefaultMetricsPath        = "/__snapql/metrics"
	DefaultRateLimit          = 1000
	DefaultShutdownTimeout    = 15 * time.Second

	DefaultBasePath     = "/"
	DefaultMaxBodyBytes = 1 << 20

	DefaultSnapshotPath     = "assets/db/app.sqlite"
	DefaultSnapshotVersion  = "2"
	DefaultSnapshotTimeout  = 30 * time.Second
	DefaultSnapshotMaxBytes = 512 << 20

	DefaultCacheDir = "/var/lib/snapql/cache"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// DefaultDeniedTables lists the tables queries may never name.
var DefaultDeniedTables = []string{"users"}

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Addr:               DefaultAddr,
			NotifyPath:         DefaultNotifyPath,
			NotifyPingInterval: DefaultNotifyPingInterval,
			MetricsPath:        DefaultMetricsPath,
			RateLimit:          DefaultRateLimit,
			Audit:              true,
			ShutdownTimeout:    DefaultShutdownTimeout,
		},
		Intercept: InterceptSection{
			BasePath:     DefaultBasePath,
			MaxBodyBytes: DefaultMaxBodyBytes,
		},
		Snapshot: SnapshotSection{
			Path:     DefaultSnapshotPath,
			Version:  DefaultSnapshotVersion,
			Timeout:  DefaultSnapshotTimeout,
			MaxBytes: DefaultSnapshotMaxBytes,
		},
		Cache: CacheSection{
			Enabled: false,
			Dir:     DefaultCacheDir,
			Badger: BadgerSection{
				GCInterval:  10 * time.Minute,
				GCThreshold: 0.5,
				CacheSize:   64 << 20,
			},
		},
		Policy: PolicySection{
			DeniedTables: append([]string(nil), DefaultDeniedTables...),
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
