package config

import "time"

// ServerConfig is the root configuration for snapql-server.
type ServerConfig struct {
	Server    ServerSection    `koanf:"server"`
	Intercept InterceptSection `koanf:"intercept"`
	Snapshot  SnapshotSection  `koanf:"snapshot"`
	Cache     CacheSection     `koanf:"cache"`
	Policy    PolicySection    `koanf:"policy"`
	Log       LogSection       `koanf:"log"`
}

// ServerSection configures the listener and the endpoints mounted
// next to the intercepted API.
type ServerSection struct {
	Addr string `koanf:"addr"`

	// NotifyPath is where clients open the notification WebSocket.
	NotifyPath string `koanf:"notify_path"`

	// NotifyPingInterval is the keep-alive period. Zero disables pings.
	NotifyPingInterval time.Duration `koanf:"notify_ping_interval"`

	// NotifyAllowedOrigins lists extra origins allowed to open the
	// notification socket. Same-host origins are always allowed.
	NotifyAllowedOrigins []string `koanf:"notify_allowed_origins"`

	// MetricsPath exposes Prometheus metrics. Empty disables the endpoint.
	MetricsPath string `koanf:"metrics_path"`

	// AllowList restricts clients by IP or CIDR. Empty allows everyone.
	AllowList []string `koanf:"allow_list"`

	// CORSAllowedOrigins enables CORS headers on the API routes.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// RateLimit is the per-client request budget per second. Zero disables it.
	RateLimit int `koanf:"rate_limit"`

	Audit       bool   `koanf:"audit"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// InterceptSection describes the application scope being intercepted.
type InterceptSection struct {
	// BasePath is the scope that api, login and update resolve against.
	BasePath string `koanf:"base_path"`

	// Origin restricts interception to one scheme://host. Empty matches any.
	Origin string `koanf:"origin"`

	// Upstream receives pass-through requests. Mutually exclusive with StaticDir.
	Upstream string `koanf:"upstream"`

	// StaticDir serves pass-through requests from disk.
	StaticDir string `koanf:"static_dir"`

	MaxBodyBytes int64 `koanf:"max_body_bytes"`
}

// SnapshotSection locates and opens the database snapshot.
type SnapshotSection struct {
	BaseURL  string        `koanf:"base_url"`
	Path     string        `koanf:"path"`
	Version  string        `koanf:"version"`
	Timeout  time.Duration `koanf:"timeout"`
	MaxBytes int64         `koanf:"max_bytes"`

	// Passphrase unseals sealed snapshots.
	Passphrase string `koanf:"passphrase"`

	// TempDir holds the unpacked database image.
	TempDir string `koanf:"temp_dir"`

	// TLSCAFile adds a CA bundle for fetching over HTTPS.
	TLSCAFile string `koanf:"tls_ca_file"`
}

// CacheSection configures the local snapshot cache.
type CacheSection struct {
	Enabled  bool          `koanf:"enabled"`
	Dir      string        `koanf:"dir"`
	InMemory bool          `koanf:"in_memory"`
	TTL      time.Duration `koanf:"ttl"`

	Badger BadgerSection `koanf:"badger"`
}

// BadgerSection tunes the Badger store behind the cache.
type BadgerSection struct {
	GCInterval  time.Duration `koanf:"gc_interval"`
	GCThreshold float64       `koanf:"gc_threshold"`
	CacheSize   int64         `koanf:"cache_size"`
	SyncWrites  bool          `koanf:"sync_writes"`
}

// PolicySection controls which queries are rejected.
type PolicySection struct {
	DeniedTables []string `koanf:"denied_tables"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
