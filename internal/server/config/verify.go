package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/yndnr/snapql/internal/telemetry/logger"
)

// Verify validates the configuration. Every problem found is reported.
func Verify(cfg *ServerConfig) error {
	return errors.Join(
		verifyServer(&cfg.Server),
		verifyIntercept(&cfg.Intercept),
		verifySnapshot(&cfg.Snapshot),
		verifyCache(&cfg.Cache),
		verifyLog(&cfg.Log),
	)
}

func verifyServer(cfg *ServerSection) error {
	var errs []error

	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		errs = append(errs, fmt.Errorf("server.addr: %w", err))
	}
	if !strings.HasPrefix(cfg.NotifyPath, "/") {
		errs = append(errs, errors.New("server.notify_path must start with /"))
	}
	if cfg.MetricsPath != "" && !strings.HasPrefix(cfg.MetricsPath, "/") {
		errs = append(errs, errors.New("server.metrics_path must start with /"))
	}
	if cfg.MetricsPath != "" && cfg.MetricsPath == cfg.NotifyPath {
		errs = append(errs, errors.New("server.metrics_path and server.notify_path must differ"))
	}
	if cfg.NotifyPingInterval < 0 {
		errs = append(errs, errors.New("server.notify_ping_interval must not be negative"))
	}
	if cfg.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must not be negative"))
	}
	for _, entry := range cfg.AllowList {
		if net.ParseIP(entry) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(entry); err != nil {
			errs = append(errs, fmt.Errorf("server.allow_list: invalid entry %q", entry))
		}
	}

	// TLS needs both halves
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		errs = append(errs, errors.New("server.tls_cert_file and server.tls_key_file must be set together"))
	}
	for _, f := range []string{cfg.TLSCertFile, cfg.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			errs = append(errs, fmt.Errorf("server tls: %w", err))
		}
	}

	return errors.Join(errs...)
}

func verifyIntercept(cfg *InterceptSection) error {
	var errs []error

	if !strings.HasPrefix(cfg.BasePath, "/") {
		errs = append(errs, errors.New("intercept.base_path must be an absolute path"))
	}
	if cfg.Origin != "" {
		u, err := url.Parse(cfg.Origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("intercept.origin: %q is not scheme://host", cfg.Origin))
		}
	}
	if cfg.Upstream != "" && cfg.StaticDir != "" {
		errs = append(errs, errors.New("intercept.upstream and intercept.static_dir are mutually exclusive"))
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("intercept.max_body_bytes must not be negative"))
	}

	return errors.Join(errs...)
}

func verifySnapshot(cfg *SnapshotSection) error {
	var errs []error

	if cfg.Path == "" {
		errs = append(errs, errors.New("snapshot.path is required"))
	}
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("snapshot.base_url: %w", err))
		} else {
			switch u.Scheme {
			case "http", "https", "file":
			default:
				errs = append(errs, fmt.Errorf("snapshot.base_url: unsupported scheme %q", u.Scheme))
			}
		}
	}
	if cfg.Timeout < 0 {
		errs = append(errs, errors.New("snapshot.timeout must not be negative"))
	}
	if cfg.MaxBytes < 0 {
		errs = append(errs, errors.New("snapshot.max_bytes must not be negative"))
	}
	if cfg.TLSCAFile != "" {
		if _, err := os.Stat(cfg.TLSCAFile); err != nil {
			errs = append(errs, fmt.Errorf("snapshot.tls_ca_file: %w", err))
		}
	}

	return errors.Join(errs...)
}

func verifyCache(cfg *CacheSection) error {
	if !cfg.Enabled || cfg.InMemory {
		return nil
	}
	if cfg.Dir == "" {
		return errors.New("cache.dir is required unless cache.in_memory is set")
	}

	// Check if cache directory exists or can be created
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return fmt.Errorf("cannot create cache directory: %w", err)
	}
	if cfg.Badger.GCThreshold < 0 || cfg.Badger.GCThreshold > 1 {
		return errors.New("cache.badger.gc_threshold must be between 0 and 1")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Format {
	case "json", "text":
		return nil
	default:
		return fmt.Errorf("log.format: unsupported format %q", cfg.Format)
	}
}
