package config

import (
	"fmt"

	"github.com/yndnr/snapql/internal/infra/confloader"
)

// Load builds the configuration from defaults, the optional file at
// path and SNAPQL_ environment variables, then verifies it. The loader
// is returned so callers can reload on change.
func Load(path string, opts ...confloader.Option) (*ServerConfig, *confloader.Loader, error) {
	opts = append([]confloader.Option{confloader.WithConfigFile(path)}, opts...)
	l := confloader.NewLoader(opts...)

	cfg := Default()
	if err := l.Load(cfg); err != nil {
		return nil, nil, err
	}
	if err := Verify(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, l, nil
}

// Reload re-reads every source through l into a fresh default config.
func Reload(l *confloader.Loader) (*ServerConfig, error) {
	cfg := Default()
	if err := l.Reload(cfg); err != nil {
		return nil, err
	}
	if err := Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
