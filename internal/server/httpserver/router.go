package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/snapql/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Intercept serves every path not claimed below.
	Intercept http.Handler

	// Notify serves the page notification channel at NotifyPath.
	Notify     http.Handler
	NotifyPath string

	// MetricsPath serves Prometheus metrics from Metrics. Empty disables it.
	MetricsPath string
	Metrics     *metric.Registry

	// Logger for request logging.
	Logger *slog.Logger

	// AllowList is the IP/CIDR allowlist for all endpoints (empty = no restriction).
	AllowList []string

	// CORSAllowedOrigins is the list of allowed CORS origins (empty = none).
	CORSAllowedOrigins []string

	// RateLimit is the per-IP rate limit in requests/second (0 = off).
	RateLimit int

	// EnableAudit enables audit logging for all requests.
	EnableAudit bool
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Order: Recover -> RequestID -> NetworkACL -> RateLimit -> Audit -> CORS -> Handler
	base := []Middleware{
		Recover(logger),
		RequestID(),
	}
	if len(cfg.AllowList) > 0 {
		base = append(base, NetworkACL(&NetworkACLConfig{
			AllowList: cfg.AllowList,
			Logger:    logger,
		}))
	}

	api := append([]Middleware{}, base...)
	if cfg.RateLimit > 0 {
		api = append(api, RateLimit(cfg.RateLimit, cfg.Metrics))
	}
	if cfg.EnableAudit {
		api = append(api, Audit(logger))
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		api = append(api, CORS(cfg.CORSAllowedOrigins))
	}

	mux := http.NewServeMux()

	if cfg.Intercept != nil {
		mux.Handle("/", Chain(cfg.Intercept, api...))
	}

	// Long-lived connections skip the rate limiter and the audit log.
	if cfg.Notify != nil && cfg.NotifyPath != "" {
		mux.Handle("GET "+cfg.NotifyPath, Chain(cfg.Notify, base...))
	}

	if cfg.MetricsPath != "" && cfg.Metrics != nil {
		mux.Handle("GET "+cfg.MetricsPath, Chain(cfg.Metrics.Handler(), base...))
	}

	return mux
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		NotifyPath:  "/__snapql/ws",
		MetricsPath: "/__snapql/metrics",
		RateLimit:   1000, // 1000 requests/second per IP
		EnableAudit: true,
	}
}
