package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
)

// PassThroughConfig selects what serves requests that are not intercepted.
type PassThroughConfig struct {
	// Upstream is the base URL of a backend to proxy to.
	Upstream string
	// StaticDir is a directory of static files, used when Upstream is empty.
	StaticDir string
}

// NewPassThrough builds the handler for requests that are not intercepted:
// a reverse proxy to the upstream, a file server for the static directory,
// or a plain 404 when neither is configured.
func NewPassThrough(cfg PassThroughConfig, logger *slog.Logger) (http.Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch {
	case cfg.Upstream != "":
		target, err := url.Parse(cfg.Upstream)
		if err != nil {
			return nil, fmt.Errorf("parse upstream: %w", err)
		}
		if target.Scheme != "http" && target.Scheme != "https" {
			return nil, fmt.Errorf("upstream %q must be an http or https URL", cfg.Upstream)
		}
		return &httputil.ReverseProxy{
			Rewrite: func(pr *httputil.ProxyRequest) {
				pr.SetURL(target)
				pr.SetXForwarded()
			},
			ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
				logger.WarnContext(r.Context(), "upstream request failed",
					"upstream", target.Host,
					"path", r.URL.Path,
					"error", err)
				w.WriteHeader(http.StatusBadGateway)
			},
		}, nil

	case cfg.StaticDir != "":
		info, err := os.Stat(cfg.StaticDir)
		if err != nil {
			return nil, fmt.Errorf("static dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("static dir %q is not a directory", cfg.StaticDir)
		}
		return http.FileServer(http.Dir(cfg.StaticDir)), nil

	default:
		return http.NotFoundHandler(), nil
	}
}
