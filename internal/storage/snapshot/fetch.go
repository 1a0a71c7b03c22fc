package snapshot

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/snapql/internal/core/domain"
	"github.com/yndnr/snapql/internal/storage"
	"github.com/yndnr/snapql/internal/telemetry/metric"
)

// Cache stores fetched payloads keyed by resource URL.
type Cache interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key, value []byte) error
}

// Pruner is implemented by caches that can drop superseded versions.
// After a new version is stored, every other key of the same resource
// is pruned.
type Pruner interface {
	Prune(ctx context.Context, prefix, keep []byte) (int, error)
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	// BaseURL is the location Path is resolved against.
	BaseURL string

	// Path is the snapshot resource, relative to BaseURL.
	Path string

	// Version is appended as the "v" query parameter. Empty omits it.
	Version string

	// Timeout bounds a single network fetch. Zero means no timeout.
	Timeout time.Duration

	// MaxBytes bounds the payload size. Zero means unlimited.
	MaxBytes int64

	// TLS overrides the client TLS settings, e.g. to trust a private CA.
	TLS *tls.Config
}

// Fetcher retrieves the snapshot resource, cache first.
type Fetcher struct {
	url      string
	family   string // url without the version tag
	client   *http.Client
	cache    Cache
	maxBytes int64
	metrics  *metric.Registry
	logger   *slog.Logger
}

// NewFetcher creates a Fetcher. cache and metrics may be nil.
func NewFetcher(cfg FetcherConfig, cache Cache, metrics *metric.Registry, logger *slog.Logger) (*Fetcher, error) {
	resource, err := ResourceURL(cfg.BaseURL, cfg.Path, cfg.Version)
	if err != nil {
		return nil, err
	}
	family, err := ResourceURL(cfg.BaseURL, cfg.Path, "")
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))
	if cfg.TLS != nil {
		transport.TLSClientConfig = cfg.TLS
	}

	return &Fetcher{
		url:      resource,
		family:   family,
		client:   &http.Client{Transport: transport, Timeout: cfg.Timeout},
		cache:    cache,
		maxBytes: cfg.MaxBytes,
		metrics:  metrics,
		logger:   logger.With("component", "snapshot", "url", resource),
	}, nil
}

// ResourceURL resolves path against base and tags it with version.
func ResourceURL(base, path, version string) (string, error) {
	if path == "" {
		return "", errors.New("snapshot: path is required")
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("snapshot: parse base url: %w", err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("snapshot: parse path: %w", err)
	}

	u := baseURL.ResolveReference(ref)
	if u.Scheme == "" {
		return "", fmt.Errorf("snapshot: resource %q is not absolute", u.String())
	}
	if version != "" {
		q := u.Query()
		q.Set("v", version)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// URL returns the resolved resource URL.
func (f *Fetcher) URL() string {
	return f.url
}

// Fetch returns the snapshot payload.
//
// A cached copy for the exact resource URL is returned without network
// I/O. Otherwise the resource is downloaded; a non-2xx answer fails with
// domain.ErrSnapshotFetch carrying the status and reason. Successful
// downloads are written back to the cache.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	if data, ok := f.fromCache(ctx); ok {
		f.metrics.ObserveSnapshotFetch(metric.SourceCache, len(data), nil)
		return data, nil
	}

	data, err := f.download(ctx)
	f.metrics.ObserveSnapshotFetch(metric.SourceNetwork, len(data), err)
	if err != nil {
		return nil, err
	}

	f.toCache(ctx, data)
	return data, nil
}

func (f *Fetcher) cacheKey() []byte {
	return []byte("snapshot:" + f.url)
}

func (f *Fetcher) fromCache(ctx context.Context) ([]byte, bool) {
	if f.cache == nil {
		return nil, false
	}

	data, err := f.cache.Get(ctx, f.cacheKey())
	switch {
	case err == nil:
		f.logger.Debug("snapshot cache hit", "bytes", len(data))
		return data, true
	case errors.Is(err, storage.ErrKeyNotFound):
		f.logger.Debug("snapshot cache miss")
	default:
		f.logger.Warn("snapshot cache read failed", "error", err)
	}
	return nil, false
}

func (f *Fetcher) toCache(ctx context.Context, data []byte) {
	if f.cache == nil {
		return
	}
	key := f.cacheKey()
	if err := f.cache.Set(ctx, key, data); err != nil {
		f.logger.Warn("snapshot cache write failed", "error", err)
		return
	}
	if p, ok := f.cache.(Pruner); ok {
		n, err := p.Prune(ctx, []byte("snapshot:"+f.family), key)
		if err != nil {
			f.logger.Warn("snapshot cache prune failed", "error", err)
		} else if n > 0 {
			f.logger.Info("pruned superseded snapshots", "entries", n)
		}
	}
}

func (f *Fetcher) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, domain.ErrSnapshotFetch.WithCause(err)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, domain.ErrSnapshotFetch.WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, domain.NewFetchStatusError(resp.StatusCode, statusReason(resp))
	}

	body := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, domain.ErrSnapshotFetch.WithCause(fmt.Errorf("read body: %w", err))
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, domain.ErrSnapshotFetch.WithDetails("payload exceeds " + strconv.FormatInt(f.maxBytes, 10) + " bytes")
	}

	f.logger.Info("snapshot downloaded", "bytes", len(data), "elapsed", time.Since(start))
	return data, nil
}

// statusReason extracts the reason phrase of a response, "Not Found" for
// "404 Not Found".
func statusReason(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	if reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, code)); reason != "" {
		return reason
	}
	return http.StatusText(resp.StatusCode)
}
