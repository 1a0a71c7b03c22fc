package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/yndnr/snapql/internal/core/domain"
	"github.com/yndnr/snapql/internal/telemetry/logger"
	"github.com/yndnr/snapql/internal/telemetry/metric"
)

// DefaultMaxBodyBytes bounds a query request body.
const DefaultMaxBodyBytes = 1 << 20

// Readiness reports on the database lifecycle. service.Lifecycle implements it.
type Readiness interface {
	EnsureReady(ctx context.Context) (domain.Engine, error)
	Ready() bool
}

// QueryExecutor answers a raw query body. service.QueryService implements it.
type QueryExecutor interface {
	Execute(ctx context.Context, body []byte) *domain.Envelope
}

// Config holds the handler's collaborators.
type Config struct {
	Routes      Routes
	Readiness   Readiness
	Queries     QueryExecutor
	PassThrough http.Handler

	// MaxBodyBytes bounds a query body. Zero selects DefaultMaxBodyBytes.
	MaxBodyBytes int64

	Metrics *metric.Registry
	Logger  *slog.Logger
}

// Handler intercepts API requests and passes everything else through.
type Handler struct {
	routes      Routes
	readiness   Readiness
	queries     QueryExecutor
	passThrough http.Handler
	maxBody     int64
	metrics     *metric.Registry
	logger      *slog.Logger
}

// New creates a Handler.
func New(cfg Config) *Handler {
	h := &Handler{
		routes:      cfg.Routes,
		readiness:   cfg.Readiness,
		queries:     cfg.Queries,
		passThrough: cfg.PassThrough,
		maxBody:     cfg.MaxBodyBytes,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
	if h.passThrough == nil {
		h.passThrough = http.NotFoundHandler()
	}
	if h.maxBody <= 0 {
		h.maxBody = DefaultMaxBodyBytes
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	branch := Classify(RequestFrom(r), h.routes)

	var status int
	switch branch {
	case BranchDiagnostic:
		status = h.handleDiagnostic(w, r)
	case BranchForbidden:
		status = h.handleForbidden(w, r)
	case BranchQuery:
		status = h.handleQuery(w, r)
	default:
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.passThrough.ServeHTTP(rec, r)
		status = rec.status
	}

	h.metrics.ObserveRequest(branch.String(), status, time.Since(start))
}

// handleDiagnostic handles GET <api>. Load errors are not reported.
func (h *Handler) handleDiagnostic(w http.ResponseWriter, r *http.Request) int {
	_, _ = h.readiness.EnsureReady(r.Context())
	return h.writeEnvelope(w, r, domain.NewEnvelope(http.StatusOK, domain.ReadyBody{Ready: h.readiness.Ready()}))
}

// handleForbidden handles the login and update endpoints. The body is
// never read.
func (h *Handler) handleForbidden(w http.ResponseWriter, r *http.Request) int {
	h.logger.InfoContext(r.Context(), "write endpoint refused",
		"request_id", logger.RequestIDFromContext(r.Context()),
		"method", r.Method,
		"path", r.URL.Path)
	w.Header().Set("X-Error-Code", domain.ErrForbiddenEndpoint.Code)
	env := domain.ErrorEnvelope(http.StatusForbidden, domain.ErrForbiddenEndpoint.Message, "")
	return h.writeEnvelope(w, r, env)
}

// handleQuery handles POST <api>.
func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) int {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		h.logger.WarnContext(r.Context(), "read query body failed",
			"request_id", logger.RequestIDFromContext(r.Context()),
			"error", err)
		env := domain.ErrorEnvelope(http.StatusInternalServerError, "Internal Server Error", err.Error())
		return h.writeEnvelope(w, r, env)
	}
	return h.writeEnvelope(w, r, h.queries.Execute(r.Context(), body))
}

// writeEnvelope writes a prepared answer and returns its status.
func (h *Handler) writeEnvelope(w http.ResponseWriter, r *http.Request, env *domain.Envelope) int {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(env.Status)
	if _, err := w.Write(env.Body); err != nil {
		h.logger.DebugContext(r.Context(), "failed to write response", "error", err)
	}
	return env.Status
}

// statusRecorder captures the status written by the pass-through handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusRecorder) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
