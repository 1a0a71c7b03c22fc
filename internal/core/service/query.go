package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yndnr/snapql/internal/core/domain"
	"github.com/yndnr/snapql/internal/telemetry/metric"
)

// EngineProvider hands out the loaded engine. Lifecycle implements it.
type EngineProvider interface {
	EnsureReady(ctx context.Context) (domain.Engine, error)
}

// QueryService answers SQL requests against the snapshot.
type QueryService struct {
	engines  EngineProvider
	denylist *Denylist
	metrics  *metric.Registry
	logger   *slog.Logger
}

// NewQueryService creates a QueryService. A nil denylist blocks nothing.
func NewQueryService(engines EngineProvider, denylist *Denylist, metrics *metric.Registry, logger *slog.Logger) *QueryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{
		engines:  engines,
		denylist: denylist,
		metrics:  metrics,
		logger:   logger.With("component", "query"),
	}
}

// ============================================================================
// Execute
// ============================================================================

// Execute turns a raw request body into a complete answer.
//
// It never returns nil: every failure is rendered as an error envelope.
func (s *QueryService) Execute(ctx context.Context, body []byte) *domain.Envelope {
	start := time.Now()
	env, rows := s.execute(ctx, body)
	s.metrics.ObserveQuery(env.Status, rows, time.Since(start))
	return env
}

func (s *QueryService) execute(ctx context.Context, body []byte) (*domain.Envelope, int) {
	// 1. Decode
	req, err := domain.DecodeQueryRequest(body)
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		return domain.ErrorEnvelope(http.StatusBadRequest, "Bad Request", ""), 0
	case err != nil:
		return s.internalError(ctx, err), 0
	}

	// 2. Policy
	if s.denylist.Blocks(req.Query) {
		s.logger.InfoContext(ctx, "query rejected by denylist")
		return domain.ErrorEnvelope(http.StatusForbidden, domain.ErrForbiddenQuery.Message, ""), 0
	}

	// 3. Run
	rows, err := s.Run(ctx, req)
	if err != nil {
		return s.internalError(ctx, err), 0
	}

	// 4. Encode
	payload, err := json.Marshal(rows)
	if err != nil {
		return s.internalError(ctx, domain.ErrExecution.WithCause(err)), 0
	}
	return &domain.Envelope{Status: http.StatusOK, Body: payload}, len(rows)
}

// Run executes a validated request and collects every row.
// The statement is released on every path.
func (s *QueryService) Run(ctx context.Context, req *domain.QueryRequest) ([]*domain.Row, error) {
	engine, err := s.engines.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}

	stmt, err := engine.Prepare(ctx, req.Query)
	if err != nil {
		return nil, domain.ErrExecution.WithCause(err)
	}
	defer stmt.Close()

	args, err := req.BindValues()
	if err != nil {
		return nil, domain.ErrExecution.WithCause(err)
	}
	if err := stmt.Bind(args); err != nil {
		return nil, domain.ErrExecution.WithCause(err)
	}

	rows := make([]*domain.Row, 0)
	for {
		ok, err := stmt.Step()
		if err != nil {
			return nil, domain.ErrExecution.WithCause(err)
		}
		if !ok {
			break
		}
		row, err := stmt.Row()
		if err != nil {
			return nil, domain.ErrExecution.WithCause(err)
		}
		rows = append(rows, row)
	}
	// "params" values are masked by the logger's redaction.
	s.logger.DebugContext(ctx, "query executed", "sql", req.Query, "params", req.Data, "rows", len(rows))
	return rows, nil
}

func (s *QueryService) internalError(ctx context.Context, err error) *domain.Envelope {
	details := errorDetails(err)
	s.logger.WarnContext(ctx, "query failed", "code", domain.GetErrorCode(err), "error", details)
	return domain.ErrorEnvelope(http.StatusInternalServerError, "Internal Server Error", details)
}

// errorDetails renders err for the "details" field. Execution errors
// already answer with "Internal Server Error", so only their cause is shown.
func errorDetails(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) && de.Code == domain.ErrExecution.Code && de.Details == "" && de.Cause != nil {
		return domain.Describe(de.Cause)
	}
	return domain.Describe(err)
}
