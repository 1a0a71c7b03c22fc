// Package logger provides structured logging for snapql.
//
// It wraps log/slog:
//
//   - logger.go: handler construction and a process-wide dynamic level
//   - context.go: request and client IDs carried in context.Context
//   - redact.go: masking of secrets in attributes and URLs
//
// Components receive a *slog.Logger (see Logger.Slog). Request-scoped code
// uses L(ctx), which adds the request ID and client ID when present.
package logger
