// Package httpserver provides the HTTP server for snapql.
//
// The router mounts three surfaces:
//
//   - the intercepting handler on every path (see package handler)
//   - the page notification WebSocket at the notify path
//   - Prometheus metrics at the metrics path
//
// Features:
//
//   - Middleware chain: Recover, RequestID, NetworkACL, RateLimit, Audit, CORS
//   - Optional TLS
//   - Graceful shutdown with configurable timeout
package httpserver
