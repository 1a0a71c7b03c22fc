// Package main provides the entry point for snapql-server.
//
// The server intercepts an application's API requests and answers them
// from a read-only SQLite snapshot:
//
//   - <base>api GET reports whether the snapshot is loaded
//   - <base>api POST runs a read query against the snapshot
//   - everything else is proxied upstream or served from a directory
//   - a WebSocket at server.notify_path announces DB_READY / DB_ERROR
//
// Usage:
//
//	snapql-server [flags]
//	snapql-server -config /etc/snapql/server.yaml
//
// Every setting can be overridden with SNAPQL_SECTION__KEY variables,
// e.g. SNAPQL_SNAPSHOT__BASE_URL.
package main
