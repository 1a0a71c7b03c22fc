// Package main provides the entry point for snapql-cli.
//
// The CLI talks to a running snapql-server:
//
//   - query: run SQL against the snapshot
//   - ready: check whether the snapshot is loaded
//   - watch: follow DB_READY / DB_ERROR notifications
//   - shell: interactive SQL session
//   - profile: manage saved servers in ~/.snapql/cli.yaml
//   - seal / unseal: encrypt snapshots for publishing
//
// Usage:
//
//	snapql-cli -s localhost:5080 query "SELECT * FROM posts WHERE id = ?" 1
//	snapql-cli -o json ready
package main
