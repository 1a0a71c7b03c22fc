// Package service provides the domain services of snapql.
//
// This package contains:
//
//   - Lifecycle: load-once, share-in-flight, retry-on-failure ownership of
//     the database engine
//   - SnapshotLoader: fetch, unseal and open a snapshot
//   - QueryService: validate, filter and execute SQL requests
//   - Notifier: readiness broadcast and PING_DB replies to pages
//
// Services define the interfaces they depend on, so storage and transport
// can be replaced in tests.
package service
