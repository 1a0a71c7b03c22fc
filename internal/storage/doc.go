// Package storage provides the persistent snapshot cache for snapql.
//
// Fetched snapshot payloads are kept in an embedded key-value engine,
// keyed by their versioned resource URL, so a restarted server can load
// its database without touching the network. Bumping the snapshot version
// changes the key and therefore misses the cache.
//
// The only engine implementation is Badger v3. It can run on disk or, for
// tests and ephemeral deployments, entirely in memory.
//
// Subpackages:
//
//   - snapshot: resource fetching and sealed (encrypted) snapshots
//   - sqlengine: read-only SQLite engine built from snapshot bytes
package storage
