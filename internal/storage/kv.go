package storage

import "time"

// KVStats is a point-in-time view of the cache.
type KVStats struct {
	TotalSize    uint64
	LSMSize      uint64
	ValueLogSize uint64

	// LastGCTime is the last value-log GC run, in Unix milliseconds.
	LastGCTime int64

	// GCBytesReclaimed is an estimate; Badger does not report exact sizes.
	GCBytesReclaimed uint64

	// Pruned counts entries removed by Prune since the cache opened.
	Pruned uint64
}

// KVConfig configures the snapshot cache.
type KVConfig struct {
	// Dir is the storage directory. Ignored when InMemory is set.
	Dir      string
	InMemory bool

	// TTL bounds the lifetime of every entry. Zero keeps entries forever.
	TTL time.Duration

	Badger BadgerConfig
}

// BadgerConfig carries the Badger tuning knobs exposed in cache.badger.
type BadgerConfig struct {
	GCInterval  time.Duration
	GCThreshold float64 // discard ratio, 0..1

	CacheSize        int64 // block cache bytes
	ValueLogFileSize int64
	SyncWrites       bool
}

// DefaultKVConfig returns an on-disk configuration rooted at dir.
func DefaultKVConfig(dir string) KVConfig {
	return KVConfig{Dir: dir, Badger: DefaultBadgerConfig()}
}

// InMemoryKVConfig returns a configuration that never touches the disk.
func InMemoryKVConfig() KVConfig {
	return KVConfig{InMemory: true, Badger: DefaultBadgerConfig()}
}

func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:       10 * time.Minute,
		GCThreshold:      0.5,
		CacheSize:        64 << 20,
		ValueLogFileSize: 256 << 20,
	}
}
