package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrClosed      = errors.New("kv engine closed")
)

// BadgerEngine is the snapshot cache backed by Badger v3.
type BadgerEngine struct {
	db     *badger.DB
	cfg    KVConfig
	logger *slog.Logger
	closed atomic.Bool

	lastGC    atomic.Int64 // unix millis
	reclaimed atomic.Uint64
	pruned    atomic.Uint64

	stop chan struct{}
	done chan struct{}
}

// NewBadgerEngine opens the store described by cfg and starts its
// value-log GC loop.
func NewBadgerEngine(cfg KVConfig, logger *slog.Logger) (*BadgerEngine, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = badgerLogger{logger}
	opts.SyncWrites = cfg.Badger.SyncWrites
	if cfg.Badger.CacheSize > 0 {
		opts.BlockCacheSize = cfg.Badger.CacheSize
	}
	if cfg.Badger.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.Badger.ValueLogFileSize
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	e := &BadgerEngine{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go e.gcLoop()

	logger.Info("snapshot cache opened",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"ttl", cfg.TTL)
	return e, nil
}

// Get returns a copy of the value stored under key, or ErrKeyNotFound
// when it is absent or expired.
func (e *BadgerEngine) Get(ctx context.Context, key []byte) ([]byte, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	var value []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrKeyNotFound
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, err
}

// Set stores value under key, expiring it after the configured TTL.
func (e *BadgerEngine) Set(ctx context.Context, key, value []byte) error {
	if e.closed.Load() {
		return ErrClosed
	}

	entry := badger.NewEntry(key, value)
	if e.cfg.TTL > 0 {
		entry = entry.WithTTL(e.cfg.TTL)
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	})
}

func (e *BadgerEngine) Delete(ctx context.Context, key []byte) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Prune deletes every key starting with prefix except keep, and returns
// how many were removed. The fetcher uses it to drop payloads of older
// snapshot versions once a new one is cached.
func (e *BadgerEngine) Prune(ctx context.Context, prefix, keep []byte) (int, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}

	var stale [][]byte
	err := e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if k := it.Item().Key(); !bytes.Equal(k, keep) {
				stale = append(stale, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil || len(stale) == 0 {
		return 0, err
	}

	wb := e.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range stale {
		if err := wb.Delete(k); err != nil {
			return 0, fmt.Errorf("prune: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}

	e.pruned.Add(uint64(len(stale)))
	e.logger.Debug("snapshot cache pruned", "entries", len(stale))
	return len(stale), nil
}

// GC rewrites value-log files until Badger reports nothing left to
// reclaim. In-memory stores have no value log and return at once.
func (e *BadgerEngine) GC(ctx context.Context) (uint64, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}

	var reclaimed uint64
	for ctx.Err() == nil {
		err := e.db.RunValueLogGC(e.cfg.Badger.GCThreshold)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			break
		}
		if err != nil {
			return reclaimed, fmt.Errorf("gc: %w", err)
		}
		// Badger does not report sizes; count one value-log file.
		reclaimed += uint64(e.valueLogFileSize())
	}

	e.lastGC.Store(time.Now().UnixMilli())
	e.reclaimed.Add(reclaimed)
	return reclaimed, nil
}

func (e *BadgerEngine) valueLogFileSize() int64 {
	if n := e.cfg.Badger.ValueLogFileSize; n > 0 {
		return n
	}
	return 1 << 20
}

// Stats reports current sizes and GC progress.
func (e *BadgerEngine) Stats(ctx context.Context) (*KVStats, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	lsm, vlog := e.db.Size()
	return &KVStats{
		TotalSize:        uint64(lsm + vlog),
		LSMSize:          uint64(lsm),
		ValueLogSize:     uint64(vlog),
		LastGCTime:       e.lastGC.Load(),
		GCBytesReclaimed: e.reclaimed.Load(),
		Pruned:           e.pruned.Load(),
	}, nil
}

// Close stops the GC loop and closes the database. Later calls are no-ops.
func (e *BadgerEngine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(e.stop)
	<-e.done

	if err := e.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	e.logger.Info("snapshot cache closed")
	return nil
}

// RegisterMetrics exposes the cache under snapql_cache_*. Values are
// read at scrape time.
func (e *BadgerEngine) RegisterMetrics(reg prometheus.Registerer) *BadgerEngine {
	size := func(pick func(lsm, vlog int64) int64) func() float64 {
		return func() float64 {
			if e.closed.Load() {
				return 0
			}
			return float64(pick(e.db.Size()))
		}
	}
	opts := func(name, help string) prometheus.GaugeOpts {
		return prometheus.GaugeOpts{Namespace: "snapql", Subsystem: "cache", Name: name, Help: help}
	}

	reg.MustRegister(
		prometheus.NewGaugeFunc(opts("lsm_size_bytes", "Snapshot cache LSM tree size in bytes"),
			size(func(lsm, _ int64) int64 { return lsm })),
		prometheus.NewGaugeFunc(opts("value_log_size_bytes", "Snapshot cache value log size in bytes"),
			size(func(_, vlog int64) int64 { return vlog })),
		prometheus.NewGaugeFunc(opts("last_gc_timestamp_seconds", "Unix time of the last snapshot cache GC run"),
			func() float64 { return float64(e.lastGC.Load()) / 1000 }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "snapql", Subsystem: "cache", Name: "gc_bytes_reclaimed_total",
			Help: "Approximate bytes reclaimed by snapshot cache GC",
		}, func() float64 { return float64(e.reclaimed.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "snapql", Subsystem: "cache", Name: "pruned_entries_total",
			Help: "Cached payloads of superseded snapshot versions removed",
		}, func() float64 { return float64(e.pruned.Load()) }),
	)
	return e
}

func (e *BadgerEngine) gcLoop() {
	defer close(e.done)

	interval := e.cfg.Badger.GCInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if n, err := e.GC(ctx); err != nil {
				e.logger.Error("snapshot cache gc failed", "error", err)
			} else if n > 0 {
				e.logger.Debug("snapshot cache gc", "bytes_reclaimed", n)
			}
			cancel()
		case <-e.stop:
			return
		}
	}
}

// badgerLogger routes Badger's logging into slog, demoting its info
// chatter to debug.
type badgerLogger struct{ l *slog.Logger }

func (b badgerLogger) Errorf(f string, args ...any)   { b.l.Error(fmt.Sprintf(f, args...)) }
func (b badgerLogger) Warningf(f string, args ...any) { b.l.Warn(fmt.Sprintf(f, args...)) }
func (b badgerLogger) Infof(f string, args ...any)    { b.l.Debug(fmt.Sprintf(f, args...)) }
func (b badgerLogger) Debugf(f string, args ...any)   { b.l.Debug(fmt.Sprintf(f, args...)) }
