package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/snapql/internal/core/domain"
	"github.com/yndnr/snapql/internal/telemetry/metric"
)

// ErrLifecycleClosed is returned by EnsureReady after Close.
var ErrLifecycleClosed = errors.New("lifecycle: closed")

// Loader builds a fresh engine. Every call is an independent attempt.
type Loader interface {
	Load(ctx context.Context) (domain.Engine, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (domain.Engine, error)

// Load calls f(ctx).
func (f LoaderFunc) Load(ctx context.Context) (domain.Engine, error) {
	return f(ctx)
}

type loadState int

const (
	stateUnloaded loadState = iota
	stateLoading
	stateReady
)

func (s loadState) String() string {
	switch s {
	case stateLoading:
		return "loading"
	case stateReady:
		return "ready"
	default:
		return "unloaded"
	}
}

// pendingLoad is the shared outcome of one load attempt.
// engine and err are written once, before done is closed.
type pendingLoad struct {
	done    chan struct{}
	engine  domain.Engine
	err     error
	waiters atomic.Int32
}

func (p *pendingLoad) wait(ctx context.Context) (domain.Engine, error) {
	p.waiters.Add(1)
	defer p.waiters.Add(-1)

	select {
	case <-p.done:
		return p.engine, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Lifecycle owns the database engine for one server run.
//
// The engine is loaded at most once at a time: concurrent callers share
// the in-flight attempt. A successful load is kept for the rest of the
// run; a failed load is forgotten so the next caller retries.
type Lifecycle struct {
	loader  Loader
	metrics *metric.Registry
	logger  *slog.Logger

	mu      sync.Mutex
	state   loadState
	engine  domain.Engine
	pending *pendingLoad
	closed  bool

	attempts atomic.Int64
}

// NewLifecycle creates a Lifecycle in the unloaded state.
func NewLifecycle(loader Loader, metrics *metric.Registry, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	metrics.SetLifecycleState(metric.StateUnloaded)
	return &Lifecycle{
		loader:  loader,
		metrics: metrics,
		logger:  logger.With("component", "lifecycle"),
	}
}

// EnsureReady returns the engine, loading it first if needed.
//
// ctx bounds only this caller's wait. The load itself runs detached from
// ctx, so a caller giving up never fails the attempt other callers share.
func (l *Lifecycle) EnsureReady(ctx context.Context) (domain.Engine, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrLifecycleClosed
	}

	var p *pendingLoad
	switch l.state {
	case stateReady:
		engine := l.engine
		l.mu.Unlock()
		return engine, nil
	case stateLoading:
		p = l.pending
	default:
		p = &pendingLoad{done: make(chan struct{})}
		l.pending = p
		l.setState(stateLoading)
		go l.run(context.WithoutCancel(ctx), p)
	}
	l.mu.Unlock()

	return p.wait(ctx)
}

// run performs one load attempt and resolves p.
func (l *Lifecycle) run(ctx context.Context, p *pendingLoad) {
	attempt := l.attempts.Add(1)
	start := time.Now()

	engine, err := l.load(ctx)
	elapsed := time.Since(start)
	l.metrics.ObserveSnapshotLoad(err, elapsed)

	l.mu.Lock()
	l.pending = nil
	switch {
	case err != nil:
		l.setState(stateUnloaded)
	case l.closed:
		// Closed while loading; nobody owns the engine any more.
		engine.Close()
		engine, err = nil, ErrLifecycleClosed
		l.setState(stateUnloaded)
	default:
		l.engine = engine
		l.setState(stateReady)
	}
	l.mu.Unlock()

	if err != nil {
		l.logger.Warn("database load failed",
			"attempt", attempt,
			"elapsed", elapsed,
			"error", domain.Describe(err))
	} else {
		l.logger.Info("database ready", "attempt", attempt, "elapsed", elapsed)
	}

	p.engine, p.err = engine, err
	close(p.done)
}

// load calls the loader, turning a panic or a nil engine into an error.
func (l *Lifecycle) load(ctx context.Context) (engine domain.Engine, err error) {
	defer func() {
		if r := recover(); r != nil {
			engine, err = nil, domain.ErrSnapshotFormat.WithCause(fmt.Errorf("loader panic: %v", r))
		}
	}()

	engine, err = l.loader.Load(ctx)
	if err == nil && engine == nil {
		err = domain.ErrSnapshotFormat.WithDetails("loader returned no engine")
	}
	return engine, err
}

// setState must be called with mu held.
func (l *Lifecycle) setState(s loadState) {
	l.state = s
	switch s {
	case stateLoading:
		l.metrics.SetLifecycleState(metric.StateLoading)
	case stateReady:
		l.metrics.SetLifecycleState(metric.StateReady)
	default:
		l.metrics.SetLifecycleState(metric.StateUnloaded)
	}
}

// Ready reports whether the engine is loaded.
func (l *Lifecycle) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == stateReady
}

// State returns the current state name: unloaded, loading or ready.
func (l *Lifecycle) State() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.String()
}

// Attempts returns the number of load attempts started so far.
func (l *Lifecycle) Attempts() int64 {
	return l.attempts.Load()
}

// Close releases the engine. Later EnsureReady calls fail with
// ErrLifecycleClosed; an in-flight load is discarded when it finishes.
func (l *Lifecycle) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.state != stateReady {
		return nil
	}
	engine := l.engine
	l.engine = nil
	l.setState(stateUnloaded)
	return engine.Close()
}

// waiting reports how many callers are blocked on the in-flight load.
func (l *Lifecycle) waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending == nil {
		return 0
	}
	return int(l.pending.waiters.Load())
}
