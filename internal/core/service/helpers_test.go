package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yndnr/snapql/internal/core/domain"
	"github.com/yndnr/snapql/internal/storage/sqlengine"
)

// fakeEngine is an engine whose statements are never executed.
type fakeEngine struct {
	closed atomic.Bool
}

func (e *fakeEngine) Prepare(context.Context, string) (domain.Statement, error) {
	return nil, errors.New("fake engine cannot prepare")
}

func (e *fakeEngine) Close() error {
	e.closed.Store(true)
	return nil
}

// countingLoader counts Load calls. If gate is set, every call blocks on it.
type countingLoader struct {
	calls atomic.Int32
	gate  chan struct{}
	fn    func(call int) (domain.Engine, error)
}

func (l *countingLoader) Load(context.Context) (domain.Engine, error) {
	n := l.calls.Add(1)
	if l.gate != nil {
		<-l.gate
	}
	return l.fn(int(n))
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// buildImage creates a SQLite database and returns its bytes.
func buildImage(t *testing.T, stmts ...string) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "app.sqlite")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			t.Fatalf("exec %q: %v", s, err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// sqliteOpener opens images with sqlengine in a test temp dir.
func sqliteOpener(t *testing.T) EngineOpener {
	dir := t.TempDir()
	return func(ctx context.Context, data []byte) (domain.Engine, error) {
		return sqlengine.Open(ctx, data, sqlengine.Options{TempDir: dir})
	}
}

// fixedFetcher serves a fixed payload or error.
type fixedFetcher struct {
	data  []byte
	err   error
	calls atomic.Int32
}

func (f *fixedFetcher) Fetch(context.Context) ([]byte, error) {
	f.calls.Add(1)
	return f.data, f.err
}

// newSQLiteLifecycle returns a Lifecycle over a real SQLite image.
func newSQLiteLifecycle(t *testing.T, stmts ...string) *Lifecycle {
	t.Helper()
	fetcher := &fixedFetcher{data: buildImage(t, stmts...)}
	lc := NewLifecycle(NewSnapshotLoader(fetcher, sqliteOpener(t), "", nil), nil, nil)
	t.Cleanup(func() { lc.Close() })
	return lc
}

// fakeClient records posted messages.
type fakeClient struct {
	id  string
	err error

	mu   sync.Mutex
	msgs []domain.Message
}

func (c *fakeClient) ID() string { return c.id }

func (c *fakeClient) Post(_ context.Context, msg domain.Message) error {
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeClient) received() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

type staticClients []Client

func (s staticClients) Clients() []Client { return s }
