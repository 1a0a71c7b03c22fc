package sqlengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/yndnr/snapql/internal/core/domain"
)

// ErrNotDatabase is returned by Open when the bytes are not a SQLite image.
var ErrNotDatabase = errors.New("not a database image")

// ErrClosed is returned when using a closed engine or statement.
var ErrClosed = errors.New("sqlengine: closed")

// Options configures Open.
type Options struct {
	// TempDir holds the materialized image. Empty uses os.TempDir().
	TempDir string

	// MaxOpenConns bounds the connection pool. Default: 4.
	MaxOpenConns int
}

// Engine is a read-only SQLite database backed by a temporary file.
// It implements domain.Engine.
type Engine struct {
	db   *sql.DB
	path string

	closeOnce sync.Once
	closeErr  error
}

var _ domain.Engine = (*Engine)(nil)

// Open materializes data and opens it as a read-only database.
//
// The image is verified by reading its schema table; bytes that SQLite
// cannot read as a database fail with ErrNotDatabase. An empty payload
// is an empty database.
func Open(ctx context.Context, data []byte, opts Options) (*Engine, error) {
	f, err := os.CreateTemp(opts.TempDir, "snapql-*.sqlite")
	if err != nil {
		return nil, fmt.Errorf("create image file: %w", err)
	}
	path := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write image file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("close image file: %w", err)
	}

	dsn := (&url.URL{
		Scheme:   "file",
		Path:     path,
		RawQuery: "mode=ro&immutable=1",
	}).String()

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("open image: %w", err)
	}

	maxConns := opts.MaxOpenConns
	if maxConns <= 0 {
		maxConns = 4
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	var tables int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&tables); err != nil {
		db.Close()
		os.Remove(path)
		return nil, mapOpenError(err)
	}

	return &Engine{db: db, path: path}, nil
}

// mapOpenError turns SQLite's "not a database" family into ErrNotDatabase.
func mapOpenError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrNotADB, sqlite3.ErrCorrupt:
			return fmt.Errorf("%w: %s", ErrNotDatabase, sqliteErr.Error())
		}
	}
	return fmt.Errorf("verify image: %w", err)
}

// Prepare compiles query. The statement runs under ctx.
func (e *Engine) Prepare(ctx context.Context, query string) (domain.Statement, error) {
	stmt, err := e.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &Statement{ctx: ctx, db: e.db, query: query, stmt: stmt}, nil
}

// Path returns the location of the materialized image.
func (e *Engine) Path() string {
	return e.path
}

// Close closes the pool and removes the image file. Safe to call more than once.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.db.Close()
		if err := os.Remove(e.path); err != nil && !errors.Is(err, os.ErrNotExist) && e.closeErr == nil {
			e.closeErr = err
		}
	})
	return e.closeErr
}

// SQLiteVersion reports the linked SQLite library version.
func SQLiteVersion() string {
	v, _, _ := sqlite3.Version()
	return v
}
