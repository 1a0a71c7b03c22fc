package domain

import "context"

// Engine is a live, read-only database instance built from a snapshot.
//
// An Engine is created once per successful snapshot load and is never
// mutated afterwards. Implementations must be safe for concurrent use.
type Engine interface {
	// Prepare compiles query into a statement. The statement must be closed
	// by the caller.
	Prepare(ctx context.Context, query string) (Statement, error)

	// Close releases the engine and every resource backing it.
	Close() error
}

// Statement is a prepared query.
//
// The expected call sequence is Bind, then Step until it returns false,
// reading Row after each true Step. Close may be called at any point and
// more than once.
type Statement interface {
	// Bind sets the positional parameters. An empty slice binds nothing.
	Bind(args []any) error

	// Step advances to the next result row. It returns false once the
	// result is exhausted.
	Step() (bool, error)

	// Row materializes the current result row.
	Row() (*Row, error)

	// Close releases the statement.
	Close() error
}
