package sqlengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/yndnr/snapql/internal/core/domain"
)

// convertedDeclTypes are the declared column types whose values the
// mattn driver turns into time.Time or bool instead of returning what
// SQLite stored.
var convertedDeclTypes = map[string]bool{
	"DATE":      true,
	"DATETIME":  true,
	"TIMESTAMP": true,
	"BOOLEAN":   true,
}

const storedCTE = "snapql_stored"

// Statement is a prepared query. It implements domain.Statement.
type Statement struct {
	ctx   context.Context
	db    *sql.DB
	query string
	stmt  *sql.Stmt
	args  []any

	// stored re-issues the query so every column is an expression.
	stored *sql.Stmt

	rows    *sql.Rows
	columns []*sql.ColumnType
	started bool
	closed  bool
}

var _ domain.Statement = (*Statement)(nil)

// Bind sets the positional parameters used by the first Step.
func (s *Statement) Bind(args []any) error {
	if s.closed {
		return ErrClosed
	}
	if s.started {
		return errors.New("sqlengine: bind after step")
	}
	s.args = append([]any(nil), args...)
	return nil
}

// Step advances to the next row. The first call runs the query.
func (s *Statement) Step() (bool, error) {
	if s.closed {
		return false, ErrClosed
	}

	if !s.started {
		s.started = true
		if err := s.run(); err != nil {
			return false, err
		}
	}

	if s.rows == nil {
		return false, nil
	}
	if s.rows.Next() {
		return true, nil
	}
	return false, s.rows.Err()
}

// run executes the statement. When a result column carries a declared
// type the driver converts, the query is re-issued through storedQuery so
// every value comes back in its SQLite storage class.
func (s *Statement) run() error {
	rows, err := s.stmt.QueryContext(s.ctx, s.args...)
	if err != nil {
		return err
	}
	cols, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return err
	}
	s.rows, s.columns = rows, cols
	if !needsStoredValues(cols) {
		return nil
	}

	s.rows = nil
	if err := rows.Close(); err != nil {
		return err
	}
	s.stored, err = s.db.PrepareContext(s.ctx, storedQuery(s.query, cols))
	if err != nil {
		return fmt.Errorf("sqlengine: read stored values: %w", err)
	}
	s.rows, err = s.stored.QueryContext(s.ctx, s.args...)
	if err != nil {
		s.rows = nil
		return err
	}
	return nil
}

func needsStoredValues(cols []*sql.ColumnType) bool {
	for _, c := range cols {
		if convertedDeclTypes[strings.ToUpper(c.DatabaseTypeName())] {
			return true
		}
	}
	return false
}

// storedQuery wraps query in a CTE with positional column names and
// selects each column through unary +, which SQLite treats as a no-op
// expression without a declared type. Names and order are kept.
func storedQuery(query string, cols []*sql.ColumnType) string {
	body := strings.TrimRight(strings.TrimSpace(query), "; \t\r\n")

	var b strings.Builder
	b.WriteString("WITH " + storedCTE + "(")
	for i := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "c%d", i)
	}
	// The newline ends a trailing -- comment in body.
	b.WriteString(") AS (\n" + body + "\n)\nSELECT ")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "+c%d AS %s", i, quoteIdent(c.Name()))
	}
	b.WriteString(" FROM " + storedCTE)
	return b.String()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Row materializes the current row.
func (s *Statement) Row() (*domain.Row, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.rows == nil {
		return nil, errors.New("sqlengine: no current row")
	}

	values := make([]any, len(s.columns))
	ptrs := make([]any, len(s.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	// The driver yields int64, float64, string, []byte or nil by storage
	// class; values are passed through unchanged.
	row := domain.NewRow(len(s.columns))
	for i, col := range s.columns {
		row.Set(col.Name(), values[i])
	}
	return row, nil
}

// Close releases the result set and the prepared statement.
func (s *Statement) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.rows != nil {
		errs = append(errs, s.rows.Close())
	}
	if s.stored != nil {
		errs = append(errs, s.stored.Close())
	}
	errs = append(errs, s.stmt.Close())
	return errors.Join(errs...)
}
