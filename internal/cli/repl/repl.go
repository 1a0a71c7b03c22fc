package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yndnr/snapql/internal/cli/output"
	"github.com/yndnr/snapql/internal/core/domain"
)

const (
	prompt       = "snapql> "
	continuation = "   ...> "
)

const (
	tablesSQL    = "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	schemaSQL    = "SELECT sql FROM sqlite_master WHERE sql IS NOT NULL ORDER BY name"
	schemaOneSQL = "SELECT sql FROM sqlite_master WHERE sql IS NOT NULL AND name = ?"
)

// metaUsage lists the shell commands in .help order.
var metaUsage = []struct{ name, usage string }{
	{".tables", "List tables in the snapshot"},
	{".schema", "Show CREATE statements (.schema [TABLE])"},
	{".ready", "Ask whether the snapshot is loaded"},
	{".mode", "Show or set the output format (.mode table|json|yaml)"},
	{".headers", "Toggle table headers (.headers on|off)"},
	{".history", "Print the shell history"},
	{".help", "Show this help"},
	{".exit", "Leave the shell"},
	{".quit", "Leave the shell"},
}

// Querier is the server surface the shell talks to.
type Querier interface {
	Query(ctx context.Context, sql string, args []any) ([]*domain.Row, error)
	Ready(ctx context.Context) (bool, error)
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	querier   Querier
	completer *Completer
	history   *History
	format    output.Format
	noHeaders bool
	prompts   bool
}

// Option configures a REPL.
type Option func(*REPL)

// WithIO sets the input and output streams.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(r *REPL) {
		r.input = in
		r.output = out
	}
}

// WithHistory sets the history store.
func WithHistory(h *History) Option {
	return func(r *REPL) { r.history = h }
}

// WithFormat sets the initial output format.
func WithFormat(format output.Format, noHeaders bool) Option {
	return func(r *REPL) {
		r.format = format
		r.noHeaders = noHeaders
	}
}

// WithPrompt turns prompts on or off. Piped input usually wants them off.
func WithPrompt(enabled bool) Option {
	return func(r *REPL) { r.prompts = enabled }
}

// New creates a shell bound to q.
func New(q Querier, opts ...Option) *REPL {
	r := &REPL{
		input:     os.Stdin,
		output:    os.Stdout,
		querier:   q,
		completer: NewCompleter(),
		history:   NewHistory(""),
		format:    output.FormatTable,
		prompts:   true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads statements until EOF, .exit or ctx is done. A statement
// still pending at EOF is executed.
func (r *REPL) Run(ctx context.Context) error {
	if err := r.history.Load(); err != nil {
		fmt.Fprintf(r.output, "warning: load history: %v\n", err)
	}
	defer func() {
		if err := r.history.Save(); err != nil {
			fmt.Fprintf(r.output, "warning: save history: %v\n", err)
		}
	}()

	reader := bufio.NewReader(r.input)
	var stmt strings.Builder

	for ctx.Err() == nil {
		if r.prompts {
			if stmt.Len() == 0 {
				fmt.Fprint(r.output, prompt)
			} else {
				fmt.Fprint(r.output, continuation)
			}
		}

		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		eof := err != nil

		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case stmt.Len() == 0 && isMeta(line):
			r.history.Add(line)
			quit, err := r.meta(ctx, line)
			if err != nil {
				fmt.Fprintf(r.output, "Error: %v\n", err)
			}
			if quit {
				return nil
			}
		default:
			if stmt.Len() > 0 {
				stmt.WriteByte('\n')
			}
			stmt.WriteString(line)
			if strings.HasSuffix(line, ";") {
				r.flush(ctx, &stmt)
			}
		}

		if eof {
			if stmt.Len() > 0 {
				r.flush(ctx, &stmt)
			}
			if r.prompts {
				fmt.Fprintln(r.output)
			}
			return nil
		}
	}
	return nil
}

func isMeta(line string) bool {
	return strings.HasPrefix(line, ".") || line == "exit" || line == "quit"
}

// flush executes the buffered statement and resets the buffer.
func (r *REPL) flush(ctx context.Context, stmt *strings.Builder) {
	raw := stmt.String()
	stmt.Reset()
	r.history.Add(raw)

	sql := strings.TrimSpace(strings.TrimRight(raw, "; \t\n"))
	if sql == "" {
		return
	}
	if err := r.query(ctx, sql); err != nil {
		fmt.Fprintf(r.output, "Error: %v\n", err)
	}
}

func (r *REPL) query(ctx context.Context, sql string, args ...any) error {
	rows, err := r.querier.Query(ctx, sql, args)
	if err != nil {
		return err
	}
	if err := r.render(rows); err != nil {
		return err
	}
	if r.format == output.FormatTable {
		fmt.Fprintf(r.output, "(%d %s)\n", len(rows), plural(len(rows), "row", "rows"))
	}
	return nil
}

func (r *REPL) render(data any) error {
	formatter := output.NewFormatter(r.format)
	if tf, ok := formatter.(*output.TableFormatter); ok {
		tf.NoHeaders = r.noHeaders
	}
	return formatter.Format(r.output, data)
}

// meta runs a shell command. quit reports whether the shell should stop.
func (r *REPL) meta(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	switch name {
	case ".exit", ".quit", "exit", "quit":
		return true, nil
	case ".help":
		t := &output.Table{}
		for _, m := range metaUsage {
			t.AddRow(m.name, m.usage)
		}
		return false, t.RenderWithOptions(r.output, true)
	case ".tables":
		return false, r.query(ctx, tablesSQL)
	case ".schema":
		return false, r.schema(ctx, args)
	case ".ready":
		ready, err := r.querier.Ready(ctx)
		if err != nil {
			return false, err
		}
		if ready {
			fmt.Fprintln(r.output, "ready")
		} else {
			fmt.Fprintln(r.output, "not ready")
		}
		return false, nil
	case ".mode":
		if len(args) == 0 {
			fmt.Fprintln(r.output, r.format)
			return false, nil
		}
		format, err := output.ParseFormat(args[0])
		if err != nil {
			return false, err
		}
		r.format = format
		return false, nil
	case ".headers":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return false, errors.New("usage: .headers on|off")
		}
		r.noHeaders = args[0] == "off"
		return false, nil
	case ".history":
		for i, entry := range r.history.Entries() {
			fmt.Fprintf(r.output, "%5d  %s\n", i+1, entry)
		}
		return false, nil
	}

	if suggestions := r.completer.Complete(name); len(suggestions) > 0 {
		return false, fmt.Errorf("unknown command %s (did you mean %s?)", name, strings.Join(suggestions, ", "))
	}
	return false, fmt.Errorf("unknown command %s, try .help", name)
}

// schema prints CREATE statements verbatim, one per line.
func (r *REPL) schema(ctx context.Context, args []string) error {
	sql, params := schemaSQL, []any(nil)
	if len(args) > 0 {
		sql, params = schemaOneSQL, []any{args[0]}
	}

	rows, err := r.querier.Query(ctx, sql, params)
	if err != nil {
		return err
	}
	if len(args) > 0 && len(rows) == 0 {
		return fmt.Errorf("no such table: %s", args[0])
	}
	for _, row := range rows {
		if v, ok := row.Get("sql"); ok {
			fmt.Fprintf(r.output, "%v;\n", v)
		}
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
