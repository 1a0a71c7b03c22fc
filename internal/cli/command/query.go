package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
)

// QueryCommand returns the query command.
func QueryCommand() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Aliases:   []string{"q"},
		Usage:     "Run a SQL query against the snapshot",
		ArgsUsage: "SQL [ARGS...]",
		Description: `Positional ARGS bind to ? placeholders in order. Each one is read as
JSON when it parses (42, 1.5, true, null, "007") and as a plain string
otherwise. Use - as SQL to read the statement from stdin.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Read the SQL statement from a file",
			},
		},
		Action: runQuery,
	}
}

func runQuery(c *cli.Context) error {
	sql, args, err := queryInput(c)
	if err != nil {
		return err
	}

	client, err := newClient(c)
	if err != nil {
		return err
	}

	rows, err := client.Query(c.Context, sql, args)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	return render(c, rows)
}

// queryInput resolves the statement and its bind values.
func queryInput(c *cli.Context) (string, []any, error) {
	rest := c.Args().Slice()

	var sql string
	switch {
	case c.String("file") != "":
		data, err := os.ReadFile(c.String("file"))
		if err != nil {
			return "", nil, fmt.Errorf("read query file: %w", err)
		}
		sql = string(data)
	case len(rest) == 0:
		return "", nil, fmt.Errorf("missing SQL statement")
	case rest[0] == "-":
		data, err := io.ReadAll(stdin(c))
		if err != nil {
			return "", nil, fmt.Errorf("read query from stdin: %w", err)
		}
		sql, rest = string(data), rest[1:]
	default:
		sql, rest = rest[0], rest[1:]
	}

	sql = strings.TrimSpace(sql)
	if sql == "" {
		return "", nil, fmt.Errorf("empty SQL statement")
	}

	args := make([]any, 0, len(rest))
	for _, raw := range rest {
		args = append(args, parseArg(raw))
	}
	return sql, args, nil
}

// parseArg reads a bind value as JSON, falling back to the raw string.
// Numbers stay exact.
func parseArg(raw string) any {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	switch v.(type) {
	case map[string]any, []any:
		return raw
	}
	return v
}
