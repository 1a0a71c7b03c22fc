package repl

import (
	"sort"
	"strings"
)

// Completer suggests shell commands and SQL keywords.
type Completer struct {
	commands []string
	keywords []string
}

// NewCompleter creates a new Completer.
func NewCompleter() *Completer {
	commands := make([]string, 0, len(metaUsage))
	for _, m := range metaUsage {
		commands = append(commands, m.name)
	}
	sort.Strings(commands)

	return &Completer{
		commands: commands,
		keywords: []string{
			"SELECT", "FROM", "WHERE", "GROUP BY", "HAVING", "ORDER BY", "LIMIT", "OFFSET",
			"JOIN", "LEFT JOIN", "INNER JOIN", "ON", "AS", "AND", "OR", "NOT", "IN", "IS NULL",
			"LIKE", "BETWEEN", "DISTINCT", "COUNT", "WITH", "UNION", "EXPLAIN QUERY PLAN",
		},
	}
}

// Complete returns suggestions for the last word of line. Shell
// commands complete only at the start of a line.
func (c *Completer) Complete(line string) []string {
	if strings.HasPrefix(line, ".") && !strings.ContainsAny(line, " \t") {
		return matchPrefix(c.commands, line, false)
	}

	word := line
	if i := strings.LastIndexAny(line, " \t(,"); i >= 0 {
		word = line[i+1:]
	}
	if word == "" {
		return nil
	}
	return matchPrefix(c.keywords, word, true)
}

func matchPrefix(candidates []string, prefix string, fold bool) []string {
	if fold {
		prefix = strings.ToUpper(prefix)
	}
	var suggestions []string
	for _, cand := range candidates {
		if strings.HasPrefix(cand, prefix) {
			suggestions = append(suggestions, cand)
		}
	}
	return suggestions
}
