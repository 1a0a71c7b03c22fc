package output

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/yndnr/snapql/internal/core/domain"
)

// NullText is printed for SQL NULL cells.
const NullText = "NULL"

// maxCellWidth truncates long cells in table output.
const maxCellWidth = 60

// TableFormatter formats data as an aligned text table.
type TableFormatter struct {
	NoHeaders bool
}

// Format formats data as a table.
// Supports: []*domain.Row, *Table, structs and maps. Anything else
// falls back to JSON.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	if data == nil {
		return nil
	}

	var table *Table
	switch v := data.(type) {
	case []*domain.Row:
		table = RowsTable(v)
	case *Table:
		table = v
	case Table:
		table = &v
	default:
		t, err := toTable(data)
		if err != nil {
			return (&JSONFormatter{}).Format(w, data)
		}
		table = t
	}

	return table.RenderWithOptions(w, f.NoHeaders)
}

// RowsTable lays out query rows. Columns appear in first-seen order.
func RowsTable(rows []*domain.Row) *Table {
	table := &Table{}
	index := make(map[string]int)

	for _, r := range rows {
		for _, col := range r.Columns() {
			if _, ok := index[col]; !ok {
				index[col] = len(table.Headers)
				table.Headers = append(table.Headers, col)
			}
		}
	}

	for _, r := range rows {
		cells := make([]string, len(table.Headers))
		for i := range cells {
			cells[i] = NullText
		}
		for _, col := range r.Columns() {
			v, _ := r.Get(col)
			cells[index[col]] = cellText(v)
		}
		table.Rows = append(table.Rows, cells)
	}
	return table
}

// cellText renders one query value.
func cellText(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		return NullText
	case string:
		s = x
	case json.Number:
		s = x.String()
	case []byte:
		s = fmt.Sprintf("<%d bytes>", len(x))
	default:
		s = fmt.Sprint(x)
	}

	s = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(s)
	if utf8.RuneCountInString(s) > maxCellWidth {
		s = string([]rune(s)[:maxCellWidth-1]) + "…"
	}
	return s
}

// toTable converts a struct or map to a field/value table.
func toTable(data any) (*Table, error) {
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("nil pointer")
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		return mapToTable(v)
	case reflect.Struct:
		return structToTable(v), nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", v.Kind())
	}
}

// mapToTable converts a map to a key-value table sorted by key.
func mapToTable(v reflect.Value) (*Table, error) {
	if v.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("unsupported map key: %s", v.Type().Key())
	}

	table := &Table{Headers: []string{"KEY", "VALUE"}}
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	for _, k := range keys {
		table.AddRow(k.String(), formatValue(v.MapIndex(k)))
	}
	return table, nil
}

// structToTable converts a single struct to a key-value table.
func structToTable(v reflect.Value) *Table {
	table := &Table{Headers: []string{"FIELD", "VALUE"}}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name := field.Name
		if jsonTag := field.Tag.Get("json"); jsonTag != "" {
			tagName, _, _ := strings.Cut(jsonTag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		table.AddRow(name, formatValue(v.Field(i)))
	}
	return table
}

// formatValue formats a reflect.Value for display.
func formatValue(v reflect.Value) string {
	if !v.IsValid() {
		return "-"
	}
	if v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return "-"
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.String:
		if v.Len() == 0 {
			return "-"
		}
		return v.String()
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "-"
		}
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = formatValue(v.Index(i))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// Table represents tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Render renders the table to the writer.
func (t *Table) Render(w io.Writer) error {
	return t.RenderWithOptions(w, false)
}

// RenderWithOptions renders the table with options.
func (t *Table) RenderWithOptions(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if !noHeaders && len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	return tw.Flush()
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}
