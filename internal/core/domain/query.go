package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

// QueryRequest is a decoded SQL request.
type QueryRequest struct {
	// Query is the SQL text. Never blank after DecodeQueryRequest.
	Query string
	// Data holds the positional bind values, in order. Empty when the
	// request carried no array.
	Data []any
}

// DecodeQueryRequest decodes a JSON request body of the form
// {"query": "...", "data": [...]}.
//
// A body that is not JSON, or is JSON null, fails with ErrExecution.
// A missing, non-string or blank query fails with ErrBadRequest.
// A "data" member that is absent or not an array yields an empty bind list.
func DecodeQueryRequest(body []byte) (*QueryRequest, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, ErrExecution.WithCause(fmt.Errorf("decode request body: %w", err))
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, ErrExecution.WithCause(errors.New("decode request body: unexpected data after JSON value"))
	}
	if doc == nil {
		return nil, ErrExecution.WithCause(errors.New("request body is null"))
	}

	fields, _ := doc.(map[string]any)
	query, ok := fields["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, ErrBadRequest
	}

	req := &QueryRequest{Query: query, Data: []any{}}
	if data, ok := fields["data"].([]any); ok {
		req.Data = data
	}
	return req, nil
}

// BindValues converts the decoded JSON bind values into engine arguments.
//
// Integral numbers bind as int64, other numbers as float64, booleans as
// 1 or 0. Strings and null pass through. Arrays and objects cannot be bound.
func (r *QueryRequest) BindValues() ([]any, error) {
	args := make([]any, len(r.Data))
	for i, v := range r.Data {
		switch val := v.(type) {
		case nil, string:
			args[i] = val
		case bool:
			if val {
				args[i] = int64(1)
			} else {
				args[i] = int64(0)
			}
		case json.Number:
			n, err := bindNumber(val)
			if err != nil {
				return nil, fmt.Errorf("bind parameter %d: %w", i+1, err)
			}
			args[i] = n
		case float64:
			args[i] = val
		default:
			return nil, fmt.Errorf("bind parameter %d: unsupported value of type %T", i+1, v)
		}
	}
	return args, nil
}

func bindNumber(n json.Number) (any, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, err
	}
	if f == math.Trunc(f) && math.Abs(f) <= 1<<53 {
		return int64(f), nil
	}
	return f, nil
}

// Row is one result row: an ordered mapping from column name to value.
//
// Setting an existing column keeps its position and replaces its value.
type Row struct {
	columns []string
	values  map[string]any
}

// NewRow creates an empty row sized for n columns.
func NewRow(n int) *Row {
	return &Row{
		columns: make([]string, 0, n),
		values:  make(map[string]any, n),
	}
}

// Set assigns value to column.
func (r *Row) Set(column string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[column]; !ok {
		r.columns = append(r.columns, column)
	}
	r.values[column] = value
}

// Get returns the value of column.
func (r *Row) Get(column string) (any, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Columns returns the column names in order.
func (r *Row) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// Len returns the number of columns.
func (r *Row) Len() int {
	return len(r.columns)
}

// MarshalJSON encodes the row as a JSON object in column order.
func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.values[col])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping member order.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("row: expected object, got %v", tok)
	}

	*r = *NewRow(0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("row: expected column name, got %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("row: column %q: %w", key, err)
		}
		r.Set(key, v)
	}
	_, err = dec.Token()
	return err
}

// Envelope is a complete HTTP answer: a status code and an encoded JSON body.
type Envelope struct {
	Status int
	Body   []byte
}

// ErrorBody is the JSON body of every failed answer.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ReadyBody is the JSON body of the diagnostic answer.
type ReadyBody struct {
	Ready bool `json:"ready"`
}

// internalErrorBody is used when a body cannot be encoded at all.
var internalErrorBody = []byte(`{"error":"Internal Server Error"}`)

// NewEnvelope encodes v as the body of an answer with the given status.
// If v cannot be encoded the envelope degrades to a bare 500.
func NewEnvelope(status int, v any) *Envelope {
	body, err := json.Marshal(v)
	if err != nil {
		return &Envelope{Status: 500, Body: internalErrorBody}
	}
	return &Envelope{Status: status, Body: body}
}

// ErrorEnvelope builds an {"error", "details"} answer.
func ErrorEnvelope(status int, message, details string) *Envelope {
	return NewEnvelope(status, ErrorBody{Error: message, Details: details})
}
