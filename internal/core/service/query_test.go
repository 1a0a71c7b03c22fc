package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/yndnr/snapql/internal/core/domain"
	"github.com/yndnr/snapql/internal/telemetry/metric"
)

func newQueryService(t *testing.T, stmts ...string) *QueryService {
	t.Helper()
	lc := newSQLiteLifecycle(t, stmts...)
	return NewQueryService(lc, NewDenylist(DefaultDeniedTables), metric.NewRegistry(), nil)
}

func decodeError(t *testing.T, env *domain.Envelope) domain.ErrorBody {
	t.Helper()
	var body domain.ErrorBody
	if err := json.Unmarshal(env.Body, &body); err != nil {
		t.Fatalf("decode error body %s: %v", env.Body, err)
	}
	return body
}

func TestQueryService_Execute(t *testing.T) {
	svc := newQueryService(t,
		"CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT, price REAL)",
		"INSERT INTO items VALUES (1, 'apple', 0.5), (2, 'pear', 0.75), (3, NULL, 2)",
		"CREATE TABLE users (id INTEGER, email TEXT)",
		"CREATE TABLE my_users_table (id INTEGER)",
	)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "select literal",
			body:       `{"query":"SELECT 1 AS x"}`,
			wantStatus: http.StatusOK,
			wantBody:   `[{"x":1}]`,
		},
		{
			name:       "column order kept",
			body:       `{"query":"SELECT name, id, price FROM items WHERE id = 1"}`,
			wantStatus: http.StatusOK,
			wantBody:   `[{"name":"apple","id":1,"price":0.5}]`,
		},
		{
			name:       "bound parameters",
			body:       `{"query":"SELECT id FROM items WHERE price > ? AND id <> ? ORDER BY id","data":[0.6,3]}`,
			wantStatus: http.StatusOK,
			wantBody:   `[{"id":2}]`,
		},
		{
			name:       "null column",
			body:       `{"query":"SELECT name FROM items WHERE id = 3"}`,
			wantStatus: http.StatusOK,
			wantBody:   `[{"name":null}]`,
		},
		{
			name:       "empty result",
			body:       `{"query":"SELECT * FROM items WHERE id = 99"}`,
			wantStatus: http.StatusOK,
			wantBody:   `[]`,
		},
		{
			name:       "data not an array",
			body:       `{"query":"SELECT count(*) AS n FROM items","data":{"a":1}}`,
			wantStatus: http.StatusOK,
			wantBody:   `[{"n":3}]`,
		},
		{
			name:       "duplicate column keeps last value",
			body:       `{"query":"SELECT 1 AS a, 2 AS b, 3 AS a"}`,
			wantStatus: http.StatusOK,
			wantBody:   `[{"a":3,"b":2}]`,
		},
		{
			name:       "underscore table passes the filter",
			body:       `{"query":"SELECT count(*) AS n FROM my_users_table"}`,
			wantStatus: http.StatusOK,
			wantBody:   `[{"n":0}]`,
		},
		{
			name:       "empty query",
			body:       `{"query":""}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Bad Request"}`,
		},
		{
			name:       "blank query",
			body:       `{"query":"   "}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Bad Request"}`,
		},
		{
			name:       "missing query",
			body:       `{"data":[]}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Bad Request"}`,
		},
		{
			name:       "query not a string",
			body:       `{"query":42}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Bad Request"}`,
		},
		{
			name:       "denied table",
			body:       `{"query":"SELECT * FROM users"}`,
			wantStatus: http.StatusForbidden,
			wantBody:   `{"error":"Forbidden"}`,
		},
		{
			name:       "denied table upper case",
			body:       `{"query":"SELECT email FROM USERS"}`,
			wantStatus: http.StatusForbidden,
			wantBody:   `{"error":"Forbidden"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := svc.Execute(context.Background(), []byte(tt.body))
			if env.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d (body %s)", env.Status, tt.wantStatus, env.Body)
			}
			if string(env.Body) != tt.wantBody {
				t.Errorf("Body = %s, want %s", env.Body, tt.wantBody)
			}
		})
	}
}

func TestQueryService_InternalErrors(t *testing.T) {
	svc := newQueryService(t, "CREATE TABLE items (id INTEGER)")

	tests := []struct {
		name        string
		body        string
		wantDetails string
	}{
		{"invalid json", `{"query":`, "decode request body"},
		{"null body", `null`, "request body is null"},
		{"unknown table", `{"query":"SELECT * FROM nowhere"}`, "no such table: nowhere"},
		{"syntax error", `{"query":"SELEKT 1"}`, "syntax error"},
		{"object bind value", `{"query":"SELECT ?","data":[{"a":1}]}`, "bind parameter 1"},
		{"write rejected", `{"query":"INSERT INTO items VALUES (1)"}`, "readonly"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := svc.Execute(context.Background(), []byte(tt.body))
			if env.Status != http.StatusInternalServerError {
				t.Fatalf("Status = %d, want 500 (body %s)", env.Status, env.Body)
			}
			body := decodeError(t, env)
			if body.Error != "Internal Server Error" {
				t.Errorf("error = %q", body.Error)
			}
			if !strings.Contains(body.Details, tt.wantDetails) {
				t.Errorf("details = %q, want it to contain %q", body.Details, tt.wantDetails)
			}
		})
	}
}

func TestQueryService_LoadFailure(t *testing.T) {
	fetcher := &fixedFetcher{err: domain.NewFetchStatusError(404, "Not Found")}
	lc := NewLifecycle(NewSnapshotLoader(fetcher, sqliteOpener(t), "", nil), nil, nil)
	svc := NewQueryService(lc, NewDenylist(DefaultDeniedTables), nil, nil)

	for i := 0; i < 2; i++ {
		env := svc.Execute(context.Background(), []byte(`{"query":"SELECT 1"}`))
		if env.Status != http.StatusInternalServerError {
			t.Fatalf("Status = %d, want 500", env.Status)
		}
		body := decodeError(t, env)
		if body.Details != "DB fetch failed: 404 Not Found" {
			t.Errorf("details = %q", body.Details)
		}
	}
	// A failed load is never cached.
	if fetcher.calls.Load() != 2 {
		t.Errorf("fetch calls = %d, want 2", fetcher.calls.Load())
	}
}

func TestQueryService_RejectionsSkipTheEngine(t *testing.T) {
	var loads atomic.Int32
	lc := NewLifecycle(LoaderFunc(func(context.Context) (domain.Engine, error) {
		loads.Add(1)
		return &fakeEngine{}, nil
	}), nil, nil)
	svc := NewQueryService(lc, NewDenylist(DefaultDeniedTables), nil, nil)

	for _, body := range []string{`{"query":""}`, `{"query":"SELECT * FROM users"}`} {
		svc.Execute(context.Background(), []byte(body))
	}
	if loads.Load() != 0 {
		t.Errorf("rejected queries triggered %d loads", loads.Load())
	}
}

// closeTracking wraps a statement to observe Close.
type closeTracking struct {
	domain.Statement
	closed *atomic.Int32
}

func (s closeTracking) Close() error {
	s.closed.Add(1)
	return s.Statement.Close()
}

type trackingEngine struct {
	domain.Engine
	closed atomic.Int32
}

func (e *trackingEngine) Prepare(ctx context.Context, q string) (domain.Statement, error) {
	stmt, err := e.Engine.Prepare(ctx, q)
	if err != nil {
		return nil, err
	}
	return closeTracking{Statement: stmt, closed: &e.closed}, nil
}

func TestQueryService_StatementAlwaysReleased(t *testing.T) {
	inner := newSQLiteLifecycle(t, "CREATE TABLE items (id INTEGER)", "INSERT INTO items VALUES (1), (2)")
	engine, err := inner.EnsureReady(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	tracked := &trackingEngine{Engine: engine}
	lc := NewLifecycle(LoaderFunc(func(context.Context) (domain.Engine, error) {
		return tracked, nil
	}), nil, nil)
	svc := NewQueryService(lc, nil, nil, nil)

	bodies := []string{
		`{"query":"SELECT id FROM items"}`,
		`{"query":"SELECT ?","data":[[1]]}`,
		`{"query":"SELECT id FROM items WHERE id = ?","data":[1, 2]}`,
	}
	for _, b := range bodies {
		svc.Execute(context.Background(), []byte(b))
	}
	if got := tracked.closed.Load(); got != int32(len(bodies)) {
		t.Errorf("statements closed = %d, want %d", got, len(bodies))
	}
}
