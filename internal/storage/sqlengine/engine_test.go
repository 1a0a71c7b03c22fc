package sqlengine

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// buildImage creates a SQLite database with the given statements and
// returns its bytes.
func buildImage(t *testing.T, stmts ...string) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.sqlite")
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

func openImage(t *testing.T, data []byte) *Engine {
	t.Helper()
	engine, err := Open(context.Background(), data, Options{TempDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

func query(t *testing.T, e *Engine, q string, args ...any) []map[string]any {
	t.Helper()

	stmt, err := e.Prepare(context.Background(), q)
	if err != nil {
		t.Fatalf("Prepare(%q): %v", q, err)
	}
	defer stmt.Close()

	if err := stmt.Bind(args); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	var out []map[string]any
	for {
		ok, err := stmt.Step()
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		if !ok {
			break
		}
		row, err := stmt.Row()
		if err != nil {
			t.Fatalf("Row: %v", err)
		}
		m := make(map[string]any)
		for _, c := range row.Columns() {
			m[c], _ = row.Get(c)
		}
		out = append(out, m)
	}
	return out
}

func TestOpen_ValueMapping(t *testing.T) {
	engine := openImage(t, buildImage(t,
		`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT, price REAL, note TEXT, payload BLOB)`,
		`INSERT INTO items VALUES (1, 'apple', 1.5, NULL, x'00ff10')`,
		`INSERT INTO items VALUES (2, 'pear', 2.25, 'ripe', x'')`,
	))

	rows := query(t, engine, "SELECT id, name, price, note, payload FROM items ORDER BY id")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	first := rows[0]
	if first["id"] != int64(1) {
		t.Errorf("id = %#v, want int64(1)", first["id"])
	}
	if first["name"] != "apple" {
		t.Errorf("name = %#v, want apple", first["name"])
	}
	if first["price"] != 1.5 {
		t.Errorf("price = %#v, want 1.5", first["price"])
	}
	if first["note"] != nil {
		t.Errorf("note = %#v, want nil", first["note"])
	}
	if b, ok := first["payload"].([]byte); !ok || !bytes.Equal(b, []byte{0x00, 0xff, 0x10}) {
		t.Errorf("payload = %#v, want blob", first["payload"])
	}
	if rows[1]["note"] != "ripe" {
		t.Errorf("note = %#v, want ripe", rows[1]["note"])
	}
}

func TestOpen_ValueMappingKeepsStoredValues(t *testing.T) {
	engine := openImage(t, buildImage(t,
		`CREATE TABLE ms (id INTEGER, written DATE, ts DATETIME, seen TIMESTAMP, flag BOOLEAN, scan BLOB)`,
		`INSERT INTO ms VALUES (1, '1465', '2024-03-01', 1700000000000, 2, x'6869')`,
		`INSERT INTO ms VALUES (2, '2024-01-01', 1700000000, 'soon', 'yes', NULL)`,
		`INSERT INTO ms VALUES (3, NULL, 12.5, x'00', 0, NULL)`,
		`INSERT INTO ms VALUES (4, '1465 AD', 'March 1465', '2024-03-01T10:00:00Z', 'false', NULL)`,
	))

	rows := query(t, engine, "SELECT id, written, ts, seen, flag, scan FROM ms ORDER BY id")
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}

	tests := []struct {
		row  int
		col  string
		want any
	}{
		{0, "written", int64(1465)}, // NUMERIC affinity stores '1465' as an integer
		{0, "ts", "2024-03-01"},
		{0, "seen", int64(1700000000000)},
		{0, "flag", int64(2)},
		{1, "written", "2024-01-01"},
		{1, "ts", int64(1700000000)},
		{1, "seen", "soon"},
		{1, "flag", "yes"},
		{2, "written", nil},
		{2, "ts", 12.5},
		{2, "flag", int64(0)},
		{2, "scan", nil},
		{3, "written", "1465 AD"},
		{3, "ts", "March 1465"},
		{3, "seen", "2024-03-01T10:00:00Z"},
		{3, "flag", "false"},
	}
	for _, tt := range tests {
		if got := rows[tt.row][tt.col]; got != tt.want {
			t.Errorf("row %d %s = %#v, want %#v", tt.row, tt.col, got, tt.want)
		}
	}
	if b, ok := rows[0]["scan"].([]byte); !ok || string(b) != "hi" {
		t.Errorf("scan = %#v, want blob", rows[0]["scan"])
	}
	if b, ok := rows[2]["seen"].([]byte); !ok || !bytes.Equal(b, []byte{0}) {
		t.Errorf("seen = %#v, want blob", rows[2]["seen"])
	}
}

func TestStatement_StoredValuesQueryShapes(t *testing.T) {
	engine := openImage(t, buildImage(t,
		`CREATE TABLE ms (id INTEGER, written DATE, flag BOOLEAN)`,
		`INSERT INTO ms VALUES (1, '1465', 2), (2, '1500', 3), (3, '1620', 1)`,
	))

	t.Run("bind, alias and order", func(t *testing.T) {
		rows := query(t, engine, "SELECT written AS \"year \"\"w\"\"\", flag FROM ms WHERE id >= ? ORDER BY id DESC", int64(2))
		if len(rows) != 2 {
			t.Fatalf("rows = %v", rows)
		}
		if rows[0]["year \"w\""] != int64(1620) || rows[1]["year \"w\""] != int64(1500) {
			t.Errorf("rows = %v", rows)
		}
		if rows[0]["flag"] != int64(1) {
			t.Errorf("flag = %#v, want int64(1)", rows[0]["flag"])
		}
	})

	t.Run("trailing semicolon and comment", func(t *testing.T) {
		rows := query(t, engine, "SELECT written FROM ms WHERE id = 1 -- first\n;")
		if len(rows) != 1 || rows[0]["written"] != int64(1465) {
			t.Errorf("rows = %v", rows)
		}
	})

	t.Run("with clause and duplicate names", func(t *testing.T) {
		stmt, err := engine.Prepare(context.Background(),
			"WITH m AS (SELECT * FROM ms WHERE id = 1) SELECT flag AS v, written AS v FROM m")
		if err != nil {
			t.Fatal(err)
		}
		defer stmt.Close()
		if ok, err := stmt.Step(); !ok || err != nil {
			t.Fatalf("Step = %v, %v", ok, err)
		}
		row, err := stmt.Row()
		if err != nil {
			t.Fatal(err)
		}
		if v, _ := row.Get("v"); row.Len() != 1 || v != int64(1465) {
			t.Errorf("v = %#v (len %d), want last value 1465", v, row.Len())
		}
	})
}

func TestStatement_Bind(t *testing.T) {
	engine := openImage(t, buildImage(t,
		`CREATE TABLE t (a INTEGER, b TEXT)`,
		`INSERT INTO t VALUES (1, 'one'), (2, 'two'), (3, 'three')`,
	))

	rows := query(t, engine, "SELECT b FROM t WHERE a >= ? AND b != ? ORDER BY a", int64(2), "three")
	if len(rows) != 1 || rows[0]["b"] != "two" {
		t.Errorf("rows = %v", rows)
	}

	rows = query(t, engine, "SELECT ? AS v", nil)
	if len(rows) != 1 || rows[0]["v"] != nil {
		t.Errorf("null bind rows = %v", rows)
	}
}

func TestStatement_BindArityMismatch(t *testing.T) {
	engine := openImage(t, buildImage(t, `CREATE TABLE t (a INTEGER)`))

	stmt, err := engine.Prepare(context.Background(), "SELECT a FROM t WHERE a = ?")
	if err != nil {
		t.Fatal(err)
	}
	defer stmt.Close()

	if err := stmt.Bind([]any{int64(1), int64(2)}); err != nil {
		t.Fatal(err)
	}
	if _, err := stmt.Step(); err == nil {
		t.Error("expected error for extra bind arguments")
	}
}

func TestStatement_EmptyResult(t *testing.T) {
	engine := openImage(t, buildImage(t, `CREATE TABLE t (a INTEGER)`))

	if rows := query(t, engine, "SELECT a FROM t"); len(rows) != 0 {
		t.Errorf("expected no rows, got %v", rows)
	}
}

func TestStatement_DuplicateColumns(t *testing.T) {
	engine := openImage(t, buildImage(t))

	stmt, err := engine.Prepare(context.Background(), "SELECT 1 AS x, 2 AS x")
	if err != nil {
		t.Fatal(err)
	}
	defer stmt.Close()

	if ok, err := stmt.Step(); !ok || err != nil {
		t.Fatalf("Step = %v, %v", ok, err)
	}
	row, err := stmt.Row()
	if err != nil {
		t.Fatal(err)
	}
	if row.Len() != 1 {
		t.Fatalf("Len = %d, want 1", row.Len())
	}
	if v, _ := row.Get("x"); v != int64(2) {
		t.Errorf("x = %#v, want last value 2", v)
	}
}

func TestPrepare_InvalidSQL(t *testing.T) {
	engine := openImage(t, buildImage(t))

	if _, err := engine.Prepare(context.Background(), "SELEKT nothing"); err == nil {
		t.Error("expected syntax error")
	}
	if _, err := engine.Prepare(context.Background(), "SELECT * FROM missing"); err == nil {
		t.Error("expected missing table error")
	}
}

func TestOpen_ReadOnly(t *testing.T) {
	engine := openImage(t, buildImage(t, `CREATE TABLE t (a INTEGER)`))

	stmt, err := engine.Prepare(context.Background(), "INSERT INTO t VALUES (1)")
	if err != nil {
		// Some SQLite builds reject the write at prepare time.
		return
	}
	defer stmt.Close()
	if _, err := stmt.Step(); err == nil {
		t.Error("expected write to a read-only image to fail")
	}
}

func TestOpen_NotADatabase(t *testing.T) {
	data := bytes.Repeat([]byte("this is definitely not sqlite "), 200)

	_, err := Open(context.Background(), data, Options{TempDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected error for garbage bytes")
	}
	if !errors.Is(err, ErrNotDatabase) {
		t.Errorf("expected ErrNotDatabase, got %v", err)
	}
}

func TestOpen_EmptyImage(t *testing.T) {
	engine := openImage(t, nil)

	rows := query(t, engine, "SELECT 1 AS x")
	if len(rows) != 1 || rows[0]["x"] != int64(1) {
		t.Errorf("rows = %v", rows)
	}
}

func TestEngine_CloseRemovesImage(t *testing.T) {
	engine, err := Open(context.Background(), buildImage(t), Options{TempDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}

	path := engine.Path()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("image missing before close: %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("image still present after close: %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestStatement_CloseIdempotent(t *testing.T) {
	engine := openImage(t, buildImage(t))

	stmt, err := engine.Prepare(context.Background(), "SELECT 1")
	if err != nil {
		t.Fatal(err)
	}
	if err := stmt.Close(); err != nil {
		t.Fatal(err)
	}
	if err := stmt.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := stmt.Step(); !errors.Is(err, ErrClosed) {
		t.Errorf("Step after Close: expected ErrClosed, got %v", err)
	}
}

func TestEngine_ConcurrentQueries(t *testing.T) {
	engine := openImage(t, buildImage(t,
		`CREATE TABLE t (a INTEGER)`,
		`INSERT INTO t VALUES (1), (2), (3)`,
	))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stmt, err := engine.Prepare(context.Background(), "SELECT count(*) AS n FROM t")
			if err != nil {
				errs <- err
				return
			}
			defer stmt.Close()
			if _, err := stmt.Step(); err != nil {
				errs <- err
				return
			}
			row, err := stmt.Row()
			if err != nil {
				errs <- err
				return
			}
			if v, _ := row.Get("n"); v != int64(3) {
				errs <- errors.New("unexpected count")
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestSQLiteVersion(t *testing.T) {
	if SQLiteVersion() == "" {
		t.Error("expected a SQLite version")
	}
}
