package command

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestQuery_Table(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("POST /api", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, 200, `[{"id":1,"title":"first"},{"id":2,"title":null}]`)
	})

	out, _, err := runApp(t, "", "-s", srv.URL, "query", "SELECT id, title FROM posts WHERE id > ?", "0")
	if err != nil {
		t.Fatalf("query error = %v", err)
	}

	want := "id  title\n1   first\n2   NULL\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}

	body := srv.lastBody()
	if body["query"] != "SELECT id, title FROM posts WHERE id > ?" {
		t.Errorf("sent query = %v", body["query"])
	}
	data, _ := body["data"].([]any)
	if len(data) != 1 || data[0] != json.Number("0") {
		t.Errorf("sent data = %#v, want [0]", body["data"])
	}
}

func TestQuery_JSON(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("POST /app/api", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, 200, `[{"b":2,"a":1}]`)
	})

	out, _, err := runApp(t, "", "-s", srv.URL, "-b", "/app/", "-o", "json", "query", "SELECT 2 AS b, 1 AS a")
	if err != nil {
		t.Fatalf("query error = %v", err)
	}
	if out != "[\n  {\n    \"b\": 2,\n    \"a\": 1\n  }\n]\n" {
		t.Errorf("output = %q", out)
	}
}

func TestQuery_YAML(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("POST /api", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, 200, `[{"name":"ann","age":30}]`)
	})

	out, _, err := runApp(t, "", "-s", srv.URL, "-o", "yaml", "query", "SELECT name, age FROM people")
	if err != nil {
		t.Fatalf("query error = %v", err)
	}
	if out != "- name: ann\n  age: 30\n" {
		t.Errorf("output = %q", out)
	}
}

func TestQuery_Stdin(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("POST /api", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, 200, `[]`)
	})

	if _, _, err := runApp(t, "  SELECT ?  \n", "-s", srv.URL, "query", "-", "x"); err != nil {
		t.Fatalf("query error = %v", err)
	}

	body := srv.lastBody()
	if body["query"] != "SELECT ?" {
		t.Errorf("sent query = %q, want trimmed stdin", body["query"])
	}
	if data, _ := body["data"].([]any); len(data) != 1 || data[0] != "x" {
		t.Errorf("sent data = %v", body["data"])
	}
}

func TestQuery_File(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("POST /api", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, 200, `[]`)
	})

	path := filepath.Join(t.TempDir(), "q.sql")
	if err := os.WriteFile(path, []byte("SELECT * FROM posts WHERE id = ?"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := runApp(t, "", "-s", srv.URL, "query", "-f", path, "7"); err != nil {
		t.Fatalf("query error = %v", err)
	}
	body := srv.lastBody()
	if body["query"] != "SELECT * FROM posts WHERE id = ?" {
		t.Errorf("sent query = %v", body["query"])
	}
	if data, _ := body["data"].([]any); len(data) != 1 || data[0] != json.Number("7") {
		t.Errorf("sent data = %v", body["data"])
	}
}

func TestQuery_ServerErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"denied table", 403, `{"error":"Forbidden: Access to users table is restricted"}`, "403 Forbidden: Access to users table is restricted"},
		{"execution", 500, `{"error":"Internal Server Error","details":"no such table: nowhere"}`, "no such table: nowhere"},
		{"bad request", 400, `{"error":"Bad Request"}`, "400 Bad Request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newMockServer(t)
			srv.handle("POST /api", func(w http.ResponseWriter, r *http.Request) {
				jsonResponse(w, tt.status, tt.body)
			})

			_, _, err := runApp(t, "", "-s", srv.URL, "query", "SELECT 1")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("query error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestQuery_MissingSQL(t *testing.T) {
	_, _, err := runApp(t, "", "query")
	if err == nil || !strings.Contains(err.Error(), "missing SQL") {
		t.Errorf("query error = %v, want missing SQL", err)
	}

	_, _, err = runApp(t, "   ", "query", "-")
	if err == nil || !strings.Contains(err.Error(), "empty SQL") {
		t.Errorf("query error = %v, want empty SQL", err)
	}
}
