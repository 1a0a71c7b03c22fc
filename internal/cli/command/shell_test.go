package command

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestShell(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("POST /api", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, 200, `[{"n":1}]`)
	})
	srv.handle("GET /api", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, 200, `{"ready":true}`)
	})

	history := filepath.Join(t.TempDir(), "history")
	out, _, err := runApp(t, "SELECT 1\n  AS n;\n.ready\n.exit\n", "-s", srv.URL, "shell", "--history", history)
	if err != nil {
		t.Fatalf("shell error = %v", err)
	}

	if !strings.Contains(out, "n\n1\n(1 row)\n") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "ready\n") {
		t.Errorf("output = %q, want ready", out)
	}
	if body := srv.lastBody(); body["query"] != "SELECT 1\nAS n" {
		t.Errorf("sent query = %q", body["query"])
	}

	data, err := os.ReadFile(history)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "SELECT 1 AS n;\n.ready\n.exit\n" {
		t.Errorf("history = %q", data)
	}
}
