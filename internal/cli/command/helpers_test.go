package command

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/snapql/internal/cli/config"
)

// mockServer records requests and answers with canned handlers.
type mockServer struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	bodies   []string
}

func newMockServer(t *testing.T) *mockServer {
	t.Helper()
	m := &mockServer{handlers: make(map[string]http.HandlerFunc)}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		m.mu.Lock()
		m.bodies = append(m.bodies, string(body))
		h, ok := m.handlers[r.Method+" "+r.URL.Path]
		m.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *mockServer) handle(pattern string, h http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[pattern] = h
}

func (m *mockServer) lastBody() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.bodies) == 0 {
		return nil
	}
	var v map[string]any
	dec := json.NewDecoder(strings.NewReader(m.bodies[len(m.bodies)-1]))
	dec.UseNumber()
	dec.Decode(&v)
	return v
}

func jsonResponse(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

// runApp runs the CLI with args and captures its output. Exit codes are
// reported instead of terminating the test binary.
func runApp(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	// keep the user's ~/.snapql out of tests
	if os.Getenv(config.EnvConfigPath) == "" {
		t.Setenv(config.EnvConfigPath, filepath.Join(t.TempDir(), "cli.yaml"))
	}

	var out, errOut bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.Reader = strings.NewReader(stdin)
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.RunContext(context.Background(), append([]string{"snapql-cli"}, args...))
	return out.String(), errOut.String(), err
}
