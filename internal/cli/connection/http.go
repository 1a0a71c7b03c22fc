package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yndnr/snapql/internal/core/domain"
	"github.com/yndnr/snapql/internal/infra/buildinfo"
)

// DefaultTimeout bounds a single HTTP exchange.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of a failed response is read.
const maxErrorBody = 64 << 10

// APIError is a non-200 answer from the server.
type APIError struct {
	Status  int
	Message string
	Details string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Details != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, msg, e.Details)
	}
	return fmt.Sprintf("%d %s", e.Status, msg)
}

// Client provides HTTP communication with the server.
type Client struct {
	server *url.URL
	api    string
	client *http.Client
}

// NewClient creates a client for server ("host:port" or a URL) with the
// application scope basePath.
func NewClient(server, basePath string, timeout time.Duration) (*Client, error) {
	base, err := ServerURL(server)
	if err != nil {
		return nil, err
	}
	if basePath == "" {
		basePath = "/"
	}
	if !strings.HasSuffix(basePath, "/") {
		basePath += "/"
	}
	scope, err := url.Parse(basePath)
	if err != nil {
		return nil, fmt.Errorf("parse base path: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	api := base.ResolveReference(scope).ResolveReference(&url.URL{Path: "api"})
	return &Client{
		server: base,
		api:    api.String(),
		client: &http.Client{Timeout: timeout},
	}, nil
}

// ServerURL normalizes a server address. A bare host:port means http.
func ServerURL(server string) (*url.URL, error) {
	if server == "" {
		return nil, fmt.Errorf("server address is required")
	}
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("parse server address: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("server address %q has no host", server)
	}
	u.Path, u.RawQuery, u.Fragment = "", "", ""
	return u, nil
}

// APIURL returns the resolved api endpoint.
func (c *Client) APIURL() string {
	return c.api
}

// Server returns the normalized server URL.
func (c *Client) Server() *url.URL {
	u := *c.server
	return &u
}

// Query runs sql with positional args and returns the rows in order.
func (c *Client) Query(ctx context.Context, sql string, args []any) ([]*domain.Row, error) {
	if args == nil {
		args = []any{}
	}
	body, err := json.Marshal(map[string]any{"query": sql, "data": args})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.api, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var rows []*domain.Row
	if err := c.do(req, &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []*domain.Row{}
	}
	return rows, nil
}

// Ready asks the server whether the snapshot is loaded. The server
// triggers the load if it has not happened yet.
func (c *Client) Ready(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.api, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}

	var body domain.ReadyBody
	if err := c.do(req, &body); err != nil {
		return false, err
	}
	return body.Ready, nil
}

func (c *Client) do(req *http.Request, target any) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "snapql-cli/"+buildinfo.Version)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return parseError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// parseError turns a failed response into an APIError. Bodies that are
// not the {"error","details"} shape leave Message empty.
func parseError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body domain.ErrorBody
	if err := json.Unmarshal(data, &body); err == nil {
		apiErr.Message = body.Error
		apiErr.Details = body.Details
	}
	return apiErr
}
