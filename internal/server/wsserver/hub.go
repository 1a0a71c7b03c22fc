package wsserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/yndnr/snapql/internal/core/domain"
	"github.com/yndnr/snapql/internal/core/service"
	"github.com/yndnr/snapql/internal/telemetry/logger"
	"github.com/yndnr/snapql/internal/telemetry/metric"
)

// ErrHubClosed is returned for connections attempted after Close.
var ErrHubClosed = errors.New("wsserver: hub closed")

// MessageHandler processes inbound page messages. Notifier implements it.
type MessageHandler interface {
	HandleMessage(ctx context.Context, from service.Client, raw []byte) error
}

// Config holds hub settings.
type Config struct {
	// PingInterval is the keepalive period. Zero disables pings and read
	// deadlines.
	PingInterval time.Duration

	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration

	// ReadLimit is the largest accepted inbound frame in bytes.
	ReadLimit int64

	// AllowedOrigins lists page origins allowed to connect besides the
	// server's own. "*" allows any.
	AllowedOrigins []string
}

// DefaultConfig returns the default hub settings.
func DefaultConfig() Config {
	return Config{
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
		ReadLimit:    64 * 1024,
	}
}

// Hub tracks connected pages.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader
	metrics  *metric.Registry
	logger   *slog.Logger

	handler MessageHandler

	mu      sync.RWMutex
	clients map[string]*Conn
	closed  bool

	wg sync.WaitGroup
}

var _ service.ClientSource = (*Hub)(nil)

// NewHub creates a Hub. SetHandler must be called before it serves.
func NewHub(cfg Config, metrics *metric.Registry, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = def.ReadLimit
	}

	h := &Hub{
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.With("component", "wsserver"),
		clients: make(map[string]*Conn),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// SetHandler sets the inbound message handler.
func (h *Hub) SetHandler(handler MessageHandler) {
	h.handler = handler
}

// Clients implements service.ClientSource.
func (h *Hub) Clients() []service.Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]service.Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// Len returns the number of connected pages.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	c := &Conn{
		id:           ulid.Make().String(),
		ws:           ws,
		writeTimeout: h.cfg.WriteTimeout,
	}
	if !h.register(c) {
		c.close(websocket.CloseGoingAway, "server shutting down")
		return
	}
	defer h.unregister(c)

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	ctx = logger.WithClientID(ctx, c.id)

	log := h.logger.With("client_id", c.id)
	log.Debug("client connected", "remote", r.RemoteAddr)

	if h.cfg.PingInterval > 0 {
		go c.keepalive(ctx, h.cfg.PingInterval)
	}
	h.readLoop(ctx, c, log)
}

func (h *Hub) readLoop(ctx context.Context, c *Conn, log *slog.Logger) {
	c.ws.SetReadLimit(h.cfg.ReadLimit)
	if h.cfg.PingInterval > 0 {
		wait := 2 * h.cfg.PingInterval
		c.ws.SetReadDeadline(time.Now().Add(wait))
		c.ws.SetPongHandler(func(string) error {
			return c.ws.SetReadDeadline(time.Now().Add(wait))
		})
	}

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Debug("client read failed", "error", err)
			}
			return
		}
		if h.handler == nil || !h.track() {
			continue
		}

		go func() {
			defer h.wg.Done()
			// Errors are logged by the handler.
			_ = h.handler.HandleMessage(ctx, c, raw)
		}()
	}
}

// track adds an in-flight handler unless the hub is closing.
func (h *Hub) track() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return false
	}
	h.wg.Add(1)
	return true
}

func (h *Hub) register(c *Conn) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetNotifyClients(n)
	return true
}

func (h *Hub) unregister(c *Conn) {
	h.mu.Lock()
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()

	c.ws.Close()
	h.metrics.SetNotifyClients(n)
	h.logger.Debug("client disconnected", "client_id", c.id)
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.cfg.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// Close sends a close frame to every page and waits for in-flight
// message handlers to return.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	conns := make([]*Conn, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.close(websocket.CloseGoingAway, "server shutting down")
	}
	h.wg.Wait()
	return nil
}

// ============================================================================
// Conn
// ============================================================================

// Conn is one connected page.
type Conn struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration

	// gorilla allows one concurrent writer per connection.
	writeMu sync.Mutex
}

var _ service.Client = (*Conn)(nil)

// ID returns the connection's ULID.
func (c *Conn) ID() string {
	return c.id
}

// Post writes msg as a JSON text frame.
func (c *Conn) Post(ctx context.Context, msg domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteJSON(msg)
}

func (c *Conn) keepalive(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// WriteControl may run concurrently with other writers.
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
		}
	}
}

func (c *Conn) close(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = c.ws.Close()
}
