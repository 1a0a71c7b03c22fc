package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/snapql/internal/core/domain"
)

// ErrNoMessage is returned by Next when the wait ends without a message.
var ErrNoMessage = errors.New("connection: no message before deadline")

// NotifyConn is an open notification channel.
type NotifyConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// NotifyURL maps server and path to the WebSocket endpoint.
func NotifyURL(server *url.URL, path string) string {
	u := *server
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = path
	return u.String()
}

// DialNotify opens the notification channel at path on server.
func DialNotify(ctx context.Context, server *url.URL, path string) (*NotifyConn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}

	ws, resp, err := dialer.DialContext(ctx, NotifyURL(server, path), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial notify channel: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial notify channel: %w", err)
	}
	return &NotifyConn{ws: ws}, nil
}

// Ping sends PING_DB.
func (c *NotifyConn) Ping(ctx context.Context) error {
	return c.send(ctx, domain.Message{Type: domain.MessagePingDB})
}

func (c *NotifyConn) send(ctx context.Context, msg domain.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.ws.SetWriteDeadline(deadline)
	return c.ws.WriteJSON(msg)
}

// Next waits for the next message until ctx is done. After ErrNoMessage
// the connection is unusable and must be closed.
func (c *NotifyConn) Next(ctx context.Context) (domain.Message, error) {
	if d, ok := ctx.Deadline(); ok {
		c.ws.SetReadDeadline(d)
	} else {
		c.ws.SetReadDeadline(time.Time{})
	}

	// Unblock the read when ctx is cancelled without a deadline
	stop := context.AfterFunc(ctx, func() {
		c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		var netErr interface{ Timeout() bool }
		if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
			return domain.Message{}, ErrNoMessage
		}
		return domain.Message{}, err
	}

	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.Message{}, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}

// Close sends a normal closure and closes the connection.
func (c *NotifyConn) Close() error {
	c.writeMu.Lock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.ws.Close()
}
