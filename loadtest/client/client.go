// Package client is a scripted player for load tests. It speaks the same
// WebSocket protocol as real clients and keeps per-connection counters.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/chatty/chat-relay/internal/protocol"
)

// Metrics are the counters of one connection.
type Metrics struct {
	ConnectLatency time.Duration
	Sent           int
	Received       int
	RateLimited    int
	Errors         int
}

// Client is one simulated player.
type Client struct {
	name string
	conn net.Conn

	writeMu sync.Mutex

	mu       sync.Mutex
	metrics  Metrics
	session  string
	handlers map[string]func(json.RawMessage)

	ready     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New connects to the ws endpoint at base as player name. Reading starts
// immediately; use WaitForSession before sending.
func New(ctx context.Context, base, name string) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("name", name)
	u.RawQuery = q.Encode()

	start := time.Now()
	conn, _, _, err := ws.Dial(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", name, err)
	}

	c := &Client{
		name:     name,
		conn:     conn,
		handlers: make(map[string]func(json.RawMessage)),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	c.metrics.ConnectLatency = time.Since(start)
	go c.readLoop()
	return c, nil
}

// Name returns the player name the client joined with.
func (c *Client) Name() string { return c.name }

// On sets the handler for a server message type. Handlers run on the read
// goroutine. Register them before the server can send that type.
func (c *Client) On(msgType string, h func(json.RawMessage)) {
	c.mu.Lock()
	c.handlers[msgType] = h
	c.mu.Unlock()
}

// WaitForSession blocks until session_created arrives.
func (c *Client) WaitForSession(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-c.done:
		return fmt.Errorf("%s: connection closed before session was created", c.name)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Chat sends a line of chat, channel symbol included.
func (c *Client) Chat(text string) error {
	return c.send(protocol.ChatMsg{Type: protocol.TypeMessage, Text: text})
}

// Move reports a new position.
func (c *Client) Move(world string, x, y, z float64) error {
	return c.send(protocol.MoveMsg{Type: protocol.TypeMove, World: world, X: x, Y: y, Z: z})
}

// Command runs a chat command.
func (c *Client) Command(label string, args ...string) error {
	return c.send(protocol.CommandMsg{Type: protocol.TypeCommand, Label: label, Args: args})
}

func (c *Client) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	c.writeMu.Lock()
	err = wsutil.WriteClientText(c.conn, data)
	c.writeMu.Unlock()

	c.mu.Lock()
	if err != nil {
		c.metrics.Errors++
	} else {
		c.metrics.Sent++
	}
	c.mu.Unlock()
	return err
}

// Close closes the connection. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// Alive reports whether the read loop is still running.
func (c *Client) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Metrics returns a copy of the counters.
func (c *Client) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

func (c *Client) readLoop() {
	defer c.Close()
	for {
		data, err := wsutil.ReadServerText(c.conn)
		if err != nil {
			select {
			case <-c.done:
			default:
				c.mu.Lock()
				c.metrics.Errors++
				c.mu.Unlock()
			}
			return
		}

		var env struct {
			Type      string `json:"type"`
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		c.mu.Lock()
		c.metrics.Received++
		if env.Type == protocol.TypeRateLimited {
			c.metrics.RateLimited++
		}
		first := env.Type == protocol.TypeSessionCreated && c.session == ""
		if first {
			c.session = env.SessionID
		}
		h := c.handlers[env.Type]
		c.mu.Unlock()

		if first {
			close(c.ready)
		}
		if h != nil {
			h(json.RawMessage(data))
		}
	}
}
