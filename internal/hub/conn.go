package hub

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// sendBuffer is the per-connection outbound queue depth. A member that falls
// this far behind starts dropping frames rather than stalling the room.
const sendBuffer = 256

// Conn is one persistent client connection registered with the hub. The hub
// delivers frames into its send channel; the write pump drains the channel
// onto the websocket.
type Conn struct {
	ID     string
	UserID string

	socket *websocket.Conn
	send   chan []byte

	mu     sync.RWMutex
	closed bool
}

// NewConn wraps an accepted websocket for the given user. socket may be nil
// in tests; only the pumps touch it.
func NewConn(userID string, socket *websocket.Conn) *Conn {
	return &Conn{
		ID:     uuid.NewString(),
		UserID: userID,
		socket: socket,
		send:   make(chan []byte, sendBuffer),
	}
}

// Deliver queues a frame for the client without blocking. Frames to a full
// or closed connection are dropped; the room keeps moving.
func (c *Conn) Deliver(payload []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return
	}

	select {
	case c.send <- payload:
	default:
		slog.Warn("connection send buffer full, dropping frame", "connID", c.ID, "userID", c.UserID)
	}
}

// Close shuts the send channel. Idempotent; called by the hub on unregister.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Outbound exposes the send channel for tests and the write pump.
func (c *Conn) Outbound() <-chan []byte {
	return c.send
}

// writePump drains the send channel onto the websocket. One writer per
// connection.
func (c *Conn) writePump() {
	defer c.socket.Close(websocket.StatusNormalClosure, "server-side cleanup")

	for payload := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.socket.Write(ctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			slog.Error("websocket write error", "connID", c.ID, "userID", c.UserID, "error", err)
			return
		}
	}
}

// readPump reads frames from the websocket and hands them to the hub. One
// reader per connection; returning unregisters the connection.
func (c *Conn) readPump(h *Hub) {
	defer func() {
		h.Unregister(c)
		c.socket.Close(websocket.StatusNormalClosure, "client disconnected")
	}()

	for {
		_, payload, err := c.socket.Read(context.Background())
		if err != nil {
			switch {
			case websocket.CloseStatus(err) == websocket.StatusNormalClosure,
				websocket.CloseStatus(err) == websocket.StatusGoingAway:
				slog.Info("websocket closed by client", "connID", c.ID, "userID", c.UserID)
			case err == io.EOF:
			default:
				slog.Error("websocket read error", "connID", c.ID, "userID", c.UserID, "error", err)
			}
			return
		}

		h.handleFrame(context.Background(), c, payload)
	}
}
