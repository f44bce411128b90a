package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/admitdesk/chatsync/internal/hub"
)

// ErrNotConnected is returned by Emit before Connect or after Disconnect.
var ErrNotConnected = errors.New("session: transport not connected")

// Transport is the persistent-connection primitive a session runs on. The
// websocket implementation below is the production one; tests substitute a
// fake.
type Transport interface {
	// Connect dials the endpoint, authenticating with token, and starts
	// dispatching inbound frames to registered handlers.
	Connect(ctx context.Context, endpoint, token string) error
	// Emit sends one event frame. It does not wait for acknowledgment.
	Emit(event string, payload any) error
	// On registers the handler for an event. Register before Connect;
	// frames for events without a handler are dropped.
	On(event string, handler func(payload []byte))
	// OnReconnect registers a callback invoked after every successful
	// automatic reconnect, so the session can rejoin its room.
	OnReconnect(fn func())
	// Disconnect tears the connection down and stops reconnecting.
	Disconnect() error
}

// WebsocketTransport implements Transport over coder/websocket with
// exponential-backoff reconnection.
type WebsocketTransport struct {
	mu          sync.Mutex
	conn        *websocket.Conn
	handlers    map[string]func(payload []byte)
	onReconnect func()
	closed      bool

	endpoint string
	token    string

	baseDelay  time.Duration
	maxDelay   time.Duration
	maxRetries int
}

// NewWebsocketTransport returns a transport with default backoff settings.
func NewWebsocketTransport() *WebsocketTransport {
	return &WebsocketTransport{
		handlers:   make(map[string]func(payload []byte)),
		baseDelay:  100 * time.Millisecond,
		maxDelay:   30 * time.Second,
		maxRetries: 10,
	}
}

// On implements Transport.
func (t *WebsocketTransport) On(event string, handler func(payload []byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[event] = handler
}

// OnReconnect implements Transport.
func (t *WebsocketTransport) OnReconnect(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReconnect = fn
}

// Connect implements Transport.
func (t *WebsocketTransport) Connect(ctx context.Context, endpoint, token string) error {
	t.mu.Lock()
	t.endpoint = endpoint
	t.token = token
	t.closed = false
	t.mu.Unlock()

	conn, err := t.dial(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	go t.readLoop(conn)
	return nil
}

// Emit implements Transport.
func (t *WebsocketTransport) Emit(event string, payload any) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	frame, err := hub.NewFrame(event, payload)
	if err != nil {
		return err
	}
	encoded, err := frame.Encode()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, encoded)
}

// Disconnect implements Transport. Idempotent.
func (t *WebsocketTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if t.conn != nil {
		t.conn.Close(websocket.StatusNormalClosure, "session closed")
		t.conn = nil
	}
	return nil
}

func (t *WebsocketTransport) dial(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	endpoint, token := t.endpoint, t.token
	t.mu.Unlock()

	conn, _, err := websocket.Dial(ctx, endpoint+"?token="+token, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// readLoop dispatches inbound frames until the connection drops, then hands
// off to the reconnect loop unless the transport was deliberately closed.
func (t *WebsocketTransport) readLoop(conn *websocket.Conn) {
	for {
		_, payload, err := conn.Read(context.Background())
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if closed {
				return
			}

			slog.Warn("chat connection lost, reconnecting", "error", err)
			t.reconnect()
			return
		}

		t.dispatch(payload)
	}
}

func (t *WebsocketTransport) dispatch(payload []byte) {
	var frame hub.Frame
	if err := json.Unmarshal(payload, &frame); err != nil {
		slog.Warn("discarding malformed frame from hub", "error", err)
		return
	}

	t.mu.Lock()
	handler := t.handlers[frame.Event]
	t.mu.Unlock()
	if handler != nil {
		handler(frame.Payload)
	}
}

// reconnect redials with exponential backoff and jitter. Gives up after
// maxRetries; the session's pending messages stay visible either way.
func (t *WebsocketTransport) reconnect() {
	for attempt := 0; attempt < t.maxRetries; attempt++ {
		time.Sleep(t.backoffDelay(attempt))

		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return
		}
		t.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		conn, err := t.dial(ctx)
		cancel()
		if err != nil {
			slog.Debug("reconnect attempt failed", "attempt", attempt+1, "error", err)
			continue
		}

		t.mu.Lock()
		t.conn = conn
		onReconnect := t.onReconnect
		t.mu.Unlock()

		slog.Info("chat connection re-established", "attempts", attempt+1)
		if onReconnect != nil {
			onReconnect()
		}
		go t.readLoop(conn)
		return
	}

	slog.Error("giving up on chat reconnection", "attempts", t.maxRetries)
}

func (t *WebsocketTransport) backoffDelay(attempt int) time.Duration {
	delay := float64(t.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(t.maxDelay) {
		delay = float64(t.maxDelay)
	}
	// Up to 25% jitter keeps reconnect storms apart.
	delay += rand.Float64() * delay * 0.25
	return time.Duration(delay)
}
