package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admitdesk/chatsync/internal/auth"
	"github.com/admitdesk/chatsync/internal/chat"
	"github.com/admitdesk/chatsync/internal/hub"
)

// fakeTransport implements Transport in-memory: it records emitted frames
// and lets tests inject inbound frames through the registered handlers.
type fakeTransport struct {
	mu          sync.Mutex
	handlers    map[string]func(payload []byte)
	onReconnect func()
	emitted     []hub.Frame
	connectErr  error
	emitErr     error
	connected   bool
	onConnect   func()
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[string]func(payload []byte))}
}

func (f *fakeTransport) Connect(ctx context.Context, endpoint, token string) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.mu.Lock()
	f.connected = true
	hook := f.onConnect
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (f *fakeTransport) Emit(event string, payload any) error {
	if f.emitErr != nil {
		return f.emitErr
	}
	frame, err := hub.NewFrame(event, payload)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, frame)
	return nil
}

func (f *fakeTransport) On(event string, handler func(payload []byte)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = handler
}

func (f *fakeTransport) OnReconnect(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onReconnect = fn
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

// inject delivers an inbound frame as if the hub had sent it.
func (f *fakeTransport) inject(t *testing.T, event string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	f.mu.Lock()
	handler := f.handlers[event]
	f.mu.Unlock()
	require.NotNil(t, handler, "no handler registered for %s", event)
	handler(raw)
}

func (f *fakeTransport) emittedEvents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.emitted))
	for i, frame := range f.emitted {
		out[i] = frame.Event
	}
	return out
}

func (f *fakeTransport) lastSend(t *testing.T) hub.SendPayload {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.emitted) - 1; i >= 0; i-- {
		if f.emitted[i].Event == hub.EventSend {
			var payload hub.SendPayload
			require.NoError(t, json.Unmarshal(f.emitted[i].Payload, &payload))
			return payload
		}
	}
	t.Fatal("no send frame emitted")
	return hub.SendPayload{}
}

// fakeFetcher implements history.Fetcher.
type fakeFetcher struct {
	messages []chat.Message
	err      error
	// block, when set, is waited on before returning; lets tests overlap
	// the fetch with live traffic.
	block chan struct{}
}

func (f *fakeFetcher) FetchHistory(ctx context.Context, conversationID string, limit int) ([]chat.Message, error) {
	if f.block != nil {
		<-f.block
	}
	return f.messages, f.err
}

func identity(userID string) auth.Identity {
	return auth.Identity{UserID: userID, Token: "token-" + userID}
}

func newLiveSession(t *testing.T) (*Session, *fakeTransport) {
	t.Helper()
	transport := newFakeTransport()
	s := New(identity("u1"), "ws://hub/ws/chat", transport, &fakeFetcher{}, 50)
	require.NoError(t, s.Open(context.Background(), "u1", "u2"))
	require.Equal(t, StateLive, s.State())
	return s, transport
}

func TestOpen_GoesLiveAndJoins(t *testing.T) {
	transport := newFakeTransport()
	fetcher := &fakeFetcher{messages: []chat.Message{
		{ID: "msg:1", SenderID: "u2", Text: "earlier"},
	}}
	s := New(identity("u1"), "ws://hub/ws/chat", transport, fetcher, 50)

	require.NoError(t, s.Open(context.Background(), "u2", "u1"))

	assert.Equal(t, StateLive, s.State())
	assert.Equal(t, "u1_u2", s.ConversationID())
	assert.Equal(t, []string{hub.EventJoin}, transport.emittedEvents())

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "msg:1", msgs[0].ID)
}

func TestOpen_MissingParticipantIsRejected(t *testing.T) {
	s := New(identity("u1"), "ws://hub/ws/chat", newFakeTransport(), &fakeFetcher{}, 50)

	err := s.Open(context.Background(), "u1", "")
	assert.ErrorIs(t, err, chat.ErrMissingParticipant)
	assert.Equal(t, StateIdle, s.State())
}

func TestOpen_Twice(t *testing.T) {
	s, _ := newLiveSession(t)
	assert.ErrorIs(t, s.Open(context.Background(), "u1", "u2"), ErrAlreadyOpen)
}

func TestOpen_ConnectFailureStaysIdle(t *testing.T) {
	transport := newFakeTransport()
	transport.connectErr = errors.New("dial failed")
	s := New(identity("u1"), "ws://hub/ws/chat", transport, &fakeFetcher{}, 50)

	err := s.Open(context.Background(), "u1", "u2")
	assert.Error(t, err)
	assert.Equal(t, StateIdle, s.State())
}

func TestOpen_HistoryFailureStillGoesLive(t *testing.T) {
	transport := newFakeTransport()
	fetcher := &fakeFetcher{err: errors.New("store timeout")}
	s := New(identity("u1"), "ws://hub/ws/chat", transport, fetcher, 50)

	require.NoError(t, s.Open(context.Background(), "u1", "u2"))

	assert.Equal(t, StateLive, s.State())
	assert.Error(t, s.HistoryErr())
	assert.Empty(t, s.Messages())

	// Live relay still works without backfill.
	transport.inject(t, hub.EventReceive, hub.ReceivePayload{
		ConversationID: "u1_u2",
		Message:        chat.Message{ID: "msg:9", SenderID: "u2", Text: "hi"},
	})
	assert.Len(t, s.Messages(), 1)
}

func TestSend_Validation(t *testing.T) {
	s, _ := newLiveSession(t)

	_, err := s.Send("")
	assert.ErrorIs(t, err, ErrEmptyText)
	_, err = s.Send("   \t ")
	assert.ErrorIs(t, err, ErrEmptyText)

	anon := New(auth.Identity{}, "ws://hub/ws/chat", newFakeTransport(), &fakeFetcher{}, 50)
	_, err = anon.Send("hello")
	assert.ErrorIs(t, err, ErrMissingSender)

	idle := New(identity("u1"), "ws://hub/ws/chat", newFakeTransport(), &fakeFetcher{}, 50)
	_, err = idle.Send("hello")
	assert.ErrorIs(t, err, ErrNotLive)
}

// A session that sends "Hello" renders it pending immediately, and the hub's
// echo reconciles it to the persisted copy without growing the timeline.
func TestSend_OptimisticThenReconciled(t *testing.T) {
	s, transport := newLiveSession(t)

	pending, err := s.Send("Hello")
	require.NoError(t, err)
	assert.True(t, pending.Pending())
	assert.Equal(t, "u2", pending.RecipientID)

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Pending())

	sent := transport.lastSend(t)
	assert.Equal(t, "u1_u2", sent.ConversationID)
	assert.Equal(t, pending.ID, sent.PendingRef)

	transport.inject(t, hub.EventReceive, hub.ReceivePayload{
		ConversationID: "u1_u2",
		Message:        chat.Message{ID: "msg:1", SenderID: "u1", Text: "Hello"},
	})

	msgs = s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "msg:1", msgs[0].ID)
	assert.False(t, msgs[0].Pending())
}

func TestSend_EmitFailureMarksPendingFailed(t *testing.T) {
	s, transport := newLiveSession(t)
	transport.emitErr = errors.New("connection lost")

	pending, err := s.Send("Hello")
	assert.Error(t, err)

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, pending.ID, msgs[0].ID)
	assert.True(t, msgs[0].Failed)
}

func TestSendErrorFrame_MarksPendingFailed(t *testing.T) {
	s, transport := newLiveSession(t)

	pending, err := s.Send("Hello")
	require.NoError(t, err)

	transport.inject(t, hub.EventError, hub.ErrorPayload{
		ConversationID: "u1_u2",
		PendingRef:     pending.ID,
		Reason:         "message could not be saved",
	})

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Failed)
}

func TestReceive_IgnoresOtherConversations(t *testing.T) {
	s, transport := newLiveSession(t)

	transport.inject(t, hub.EventReceive, hub.ReceivePayload{
		ConversationID: "u3_u4",
		Message:        chat.Message{ID: "msg:7", SenderID: "u3", Text: "wrong room"},
	})

	assert.Empty(t, s.Messages())
}

// A message relayed while the history fetch is still in flight must survive
// the seed instead of being clobbered by it.
func TestReceive_DuringHistoryLoadIsBuffered(t *testing.T) {
	transport := newFakeTransport()
	fetcher := &fakeFetcher{
		messages: []chat.Message{{ID: "msg:1", SenderID: "u2", Text: "earlier"}},
		block:    make(chan struct{}),
	}
	s := New(identity("u1"), "ws://hub/ws/chat", transport, fetcher, 50)

	// As soon as the connection is up, the hub relays a live message; only
	// then does the history fetch come back.
	transport.onConnect = func() {
		transport.inject(t, hub.EventReceive, hub.ReceivePayload{
			ConversationID: "u1_u2",
			Message:        chat.Message{ID: "msg:2", SenderID: "u2", Text: "live one"},
		})
		close(fetcher.block)
	}

	require.NoError(t, s.Open(context.Background(), "u1", "u2"))

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "msg:1", msgs[0].ID)
	assert.Equal(t, "msg:2", msgs[1].ID)
}

func TestClose_DuringOpenStaysClosed(t *testing.T) {
	transport := newFakeTransport()
	fetcher := &fakeFetcher{block: make(chan struct{})}
	s := New(identity("u1"), "ws://hub/ws/chat", transport, fetcher, 50)

	// The connection comes up and the owner closes the session while the
	// history fetch is still in flight; only then does the fetch return.
	transport.onConnect = func() {
		require.NoError(t, s.Close())
		require.Equal(t, StateClosed, s.State())
		close(fetcher.block)
	}

	err := s.Open(context.Background(), "u1", "u2")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, StateClosed, s.State())

	// Frames relayed after the close must not reach the disposed timeline.
	transport.inject(t, hub.EventReceive, hub.ReceivePayload{
		ConversationID: "u1_u2",
		Message:        chat.Message{ID: "msg:9", SenderID: "u2", Text: "late echo"},
	})
	assert.Empty(t, s.Messages())
}

func TestClose_Idempotent(t *testing.T) {
	s, transport := newLiveSession(t)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.State())

	// Late frames after close are ignored.
	transport.inject(t, hub.EventReceive, hub.ReceivePayload{
		ConversationID: "u1_u2",
		Message:        chat.Message{ID: "msg:3", SenderID: "u2", Text: "too late"},
	})
	assert.Empty(t, s.Messages())

	_, err := s.Send("hello")
	assert.ErrorIs(t, err, ErrNotLive)
}

func TestReconnect_RejoinsRoom(t *testing.T) {
	s, transport := newLiveSession(t)
	_ = s

	transport.mu.Lock()
	onReconnect := transport.onReconnect
	transport.mu.Unlock()
	require.NotNil(t, onReconnect)

	onReconnect()

	events := transport.emittedEvents()
	joins := 0
	for _, e := range events {
		if e == hub.EventJoin {
			joins++
		}
	}
	assert.Equal(t, 2, joins)
}
