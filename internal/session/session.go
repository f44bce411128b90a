// Package session is the client side of one conversation: it owns the
// persistent connection, seeds its timeline from the history store, and
// reconciles optimistically rendered messages against the hub's echoes.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/admitdesk/chatsync/internal/auth"
	"github.com/admitdesk/chatsync/internal/chat"
	"github.com/admitdesk/chatsync/internal/history"
	"github.com/admitdesk/chatsync/internal/hub"
)

// State is the session lifecycle: a session is bound to one conversation and
// moves strictly forward through these states.
type State int

const (
	StateIdle State = iota
	StateLoadingHistory
	StateLive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingHistory:
		return "loading-history"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	ErrNotLive       = errors.New("session: not live")
	ErrAlreadyOpen   = errors.New("session: already open")
	ErrClosed        = errors.New("session: closed")
	ErrEmptyText     = errors.New("session: message text is empty")
	ErrMissingSender = errors.New("session: no authenticated sender identity")
)

// Session binds one user to one conversation over a Transport.
type Session struct {
	identity     auth.Identity
	endpoint     string
	transport    Transport
	fetcher      history.Fetcher
	historyLimit int

	mu             sync.Mutex
	state          State
	conversationID string
	timeline       *chat.Timeline
	// buffered holds messages relayed while history is still loading, so
	// the seed cannot clobber them.
	buffered []chat.Message
	// historyErr records a failed history fetch; the session still goes
	// live, new messages just arrive without backfill.
	historyErr error
}

// New creates an idle session for the given identity.
func New(identity auth.Identity, endpoint string, transport Transport, fetcher history.Fetcher, historyLimit int) *Session {
	return &Session{
		identity:     identity,
		endpoint:     endpoint,
		transport:    transport,
		fetcher:      fetcher,
		historyLimit: historyLimit,
		state:        StateIdle,
		timeline:     chat.NewTimeline(),
	}
}

// Open binds the session to the conversation between the two participants,
// fetches history and establishes the live connection concurrently, and
// transitions to Live once both have completed. A failed history fetch is
// recorded (see HistoryErr) but does not prevent going live; a failed
// connection aborts the open.
func (s *Session) Open(ctx context.Context, participantA, participantB string) error {
	if s.identity.UserID == "" {
		return ErrMissingSender
	}

	conversationID, err := chat.ConversationID(participantA, participantB)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyOpen
	}
	s.state = StateLoadingHistory
	s.conversationID = conversationID
	s.mu.Unlock()

	s.transport.On(hub.EventReceive, s.handleReceive)
	s.transport.On(hub.EventError, s.handleSendError)
	s.transport.OnReconnect(func() {
		if err := s.emitJoin(); err != nil {
			slog.Error("failed to rejoin conversation after reconnect", "conversationID", conversationID, "error", err)
		}
	})

	// History fetch and connection establishment are independent; run them
	// in parallel and settle both before going live.
	var (
		wg         sync.WaitGroup
		messages   []chat.Message
		historyErr error
		connectErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		messages, historyErr = s.fetcher.FetchHistory(ctx, conversationID, s.historyLimit)
	}()
	go func() {
		defer wg.Done()
		if err := s.transport.Connect(ctx, s.endpoint, s.identity.Token); err != nil {
			connectErr = err
			return
		}
		connectErr = s.emitJoin()
	}()
	wg.Wait()

	if connectErr != nil {
		s.mu.Lock()
		// Close may have won the race while we were dialing; a closed
		// session stays closed.
		if s.state == StateLoadingHistory {
			s.state = StateIdle
			s.conversationID = ""
		}
		s.mu.Unlock()
		return connectErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateLoadingHistory {
		// Closed while the fetch or dial was in flight. Tear the fresh
		// connection down instead of resurrecting the session; relayed
		// frames must not reach a disposed timeline.
		s.transport.Disconnect()
		return ErrClosed
	}

	if historyErr != nil {
		slog.Error("history fetch failed, going live without backfill", "conversationID", conversationID, "error", historyErr)
		s.historyErr = historyErr
	} else {
		s.timeline.Seed(messages)
	}

	// Messages relayed during the fetch reconcile in after the seed.
	for _, m := range s.buffered {
		s.timeline.Reconcile(m)
	}
	s.buffered = nil
	s.state = StateLive

	return nil
}

// Send appends an optimistic pending message to the timeline and transmits
// it. It returns the pending copy immediately; the authoritative echo will
// replace it in place.
func (s *Session) Send(text string) (chat.Message, error) {
	if s.identity.UserID == "" {
		return chat.Message{}, ErrMissingSender
	}
	if strings.TrimSpace(text) == "" {
		return chat.Message{}, ErrEmptyText
	}

	s.mu.Lock()
	if s.state != StateLive {
		s.mu.Unlock()
		return chat.Message{}, ErrNotLive
	}
	conversationID := s.conversationID
	pending := chat.NewPending(s.identity.UserID, s.peerID(), text)
	s.timeline.Append(pending)
	s.mu.Unlock()

	err := s.transport.Emit(hub.EventSend, hub.SendPayload{
		ConversationID: conversationID,
		SenderID:       s.identity.UserID,
		RecipientID:    pending.RecipientID,
		Text:           text,
		PendingRef:     pending.ID,
	})
	if err != nil {
		// No echo will come; keep the entry visible but mark it failed.
		s.mu.Lock()
		s.timeline.MarkFailed(pending.ID)
		s.mu.Unlock()
		return pending, err
	}

	return pending, nil
}

// Close unsubscribes from the relay and tears the connection down.
// Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.mu.Unlock()

	return s.transport.Disconnect()
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ConversationID returns the bound conversation id, empty while idle.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Messages returns a copy of the rendered timeline.
func (s *Session) Messages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.Messages()
}

// HistoryErr reports the history fetch failure, if any. Live relay still
// works without history.
func (s *Session) HistoryErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyErr
}

func (s *Session) emitJoin() error {
	s.mu.Lock()
	conversationID := s.conversationID
	s.mu.Unlock()
	return s.transport.Emit(hub.EventJoin, hub.JoinPayload{ConversationID: conversationID})
}

// peerID extracts the other participant from the conversation id; used to
// fill the informational recipient field. Callers hold s.mu.
func (s *Session) peerID() string {
	for _, part := range strings.Split(s.conversationID, "_") {
		if part != s.identity.UserID {
			return part
		}
	}
	return ""
}

func (s *Session) handleReceive(payload []byte) {
	receive, err := decode[hub.ReceivePayload](payload)
	if err != nil {
		slog.Warn("discarding malformed receive frame", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if receive.ConversationID != s.conversationID || s.state == StateClosed || s.state == StateIdle {
		return
	}

	if s.state == StateLoadingHistory {
		s.buffered = append(s.buffered, receive.Message)
		return
	}

	s.timeline.Reconcile(receive.Message)
}

func (s *Session) handleSendError(payload []byte) {
	sendErr, err := decode[hub.ErrorPayload](payload)
	if err != nil {
		slog.Warn("discarding malformed error frame", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timeline.MarkFailed(sendErr.PendingRef) {
		slog.Warn("message failed to send", "pendingID", sendErr.PendingRef, "reason", sendErr.Reason)
	}
}
