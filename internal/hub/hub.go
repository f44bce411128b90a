// Package hub is the server side of the chat subsystem: it accepts
// persistent connections, tracks which conversation rooms each one has
// joined, and relays every accepted message to all members of its room —
// including the sender, whose echo drives client-side reconciliation.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/admitdesk/chatsync/internal/history"
	"github.com/admitdesk/chatsync/internal/pubsub"
)

// Hub owns all rooms and registered connections. One Hub instance is created
// by the server bootstrap and shut down with it; it holds no global state.
type Hub struct {
	store     history.Store
	publisher pubsub.Publisher
	validate  *validator.Validate

	mu          sync.RWMutex
	rooms       map[string]*room
	conns       map[string]*Conn
	memberships map[string]map[string]struct{} // connID -> joined conversation ids
}

// New creates a hub that persists through store and reports lifecycle and
// relay events on publisher.
func New(store history.Store, publisher pubsub.Publisher) *Hub {
	return &Hub{
		store:       store,
		publisher:   publisher,
		validate:    validator.New(),
		rooms:       make(map[string]*room),
		conns:       make(map[string]*Conn),
		memberships: make(map[string]map[string]struct{}),
	}
}

// Register adds a connection to the hub and announces it on the bus.
func (h *Hub) Register(ctx context.Context, c *Conn) {
	h.mu.Lock()
	h.conns[c.ID] = c
	h.memberships[c.ID] = make(map[string]struct{})
	h.mu.Unlock()

	slog.Info("connection registered", "connID", c.ID, "userID", c.UserID)
	h.publishLifecycle(ctx, pubsub.TopicConnected, c)
}

// Unregister removes the connection from every room it joined, discards
// rooms left empty, and closes the connection's send channel. Safe to call
// for connections the hub no longer knows.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	joined := h.memberships[c.ID]
	delete(h.memberships, c.ID)
	delete(h.conns, c.ID)

	for conversationID := range joined {
		if r, ok := h.rooms[conversationID]; ok {
			if r.remove(c.ID) == 0 {
				delete(h.rooms, conversationID)
			}
		}
	}
	h.mu.Unlock()

	c.Close()
	slog.Info("connection unregistered", "connID", c.ID, "userID", c.UserID, "rooms_left", len(joined))
	h.publishLifecycle(context.Background(), pubsub.TopicDisconnected, c)
}

// Join adds the connection to the conversation's room, creating the room on
// first join. Joining a room twice has no additional effect.
func (h *Hub) Join(c *Conn, conversationID string) {
	h.mu.Lock()
	joined, registered := h.memberships[c.ID]
	if !registered {
		// Already unregistered; nothing would ever remove it from the room.
		h.mu.Unlock()
		return
	}
	r, ok := h.rooms[conversationID]
	if !ok {
		r = newRoom()
		h.rooms[conversationID] = r
	}
	joined[conversationID] = struct{}{}
	// Adding to the room under the hub lock keeps the room reachable: a
	// concurrent unregister cannot discard it between creation and join.
	first := r.add(c)
	h.mu.Unlock()

	if first {
		slog.Debug("connection joined room", "connID", c.ID, "conversationID", conversationID, "members", r.size())
	}
}

// Leave removes the connection from one room, discarding the room when it
// empties.
func (h *Hub) Leave(c *Conn, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if joined, ok := h.memberships[c.ID]; ok {
		delete(joined, conversationID)
	}
	if r, ok := h.rooms[conversationID]; ok {
		if r.remove(c.ID) == 0 {
			delete(h.rooms, conversationID)
		}
	}
}

// Relay fans the frame out to every current member of the conversation's
// room. Relaying to a conversation nobody has joined is a no-op: the message
// is already persisted and will surface on the next history fetch.
func (h *Hub) Relay(conversationID string, payload ReceivePayload) error {
	frame, err := NewFrame(EventReceive, payload)
	if err != nil {
		return err
	}
	encoded, err := frame.Encode()
	if err != nil {
		return err
	}

	h.mu.RLock()
	r, ok := h.rooms[conversationID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	r.broadcast(encoded)
	return nil
}

// Members reports how many connections are currently in a room.
func (h *Hub) Members(conversationID string) int {
	h.mu.RLock()
	r, ok := h.rooms[conversationID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	return r.size()
}

// HandleSend validates and persists one outgoing message, then relays the
// persisted copy to the room. On a store failure only the sender hears about
// it, as a send_error frame carrying its pending reference.
func (h *Hub) HandleSend(ctx context.Context, c *Conn, payload SendPayload) {
	// The connection's authenticated user is the authoritative sender.
	payload.SenderID = c.UserID

	if err := h.validate.Struct(payload); err != nil {
		h.sendError(c, payload, "invalid message: missing conversation or text")
		return
	}

	persisted, err := h.store.Append(ctx, payload.ConversationID, payload.toMessage())
	if err != nil {
		slog.Error("failed to persist message", "conversationID", payload.ConversationID, "senderID", payload.SenderID, "error", err)
		h.sendError(c, payload, "message could not be saved")
		return
	}

	receive := ReceivePayload{ConversationID: payload.ConversationID, Message: persisted}
	if err := h.Relay(payload.ConversationID, receive); err != nil {
		slog.Error("failed to relay message", "conversationID", payload.ConversationID, "error", err)
	}

	h.publishRelayed(ctx, payload.ConversationID, persisted.SenderID, persisted.ID)
}

// handleFrame dispatches one inbound frame from a connection's read pump.
func (h *Hub) handleFrame(ctx context.Context, c *Conn, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		slog.Warn("discarding malformed frame", "connID", c.ID, "error", err)
		return
	}

	switch frame.Event {
	case EventJoin:
		var join JoinPayload
		if err := json.Unmarshal(frame.Payload, &join); err != nil || h.validate.Struct(join) != nil {
			slog.Warn("discarding malformed join frame", "connID", c.ID)
			return
		}
		h.Join(c, join.ConversationID)

	case EventSend:
		var send SendPayload
		if err := json.Unmarshal(frame.Payload, &send); err != nil {
			slog.Warn("discarding malformed send frame", "connID", c.ID)
			return
		}
		h.HandleSend(ctx, c, send)

	default:
		slog.Debug("ignoring unknown frame event", "connID", c.ID, "event", frame.Event)
	}
}

// Stop closes every registered connection. Called by the server bootstrap on
// shutdown.
func (h *Hub) Stop() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.Unregister(c)
	}
}

func (h *Hub) sendError(c *Conn, payload SendPayload, reason string) {
	frame, err := NewFrame(EventError, ErrorPayload{
		ConversationID: payload.ConversationID,
		PendingRef:     payload.PendingRef,
		Reason:         reason,
	})
	if err != nil {
		return
	}
	if encoded, err := frame.Encode(); err == nil {
		c.Deliver(encoded)
	}
}

func (h *Hub) publishLifecycle(ctx context.Context, topic string, c *Conn) {
	body, _ := json.Marshal(map[string]string{
		"connectionId": c.ID,
		"userId":       c.UserID,
	})
	msg := pubsub.Message{
		Topic:   topic,
		UserID:  c.UserID,
		Payload: body,
		Metadata: map[string]string{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := h.publisher.Publish(ctx, msg); err != nil {
		slog.Error("failed to publish lifecycle event", "topic", topic, "error", err)
	}
}

func (h *Hub) publishRelayed(ctx context.Context, conversationID, senderID, messageID string) {
	body, _ := json.Marshal(map[string]string{
		"conversationId": conversationID,
		"messageId":      messageID,
	})
	msg := pubsub.Message{
		Topic:   pubsub.TopicRelayed,
		UserID:  senderID,
		Payload: body,
		Metadata: map[string]string{
			"conversation_id": conversationID,
			"timestamp":       time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := h.publisher.Publish(ctx, msg); err != nil {
		slog.Error("failed to publish relay event", "error", err)
	}
}
