package hub

import (
	"encoding/json"

	"github.com/admitdesk/chatsync/internal/chat"
)

// Event names shared between the hub and its clients. A client joins a room
// with join_chat, sends with send_message, and receives relayed messages as
// receive_message frames. send_error goes back to the sender alone when a
// message could not be persisted.
const (
	EventJoin    = "join_chat"
	EventSend    = "send_message"
	EventReceive = "receive_message"
	EventError   = "send_error"
)

// Frame is the envelope for every message on a chat connection.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinPayload asks the hub to add the connection to a conversation room.
type JoinPayload struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

// SendPayload carries one outgoing message. PendingRef is the client's
// optimistic id; the hub never persists or relays it, but echoes it back in
// a send_error frame so the client can mark the right entry as failed.
type SendPayload struct {
	ConversationID string `json:"conversationId" validate:"required"`
	SenderID       string `json:"senderId" validate:"required"`
	RecipientID    string `json:"recipientId,omitempty"`
	Text           string `json:"text" validate:"required"`
	PendingRef     string `json:"pendingRef,omitempty"`
}

// ReceivePayload wraps the persisted message fanned out to room members.
type ReceivePayload struct {
	ConversationID string       `json:"conversationId"`
	Message        chat.Message `json:"message"`
}

// ErrorPayload reports a rejected send to its author.
type ErrorPayload struct {
	ConversationID string `json:"conversationId,omitempty"`
	PendingRef     string `json:"pendingRef,omitempty"`
	Reason         string `json:"reason"`
}

// toMessage converts the payload into the message handed to the store. The
// store assigns the persisted id and timestamp.
func (p SendPayload) toMessage() chat.Message {
	return chat.Message{
		SenderID:    p.SenderID,
		RecipientID: p.RecipientID,
		Text:        p.Text,
	}
}

// NewFrame encodes payload into a Frame for the given event.
func NewFrame(event string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Payload: raw}, nil
}

// Encode marshals the frame for the wire.
func (f Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}
