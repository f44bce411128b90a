package chat

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// PendingIDPrefix marks client-generated message ids. A message keeps this
// prefix until the store assigns its authoritative id.
const PendingIDPrefix = "pending-"

// Message is one chat utterance. A message starts life on the sending client
// with a pending id and a provisional timestamp; once the store has accepted
// it, the relayed copy carries the persisted id and the store's timestamp.
type Message struct {
	ID          string    `json:"id,omitempty"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId,omitempty"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"createdAt"`
	// Failed is set client-side when persistence was rejected and no
	// authoritative echo will ever arrive for this entry.
	Failed bool `json:"failed,omitempty"`
}

// NewPending builds the optimistic local copy of an outgoing message.
func NewPending(senderID, recipientID, text string) Message {
	return Message{
		ID:          newPendingID(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        text,
		CreatedAt:   time.Now().UTC(),
	}
}

// Pending reports whether the message still carries a client-generated id.
func (m Message) Pending() bool {
	return strings.HasPrefix(m.ID, PendingIDPrefix)
}

// newPendingID returns a time-based id unique enough within one client. The
// random suffix guards against two sends landing on the same nanosecond.
func newPendingID() string {
	return fmt.Sprintf("%s%d-%04d", PendingIDPrefix, time.Now().UnixNano(), rand.Intn(10000))
}
