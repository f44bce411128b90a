// Package chat holds the conversation domain model: conversation identity,
// the message type exchanged between participants, and the timeline that a
// session renders.
package chat

import (
	"errors"
	"strings"
)

// ErrMissingParticipant is returned when a conversation id is requested
// before both participant identifiers are known.
var ErrMissingParticipant = errors.New("chat: both participants are required")

// conversationSeparator joins the sorted participant pair. It never changes:
// existing conversations are addressed by ids derived with it.
const conversationSeparator = "_"

// ConversationID derives the stable identifier for the conversation between
// two participants. The result is order-independent: ConversationID(a, b)
// equals ConversationID(b, a).
func ConversationID(participantA, participantB string) (string, error) {
	a := strings.TrimSpace(participantA)
	b := strings.TrimSpace(participantB)
	if a == "" || b == "" {
		return "", ErrMissingParticipant
	}

	if a > b {
		a, b = b, a
	}
	return a + conversationSeparator + b, nil
}
