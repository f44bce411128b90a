// Package history is the durable, append-only message log behind the chat
// subsystem. The hub appends every accepted message here before relaying it;
// sessions seed their timelines from it.
package history

import (
	"context"
	"errors"

	"github.com/admitdesk/chatsync/internal/chat"
)

// ErrAppendFailed wraps store-side failures of Append. Callers use it to
// decide that no authoritative echo will arrive for a pending message.
var ErrAppendFailed = errors.New("history: append failed")

// Fetcher reads the message log for one conversation, oldest first and
// bounded by limit (most recent messages win when truncating).
type Fetcher interface {
	FetchHistory(ctx context.Context, conversationID string, limit int) ([]chat.Message, error)
}

// Appender persists one message, assigning the authoritative id and
// timestamp, and returns the persisted copy.
type Appender interface {
	Append(ctx context.Context, conversationID string, msg chat.Message) (chat.Message, error)
}

// Store is the full collaborator interface the hub and server depend on.
type Store interface {
	Fetcher
	Appender
}
