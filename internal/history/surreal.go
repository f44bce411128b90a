package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"

	"github.com/admitdesk/chatsync/internal/chat"
	"github.com/admitdesk/chatsync/internal/database"
)

// record is the shape of one row in the message table. The persisted id
// lives in its own field rather than Surreal's record id so it stays a plain
// string on the wire.
type record struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	RecipientID    string    `json:"recipient_id,omitempty"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}

// SurrealStore implements Store on SurrealDB.
type SurrealStore struct {
	db *surrealdb.DB
}

// NewSurrealStore creates a store backed by the given connection.
func NewSurrealStore(db *surrealdb.DB) *SurrealStore {
	return &SurrealStore{db: db}
}

// Append implements Appender. The store assigns the authoritative message id
// and timestamp; the pending id and provisional timestamp of msg are
// discarded.
func (s *SurrealStore) Append(ctx context.Context, conversationID string, msg chat.Message) (chat.Message, error) {
	query := `
		CREATE message CONTENT {
			message_id: $message_id,
			conversation_id: $conversation_id,
			sender_id: $sender_id,
			recipient_id: $recipient_id,
			text: $text,
			createdAt: $created_at
		} RETURN AFTER
	`
	params := map[string]any{
		"message_id":      "msg:" + uuid.NewString(),
		"conversation_id": conversationID,
		"sender_id":       msg.SenderID,
		"recipient_id":    msg.RecipientID,
		"text":            msg.Text,
		"created_at":      time.Now().UTC(),
	}

	created, err := database.QueryOne[record](ctx, s.db, query, params)
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}
	if created == nil {
		return chat.Message{}, fmt.Errorf("%w: message was not created", ErrAppendFailed)
	}

	return created.toMessage(), nil
}

// FetchHistory implements Fetcher. Results are oldest first; when the log is
// longer than limit, the most recent messages are kept.
func (s *SurrealStore) FetchHistory(ctx context.Context, conversationID string, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT * FROM message
		WHERE conversation_id = $conversation_id
		ORDER BY createdAt DESC
		LIMIT $limit
	`
	params := map[string]any{
		"conversation_id": conversationID,
		"limit":           limit,
	}

	records, err := database.Query[record](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}

	// Newest-first from the query; reverse so callers render oldest first.
	messages := make([]chat.Message, len(records))
	for i, r := range records {
		messages[len(records)-1-i] = r.toMessage()
	}
	return messages, nil
}

func (r record) toMessage() chat.Message {
	return chat.Message{
		ID:          r.MessageID,
		SenderID:    r.SenderID,
		RecipientID: r.RecipientID,
		Text:        r.Text,
		CreatedAt:   r.CreatedAt,
	}
}
