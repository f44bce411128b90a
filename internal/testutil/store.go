// Package testutil holds shared test fakes.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/admitdesk/chatsync/internal/chat"
)

// MemoryStore is an in-memory history.Store used by the hub, session, and
// server tests. Appends assign sequential persisted ids.
type MemoryStore struct {
	mu       sync.Mutex
	logs     map[string][]chat.Message
	seq      int
	failNext error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{logs: make(map[string][]chat.Message)}
}

// FailNextAppend makes the next Append call return err.
func (s *MemoryStore) FailNextAppend(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// Append implements history.Appender.
func (s *MemoryStore) Append(ctx context.Context, conversationID string, msg chat.Message) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return chat.Message{}, err
	}

	s.seq++
	persisted := chat.Message{
		ID:          fmt.Sprintf("msg:%d", s.seq),
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Text:        msg.Text,
		CreatedAt:   time.Now().UTC(),
	}
	s.logs[conversationID] = append(s.logs[conversationID], persisted)
	return persisted, nil
}

// FetchHistory implements history.Fetcher.
func (s *MemoryStore) FetchHistory(ctx context.Context, conversationID string, limit int) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[conversationID]
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}
	out := make([]chat.Message, len(log))
	copy(out, log)
	return out, nil
}

// Len reports the number of persisted messages for a conversation.
func (s *MemoryStore) Len(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs[conversationID])
}

// ErrStoreDown is a canned failure for FailNextAppend.
var ErrStoreDown = errors.New("store unavailable")
