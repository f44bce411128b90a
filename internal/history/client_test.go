package history

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admitdesk/chatsync/internal/chat"
)

func TestClient_FetchHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/conversations/u1_u2/messages", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode([]chat.Message{
			{ID: "msg:1", SenderID: "u1", Text: "Hello", CreatedAt: time.Now().UTC()},
			{ID: "msg:2", SenderID: "u2", Text: "Hi", CreatedAt: time.Now().UTC()},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "token-1")
	messages, err := client.FetchHistory(context.Background(), "u1_u2", 25)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "msg:1", messages[0].ID)
}

func TestClient_FetchHistory_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "token-1")
	_, err := client.FetchHistory(context.Background(), "u1_u2", 25)
	assert.Error(t, err)
}

func TestClient_Append(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/conversations/u1_u2/messages", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Hello", body["text"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(chat.Message{
			ID:       "msg:abc",
			SenderID: "u1",
			Text:     body["text"],
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "token-1")
	persisted, err := client.Append(context.Background(), "u1_u2", chat.NewPending("u1", "u2", "Hello"))
	require.NoError(t, err)
	assert.Equal(t, "msg:abc", persisted.ID)
	assert.False(t, persisted.Pending())
}

func TestClient_Append_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "token-1")
	_, err := client.Append(context.Background(), "u1_u2", chat.NewPending("u1", "u2", ""))
	assert.ErrorIs(t, err, ErrAppendFailed)
}
