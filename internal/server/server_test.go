package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admitdesk/chatsync/internal/auth"
	"github.com/admitdesk/chatsync/internal/chat"
	"github.com/admitdesk/chatsync/internal/config"
	"github.com/admitdesk/chatsync/internal/testutil"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server, *auth.Authenticator) {
	t.Helper()

	cfg := &config.Config{
		Addr:         ":0",
		JWTSecret:    "test-secret",
		HistoryLimit: 50,
	}
	s := New(cfg, testutil.NewMemoryStore())
	s.RegisterRoutes()

	ts := httptest.NewServer(s.E)
	t.Cleanup(ts.Close)

	issuer := auth.NewAuthenticator(cfg.JWTSecret, "chatsync", time.Hour)
	return s, ts, issuer
}

func authedRequest(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestHealthz(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHistoryAPI_RequiresToken(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp := authedRequest(t, http.MethodGet, ts.URL+"/api/conversations/u1_u2/messages", "", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHistoryAPI_SendAndFetch(t *testing.T) {
	_, ts, issuer := newTestServer(t)

	token, err := issuer.GenerateToken("u1")
	require.NoError(t, err)

	// Empty log first.
	resp := authedRequest(t, http.MethodGet, ts.URL+"/api/conversations/u1_u2/messages", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var messages []chat.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&messages))
	resp.Body.Close()
	assert.Empty(t, messages)

	// REST send persists and assigns the authoritative id.
	resp = authedRequest(t, http.MethodPost, ts.URL+"/api/conversations/u1_u2/messages", token,
		`{"recipientId":"u2","text":"Hello"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var persisted chat.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&persisted))
	resp.Body.Close()
	assert.False(t, persisted.Pending())
	assert.Equal(t, "u1", persisted.SenderID)

	// The message shows up on the next fetch.
	resp = authedRequest(t, http.MethodGet, ts.URL+"/api/conversations/u1_u2/messages", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&messages))
	resp.Body.Close()
	require.Len(t, messages, 1)
	assert.Equal(t, persisted.ID, messages[0].ID)
}

func TestHistoryAPI_RejectsEmptyText(t *testing.T) {
	_, ts, issuer := newTestServer(t)

	token, err := issuer.GenerateToken("u1")
	require.NoError(t, err)

	resp := authedRequest(t, http.MethodPost, ts.URL+"/api/conversations/u1_u2/messages", token,
		`{"recipientId":"u2","text":""}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistoryAPI_InvalidLimit(t *testing.T) {
	_, ts, issuer := newTestServer(t)

	token, err := issuer.GenerateToken("u1")
	require.NoError(t, err)

	resp := authedRequest(t, http.MethodGet, ts.URL+"/api/conversations/u1_u2/messages?limit=-3", token, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebsocket_RequiresToken(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/ws/chat")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
