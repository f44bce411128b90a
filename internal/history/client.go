package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/admitdesk/chatsync/internal/chat"
)

// Client implements Store against the chatsync server's history REST API.
// Remote sessions (the CLI, other services in the dashboard) use it for the
// initial history fetch and for the plain-HTTP send path.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a history client for the server at baseURL,
// authenticating with the given bearer token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchHistory implements Fetcher.
func (c *Client) FetchHistory(ctx context.Context, conversationID string, limit int) ([]chat.Message, error) {
	endpoint := fmt.Sprintf("%s/api/conversations/%s/messages?limit=%s",
		c.baseURL, url.PathEscape(conversationID), strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history fetch failed: unexpected status %d", resp.StatusCode)
	}

	var messages []chat.Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, fmt.Errorf("history fetch failed: %w", err)
	}
	return messages, nil
}

// Append implements Appender via the REST send path.
func (c *Client) Append(ctx context.Context, conversationID string, msg chat.Message) (chat.Message, error) {
	endpoint := fmt.Sprintf("%s/api/conversations/%s/messages", c.baseURL, url.PathEscape(conversationID))

	body, err := json.Marshal(map[string]string{
		"recipientId": msg.RecipientID,
		"text":        msg.Text,
	})
	if err != nil {
		return chat.Message{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return chat.Message{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return chat.Message{}, fmt.Errorf("%w: unexpected status %d", ErrAppendFailed, resp.StatusCode)
	}

	var persisted chat.Message
	if err := json.NewDecoder(resp.Body).Decode(&persisted); err != nil {
		return chat.Message{}, fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}
	return persisted, nil
}
