package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/admitdesk/chatsync/internal/chat"
	"github.com/admitdesk/chatsync/internal/history"
	"github.com/admitdesk/chatsync/internal/hub"
)

// HistoryHandler serves the conversation log over REST: the initial fetch a
// session seeds its timeline from, and a plain-HTTP send path for clients
// without a live socket. Messages sent over REST are relayed to the room the
// same way socket sends are.
type HistoryHandler struct {
	store        history.Store
	hub          *hub.Hub
	defaultLimit int
}

// NewHistoryHandler creates the handler.
func NewHistoryHandler(store history.Store, h *hub.Hub, defaultLimit int) *HistoryHandler {
	return &HistoryHandler{store: store, hub: h, defaultLimit: defaultLimit}
}

// List returns the conversation's messages, oldest first, bounded by the
// limit query parameter.
func (h *HistoryHandler) List(c echo.Context) error {
	conversationID := c.Param("id")
	if conversationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing conversation id")
	}

	limit := h.defaultLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}

	messages, err := h.store.FetchHistory(c.Request().Context(), conversationID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load messages")
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	return c.JSON(http.StatusOK, messages)
}

// SendMessageRequest is the REST send body.
type SendMessageRequest struct {
	RecipientID string `json:"recipientId"`
	Text        string `json:"text" validate:"required"`
}

// Create persists one message and relays it to the conversation's room.
func (h *HistoryHandler) Create(c echo.Context) error {
	identity, ok := callerIdentity(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	conversationID := c.Param("id")
	if conversationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing conversation id")
	}

	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	persisted, err := h.store.Append(c.Request().Context(), conversationID, chat.Message{
		SenderID:    identity.UserID,
		RecipientID: req.RecipientID,
		Text:        req.Text,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save message")
	}

	if err := h.hub.Relay(conversationID, hub.ReceivePayload{
		ConversationID: conversationID,
		Message:        persisted,
	}); err != nil {
		// The message is durable; connected members will see it on their
		// next history fetch.
		c.Logger().Warnf("relay after REST send failed: %v", err)
	}

	return c.JSON(http.StatusCreated, persisted)
}
