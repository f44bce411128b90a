package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up all routes of the chat service.
func (s *Server) RegisterRoutes() {
	historyHandler := NewHistoryHandler(s.store, s.Hub, s.Cfg.HistoryLimit)
	authRequired := requireAuth(s.Verifier)

	// The persistent chat connection. The handler authenticates itself
	// because browser websocket clients pass the token as a query param.
	s.E.GET("/ws/chat", s.Hub.Handler(s.Verifier))

	api := s.E.Group("/api", authRequired)
	api.GET("/conversations/:id/messages", historyHandler.List)
	api.POST("/conversations/:id/messages", historyHandler.Create)

	s.E.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
}
