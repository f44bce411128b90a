package hub

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"

	"github.com/admitdesk/chatsync/internal/auth"
)

// Handler returns the echo handler that upgrades a request to a chat
// connection. The client authenticates with a bearer token in the
// Authorization header or, for browser websocket clients that cannot set
// headers, a token query parameter.
func (h *Hub) Handler(verifier auth.Verifier) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, err := verifier.Verify(bearerToken(c))
		if err != nil {
			return c.String(http.StatusUnauthorized, "invalid or missing token")
		}

		socket, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			InsecureSkipVerify: true, // Origin checks belong to the fronting proxy.
		})
		if err != nil {
			slog.Error("failed to upgrade connection to websocket", "error", err)
			return err
		}

		conn := NewConn(identity.UserID, socket)
		h.Register(c.Request().Context(), conn)

		go conn.writePump()
		go conn.readPump(h)

		return nil
	}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.QueryParam("token")
}
