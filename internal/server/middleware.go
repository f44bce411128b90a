package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/admitdesk/chatsync/internal/auth"
)

// IdentityContextKey is where the auth middleware stores the verified
// caller identity on the echo context.
const IdentityContextKey = "identity"

// requireAuth verifies the bearer token on every request and stores the
// resolved identity for downstream handlers.
func requireAuth(verifier auth.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if token == "" || token == header {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(IdentityContextKey, identity)
			return next(c)
		}
	}
}

// callerIdentity fetches the identity stored by requireAuth.
func callerIdentity(c echo.Context) (auth.Identity, bool) {
	identity, ok := c.Get(IdentityContextKey).(auth.Identity)
	return identity, ok
}
