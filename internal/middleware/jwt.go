package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/memflow/lowcode-backend/internal/token"
)

// identityKey is the context key the verified identity is stored under.
const identityKey = "identity"

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the verified identity snapshot into the request context.
// There are exactly two outcomes: the request proceeds authenticated, or it
// is aborted with 401 — a failed verification never partially
// authenticates.  Routes under the auth namespace are registered without
// this middleware and therefore bypass it entirely.
func JWTAuth(tokens *token.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Signature and expiry are checked in one step; the error does
			// not say which failed.  The client is expected to try the
			// refresh endpoint and retry.
			id, err := tokens.Verify(raw, token.KindAccess)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			c.Set(identityKey, id)
			return next(c)
		}
	}
}

// IdentityFrom returns the identity attached by JWTAuth.
func IdentityFrom(c echo.Context) (token.Identity, bool) {
	id, ok := c.Get(identityKey).(token.Identity)
	return id, ok
}
