package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memflow/lowcode-backend/internal/model"
)

// RequireRole enforces an explicit allow-set: the authenticated user's role
// name must be one of the listed names.  Use this when a route names exact
// roles.  For "may act at or below my rank" semantics use RequireRank.
// It assumes JWTAuth has already attached the identity; an absent identity
// is treated as unauthenticated, not forbidden.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
			}
			if !allowed[id.Role.Name()] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// RequireRank enforces an ordinal comparison: the authenticated user's role
// tier must be at least min.  "Admin" endpoints use RequireRank(RoleAdmin)
// so that super passes too.
func RequireRank(min model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
			}
			if !id.Role.AtLeast(min) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
