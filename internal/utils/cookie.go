package utils

// cookie.go scopes all cookie access behind three helpers.  The refresh
// token travels only in an httpOnly cookie; the Role cookie is an
// informational hint for the frontend and carries no authority (the server
// always re-derives the role from the verified token).

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/memflow/lowcode-backend/internal/model"
)

const (
	refreshCookieName = "refreshToken"
	roleCookieName    = "Role"
)

// SetRefreshCookie stores the refresh token as an httpOnly cookie with the
// given lifetime.
func SetRefreshCookie(c echo.Context, token string, ttl time.Duration) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ReadRefreshCookie returns the refresh token from the request, if present.
func ReadRefreshCookie(c echo.Context) (string, bool) {
	ck, err := c.Cookie(refreshCookieName)
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}

// ClearRefreshCookie removes the refresh token cookie from the client.
func ClearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetRoleCookie writes the informational Role cookie (30 minute lifetime,
// matching the access token TTL).
func SetRoleCookie(c echo.Context, role model.Role) {
	c.SetCookie(&http.Cookie{
		Name:     roleCookieName,
		Value:    role.Name(),
		Path:     "/",
		MaxAge:   int((30 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}
