package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/memflow/lowcode-backend/internal/model"
	"github.com/memflow/lowcode-backend/internal/token"
)

func newTokens(t *testing.T) *token.Service {
	t.Helper()
	return token.New("access-secret", "refresh-secret", 30*time.Minute, 7*24*time.Hour)
}

// run sends a request through the given middleware chain into a handler
// that echoes back the attached identity's username.
func run(t *testing.T, authHeader string, tokens *token.Service, extra ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/user/info", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := func(c echo.Context) error {
		id, _ := IdentityFrom(c)
		return c.String(http.StatusOK, id.Username)
	}
	// JWTAuth runs first so the role middleware sees the identity.
	for i := len(extra) - 1; i >= 0; i-- {
		h = extra[i](h)
	}
	h = JWTAuth(tokens)(h)
	require.NoError(t, h(c))
	return rec
}

func bearerFor(t *testing.T, tokens *token.Service, username string, role model.Role) string {
	t.Helper()
	access, err := tokens.IssueAccess(token.Identity{ID: 1, Username: username, Role: role})
	require.NoError(t, err)
	return "Bearer " + access
}

func TestJWTAuthMissingToken(t *testing.T) {
	tokens := newTokens(t)

	rec := run(t, "", tokens)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// A non-bearer scheme is treated the same as no token.
	rec = run(t, "Basic abc123", tokens)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthInvalidToken(t *testing.T) {
	tokens := newTokens(t)

	rec := run(t, "Bearer not-a-jwt", tokens)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// A refresh token is not an access token, even though it is well formed.
	refresh, err := tokens.IssueRefresh(token.Identity{ID: 1, Username: "alice", Role: model.RolePublic})
	require.NoError(t, err)
	rec = run(t, "Bearer "+refresh, tokens)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthAttachesIdentity(t *testing.T) {
	tokens := newTokens(t)

	rec := run(t, bearerFor(t, tokens, "alice", model.RolePublic), tokens)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "alice", rec.Body.String())
}

func TestRequireRankOrdinal(t *testing.T) {
	tokens := newTokens(t)
	adminOnly := RequireRank(model.RoleAdmin)

	rec := run(t, bearerFor(t, tokens, "alice", model.RolePublic), tokens, adminOnly)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = run(t, bearerFor(t, tokens, "bob", model.RoleAdmin), tokens, adminOnly)
	require.Equal(t, http.StatusOK, rec.Code)

	// Super passes every admin gate: the check is ordinal, not equality.
	rec = run(t, bearerFor(t, tokens, "root", model.RoleSuper), tokens, adminOnly)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoleMembership(t *testing.T) {
	tokens := newTokens(t)
	supersOnly := RequireRole("super")

	// Membership is exact: admin is not in the allow-set even though it
	// outranks nothing here.
	rec := run(t, bearerFor(t, tokens, "bob", model.RoleAdmin), tokens, supersOnly)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = run(t, bearerFor(t, tokens, "root", model.RoleSuper), tokens, supersOnly)
	require.Equal(t, http.StatusOK, rec.Code)
}
