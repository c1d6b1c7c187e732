package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/memflow/lowcode-backend/internal/model"
	"github.com/memflow/lowcode-backend/internal/token"
)

func newTestServer(t *testing.T) (*httptest.Server, *Registry, *token.Service) {
	t.Helper()
	tokens := token.New("access-secret", "refresh-secret", time.Minute, time.Hour)
	registry := NewRegistry()
	h := NewHandler(tokens, registry, zap.NewNop())
	e := echo.New()
	e.GET("/ws", h.Serve)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, registry, tokens
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func accessFor(t *testing.T, tokens *token.Service, username string, role model.Role) string {
	t.Helper()
	access, err := tokens.IssueAccess(token.Identity{ID: 1, Username: username, Role: role})
	require.NoError(t, err)
	return access
}

func readFrame(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m map[string]any
	require.NoError(t, ws.ReadJSON(&m))
	return m
}

func registered(r *Registry, username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, inAdmin := r.admin[username]
	_, inPublic := r.public[username]
	return inAdmin || inPublic
}

func registrySize(r *Registry) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.admin) + len(r.public)
}

func TestServeHandshake(t *testing.T) {
	srv, registry, tokens := newTestServer(t)

	ws, _, err := websocket.DefaultDialer.Dial(
		wsURL(srv)+"?token="+accessFor(t, tokens, "alice", model.RolePublic), nil)
	require.NoError(t, err)
	defer ws.Close()

	frame := readFrame(t, ws)
	require.Equal(t, EventConnectionSuccess, frame["event"])
	require.Equal(t, "Welcome to Memory Flow! alice", frame["message"])
	require.True(t, registered(registry, "alice"))
}

func TestServeBearerHeader(t *testing.T) {
	srv, registry, tokens := newTestServer(t)

	// Non-browser clients send the token as a bearer header instead of the
	// query parameter.
	header := http.Header{"Authorization": {"Bearer " + accessFor(t, tokens, "bob", model.RoleAdmin)}}
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	defer ws.Close()

	frame := readFrame(t, ws)
	require.Equal(t, EventConnectionSuccess, frame["event"])
	require.True(t, registered(registry, "bob"))
}

func TestServeRefusesBadToken(t *testing.T) {
	srv, registry, tokens := newTestServer(t)

	refresh, err := tokens.IssueRefresh(token.Identity{ID: 1, Username: "mallory", Role: model.RolePublic})
	require.NoError(t, err)

	for _, u := range []string{
		wsURL(srv),                       // no token at all
		wsURL(srv) + "?token=garbage",    // not a JWT
		wsURL(srv) + "?token=" + refresh, // wrong token kind
	} {
		ws, resp, err := websocket.DefaultDialer.Dial(u, nil)
		require.Error(t, err, u)
		require.Nil(t, ws, u)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, u)
	}
	require.Zero(t, registrySize(registry), "a refused handshake must not be admitted")
}

func TestMessageRebroadcastWithinQueue(t *testing.T) {
	srv, _, tokens := newTestServer(t)

	dial := func(username string, role model.Role) *websocket.Conn {
		ws, _, err := websocket.DefaultDialer.Dial(
			wsURL(srv)+"?token="+accessFor(t, tokens, username, role), nil)
		require.NoError(t, err)
		t.Cleanup(func() { ws.Close() })
		readFrame(t, ws) // welcome
		return ws
	}

	alice := dial("alice", model.RolePublic)
	carol := dial("carol", model.RolePublic)
	bob := dial("bob", model.RoleAdmin)

	require.NoError(t, alice.WriteJSON(map[string]any{
		"event": EventMessage,
		"data":  map[string]string{"text": "hi"},
	}))

	// Peers in the sender's queue get the frame attributed to the sender.
	frame := readFrame(t, carol)
	require.Equal(t, EventMessage, frame["event"])
	require.Equal(t, "alice", frame["sender"])
	require.Equal(t, map[string]any{"text": "hi"}, frame["data"])

	// The sender's own socket is part of the queue and hears it too.
	frame = readFrame(t, alice)
	require.Equal(t, "alice", frame["sender"])

	// The other queue stays silent: bob's read deadline expires with nothing
	// delivered.
	require.NoError(t, bob.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var m map[string]any
	require.Error(t, bob.ReadJSON(&m), "admin queue must not receive public chatter")
}

func TestDisconnectEvicts(t *testing.T) {
	srv, registry, tokens := newTestServer(t)

	ws, _, err := websocket.DefaultDialer.Dial(
		wsURL(srv)+"?token="+accessFor(t, tokens, "alice", model.RolePublic), nil)
	require.NoError(t, err)
	readFrame(t, ws)
	require.True(t, registered(registry, "alice"))

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool { return !registered(registry, "alice") },
		2*time.Second, 10*time.Millisecond,
		"closing the socket must evict the registry entry")

	// Delivery to the departed user is a silent no-op.
	registry.Unicast("alice", ClassPublic, "anyone?")
}
