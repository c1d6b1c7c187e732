package gateway

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/memflow/lowcode-backend/internal/broker"
	"github.com/memflow/lowcode-backend/internal/token"
)

// Handler upgrades authenticated clients to WebSocket, admits them into the
// registry and pumps their inbound events.  It also bridges the broker onto
// the registry so workflow notifications reach local sockets regardless of
// which server instance published them.
type Handler struct {
	tokens   *token.Service
	registry *Registry
	logger   *zap.Logger
	upgrader websocket.Upgrader

	subIDs []string
}

func NewHandler(tokens *token.Service, registry *Registry, logger *zap.Logger) *Handler {
	return &Handler{
		tokens:   tokens,
		registry: registry,
		logger:   logger,
		upgrader: websocket.Upgrader{
			// Cross-origin frontends are expected; authorization is the
			// access token, not the Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Bind subscribes the local registry to both notification topics.  Called
// once at startup, after the broker strategy has been selected.
func (h *Handler) Bind(b broker.Broker) error {
	adminID, err := b.Subscribe(broker.TopicAdmin, func(env broker.Envelope) {
		h.deliver(ClassAdmin, env)
	})
	if err != nil {
		return err
	}
	publicID, err := b.Subscribe(broker.TopicPublic, func(env broker.Envelope) {
		h.deliver(ClassPublic, env)
	})
	if err != nil {
		b.Unsubscribe(adminID)
		return err
	}
	h.subIDs = []string{adminID, publicID}
	return nil
}

// Unbind cancels the topic subscriptions created by Bind.
func (h *Handler) Unbind(b broker.Broker) {
	for _, id := range h.subIDs {
		b.Unsubscribe(id)
	}
	h.subIDs = nil
}

// deliver routes a broker envelope into the local registry: unicast when a
// recipient is named, broadcast otherwise.
func (h *Handler) deliver(class Class, env broker.Envelope) {
	switch {
	case env.Recipient != "":
		h.registry.Unicast(env.Recipient, class, notifyFrame{Event: env.Event, Message: env.Message})
	default:
		h.registry.Broadcast(class, notifyFrame{Event: env.Event, Message: env.Message})
	}
}

// Serve is the /ws handshake.  The client supplies its access token either
// as a `token` query parameter or a bearer Authorization header.  A failed
// handshake is refused without an error event.
func (h *Handler) Serve(c echo.Context) error {
	raw := c.QueryParam("token")
	if raw == "" {
		if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			raw = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if raw == "" {
		return c.NoContent(http.StatusUnauthorized)
	}
	id, err := h.tokens.Verify(raw, token.KindAccess)
	if err != nil {
		return c.NoContent(http.StatusUnauthorized)
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil // upgrader already wrote the handshake error
	}

	connID := uuid.NewString()
	class := ClassFor(id.Role)
	conn := newWSConn(ws)
	h.registry.Admit(connID, id.Username, class, conn)
	h.logger.Info("gateway: connection admitted",
		zap.String("username", id.Username), zap.String("conn_id", connID))

	_ = conn.WriteJSON(welcomeFrame{
		Event:   EventConnectionSuccess,
		Message: "Welcome to Memory Flow! " + id.Username,
	})

	h.readLoop(connID, conn, ws)
	return nil
}

// readLoop pumps inbound frames until the socket dies, then evicts the
// registry entry before the connection is torn down so no further delivery
// is attempted against a stale handle.
func (h *Handler) readLoop(connID string, conn *wsConn, ws *websocket.Conn) {
	defer func() {
		if username, ok := h.registry.Evict(connID); ok {
			h.logger.Info("gateway: connection evicted",
				zap.String("username", username), zap.String("conn_id", connID))
		}
		_ = conn.Close()
	}()

	for {
		var frame inboundFrame
		if err := ws.ReadJSON(&frame); err != nil {
			return
		}
		if frame.Event != EventMessage {
			continue
		}
		// Attribute the message to the connection's queue and re-broadcast
		// it to every peer in that queue.
		username, class, ok := h.registry.Lookup(connID)
		if !ok {
			return
		}
		h.registry.Broadcast(class, peerFrame{
			Event:  EventMessage,
			Sender: username,
			Data:   frame.Data,
		})
	}
}
