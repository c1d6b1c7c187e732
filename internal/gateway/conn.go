package gateway

import (
	"sync"

	"github.com/gorilla/websocket"
)

// wsConn wraps a websocket connection with a write mutex.  gorilla/websocket
// allows only one concurrent writer, and the mutex doubles as the ordering
// guarantee: payloads reach a given socket in the order Broadcast/Unicast
// calls were issued against it.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func newWSConn(ws *websocket.Conn) *wsConn { return &wsConn{ws: ws} }

func (c *wsConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *wsConn) Close() error { return c.ws.Close() }
