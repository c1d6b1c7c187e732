package gateway

import "encoding/json"

// Wire event names.  The outbound names (including the historical
// "requst-message" spelling) are part of the client protocol and must not
// be corrected server-side.
const (
	EventConnectionSuccess = "connectionSuccess"
	EventMessage           = "message"
	EventRequestMessage    = "requst-message"
	EventTemplateChange    = "template-change-message"
)

// inboundFrame is what clients send: an event name plus free-form data.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// welcomeFrame is pushed right after a successful handshake.
type welcomeFrame struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

// peerFrame is an inbound message re-broadcast to the sender's queue.
type peerFrame struct {
	Event  string          `json:"event"`
	Sender string          `json:"sender"`
	Data   json.RawMessage `json:"data"`
}

// notifyFrame carries workflow notifications (requst-message,
// template-change-message) with their plain string payloads.
type notifyFrame struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}
