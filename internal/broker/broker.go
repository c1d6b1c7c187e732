// Package broker is the publish/subscribe fan-out behind the real-time
// notification channel.  Two interchangeable strategies implement the same
// contract: LocalBroker dispatches inside the process, RedisBroker carries
// messages across server instances.  Delivery is at-most-once and
// best-effort; the notification table is the durable fallback.
package broker

import "context"

// Topic names, one per role-partitioned queue.
const (
	TopicAdmin  = "notify.admin"
	TopicPublic = "notify.public"
)

// Envelope is the message payload exchanged over a topic.  An empty
// Recipient means "broadcast to the whole queue"; otherwise the gateway
// unicasts to that username only.
type Envelope struct {
	Event     string `json:"event"`
	Recipient string `json:"recipient,omitempty"`
	Sender    string `json:"sender,omitempty"`
	Message   string `json:"message"`
}

// Handler consumes envelopes delivered on a subscribed topic.
type Handler func(Envelope)

// Broker is the pub/sub contract.  Subscribe returns a subscriber id used
// to cancel the subscription; handlers may be invoked concurrently with
// each other but never after Unsubscribe returns.
type Broker interface {
	Publish(ctx context.Context, topic string, env Envelope) error
	Subscribe(topic string, h Handler) (string, error)
	Unsubscribe(id string)
	Close() error
}
