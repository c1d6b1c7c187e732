package broker

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker carries envelopes over Redis PUBLISH/SUBSCRIBE so that a
// message published on one server instance reaches users connected to any
// other instance.  Each process subscribes on behalf of its locally
// admitted connections and re-broadcasts into its own registry only.
type RedisBroker struct {
	client *redis.Client
	logger *zap.Logger

	mu   sync.Mutex
	subs map[string]*redis.PubSub // subscriber id -> live subscription
}

func NewRedisBroker(client *redis.Client, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{client: client, logger: logger, subs: make(map[string]*redis.PubSub)}
}

// Publish writes the envelope to the shared Redis channel.
func (b *RedisBroker) Publish(ctx context.Context, topic string, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, topic, raw).Err()
}

// Subscribe opens a Redis subscription on the topic and pumps received
// messages into the handler until Unsubscribe closes it.  Malformed
// payloads are logged and dropped, never fatal.
func (b *RedisBroker) Subscribe(topic string, h Handler) (string, error) {
	ps := b.client.Subscribe(context.Background(), topic)
	// Force the SUBSCRIBE round-trip so a broken connection fails here,
	// not silently in the pump goroutine.
	if _, err := ps.Receive(context.Background()); err != nil {
		_ = ps.Close()
		return "", err
	}

	id := uuid.NewString()
	b.mu.Lock()
	b.subs[id] = ps
	b.mu.Unlock()

	go func() {
		for msg := range ps.Channel() {
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn("broker: dropping malformed envelope",
					zap.String("topic", topic), zap.Error(err))
				continue
			}
			h(env)
		}
	}()
	return id, nil
}

// Unsubscribe closes the subscription; the pump goroutine exits when the
// message channel drains.
func (b *RedisBroker) Unsubscribe(id string) {
	b.mu.Lock()
	ps, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

// Close tears down every live subscription.
func (b *RedisBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ps := range b.subs {
		_ = ps.Close()
		delete(b.subs, id)
	}
	return nil
}
