package broker

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// LocalBroker fans out envelopes to in-process subscribers only.  It is the
// single-instance deployment strategy: the gateway subscribes once per
// topic and delivers to its connection registry.
type LocalBroker struct {
	mu   sync.RWMutex
	subs map[string]map[string]Handler // topic -> subscriber id -> handler
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[string]map[string]Handler)}
}

// Publish invokes every handler subscribed to the topic.  Handlers run
// synchronously on the caller's goroutine; the registry underneath already
// swallows per-connection failures.
func (b *LocalBroker) Publish(_ context.Context, topic string, env Envelope) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(env)
	}
	return nil
}

// Subscribe registers a handler for a topic and returns its subscriber id.
func (b *LocalBroker) Subscribe(topic string, h Handler) (string, error) {
	id := uuid.NewString()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[string]Handler)
	}
	b.subs[topic][id] = h
	return id, nil
}

// Unsubscribe removes the subscriber everywhere it appears.
func (b *LocalBroker) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, handlers := range b.subs {
		delete(handlers, id)
	}
}

// Close drops all subscriptions.
func (b *LocalBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string]map[string]Handler)
	return nil
}
