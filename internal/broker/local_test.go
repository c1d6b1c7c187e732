package broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalBrokerFanOut(t *testing.T) {
	t.Parallel()

	b := NewLocalBroker()

	var adminGot, publicGot []Envelope
	_, err := b.Subscribe(TopicAdmin, func(env Envelope) { adminGot = append(adminGot, env) })
	require.NoError(t, err)
	_, err = b.Subscribe(TopicPublic, func(env Envelope) { publicGot = append(publicGot, env) })
	require.NoError(t, err)

	env := Envelope{Event: "requst-message", Recipient: "bob", Message: "You have a template awaiting approval"}
	require.NoError(t, b.Publish(context.Background(), TopicAdmin, env))

	require.Equal(t, []Envelope{env}, adminGot)
	require.Empty(t, publicGot, "publish must not cross topics")
}

func TestLocalBrokerMultipleSubscribers(t *testing.T) {
	t.Parallel()

	b := NewLocalBroker()

	first, second := 0, 0
	_, err := b.Subscribe(TopicPublic, func(Envelope) { first++ })
	require.NoError(t, err)
	id, err := b.Subscribe(TopicPublic, func(Envelope) { second++ })
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), TopicPublic, Envelope{Event: "message"}))
	require.Equal(t, 1, first)
	require.Equal(t, 1, second)

	b.Unsubscribe(id)
	require.NoError(t, b.Publish(context.Background(), TopicPublic, Envelope{Event: "message"}))
	require.Equal(t, 2, first)
	require.Equal(t, 1, second, "unsubscribed handler must not fire")
}

func TestLocalBrokerPublishWithoutSubscribers(t *testing.T) {
	t.Parallel()

	b := NewLocalBroker()
	require.NoError(t, b.Publish(context.Background(), TopicAdmin, Envelope{Event: "message"}))
}
