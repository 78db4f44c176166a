package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/proxystore-go/proxystore/pkg/connector/file"
	"github.com/proxystore-go/proxystore/pkg/psstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type streamedRecord struct {
	Name string
	N    int
}

// The round trip must use a Connector whose state survives the Consumer's
// FromConfig reconstruction (a distinct Go Connector instance), so this
// uses the file Connector, not local — local is process-local and
// deliberately does not survive reconstruction (see its own doc comment).
func newStreamTestStore(t *testing.T) *psstore.Store {
	t.Helper()
	conn, err := file.New(t.TempDir(), false)
	require.NoError(t, err)
	store, err := psstore.New("stream-store", conn)
	require.NoError(t, err)
	t.Cleanup(func() { psstore.Unregister(store.Name) })
	return store
}

func TestProducerConsumerRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStreamTestStore(t)

	broker := NewChannelBroker()
	sub := broker.NewSubscriber()
	require.NoError(t, sub.Subscribe(ctx, "topic-a"))

	producer := NewProducer[streamedRecord](store, broker.NewPublisher(), "topic-a")
	consumer := NewConsumer[streamedRecord](sub)

	require.NoError(t, producer.Send(ctx, streamedRecord{Name: "obj", N: 7}, ""))

	proxy, err := consumer.Receive(ctx)
	require.NoError(t, err)

	got, err := proxy.Get()
	require.NoError(t, err)
	assert.Equal(t, streamedRecord{Name: "obj", N: 7}, got)
}

func TestProducerSendFallsBackToDefaultTopic(t *testing.T) {
	ctx := context.Background()
	store := newStreamTestStore(t)

	broker := NewChannelBroker()
	sub := broker.NewSubscriber()
	require.NoError(t, sub.Subscribe(ctx, "default-topic"))

	producer := NewProducer[streamedRecord](store, broker.NewPublisher(), "default-topic")
	consumer := NewConsumer[streamedRecord](sub)

	require.NoError(t, producer.Send(ctx, streamedRecord{Name: "fallback", N: 1}, ""))

	proxy, err := consumer.Receive(ctx)
	require.NoError(t, err)
	got, err := proxy.Get()
	require.NoError(t, err)
	assert.Equal(t, streamedRecord{Name: "fallback", N: 1}, got)
}

func TestProducerEvictOnResolve(t *testing.T) {
	ctx := context.Background()
	store := newStreamTestStore(t)

	broker := NewChannelBroker()
	subForConsumer := broker.NewSubscriber()
	subForInspection := broker.NewSubscriber()
	require.NoError(t, subForConsumer.Subscribe(ctx, "topic-evict"))
	require.NoError(t, subForInspection.Subscribe(ctx, "topic-evict"))

	producer := NewProducer[streamedRecord](store, broker.NewPublisher(), "topic-evict")
	producer.Evict = true
	consumer := NewConsumer[streamedRecord](subForConsumer)

	require.NoError(t, producer.Send(ctx, streamedRecord{Name: "one-shot", N: 9}, ""))

	raw, err := subForInspection.Receive(ctx)
	require.NoError(t, err)
	var event Event
	require.NoError(t, json.Unmarshal(raw, &event))
	key, err := decodeKey(event.KeyData)
	require.NoError(t, err)

	ok, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok, "key should exist before resolve")

	proxy, err := consumer.Receive(ctx)
	require.NoError(t, err)
	got, err := proxy.Get()
	require.NoError(t, err)
	assert.Equal(t, streamedRecord{Name: "one-shot", N: 9}, got)

	ok, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "evict-on-resolve should have removed the key")
}
