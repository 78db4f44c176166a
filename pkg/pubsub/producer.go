package pubsub

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"

	"github.com/proxystore-go/proxystore/pkg/connector"
	"github.com/proxystore-go/proxystore/pkg/psproxy"
	"github.com/proxystore-go/proxystore/pkg/psstore"
)

// Event is the wire record a Producer publishes and a Consumer decodes
// (spec §4.8): a Store object's key plus enough metadata to reconstruct a
// Proxy pointed at the same Store without re-transmitting the object.
type Event struct {
	StoreName     string          `json:"store_name"`
	StoreConfig   connector.Config `json:"store_connector_config"`
	KeyTypePath   string          `json:"key_type_path"`
	KeyData       []byte          `json:"raw_key_tuple"`
	Evict         bool            `json:"evict"`
}

// keyEnvelope is the gob-encoded carrier for an Event's key. Using gob
// (rather than a bespoke per-Connector JSON scheme) lets any registered
// Connector's concrete Key type round-trip through the interface field, the
// same mechanism pkg/serialize already relies on for Store payloads.
type keyEnvelope struct {
	Key connector.Key
}

func encodeKey(key connector.Key) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(keyEnvelope{Key: key}); err != nil {
		return nil, fmt.Errorf("pubsub: encoding key: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeKey(data []byte) (connector.Key, error) {
	var env keyEnvelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, fmt.Errorf("pubsub: decoding key: %w", err)
	}
	return env.Key, nil
}

// Producer publishes Store puts as Events on a topic, per spec §4.8.
type Producer[T any] struct {
	Store     *psstore.Store
	Publisher Publisher
	Topic     string
	Evict     bool
}

// NewProducer constructs a Producer bound to store and pub, publishing to
// topic by default.
func NewProducer[T any](store *psstore.Store, pub Publisher, topic string) *Producer[T] {
	return &Producer[T]{Store: store, Publisher: pub, Topic: topic}
}

// Send stores obj, wraps its key as an Event, and publishes it. topic, if
// empty, falls back to p.Topic.
func (p *Producer[T]) Send(ctx context.Context, obj T, topic string) error {
	if topic == "" {
		topic = p.Topic
	}
	key, err := p.Store.Put(ctx, obj)
	if err != nil {
		return fmt.Errorf("pubsub: storing object: %w", err)
	}
	keyData, err := encodeKey(key)
	if err != nil {
		return err
	}
	event := Event{
		StoreName:   p.Store.Name,
		StoreConfig: p.Store.Config().Connector,
		KeyTypePath: fmt.Sprintf("%T", key),
		KeyData:     keyData,
		Evict:       p.Evict,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("pubsub: encoding event: %w", err)
	}
	if err := p.Publisher.Publish(ctx, topic, data); err != nil {
		return fmt.Errorf("pubsub: publishing event: %w", err)
	}
	return nil
}

// Close closes the Publisher and, unless keepStore is true, the Store.
func (p *Producer[T]) Close(keepStore bool) error {
	err := p.Publisher.Close()
	if !keepStore {
		if cerr := p.Store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Consumer receives Events from a Subscriber and yields Proxies pointed at
// the Store named in each Event, per spec §4.8.
type Consumer[T any] struct {
	Subscriber Subscriber
}

// NewConsumer constructs a Consumer bound to sub.
func NewConsumer[T any](sub Subscriber) *Consumer[T] {
	return &Consumer[T]{Subscriber: sub}
}

// Receive blocks for the next Event and returns a Proxy built from it via
// psstore.ProxyFromKey. It always reconstructs the Store the Event names
// with psstore.FromConfig, which registers the new Store in place of any
// Store already registered under that name.
func (c *Consumer[T]) Receive(ctx context.Context) (*psproxy.Proxy[T], error) {
	raw, err := c.Subscriber.Receive(ctx)
	if err != nil {
		return nil, fmt.Errorf("pubsub: receiving event: %w", err)
	}
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("pubsub: decoding event: %w", err)
	}
	key, err := decodeKey(event.KeyData)
	if err != nil {
		return nil, err
	}
	storeCfg := psstore.Config{Name: event.StoreName, Connector: event.StoreConfig}
	store, err := psstore.FromConfig(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("pubsub: reconstructing store %q: %w", event.StoreName, err)
	}
	var opts []psstore.ProxyOption
	if event.Evict {
		opts = append(opts, psstore.WithEvictOnResolve())
	}
	return psstore.ProxyFromKey[T](store, key, opts...), nil
}

// Close closes the Subscriber.
func (c *Consumer[T]) Close() error { return c.Subscriber.Close() }
