// Package pubsub implements the stream layer (spec §4.8, supplemented from
// original_source/proxystore/pubsub/*): Publisher/Subscriber transports,
// and a Producer/Consumer that layers proxy semantics on top of them so a
// stream element travels as a small event referencing a Store object
// rather than as raw bytes.
package pubsub

import "context"

// Publisher sends raw messages to a named topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, data []byte) error
	Close() error
}

// Subscriber receives raw messages published to topic. Receive blocks
// until a message arrives, ctx is done, or the Subscriber is closed.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}
