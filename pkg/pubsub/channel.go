package pubsub

import (
	"context"
	"fmt"
	"sync"
)

// ChannelBroker is an in-process Publisher/Subscriber transport backed by
// Go channels, used for tests and single-process pipelines (no pack
// example carries a message broker; this mirrors the role chisel's
// LoopServer plays for loop:// endpoints, generalized to pub/sub topics).
type ChannelBroker struct {
	mu     sync.Mutex
	topics map[string][]chan []byte
}

// NewChannelBroker creates an empty broker.
func NewChannelBroker() *ChannelBroker {
	return &ChannelBroker{topics: make(map[string][]chan []byte)}
}

// NewPublisher returns a Publisher bound to this broker.
func (b *ChannelBroker) NewPublisher() Publisher { return &channelPublisher{broker: b} }

// NewSubscriber returns a fresh Subscriber bound to this broker.
func (b *ChannelBroker) NewSubscriber() Subscriber {
	return &channelSubscriber{broker: b, ch: make(chan []byte, 64)}
}

func (b *ChannelBroker) subscribe(topic string, ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics[topic] = append(b.topics[topic], ch)
}

func (b *ChannelBroker) publish(topic string, data []byte) {
	b.mu.Lock()
	subs := append([]chan []byte(nil), b.topics[topic]...)
	b.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- data:
		default:
		}
	}
}

type channelPublisher struct {
	broker *ChannelBroker
}

func (p *channelPublisher) Publish(_ context.Context, topic string, data []byte) error {
	p.broker.publish(topic, data)
	return nil
}

func (p *channelPublisher) Close() error { return nil }

type channelSubscriber struct {
	broker *ChannelBroker
	ch     chan []byte
}

func (s *channelSubscriber) Subscribe(_ context.Context, topic string) error {
	s.broker.subscribe(topic, s.ch)
	return nil
}

func (s *channelSubscriber) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-s.ch:
		if !ok {
			return nil, fmt.Errorf("pubsub: subscriber closed")
		}
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *channelSubscriber) Close() error {
	close(s.ch)
	return nil
}
