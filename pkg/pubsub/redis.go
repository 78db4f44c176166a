package pubsub

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes to Redis pub/sub channels, reusing the same
// client type the Redis Connector uses (spec §4.8's Redis-backed stream
// transport, supplemented from original_source/proxystore/pubsub/redis.py).
type RedisPublisher struct {
	Client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{Client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, data []byte) error {
	if err := p.Client.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("pubsub: redis publish: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error { return p.Client.Close() }

// RedisSubscriber subscribes to a single Redis pub/sub channel.
type RedisSubscriber struct {
	Client *redis.Client
	sub    *redis.PubSub
}

func NewRedisSubscriber(client *redis.Client) *RedisSubscriber {
	return &RedisSubscriber{Client: client}
}

func (s *RedisSubscriber) Subscribe(ctx context.Context, topic string) error {
	s.sub = s.Client.Subscribe(ctx, topic)
	return nil
}

func (s *RedisSubscriber) Receive(ctx context.Context) ([]byte, error) {
	if s.sub == nil {
		return nil, fmt.Errorf("pubsub: Subscribe must be called before Receive")
	}
	msg, err := s.sub.ReceiveMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("pubsub: redis receive: %w", err)
	}
	return []byte(msg.Payload), nil
}

func (s *RedisSubscriber) Close() error {
	if s.sub != nil {
		return s.sub.Close()
	}
	return nil
}
