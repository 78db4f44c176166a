// Package redisconn is a thin adapter over an external Redis server: keys
// are opaque strings, and Close may optionally FLUSHDB, per spec §4.2.
package redisconn

import (
	"context"
	"encoding/gob"
	"fmt"

	"github.com/google/uuid"
	"github.com/proxystore-go/proxystore/pkg/connector"
	"github.com/redis/go-redis/v9"
)

// Kind is this Connector's registered fully-qualified type identifier.
const Kind = "redis"

// Key is a Redis Connector's key shape: a single opaque string.
type Key struct {
	Name string
}

func (k Key) String() string { return fmt.Sprintf("redis(%s)", k.Name) }

// Connector adapts a go-redis client to the Connector contract.
type Connector struct {
	Client       *redis.Client
	Addr         string
	DB           int
	ClearOnClose bool
}

// New creates a Redis Connector against addr/db.
func New(addr string, db int, clearOnClose bool) *Connector {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	return &Connector{Client: client, Addr: addr, DB: db, ClearOnClose: clearOnClose}
}

func init() {
	connector.Register(Kind, func(cfg connector.Config) (connector.Connector, error) {
		addr, _ := cfg.Data["addr"].(string)
		if addr == "" {
			return nil, &connector.ConfigurationError{Message: "redis connector config missing addr"}
		}
		db := 0
		switch v := cfg.Data["db"].(type) {
		case int:
			db = v
		case float64:
			db = int(v)
		}
		clear, _ := cfg.Data["clear_on_close"].(bool)
		return New(addr, db, clear), nil
	})
	gob.Register(Key{})
}

func (c *Connector) Kind() string { return Kind }

func (c *Connector) Config() connector.Config {
	return connector.Config{Kind: Kind, Data: map[string]any{
		"addr":           c.Addr,
		"db":             c.DB,
		"clear_on_close": c.ClearOnClose,
	}}
}

func (c *Connector) newName() string {
	return uuid.NewString()
}

func (c *Connector) Put(ctx context.Context, data []byte) (connector.Key, error) {
	name := c.newName()
	if err := c.Client.Set(ctx, name, data, 0).Err(); err != nil {
		return nil, fmt.Errorf("redis: put: %w", err)
	}
	return Key{Name: name}, nil
}

func (c *Connector) PutBatch(ctx context.Context, datas [][]byte) ([]connector.Key, error) {
	pipe := c.Client.Pipeline()
	names := make([]string, len(datas))
	for i, d := range datas {
		names[i] = c.newName()
		pipe.Set(ctx, names[i], d, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis: put_batch: %w", err)
	}
	keys := make([]connector.Key, len(names))
	for i, n := range names {
		keys[i] = Key{Name: n}
	}
	return keys, nil
}

func (c *Connector) Get(ctx context.Context, key connector.Key) ([]byte, bool, error) {
	rk, ok := key.(Key)
	if !ok {
		return nil, false, fmt.Errorf("redis: wrong key type %T", key)
	}
	data, err := c.Client.Get(ctx, rk.Name).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis: get: %w", err)
	}
	return data, true, nil
}

func (c *Connector) GetBatch(ctx context.Context, keys []connector.Key) ([][]byte, []bool, error) {
	datas := make([][]byte, len(keys))
	oks := make([]bool, len(keys))
	for i, k := range keys {
		d, ok, err := c.Get(ctx, k)
		if err != nil {
			return nil, nil, err
		}
		datas[i], oks[i] = d, ok
	}
	return datas, oks, nil
}

func (c *Connector) Exists(ctx context.Context, key connector.Key) (bool, error) {
	rk, ok := key.(Key)
	if !ok {
		return false, fmt.Errorf("redis: wrong key type %T", key)
	}
	n, err := c.Client.Exists(ctx, rk.Name).Result()
	if err != nil {
		return false, fmt.Errorf("redis: exists: %w", err)
	}
	return n > 0, nil
}

func (c *Connector) Evict(ctx context.Context, key connector.Key) error {
	rk, ok := key.(Key)
	if !ok {
		return fmt.Errorf("redis: wrong key type %T", key)
	}
	if err := c.Client.Del(ctx, rk.Name).Err(); err != nil {
		return fmt.Errorf("redis: evict: %w", err)
	}
	return nil
}

func (c *Connector) Close() error {
	if c.ClearOnClose {
		if err := c.Client.FlushDB(context.Background()).Err(); err != nil {
			return fmt.Errorf("redis: flush on close: %w", err)
		}
	}
	return c.Client.Close()
}

func (c *Connector) NewKey(_ context.Context) (connector.Key, error) {
	return Key{Name: c.newName()}, nil
}

func (c *Connector) Set(ctx context.Context, key connector.Key, data []byte) error {
	rk, ok := key.(Key)
	if !ok {
		return fmt.Errorf("redis: wrong key type %T", key)
	}
	return c.Client.Set(ctx, rk.Name, data, 0).Err()
}

var _ connector.Deferrable = (*Connector)(nil)
