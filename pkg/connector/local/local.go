// Package local implements a process-local Connector: an in-memory map
// keyed by a monotonic counter. It never persists across processes and is
// the natural local leaf of a MultiConnector, per spec §4.2.
package local

import (
	"context"
	"encoding/gob"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/proxystore-go/proxystore/pkg/connector"
)

// Kind is this Connector's registered fully-qualified type identifier.
const Kind = "local"

// Key is a Local Connector's key shape: a single monotonic counter.
type Key struct {
	ID uint64
}

func (k Key) String() string { return fmt.Sprintf("local(%d)", k.ID) }

// Connector is an in-memory, process-local Connector.
type Connector struct {
	mu      sync.RWMutex
	objects map[uint64][]byte
	counter uint64
}

// New creates an empty Local Connector.
func New() *Connector {
	return &Connector{objects: make(map[uint64][]byte)}
}

func init() {
	connector.Register(Kind, func(cfg connector.Config) (connector.Connector, error) {
		return New(), nil
	})
	gob.Register(Key{})
}

func (c *Connector) Kind() string { return Kind }

func (c *Connector) Config() connector.Config {
	return connector.Config{Kind: Kind, Data: map[string]any{}}
}

func (c *Connector) Put(_ context.Context, data []byte) (connector.Key, error) {
	id := atomic.AddUint64(&c.counter, 1)
	cp := append([]byte(nil), data...)
	c.mu.Lock()
	c.objects[id] = cp
	c.mu.Unlock()
	return Key{ID: id}, nil
}

func (c *Connector) PutBatch(ctx context.Context, datas [][]byte) ([]connector.Key, error) {
	keys := make([]connector.Key, len(datas))
	for i, d := range datas {
		k, err := c.Put(ctx, d)
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}
	return keys, nil
}

func (c *Connector) Get(_ context.Context, key connector.Key) ([]byte, bool, error) {
	lk, ok := key.(Key)
	if !ok {
		return nil, false, fmt.Errorf("local: wrong key type %T", key)
	}
	c.mu.RLock()
	data, ok := c.objects[lk.ID]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
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

func (c *Connector) Exists(_ context.Context, key connector.Key) (bool, error) {
	lk, ok := key.(Key)
	if !ok {
		return false, fmt.Errorf("local: wrong key type %T", key)
	}
	c.mu.RLock()
	_, ok = c.objects[lk.ID]
	c.mu.RUnlock()
	return ok, nil
}

func (c *Connector) Evict(_ context.Context, key connector.Key) error {
	lk, ok := key.(Key)
	if !ok {
		return fmt.Errorf("local: wrong key type %T", key)
	}
	c.mu.Lock()
	delete(c.objects, lk.ID)
	c.mu.Unlock()
	return nil
}

func (c *Connector) Close() error { return nil }

// NewKey and Set implement connector.Deferrable, letting a key be allocated
// before the object exists, for the ProxyFuture pattern.
func (c *Connector) NewKey(_ context.Context) (connector.Key, error) {
	id := atomic.AddUint64(&c.counter, 1)
	return Key{ID: id}, nil
}

func (c *Connector) Set(_ context.Context, key connector.Key, data []byte) error {
	lk, ok := key.(Key)
	if !ok {
		return fmt.Errorf("local: wrong key type %T", key)
	}
	cp := append([]byte(nil), data...)
	c.mu.Lock()
	c.objects[lk.ID] = cp
	c.mu.Unlock()
	return nil
}

var _ connector.Deferrable = (*Connector)(nil)
