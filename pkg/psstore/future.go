package psstore

import (
	"context"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/proxystore-go/proxystore/pkg/connector"
	"github.com/proxystore-go/proxystore/pkg/psproxy"
)

// Future is the deferred-write handle spec §4.4/§4.5 calls ProxyFuture: a
// key is allocated up front (via the Connector's Deferrable extension),
// and the eventual object is supplied later with SetResult. Proxy()
// returns a Proxy that polls for availability.
type Future[T any] struct {
	store           *Store
	key             connector.Key
	pollingInterval time.Duration
	pollingTimeout  time.Duration
}

// NewFuture allocates a fresh key from s's Connector (which must support
// the Deferrable extension) and returns a Future bound to it.
func NewFuture[T any](ctx context.Context, s *Store, pollingInterval, pollingTimeout time.Duration) (*Future[T], error) {
	deferrable, ok := s.Conn.(connector.Deferrable)
	if !ok {
		return nil, fmt.Errorf("psstore: connector %s does not support the deferrable extension required by Future", s.Conn.Kind())
	}
	key, err := deferrable.NewKey(ctx)
	if err != nil {
		return nil, err
	}
	if pollingInterval <= 0 {
		pollingInterval = 100 * time.Millisecond
	}
	return &Future[T]{store: s, key: key, pollingInterval: pollingInterval, pollingTimeout: pollingTimeout}, nil
}

// Key returns the pre-allocated key this Future will eventually fulfill.
func (f *Future[T]) Key() connector.Key { return f.key }

// Proxy returns a Proxy whose Factory resolves by polling the Store until
// the object becomes available (or PollingTimeout elapses).
func (f *Future[T]) Proxy() *psproxy.Proxy[T] {
	factory := Factory[T]{
		StoreName:       f.store.Name,
		StoreConfig:     f.store.Config(),
		Key:             f.key,
		PollingInterval: f.pollingInterval,
		PollingTimeout:  f.pollingTimeout,
	}
	gob.Register(factory)
	return psproxy.New[T](factory)
}

// SetResult fulfills the future by writing obj to the pre-allocated key via
// the Connector's Deferrable.Set.
func (f *Future[T]) SetResult(ctx context.Context, obj T) error {
	data, err := f.store.Ser(obj)
	if err != nil {
		return &connector.SerializationError{Message: "serializing future result", Cause: err}
	}
	deferrable := f.store.Conn.(connector.Deferrable)
	return deferrable.Set(ctx, f.key, data)
}
