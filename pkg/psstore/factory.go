package psstore

import (
	"context"
	"time"

	"github.com/proxystore-go/proxystore/pkg/connector"
	"github.com/proxystore-go/proxystore/pkg/serialize"
)

// Factory is a serializable closure-over-a-key that, when resolved,
// rehydrates the owning Store (via the process registry or the embedded
// Config) and returns the object (spec §4.4). It carries every field by
// value so it gob-encodes cleanly — Factory IS a Proxy's entire
// serialized identity (spec §4.1).
type Factory[T any] struct {
	StoreName   string
	StoreConfig Config
	Key         connector.Key
	Evict       bool
	DeserName   string

	// PollingInterval/PollingTimeout, when PollingInterval is non-zero,
	// switch Resolve into the polling variant used by ProxyFuture (spec
	// §4.4's "polling resolve").
	PollingInterval time.Duration
	PollingTimeout  time.Duration
}

// Resolve implements psproxy.Resolver[T].
func (f Factory[T]) Resolve() (T, error) {
	var zero T
	store, err := getOrReconstruct(f.StoreName, f.StoreConfig)
	if err != nil {
		return zero, err
	}

	var deser serialize.Deserializer
	if f.DeserName != "" {
		d, _, lookupErr := lookupDeserializer(f.DeserName)
		if lookupErr != nil {
			return zero, lookupErr
		}
		deser = d
	}

	var out T
	ctx := context.Background()
	opts := []GetOption{}
	if deser != nil {
		opts = append(opts, WithDeserializer(deser))
	}

	if f.PollingInterval > 0 {
		ok, err := f.pollingGet(ctx, store, &out, opts)
		if err != nil {
			return zero, err
		}
		if !ok {
			return zero, &MissingKeyError{Key: f.Key, ConnectorKind: store.Conn.Kind(), StoreName: store.Name}
		}
	} else {
		ok, err := store.Get(ctx, f.Key, &out, opts...)
		if err != nil {
			return zero, err
		}
		if !ok {
			return zero, &MissingKeyError{Key: f.Key, ConnectorKind: store.Conn.Kind(), StoreName: store.Name}
		}
	}

	if f.Evict {
		if err := store.Evict(ctx, f.Key); err != nil {
			return zero, err
		}
	}
	return out, nil
}

func (f Factory[T]) pollingGet(ctx context.Context, store *Store, out any, opts []GetOption) (bool, error) {
	deadline := time.Time{}
	if f.PollingTimeout > 0 {
		deadline = time.Now().Add(f.PollingTimeout)
	}
	ticker := time.NewTicker(f.PollingInterval)
	defer ticker.Stop()
	for {
		ok, err := store.Get(ctx, f.Key, out, opts...)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

// lookupDeserializer returns the named deserializer's Serializer/
// Deserializer pair, ignoring the serializer half.
func lookupDeserializer(name string) (serialize.Deserializer, serialize.Serializer, error) {
	ser, deser, err := serialize.Lookup(name)
	return deser, ser, err
}
