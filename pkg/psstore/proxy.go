package psstore

import (
	"context"
	"encoding/gob"
	"fmt"

	"github.com/proxystore-go/proxystore/pkg/connector"
	"github.com/proxystore-go/proxystore/pkg/psproxy"
)

// ProxyOptions configures Proxy/ProxyBatch/ProxyFromKey.
type ProxyOptions struct {
	Evict              bool
	DeserializerName   string
	SkipNonProxiable   bool
	PrePopulate        bool
}

// ProxyOption configures a single Proxy construction call.
type ProxyOption func(*ProxyOptions)

// WithEvictOnResolve marks the constructed Factory to evict its key the
// first time it resolves.
func WithEvictOnResolve() ProxyOption { return func(o *ProxyOptions) { o.Evict = true } }

// WithProxyDeserializer overrides the deserializer the constructed
// Factory uses at resolve time.
func WithProxyDeserializer(name string) ProxyOption {
	return func(o *ProxyOptions) { o.DeserializerName = name }
}

// WithSkipNonProxiable, when the proxied type is a designated
// non-proxiable sentinel, has Proxy return the object as-is (spec §4.3,
// §7) instead of raising a NonProxiableError. Go's static typing makes
// "non-proxiable" a narrower concern than in the dynamic original — see
// IsNonProxiable.
func WithSkipNonProxiable() ProxyOption { return func(o *ProxyOptions) { o.SkipNonProxiable = true } }

// WithPrePopulatedProxy has the constructed Proxy start already resolved
// with the object that was just put, avoiding an immediate round-trip
// back through the Connector on the producing side.
func WithPrePopulatedProxy() ProxyOption { return func(o *ProxyOptions) { o.PrePopulate = true } }

// Proxy puts obj via s, constructs a Factory bound to s's config, and
// returns a Proxy (spec §4.3's store.proxy()). When obj is non-proxiable
// and WithSkipNonProxiable was given, obj is never persisted: Proxy
// returns it untouched as the first result and a nil *psproxy.Proxy[T] as
// the second, so the caller's obj never reaches the Connector. Otherwise
// the first result is the zero value of T and the caller uses the
// returned Proxy's Get()/MustGet() to reach the object.
func Proxy[T any](ctx context.Context, s *Store, obj T, opts ...ProxyOption) (T, *psproxy.Proxy[T], error) {
	var o ProxyOptions
	for _, opt := range opts {
		opt(&o)
	}
	if IsNonProxiable(obj) {
		if !o.SkipNonProxiable {
			var zero T
			return zero, nil, &NonProxiableError{TypeName: typeName(obj)}
		}
		return obj, nil, nil
	}
	key, err := s.Put(ctx, obj)
	if err != nil {
		var zero T
		return zero, nil, err
	}
	var zero T
	return zero, buildProxy(s, key, obj, o), nil
}

// ProxyBatch is an order-preserving batch Proxy using a single Connector
// batch call.
func ProxyBatch[T any](ctx context.Context, s *Store, objs []T, opts ...ProxyOption) ([]*psproxy.Proxy[T], error) {
	var o ProxyOptions
	for _, opt := range opts {
		opt(&o)
	}
	anyObjs := make([]any, len(objs))
	for i, obj := range objs {
		anyObjs[i] = obj
	}
	keys, err := s.PutBatch(ctx, anyObjs)
	if err != nil {
		return nil, err
	}
	proxies := make([]*psproxy.Proxy[T], len(objs))
	for i, obj := range objs {
		proxies[i] = buildProxy(s, keys[i], obj, o)
	}
	return proxies, nil
}

// ProxyFromKey constructs a Proxy around an existing key without putting
// anything; the caller vouches that key was produced by s's Connector for
// an object of type T.
func ProxyFromKey[T any](s *Store, key connector.Key, opts ...ProxyOption) *psproxy.Proxy[T] {
	var o ProxyOptions
	for _, opt := range opts {
		opt(&o)
	}
	factory := Factory[T]{
		StoreName:   s.Name,
		StoreConfig: s.Config(),
		Key:         key,
		Evict:       o.Evict,
		DeserName:   o.DeserializerName,
	}
	gob.Register(factory)
	return psproxy.New[T](factory)
}

func buildProxy[T any](s *Store, key connector.Key, obj T, o ProxyOptions) *psproxy.Proxy[T] {
	factory := Factory[T]{
		StoreName:   s.Name,
		StoreConfig: s.Config(),
		Key:         key,
		Evict:       o.Evict,
		DeserName:   o.DeserializerName,
	}
	gob.Register(factory)
	var popts []psproxy.Option[T]
	if o.PrePopulate || s.populateCacheOnProxy {
		popts = append(popts, psproxy.WithPrePopulated(obj))
	}
	return psproxy.New[T](factory, popts...)
}

// IsNonProxiable reports whether obj is a sentinel-like Go value that is
// not worth proxying: a bool or an untyped nil. Ints are always proxiable;
// there is no option to treat them as non-proxiable. Wrapping a sentinel
// in a Factory/Connector round-trip is never worth it and callers
// overwhelmingly expect a bare value back.
func IsNonProxiable(obj any) bool {
	switch obj.(type) {
	case bool, nil:
		return true
	default:
		return false
	}
}

func typeName(obj any) string {
	return fmt.Sprintf("%T", obj)
}
