// Package psstore implements the Store facade (spec §4.3): the binding of
// a name, a Connector, a serialization codec, a bounded LRU resolve cache,
// and optional metrics. It also implements the tightly-coupled Factory and
// ProxyFuture (spec §4.4) in the same package, since both need direct
// access to the process-wide registry and a Store's internals — the same
// coupling the original spec's dependency ordering describes (Store,
// then Factory, in that order, before the Proxy that wraps a Factory).
package psstore

import (
	"context"
	"fmt"
	"time"

	"github.com/proxystore-go/proxystore/pkg/connector"
	"github.com/proxystore-go/proxystore/pkg/pslog"
	"github.com/proxystore-go/proxystore/pkg/serialize"
)

// Store binds a name, a Connector, a codec, a bounded LRU cache, and
// optional metrics (spec §4.3).
type Store struct {
	Name      string
	Conn      connector.Connector
	Ser       serialize.Serializer
	Deser     serialize.Deserializer
	serName   string
	deserName string

	cache                *cache
	cacheSize            int
	populateCacheOnProxy bool

	metricsEnabled bool
	metrics        *Metrics

	logger pslog.Logger
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithCacheSize sets the resolve cache's bounded capacity. 0 disables
// caching; negative values are rejected by New.
func WithCacheSize(n int) Option { return func(s *Store) { s.cacheSize = n } }

// WithMetrics enables per-operation metrics collection.
func WithMetrics(enabled bool) Option { return func(s *Store) { s.metricsEnabled = enabled } }

// WithSerializer overrides the default codec by name (see package
// serialize).
func WithSerializer(name string) Option { return func(s *Store) { s.serName = name } }

// WithPopulateCacheOnProxy, when true, makes every Proxy built by Proxy or
// ProxyBatch start pre-populated with the object just put, as
// WithPrePopulatedProxy does per call. The resolve cache is not touched,
// and a per-call option cannot turn this off.
func WithPopulateCacheOnProxy(v bool) Option { return func(s *Store) { s.populateCacheOnProxy = v } }

// WithLogger attaches a logger; defaults to a no-op logger.
func WithLogger(l pslog.Logger) Option { return func(s *Store) { s.logger = l } }

// New constructs a Store bound to name and conn, registers it in the
// process-wide registry, and returns it.
func New(name string, conn connector.Connector, opts ...Option) (*Store, error) {
	s := &Store{
		Name:      name,
		Conn:      conn,
		cacheSize: 16,
		logger:    pslog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	c, err := newCache(s.cacheSize)
	if err != nil {
		return nil, err
	}
	s.cache = c
	if s.metricsEnabled {
		s.metrics = newMetrics()
	}
	ser, deser, err := serialize.Lookup(s.serName)
	if err != nil {
		return nil, err
	}
	s.Ser, s.Deser = ser, deser
	s.logger = s.logger.Fork("store(%s)", name)
	Register(s)
	return s, nil
}

// FromConfig reconstructs a Store from a Config, per spec §3's StoreConfig
// round-trip invariant (testable property 5, generalized to Stores).
func FromConfig(cfg Config) (*Store, error) {
	conn, err := connector.FromConfig(cfg.Connector)
	if err != nil {
		return nil, fmt.Errorf("psstore: reconstructing connector: %w", err)
	}
	return New(cfg.Name, conn,
		WithCacheSize(cfg.CacheSize),
		WithMetrics(cfg.MetricsEnabled),
		WithSerializer(cfg.SerializerName),
		WithPopulateCacheOnProxy(cfg.PopulateCacheOnProxy),
	)
}

// Config returns this Store's reconstruction record.
func (s *Store) Config() Config {
	return Config{
		Name:                 s.Name,
		Connector:            s.Conn.Config(),
		SerializerName:       s.serName,
		CacheSize:            s.cacheSize,
		MetricsEnabled:       s.metricsEnabled,
		PopulateCacheOnProxy: s.populateCacheOnProxy,
	}
}

func (s *Store) metric(name string) *opMetrics {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.op(name)
}

func timed(m *opMetrics, record func(*opMetrics, time.Duration)) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() { record(m, time.Since(start)) }
}

// Put serializes obj, persists it via the Connector, and returns its key.
func (s *Store) Put(ctx context.Context, obj any) (connector.Key, error) {
	m := s.metric("put")
	stop := timed(m, (*opMetrics).recordTotal)
	defer stop()
	if m != nil {
		m.recordCall()
	}

	serStop := timed(m, (*opMetrics).recordSerialize)
	data, err := s.Ser(obj)
	serStop()
	if err != nil {
		return nil, &connector.SerializationError{Message: "serializing object", Cause: err}
	}

	connStop := timed(m, (*opMetrics).recordConnector)
	key, err := s.Conn.Put(ctx, data)
	connStop()
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.recordBytes(len(data))
	}
	return key, nil
}

// PutBatch is an order-preserving batch Put using a single Connector batch
// call.
func (s *Store) PutBatch(ctx context.Context, objs []any) ([]connector.Key, error) {
	datas := make([][]byte, len(objs))
	for i, obj := range objs {
		data, err := s.Ser(obj)
		if err != nil {
			return nil, &connector.SerializationError{Message: "serializing object", Cause: err}
		}
		datas[i] = data
	}
	return s.Conn.PutBatch(ctx, datas)
}

// getOptions configures a single Get call.
type getOptions struct {
	deser        serialize.Deserializer
	defaultValue any
	hasDefault   bool
}

// GetOption configures Store.Get.
type GetOption func(*getOptions)

// WithDeserializer overrides the Store's default deserializer for one Get
// call.
func WithDeserializer(d serialize.Deserializer) GetOption {
	return func(o *getOptions) { o.deser = d }
}

// WithDefault sets the value Get assigns into out (reporting true) when the
// key is absent, instead of reporting false.
func WithDefault(v any) GetOption {
	return func(o *getOptions) { o.defaultValue, o.hasDefault = v, true }
}

// Get returns the cached object if present; otherwise fetches, deserializes
// into a new value of the same type as out (out is a pointer, mirroring
// encoding/gob's decode-into-pointer convention), installs into the cache
// (unless cache size is 0), and returns. If absent at the Connector level
// and a default was supplied via WithDefault, returns that default.
func (s *Store) Get(ctx context.Context, key connector.Key, out any, opts ...GetOption) (bool, error) {
	o := getOptions{deser: s.Deser}
	for _, opt := range opts {
		opt(&o)
	}

	m := s.metric("get")
	stop := timed(m, (*opMetrics).recordTotal)
	defer stop()
	if m != nil {
		m.recordCall()
	}

	if cached, ok := s.cache.get(key); ok {
		if m != nil {
			m.recordCacheHit()
		}
		return assignCached(out, cached)
	}
	if m != nil {
		m.recordCacheMiss()
	}

	connStop := timed(m, (*opMetrics).recordConnector)
	data, ok, err := s.Conn.Get(ctx, key)
	connStop()
	if err != nil {
		return false, err
	}
	if !ok {
		if o.hasDefault {
			return assignCached(out, o.defaultValue)
		}
		return false, nil
	}
	if m != nil {
		m.recordBytes(len(data))
	}

	deserStop := timed(m, (*opMetrics).recordSerialize)
	err = o.deser(data, out)
	deserStop()
	if err != nil {
		return false, &connector.SerializationError{Message: "deserializing object", Cause: err}
	}
	s.cache.set(key, derefAny(out))
	return true, nil
}

func assignCached(out any, value any) (bool, error) {
	if !assignInto(out, value) {
		return false, fmt.Errorf("psstore: cannot assign cached value of type %T into %T", value, out)
	}
	return true, nil
}

// Exists reports presence; the cache is authoritative on hit.
func (s *Store) Exists(ctx context.Context, key connector.Key) (bool, error) {
	if s.cache.contains(key) {
		return true, nil
	}
	return s.Conn.Exists(ctx, key)
}

// Evict removes key from both Connector and cache.
func (s *Store) Evict(ctx context.Context, key connector.Key) error {
	s.cache.evict(key)
	return s.Conn.Evict(ctx, key)
}

// IsCached reports whether key's object is currently in this Store's
// resolve cache.
func (s *Store) IsCached(key connector.Key) bool {
	return s.cache.contains(key)
}

// Close releases the Connector and removes this Store from the process
// registry.
func (s *Store) Close() error {
	Unregister(s.Name)
	return s.Conn.Close()
}

// Metrics returns this Store's metrics collector, or nil if metrics are
// disabled.
func (s *Store) Metrics() *Metrics { return s.metrics }
