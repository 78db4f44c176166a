// Package connector defines the byte-level backend abstraction every
// concrete backend (local, file, redis, globus, endpoint, multi) implements,
// per spec §4.2.
package connector

import "context"

// Key locates an object within exactly one Connector. Connector
// implementations define their own concrete key type; Key is the common
// interface every one of them satisfies so the Store can handle keys
// generically.
type Key interface {
	// String renders the key for logging.
	String() string
}

// Connector is the byte-level key/value backend contract. Implementations
// must make put/get/evict/exists safe for concurrent use.
type Connector interface {
	// Put allocates a fresh key, persists data, and returns the key. A
	// second Put with identical bytes returns a different key: put is
	// "allocate a fresh key", not content-addressed dedup (see spec §9
	// Open Questions).
	Put(ctx context.Context, data []byte) (Key, error)

	// PutBatch is an order-preserving batch Put.
	PutBatch(ctx context.Context, datas [][]byte) ([]Key, error)

	// Get returns the exact bytes passed to Put, or (nil, false) if the
	// key is not present.
	Get(ctx context.Context, key Key) ([]byte, bool, error)

	// GetBatch is an order-preserving batch Get; each result mirrors Get.
	GetBatch(ctx context.Context, keys []Key) ([][]byte, []bool, error)

	// Exists reports presence without transferring the object's bytes.
	Exists(ctx context.Context, key Key) (bool, error)

	// Evict idempotently deletes key; evicting an absent key is not an
	// error.
	Evict(ctx context.Context, key Key) error

	// Close releases resources held by the Connector. It may be a no-op,
	// or it may wait on pending operations, or purge backing storage,
	// depending on the Connector and its configuration.
	Close() error

	// Config returns a JSON-serializable reconstruction record.
	Config() Config

	// Kind returns the fully-qualified type identifier recorded in a
	// StoreConfig and used by the registry to find FromConfig.
	Kind() string
}

// Config is the JSON-serializable reconstruction record for a Connector.
// Concrete Connectors populate Kind with their own registered name and Data
// with whatever fields FromConfig needs.
type Config struct {
	Kind string         `json:"kind"`
	Data map[string]any `json:"data"`
}

// Factory constructs a Connector from a Config. Every concrete Connector
// package registers one under its Kind() string via Register, generalizing
// the Python original's dynamic from_config() dispatch into a static
// registry, per spec §9 DESIGN NOTES.
type Factory func(cfg Config) (Connector, error)

var registry = map[string]Factory{}

// Register installs a Connector's FromConfig constructor under its kind
// name. Called from each connector package's init().
func Register(kind string, factory Factory) {
	registry[kind] = factory
}

// FromConfig reconstructs a Connector from a Config using the registry
// populated by Register.
func FromConfig(cfg Config) (Connector, error) {
	factory, ok := registry[cfg.Kind]
	if !ok {
		return nil, &ConfigurationError{Message: "unrecognized connector kind: " + cfg.Kind}
	}
	return factory(cfg)
}

// Deferrable is the optional extension some Connectors expose so a key can
// be allocated before the object exists, for the ProxyFuture pattern (§4.2,
// §4.4).
type Deferrable interface {
	Connector
	NewKey(ctx context.Context) (Key, error)
	Set(ctx context.Context, key Key, data []byte) error
}
