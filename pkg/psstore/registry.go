package psstore

import "sync"

// registry is the process-wide mapping from store name to Store instance,
// per spec §4.3: Factories use it to avoid reconstructing the Store on
// every resolve. Guarded by a single lock across insert/lookup, per spec
// §5's concurrency model for the Store/Connector/Factory/Proxy/Cache
// domain.
var registry = struct {
	mu     sync.Mutex
	stores map[string]*Store
}{stores: make(map[string]*Store)}

// Register inserts store into the process-wide registry under its own
// name, replacing any prior Store registered under that name.
func Register(store *Store) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.stores[store.Name] = store
}

// Lookup returns the Store registered under name, if any.
func Lookup(name string) (*Store, bool) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	s, ok := registry.stores[name]
	return s, ok
}

// Unregister removes name from the registry, if present. Used by Store
// tests and by Close() to avoid leaking stale entries across test cases.
func Unregister(name string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	delete(registry.stores, name)
}

// Clear empties the registry. Exposed for test isolation.
func Clear() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.stores = make(map[string]*Store)
}

// getOrReconstruct returns the registered Store for name, reconstructing
// and registering it from cfg if it is not already present — the
// mechanism a Factory uses to resurrect its owning Store in a foreign
// process (spec §4.4 step 1).
func getOrReconstruct(name string, cfg Config) (*Store, error) {
	if s, ok := Lookup(name); ok {
		return s, nil
	}
	s, err := FromConfig(cfg)
	if err != nil {
		return nil, &StoreUnavailableError{StoreName: name, Cause: err}
	}
	Register(s)
	return s, nil
}
