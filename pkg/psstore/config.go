package psstore

import "github.com/proxystore-go/proxystore/pkg/connector"

// Config is the reconstruction record for a Store (spec §3 StoreConfig).
// For every Store s, FromConfig(s.Config()) must produce a Store that is
// observationally equivalent to s for all future operations, provided the
// underlying backend is reachable and holds its state outside the Go
// Connector object (testable property 5, generalized from Connectors to
// Stores). A local Connector reconstructs empty, so a local-backed Store
// does not meet this.
type Config struct {
	Name                 string           `json:"name"`
	Connector            connector.Config `json:"connector"`
	SerializerName       string           `json:"serializer,omitempty"`
	DeserializerName     string           `json:"deserializer,omitempty"`
	CacheSize            int              `json:"cache_size"`
	MetricsEnabled       bool             `json:"metrics_enabled"`
	PopulateCacheOnProxy bool             `json:"populate_cache_on_proxy"`
}
