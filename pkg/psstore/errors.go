package psstore

import (
	"errors"
	"fmt"

	"github.com/proxystore-go/proxystore/pkg/connector"
)

var errNegativeCacheSize = errors.New("psstore: cache size must be >= 0")

// MissingKeyError is raised when a Connector reports a key missing when the
// caller required presence, and by Factory.Resolve.
type MissingKeyError struct {
	Key           connector.Key
	ConnectorKind string
	StoreName     string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing key %s in connector %s of store %q", e.Key, e.ConnectorKind, e.StoreName)
}

// StoreUnavailableError is raised when a Factory cannot find its Store in
// the process registry and cannot reconstruct it from the embedded config.
type StoreUnavailableError struct {
	StoreName string
	Cause     error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store %q unavailable: %v", e.StoreName, e.Cause)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Cause }

// NonProxiableError is raised when a caller tries to proxy a value that
// cannot sensibly be proxied (and skip_nonproxiable was not requested).
type NonProxiableError struct {
	TypeName string
}

func (e *NonProxiableError) Error() string {
	return fmt.Sprintf("value of type %s is not proxiable", e.TypeName)
}
