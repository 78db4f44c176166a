// Package psproxy implements the transparent lazy proxy (spec §4.1): a
// value that, aside from a small fixed set of introspection operations,
// behaves as though it were the object returned by its Factory.
//
// Go has no magic-method dispatch protocol, so — per spec §9 DESIGN
// NOTES — transparency is achieved the idiomatic-Go way: Proxy[T] is
// statically typed over T, and Get() triggers at-most-once
// factory invocation with the result cached in an interior-mutable slot.
// The "proxy reports the target's type for isinstance" contract does not
// port to a statically typed language and is dropped; callers needing the
// wrapped value call Get() and use it directly, which is already
// statically typed as T.
package psproxy

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"
	"sync/atomic"
)

// Resolver is anything that can materialize a T at most once. A Factory
// (pkg/psstore) is the canonical Resolver; tests may supply their own.
type Resolver[T any] interface {
	Resolve() (T, error)
}

// Proxy wraps a Resolver and forwards to its lazily materialized target.
// Its serialized identity is the Resolver alone — GobEncode/GobDecode
// never serialize the target slot, only the Resolver (see the store
// package's Factory, and its gob.Register of each instantiation it
// produces).
type Proxy[T any] struct {
	resolver Resolver[T]

	mu       sync.Mutex
	resolved atomic.Bool
	target   T
	err      error

	// defaults are introspection values staple-able at construction time
	// so that cheap queries never force resolution, per spec §3.
	defaults *CachedDefaults[T]
}

// CachedDefaults holds optional pre-supplied answers to cheap queries
// (length and string form; hash and equality always resolve) an observer might make before
// deciding whether it actually needs the target, matching the Python
// proxy's "cached defaults" construction-time staples.
type CachedDefaults[T any] struct {
	HasLen bool
	Len    int
	HasStr bool
	Str    string
}

// New constructs a Proxy around resolver, applying opts. With
// WithPrePopulated the proxy starts already resolved — this lets a
// producer avoid an immediate resolve of its own freshly-proxied object
// without changing the serialization contract (only the Resolver survives
// serialization).
func New[T any](resolver Resolver[T], opts ...Option[T]) *Proxy[T] {
	p := &Proxy[T]{resolver: resolver}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Option configures a Proxy at construction time.
type Option[T any] func(*Proxy[T])

// WithPrePopulated marks the proxy as already resolved with target,
// skipping the first Resolve() call. Used when the producing side already
// has the object in hand (e.g. right after Store.Put) and Resolve() would
// otherwise be a wasted round-trip back through the Connector.
func WithPrePopulated[T any](target T) Option[T] {
	return func(p *Proxy[T]) {
		p.target = target
		p.resolved.Store(true)
	}
}

// WithCachedDefaults staples pre-known introspection answers onto the
// proxy so they don't force resolution.
func WithCachedDefaults[T any](d CachedDefaults[T]) Option[T] {
	return func(p *Proxy[T]) {
		p.defaults = &d
	}
}

// Resolved reports whether the factory has already been invoked.
func (p *Proxy[T]) Resolved() bool {
	return p.resolved.Load()
}

// Get forces resolution if necessary and returns the target. The factory
// is invoked at most once per Proxy instance; concurrent callers block on
// the same in-flight resolution rather than triggering it twice.
func (p *Proxy[T]) Get() (T, error) {
	if p.resolved.Load() {
		return p.target, p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolved.Load() {
		return p.target, p.err
	}
	target, err := p.resolver.Resolve()
	p.target, p.err = target, err
	p.resolved.Store(true)
	return p.target, p.err
}

// MustGet forces resolution and panics if it fails; used by the
// transparent accessors below where Go's calling convention has no way to
// plumb an error back out (e.g. Len(), String()).
func (p *Proxy[T]) MustGet() T {
	v, err := p.Get()
	if err != nil {
		panic(err)
	}
	return v
}

// String forwards to the target's string form, resolving if necessary,
// unless a cached default was stapled at construction — mirroring the
// Python proxy's "defaults for dunder-like attributes... carried so that
// introspection before resolution does not trigger resolution".
func (p *Proxy[T]) String() string {
	if p.defaults != nil && p.defaults.HasStr {
		return p.defaults.Str
	}
	v := p.MustGet()
	return anyToString(v)
}

func anyToString(v any) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}

// Equal compares the proxy's target for equality against other using eq,
// forcing resolution. This realizes spec §4.1's "a proxy compares equal to
// x iff its target compares equal to x" without relying on a reflection
// based deep-equal, since T's own notion of equality may be custom.
func (p *Proxy[T]) Equal(other T, eq func(a, b T) bool) bool {
	v := p.MustGet()
	return eq(v, other)
}

// Unwrap is the common escape hatch: resolve and return the raw target.
// Equivalent to Get but panics on error, for call sites (e.g. proxy-of-
// proxy forwarding, testable property 9) that need an unconditional T.
func (p *Proxy[T]) Unwrap() T {
	return p.MustGet()
}

// Hash forwards to the target's hash computed by hash, always resolving p
// (there is no cached hash default) — mirroring Equal's pattern so
// that a proxy's equality, hash, and length all resolve through the same
// lazily materialized target (spec testable property 9), even when the
// target being hashed is itself another Proxy.
func (p *Proxy[T]) Hash(hash func(T) uint64) uint64 {
	return hash(p.MustGet())
}

// Len forwards to the target's length, resolving p if necessary, via the
// caller-supplied len function (T itself may not satisfy a Len() int
// method, e.g. when T is a slice or map). Matches Equal/Hash's pattern so
// Len reflects the lazily materialized target even when nested inside
// another Proxy (testable property 9).
func (p *Proxy[T]) Len(lenOf func(T) int) int {
	if p.defaults != nil && p.defaults.HasLen {
		return p.defaults.Len
	}
	return lenOf(p.MustGet())
}

// resolverEnvelope is the gob-encoded carrier for a Proxy's Resolver,
// mirroring pkg/pubsub's keyEnvelope: gob's native interface-value
// encoding needs the concrete Resolver type registered (see the store
// package's gob.Register of each Factory[T] instantiation it builds), but
// the field itself stays an interface so Proxy never has to import the
// concrete Resolver type.
type resolverEnvelope[T any] struct {
	Resolver Resolver[T]
}

// GobEncode implements gob.GobEncoder. A proxy serializes to its factory
// alone (spec §3, testable property 3): the resolved target and any
// cached defaults are never part of the wire form.
func (p *Proxy[T]) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(resolverEnvelope[T]{Resolver: p.resolver}); err != nil {
		return nil, fmt.Errorf("psproxy: encoding resolver: %w", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder, reconstructing an unresolved proxy
// around the decoded Resolver. The factory has not been invoked yet:
// decoding a Proxy never touches the Connector.
func (p *Proxy[T]) GobDecode(data []byte) error {
	var env resolverEnvelope[T]
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return fmt.Errorf("psproxy: decoding resolver: %w", err)
	}
	*p = Proxy[T]{resolver: env.Resolver}
	return nil
}
