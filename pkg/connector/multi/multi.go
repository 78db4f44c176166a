// Package multi implements the MultiConnector: a priority-ordered set of
// named child Connectors, each governed by a Policy, per spec §4.5.
package multi

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/proxystore-go/proxystore/pkg/connector"
)

// Kind is this Connector's registered fully-qualified type identifier.
const Kind = "multi"

// Key wraps a child's key with the name of the child that produced it.
type Key struct {
	ChildName string
	ChildKey  connector.Key
}

func (k Key) String() string { return fmt.Sprintf("multi(%s:%s)", k.ChildName, k.ChildKey) }

// Policy governs when a MultiConnector child is eligible to accept a Put,
// and whether it is reachable ("dormant" when not) on the current host.
type Policy struct {
	Priority     int
	MinSizeBytes int64 // -1 means unbounded
	MaxSizeBytes int64 // -1 means unbounded
	SubsetTags   []string
	SupersetTags []string
	HostPatterns []string // regular expressions; empty means "every host"
}

// Valid reports whether this policy accepts a put of the given size and
// tags, irrespective of host.
func (p Policy) Valid(size int64, subsetTags, supersetTags []string) bool {
	if p.MinSizeBytes >= 0 && size < p.MinSizeBytes {
		return false
	}
	if p.MaxSizeBytes >= 0 && size > p.MaxSizeBytes {
		return false
	}
	if !isSubset(subsetTags, p.SubsetTags) {
		return false
	}
	if !isSubset(p.SupersetTags, supersetTags) {
		return false
	}
	return true
}

// OnThisHost reports whether the policy's host pattern(s) match the given
// hostname. An empty pattern list matches every host.
func (p Policy) OnThisHost(hostname string) bool {
	if len(p.HostPatterns) == 0 {
		return true
	}
	for _, pat := range p.HostPatterns {
		if re, err := regexp.Compile(pat); err == nil && re.MatchString(hostname) {
			return true
		}
	}
	return false
}

func isSubset(small, big []string) bool {
	set := make(map[string]struct{}, len(big))
	for _, s := range big {
		set[s] = struct{}{}
	}
	for _, s := range small {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}

// DormantError distinguishes access to a MultiConnector child marked dormant
// on this host from an ordinary missing key.
type DormantError struct {
	ChildName string
}

func (e *DormantError) Error() string {
	return fmt.Sprintf("multi: child %q is dormant on this host", e.ChildName)
}

// NoSuitableChildError is raised when no child's policy accepts a Put.
type NoSuitableChildError struct{}

func (e *NoSuitableChildError) Error() string {
	return "multi: no child connector satisfies the put's policy constraints"
}

type child struct {
	name    string
	conn    connector.Connector
	policy  Policy
	dormant bool
}

// Connector is the MultiConnector: a named, priority-ordered set of child
// Connectors and Policies.
type Connector struct {
	hostname string
	children []*child
}

// New creates a MultiConnector. hostname defaults to os.Hostname() when
// empty, and is evaluated once at construction to decide which children are
// dormant (spec §4.5's "reconstructed from a config on a host that does not
// match").
func New(hostname string, entries map[string]connector.Connector, policies map[string]Policy) (*Connector, error) {
	if hostname == "" {
		h, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("multi: resolving hostname: %w", err)
		}
		hostname = h
	}
	m := &Connector{hostname: hostname}
	for name, conn := range entries {
		pol := policies[name]
		m.children = append(m.children, &child{
			name:    name,
			conn:    conn,
			policy:  pol,
			dormant: !pol.OnThisHost(hostname),
		})
	}
	sort.SliceStable(m.children, func(i, j int) bool {
		return m.children[i].policy.Priority > m.children[j].policy.Priority
	})
	return m, nil
}

func init() {
	connector.Register(Kind, fromConfig)
	gob.Register(Key{})
}

func fromConfig(cfg connector.Config) (connector.Connector, error) {
	hostname, _ := cfg.Data["hostname"].(string)
	rawChildren, ok := cfg.Data["children"].([]map[string]any)
	if !ok {
		if generic, isGeneric := cfg.Data["children"].([]any); isGeneric {
			rawChildren = make([]map[string]any, 0, len(generic))
			for _, rc := range generic {
				if rec, ok := rc.(map[string]any); ok {
					rawChildren = append(rawChildren, rec)
				}
			}
		}
	}
	entries := make(map[string]connector.Connector, len(rawChildren))
	policies := make(map[string]Policy, len(rawChildren))
	for _, rec := range rawChildren {
		name, _ := rec["name"].(string)
		childCfgRaw, _ := rec["config"].(connector.Config)
		childConn, err := connector.FromConfig(childCfgRaw)
		if err != nil {
			return nil, fmt.Errorf("multi: reconstructing child %q: %w", name, err)
		}
		entries[name] = childConn
		polRaw, _ := rec["policy"].(map[string]any)
		policies[name] = policyFromRecord(polRaw)
	}
	return New(hostname, entries, policies)
}

func policyFromRecord(rec map[string]any) Policy {
	var p Policy
	if v, ok := rec["priority"].(int); ok {
		p.Priority = v
	}
	if v, ok := rec["min_size_bytes"].(int64); ok {
		p.MinSizeBytes = v
	} else {
		p.MinSizeBytes = -1
	}
	if v, ok := rec["max_size_bytes"].(int64); ok {
		p.MaxSizeBytes = v
	} else {
		p.MaxSizeBytes = -1
	}
	if v, ok := rec["subset_tags"].([]string); ok {
		p.SubsetTags = v
	}
	if v, ok := rec["superset_tags"].([]string); ok {
		p.SupersetTags = v
	}
	if v, ok := rec["host_patterns"].([]string); ok {
		p.HostPatterns = v
	}
	return p
}

func (m *Connector) Kind() string { return Kind }

func (m *Connector) Config() connector.Config {
	children := make([]map[string]any, len(m.children))
	for i, ch := range m.children {
		children[i] = map[string]any{
			"name":   ch.name,
			"config": ch.conn.Config(),
			"policy": map[string]any{
				"priority":       ch.policy.Priority,
				"min_size_bytes": ch.policy.MinSizeBytes,
				"max_size_bytes": ch.policy.MaxSizeBytes,
				"subset_tags":    ch.policy.SubsetTags,
				"superset_tags":  ch.policy.SupersetTags,
				"host_patterns":  ch.policy.HostPatterns,
			},
		}
	}
	return connector.Config{Kind: Kind, Data: map[string]any{
		"hostname": m.hostname,
		"children": children,
	}}
}

func (m *Connector) findChild(name string) *child {
	for _, ch := range m.children {
		if ch.name == name {
			return ch
		}
	}
	return nil
}

// Put scans children in descending priority order and delegates to the
// first non-dormant child whose policy accepts the put.
func (m *Connector) Put(ctx context.Context, data []byte) (connector.Key, error) {
	return m.PutWithTags(ctx, data, nil, nil)
}

// PutWithTags is Put with explicit subset/superset tag constraints, per
// spec §4.5's put(obj, subset_tags, superset_tags).
func (m *Connector) PutWithTags(ctx context.Context, data []byte, subsetTags, supersetTags []string) (connector.Key, error) {
	size := int64(len(data))
	for _, ch := range m.children {
		if ch.dormant {
			continue
		}
		if ch.policy.Valid(size, subsetTags, supersetTags) {
			childKey, err := ch.conn.Put(ctx, data)
			if err != nil {
				return nil, err
			}
			return Key{ChildName: ch.name, ChildKey: childKey}, nil
		}
	}
	return nil, &NoSuitableChildError{}
}

func (m *Connector) PutBatch(ctx context.Context, datas [][]byte) ([]connector.Key, error) {
	keys := make([]connector.Key, len(datas))
	for i, d := range datas {
		k, err := m.Put(ctx, d)
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}
	return keys, nil
}

func (m *Connector) resolve(key connector.Key) (*child, connector.Key, error) {
	mk, ok := key.(Key)
	if !ok {
		return nil, nil, fmt.Errorf("multi: wrong key type %T", key)
	}
	ch := m.findChild(mk.ChildName)
	if ch == nil {
		return nil, nil, fmt.Errorf("multi: unknown child %q", mk.ChildName)
	}
	if ch.dormant {
		return nil, nil, &DormantError{ChildName: ch.name}
	}
	return ch, mk.ChildKey, nil
}

func (m *Connector) Get(ctx context.Context, key connector.Key) ([]byte, bool, error) {
	ch, childKey, err := m.resolve(key)
	if err != nil {
		return nil, false, err
	}
	return ch.conn.Get(ctx, childKey)
}

func (m *Connector) GetBatch(ctx context.Context, keys []connector.Key) ([][]byte, []bool, error) {
	datas := make([][]byte, len(keys))
	oks := make([]bool, len(keys))
	for i, k := range keys {
		d, ok, err := m.Get(ctx, k)
		if err != nil {
			return nil, nil, err
		}
		datas[i], oks[i] = d, ok
	}
	return datas, oks, nil
}

func (m *Connector) Exists(ctx context.Context, key connector.Key) (bool, error) {
	ch, childKey, err := m.resolve(key)
	if err != nil {
		return false, err
	}
	return ch.conn.Exists(ctx, childKey)
}

func (m *Connector) Evict(ctx context.Context, key connector.Key) error {
	ch, childKey, err := m.resolve(key)
	if err != nil {
		return err
	}
	return ch.conn.Evict(ctx, childKey)
}

// Close closes every non-dormant child; dormant children were never opened
// on this host.
func (m *Connector) Close() error {
	var firstErr error
	for _, ch := range m.children {
		if ch.dormant {
			continue
		}
		if err := ch.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
