package psproxy

import (
	"bytes"
	"encoding/gob"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	calls atomic.Int32
	value string
}

func (r *countingResolver) Resolve() (string, error) {
	r.calls.Add(1)
	return r.value, nil
}

func TestProxyResolvesAtMostOnce(t *testing.T) {
	r := &countingResolver{value: "hello"}
	p := New[string](r)

	require.False(t, p.Resolved())
	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
	assert.True(t, p.Resolved())

	for i := 0; i < 5; i++ {
		v, err := p.Get()
		require.NoError(t, err)
		assert.Equal(t, "hello", v)
	}
	assert.EqualValues(t, 1, r.calls.Load())
}

func TestProxyPrePopulatedSkipsResolve(t *testing.T) {
	r := &countingResolver{value: "unused"}
	p := New[string](r, WithPrePopulated("preset"))

	assert.True(t, p.Resolved())
	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, "preset", v)
	assert.EqualValues(t, 0, r.calls.Load())
}

func TestProxyCachedDefaultsAvoidResolve(t *testing.T) {
	r := &countingResolver{value: "hello"}
	p := New[string](r, WithCachedDefaults(CachedDefaults[string]{HasStr: true, Str: "cached"}))

	assert.Equal(t, "cached", p.String())
	assert.EqualValues(t, 0, r.calls.Load())
}

func TestProxyEqual(t *testing.T) {
	r := &countingResolver{value: "hello"}
	p := New[string](r)
	assert.True(t, p.Equal("hello", func(a, b string) bool { return a == b }))
	assert.False(t, p.Equal("goodbye", func(a, b string) bool { return a == b }))
}

func TestProxyLen(t *testing.T) {
	r := &countingResolver{value: "hello"}
	p := New[string](r)
	assert.Equal(t, 5, p.Len(func(s string) int { return len(s) }))
}

func TestProxyLenUsesCachedDefault(t *testing.T) {
	r := &countingResolver{value: "hello"}
	p := New[string](r, WithCachedDefaults(CachedDefaults[string]{HasLen: true, Len: 99}))
	assert.Equal(t, 99, p.Len(func(s string) int { return len(s) }))
	assert.EqualValues(t, 0, r.calls.Load())
}

func TestProxyHash(t *testing.T) {
	r := &countingResolver{value: "hello"}
	p := New[string](r)
	hash := func(s string) uint64 {
		var h uint64
		for _, c := range s {
			h = h*31 + uint64(c)
		}
		return h
	}
	assert.Equal(t, hash("hello"), p.Hash(hash))
}

// TestProxyNestedLenEqualForwardThroughInnerProxy covers testable
// property 9's "even when the proxy is wrapped by another proxy" clause:
// an outer proxy whose target is itself a Proxy still forwards Len/Equal
// through to the fully resolved innermost value.
func TestProxyNestedLenEqualForwardThroughInnerProxy(t *testing.T) {
	inner := New[string](&countingResolver{value: "hello"})
	outer := New[*Proxy[string]](&nestedResolver{target: inner})

	assert.Equal(t, 5, outer.Len(func(p *Proxy[string]) int { return len(p.MustGet()) }))
	assert.True(t, outer.Equal(inner, func(a, b *Proxy[string]) bool { return a.MustGet() == b.MustGet() }))
}

type nestedResolver struct {
	target *Proxy[string]
}

func (r *nestedResolver) Resolve() (*Proxy[string], error) {
	return r.target, nil
}

// stubResolver is a minimal gob-friendly Resolver used to exercise
// Proxy's GobEncode/GobDecode without depending on the store package's
// Factory (which would import psproxy and create a cycle).
type stubResolver struct {
	Value string
}

func (r stubResolver) Resolve() (string, error) {
	return r.Value, nil
}

func TestProxyGobRoundTrip(t *testing.T) {
	gob.Register(stubResolver{})
	p := New[string](stubResolver{Value: "round-tripped"})

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(p))

	var decoded Proxy[string]
	require.NoError(t, gob.NewDecoder(&buf).Decode(&decoded))

	assert.False(t, decoded.Resolved())
	v, err := decoded.Get()
	require.NoError(t, err)
	assert.Equal(t, "round-tripped", v)
}
