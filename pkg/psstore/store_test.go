package psstore

import (
	"context"
	"testing"

	"github.com/proxystore-go/proxystore/pkg/connector/file"
	"github.com/proxystore-go/proxystore/pkg/connector/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, name string, opts ...Option) *Store {
	t.Helper()
	t.Cleanup(func() { Unregister(name) })
	s, err := New(name, local.New(), opts...)
	require.NoError(t, err)
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "put-get")

	key, err := s.Put(ctx, "hello")
	require.NoError(t, err)

	var out string
	ok, err := s.Get(ctx, key, &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", out)
}

func TestGetCacheHitAvoidsConnector(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "cache-hit", WithMetrics(true))

	key, err := s.Put(ctx, 42)
	require.NoError(t, err)

	var first int
	ok, err := s.Get(ctx, key, &first)
	require.NoError(t, err)
	require.True(t, ok)

	misses := s.Metrics().Snapshot("get").CacheMisses

	var second int
	ok, err = s.Get(ctx, key, &second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, second)

	snap := s.Metrics().Snapshot("get")
	assert.Equal(t, misses, snap.CacheMisses)
	assert.EqualValues(t, 1, snap.CacheHits)
}

func TestGetAbsentReturnsDefault(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "absent-default")

	key, err := s.Put(ctx, "will be evicted")
	require.NoError(t, err)
	require.NoError(t, s.Evict(ctx, key))

	var out string
	ok, err := s.Get(ctx, key, &out, WithDefault("fallback"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fallback", out)
}

func TestGetAbsentNoDefault(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "absent-nodefault")

	key, err := s.Put(ctx, "will be evicted")
	require.NoError(t, err)
	require.NoError(t, s.Evict(ctx, key))

	var out string
	ok, err := s.Get(ctx, key, &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvictRemovesFromCacheAndConnector(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "evict")

	key, err := s.Put(ctx, "gone soon")
	require.NoError(t, err)

	var out string
	_, err = s.Get(ctx, key, &out)
	require.NoError(t, err)
	assert.True(t, s.IsCached(key))

	require.NoError(t, s.Evict(ctx, key))
	assert.False(t, s.IsCached(key))

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExistsCacheAuthoritativeOnHit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "exists-cache")

	key, err := s.Put(ctx, "present")
	require.NoError(t, err)

	var out string
	_, err = s.Get(ctx, key, &out)
	require.NoError(t, err)

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}

// Property 5: FromConfig(s.Config()) is observationally equivalent to s,
// for a Connector whose Config round-trips to a usable instance. This uses
// the file Connector because a reconstructed local Connector starts empty.
func TestConfigRoundTrip(t *testing.T) {
	ctx := context.Background()
	conn, err := file.New(t.TempDir(), false)
	require.NoError(t, err)
	t.Cleanup(func() { Unregister("config-roundtrip") })
	s, err := New("config-roundtrip", conn, WithCacheSize(4), WithMetrics(true))
	require.NoError(t, err)

	key, err := s.Put(ctx, "roundtrip value")
	require.NoError(t, err)

	cfg := s.Config()
	assert.Equal(t, "config-roundtrip", cfg.Name)
	assert.Equal(t, 4, cfg.CacheSize)
	assert.True(t, cfg.MetricsEnabled)

	Unregister(cfg.Name)
	reconstructed, err := FromConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { Unregister(reconstructed.Name) })

	var out string
	ok, err := reconstructed.Get(ctx, key, &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "roundtrip value", out)
}

func TestPutBatchPreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "put-batch")

	keys, err := s.PutBatch(ctx, []any{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, keys, 3)

	want := []string{"a", "b", "c"}
	for i, key := range keys {
		var out string
		ok, err := s.Get(ctx, key, &out)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want[i], out)
	}
}
