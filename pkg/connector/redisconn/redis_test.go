package redisconn

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/proxystore-go/proxystore/pkg/connector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnector(t *testing.T) *Connector {
	t.Helper()
	mr := miniredis.RunT(t)
	return New(mr.Addr(), 0, false)
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestConnector(t)

	key, err := c.Put(ctx, []byte("hello redis"))
	require.NoError(t, err)

	data, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("hello redis"), data)
}

func TestGetMissingReturnsAbsent(t *testing.T) {
	ctx := context.Background()
	c := newTestConnector(t)

	_, ok, err := c.Get(ctx, Key{Name: "never-written"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvictAndExists(t *testing.T) {
	ctx := context.Background()
	c := newTestConnector(t)

	key, err := c.Put(ctx, []byte("data"))
	require.NoError(t, err)

	ok, err := c.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Evict(ctx, key))

	ok, err = c.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutBatchPreservesOrder(t *testing.T) {
	ctx := context.Background()
	c := newTestConnector(t)

	keys, err := c.PutBatch(ctx, [][]byte{[]byte("a"), []byte("b"), []byte("c")})
	require.NoError(t, err)
	require.Len(t, keys, 3)

	datas, oks, err := c.GetBatch(ctx, keys)
	require.NoError(t, err)
	for i, want := range [][]byte{[]byte("a"), []byte("b"), []byte("c")} {
		assert.True(t, oks[i])
		assert.Equal(t, want, datas[i])
	}
}

func TestDeferrableNewKeyThenSet(t *testing.T) {
	ctx := context.Background()
	c := newTestConnector(t)

	key, err := c.NewKey(ctx)
	require.NoError(t, err)

	ok, err := c.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key, []byte("deferred")))

	data, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("deferred"), data)
}

func TestCloseClearOnCloseFlushesDB(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), 0, true)

	key, err := c.Put(ctx, []byte("x"))
	require.NoError(t, err)
	require.NoError(t, c.Close())

	// Close already closed the client; reopen against the same miniredis
	// instance to confirm the flush took effect.
	fresh := New(mr.Addr(), 0, false)
	defer fresh.Close()
	_, ok, err := fresh.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConfigRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), 3, false)

	cfg := c.Config()
	assert.Equal(t, Kind, cfg.Kind)
	assert.Equal(t, mr.Addr(), cfg.Data["addr"])

	reconstructed, err := connector.FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, Kind, reconstructed.Kind())
}

func TestConfigMissingAddrIsConfigurationError(t *testing.T) {
	_, err := connector.FromConfig(connector.Config{Kind: Kind, Data: map[string]any{}})
	require.Error(t, err)
	var cfgErr *connector.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
