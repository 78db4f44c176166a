package local

import (
	"context"
	"testing"

	"github.com/proxystore-go/proxystore/pkg/connector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := New()

	key, err := c.Put(ctx, []byte("hello"))
	require.NoError(t, err)

	data, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), data)
}

func TestPutAllocatesFreshKeyEachTime(t *testing.T) {
	ctx := context.Background()
	c := New()

	k1, err := c.Put(ctx, []byte("same"))
	require.NoError(t, err)
	k2, err := c.Put(ctx, []byte("same"))
	require.NoError(t, err)

	assert.NotEqual(t, k1, k2)
}

func TestEvictAndExists(t *testing.T) {
	ctx := context.Background()
	c := New()

	key, err := c.Put(ctx, []byte("data"))
	require.NoError(t, err)

	ok, err := c.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Evict(ctx, key))

	ok, err = c.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	// Evicting an absent key is not an error.
	require.NoError(t, c.Evict(ctx, key))
}

func TestConfigRoundTrip(t *testing.T) {
	c := New()
	cfg := c.Config()
	assert.Equal(t, Kind, cfg.Kind)

	reconstructed, err := connector.FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, Kind, reconstructed.Kind())
}
