package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/proxystore-go/proxystore/pkg/connector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := New(t.TempDir(), false)
	require.NoError(t, err)

	key, err := c.Put(ctx, []byte("hello file"))
	require.NoError(t, err)

	data, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("hello file"), data)
}

func TestGetMissingReturnsAbsent(t *testing.T) {
	ctx := context.Background()
	c, err := New(t.TempDir(), false)
	require.NoError(t, err)

	_, ok, err := c.Get(ctx, Key{Filename: "never-written"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvictIdempotent(t *testing.T) {
	ctx := context.Background()
	c, err := New(t.TempDir(), false)
	require.NoError(t, err)

	key, err := c.Put(ctx, []byte("data"))
	require.NoError(t, err)

	require.NoError(t, c.Evict(ctx, key))
	ok, err := c.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	// Evicting an already-absent key is not an error.
	require.NoError(t, c.Evict(ctx, key))
}

func TestDeferrableNewKeyThenSet(t *testing.T) {
	ctx := context.Background()
	c, err := New(t.TempDir(), false)
	require.NoError(t, err)

	key, err := c.NewKey(ctx)
	require.NoError(t, err)

	ok, err := c.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "a fresh key should not exist until Set is called")

	require.NoError(t, c.Set(ctx, key, []byte("deferred value")))

	data, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("deferred value"), data)
}

func TestCloseClearOnCloseRemovesRoot(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "store")
	c, err := New(root, true)
	require.NoError(t, err)

	_, err = c.Put(ctx, []byte("x"))
	require.NoError(t, err)

	require.NoError(t, c.Close())
	_, err = os.Stat(root)
	assert.True(t, os.IsNotExist(err))
}

func TestCloseWithoutClearOnCloseKeepsRoot(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "store")
	c, err := New(root, false)
	require.NoError(t, err)

	_, err = c.Put(ctx, []byte("x"))
	require.NoError(t, err)

	require.NoError(t, c.Close())
	_, err = os.Stat(root)
	assert.NoError(t, err)
}

func TestConfigRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := New(dir, true)
	require.NoError(t, err)

	key, err := c.Put(ctx, []byte("persisted"))
	require.NoError(t, err)

	cfg := c.Config()
	assert.Equal(t, Kind, cfg.Kind)
	assert.Equal(t, dir, cfg.Data["root"])

	reconstructed, err := connector.FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, Kind, reconstructed.Kind())

	data, ok, err := reconstructed.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("persisted"), data)
}

func TestConfigMissingRootIsConfigurationError(t *testing.T) {
	_, err := connector.FromConfig(connector.Config{Kind: Kind, Data: map[string]any{}})
	require.Error(t, err)
	var cfgErr *connector.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
