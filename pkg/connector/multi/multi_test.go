package multi

import (
	"context"
	"testing"

	"github.com/proxystore-go/proxystore/pkg/connector"
	"github.com/proxystore-go/proxystore/pkg/connector/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutPicksHighestPriorityEligibleChild(t *testing.T) {
	ctx := context.Background()
	fast := local.New()
	slow := local.New()

	m, err := New("host-a", map[string]connector.Connector{
		"fast": fast,
		"slow": slow,
	}, map[string]Policy{
		"fast": {Priority: 10, MinSizeBytes: -1, MaxSizeBytes: -1},
		"slow": {Priority: 0, MinSizeBytes: -1, MaxSizeBytes: -1},
	})
	require.NoError(t, err)

	key, err := m.Put(ctx, []byte("payload"))
	require.NoError(t, err)

	mk, ok := key.(Key)
	require.True(t, ok)
	assert.Equal(t, "fast", mk.ChildName)
}

func TestPutRespectsSizeWindow(t *testing.T) {
	ctx := context.Background()
	small := local.New()
	big := local.New()

	m, err := New("host-a", map[string]connector.Connector{
		"small": small,
		"big":   big,
	}, map[string]Policy{
		"small": {Priority: 10, MinSizeBytes: -1, MaxSizeBytes: 4},
		"big":   {Priority: 0, MinSizeBytes: -1, MaxSizeBytes: -1},
	})
	require.NoError(t, err)

	key, err := m.Put(ctx, []byte("this is too big for small"))
	require.NoError(t, err)
	mk := key.(Key)
	assert.Equal(t, "big", mk.ChildName)

	key, err = m.Put(ctx, []byte("ok"))
	require.NoError(t, err)
	mk = key.(Key)
	assert.Equal(t, "small", mk.ChildName)
}

func TestPutWithTagsSubsetSuperset(t *testing.T) {
	ctx := context.Background()
	tagged := local.New()

	m, err := New("host-a", map[string]connector.Connector{
		"tagged": tagged,
	}, map[string]Policy{
		"tagged": {
			Priority:     0,
			MinSizeBytes: -1,
			MaxSizeBytes: -1,
			SubsetTags:   []string{"gpu"},
			SupersetTags: []string{"prod"},
		},
	})
	require.NoError(t, err)

	_, err = m.PutWithTags(ctx, []byte("d"), []string{"gpu"}, []string{"prod", "us-east"})
	assert.NoError(t, err)

	_, err = m.PutWithTags(ctx, []byte("d"), []string{"gpu", "tpu"}, []string{"prod"})
	assert.ErrorAs(t, err, new(*NoSuitableChildError))

	_, err = m.PutWithTags(ctx, []byte("d"), []string{"gpu"}, []string{"staging"})
	assert.ErrorAs(t, err, new(*NoSuitableChildError))
}

func TestNoSuitableChildError(t *testing.T) {
	ctx := context.Background()
	m, err := New("host-a", map[string]connector.Connector{
		"only": local.New(),
	}, map[string]Policy{
		"only": {Priority: 0, MinSizeBytes: 100, MaxSizeBytes: -1},
	})
	require.NoError(t, err)

	_, err = m.Put(ctx, []byte("short"))
	assert.ErrorAs(t, err, new(*NoSuitableChildError))
}

func TestDormantChildOnOtherHost(t *testing.T) {
	ctx := context.Background()
	dormant := local.New()

	m, err := New("host-b", map[string]connector.Connector{
		"only-host-a": dormant,
	}, map[string]Policy{
		"only-host-a": {Priority: 0, MinSizeBytes: -1, MaxSizeBytes: -1, HostPatterns: []string{"^host-a$"}},
	})
	require.NoError(t, err)

	_, err = m.Put(ctx, []byte("d"))
	assert.ErrorAs(t, err, new(*NoSuitableChildError))
}

func TestResolveDormantChildReturnsDormantError(t *testing.T) {
	ctx := context.Background()
	child := local.New()

	onA, err := New("host-a", map[string]connector.Connector{
		"x": child,
	}, map[string]Policy{
		"x": {Priority: 0, MinSizeBytes: -1, MaxSizeBytes: -1},
	})
	require.NoError(t, err)
	key, err := onA.Put(ctx, []byte("d"))
	require.NoError(t, err)

	onB, err := New("host-b", map[string]connector.Connector{
		"x": child,
	}, map[string]Policy{
		"x": {Priority: 0, MinSizeBytes: -1, MaxSizeBytes: -1, HostPatterns: []string{"^host-a$"}},
	})
	require.NoError(t, err)

	_, _, err = onB.Get(ctx, key)
	assert.ErrorAs(t, err, new(*DormantError))
}

func TestGetRoutesByChildName(t *testing.T) {
	ctx := context.Background()
	a := local.New()
	b := local.New()

	m, err := New("host-a", map[string]connector.Connector{
		"a": a,
		"b": b,
	}, map[string]Policy{
		"a": {Priority: 10, MinSizeBytes: -1, MaxSizeBytes: -1},
		"b": {Priority: 0, MinSizeBytes: -1, MaxSizeBytes: -1},
	})
	require.NoError(t, err)

	key, err := m.Put(ctx, []byte("value"))
	require.NoError(t, err)

	data, ok, err := m.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("value"), data)
}

func TestConfigRoundTrip(t *testing.T) {
	ctx := context.Background()
	m, err := New("host-a", map[string]connector.Connector{
		"a": local.New(),
	}, map[string]Policy{
		"a": {Priority: 5, MinSizeBytes: -1, MaxSizeBytes: -1},
	})
	require.NoError(t, err)

	cfg := m.Config()
	assert.Equal(t, Kind, cfg.Kind)

	reconstructed, err := connector.FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, Kind, reconstructed.Kind())

	// The reconstructed connector must route puts through its own "a" child,
	// not the original child local.New() instance, proving the policy and
	// child set actually survived the round trip.
	key, err := reconstructed.Put(ctx, []byte("after reconstruction"))
	require.NoError(t, err)
	data, ok, err := reconstructed.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("after reconstruction"), data)
}
