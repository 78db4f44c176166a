package psstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"testing"

	"github.com/proxystore-go/proxystore/pkg/psproxy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestProxySerializeDeserializeRoundTrip covers scenario S3 and testable
// property 3: a Proxy gob-encodes to its factory alone, and decoding it
// elsewhere in the same process reconstructs an unresolved Proxy that
// still resolves to the original object via the process-wide Store
// registry.
func TestProxySerializeDeserializeRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "proxy-roundtrip")

	_, p, err := Proxy(ctx, s, "hello")
	require.NoError(t, err)
	require.NotNil(t, p)

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(p))

	var decoded psproxy.Proxy[string]
	require.NoError(t, gob.NewDecoder(&buf).Decode(&decoded))

	assert.False(t, decoded.Resolved())
	v, err := decoded.Get()
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestProxySkipNonProxiableReturnsValueAsIs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "proxy-skip-nonproxiable", WithMetrics(true))

	obj, p, err := Proxy(ctx, s, true, WithSkipNonProxiable())
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.True(t, obj)

	// The bool must never have reached the Connector: no Put was recorded.
	assert.EqualValues(t, 0, s.Metrics().Snapshot("put").Calls)
}

func TestProxyNonProxiableWithoutSkipErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "proxy-nonproxiable-error")

	_, p, err := Proxy(ctx, s, false)
	require.Error(t, err)
	assert.Nil(t, p)
	var nonProxiable *NonProxiableError
	assert.ErrorAs(t, err, &nonProxiable)
}
