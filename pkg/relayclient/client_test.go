package relayclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/proxystore-go/proxystore/pkg/relaymsg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRelay is a minimal stand-in for pkg/relay.Server: it accepts every
// registration, counts connects, and optionally pushes one
// PeerConnectionRequest or drops the connection once registered, enough to
// drive Client's reconnect-with-backoff and dispatch behavior without
// depending on the full relay package.
type fakeRelay struct {
	upgrader    websocket.Upgrader
	connects    atomic.Int32
	pushPeer    *relaymsg.PeerConnectionRequest
	dropAfterN  int32
}

func (f *fakeRelay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	n := f.connects.Add(1)

	_, _, err = conn.ReadMessage()
	if err != nil {
		return
	}
	resp := relaymsg.Envelope{Type: relaymsg.TypeResponse, Response: &relaymsg.Response{Success: true}}
	data, _ := json.Marshal(resp)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return
	}

	if f.dropAfterN > 0 && n <= f.dropAfterN {
		return
	}

	if f.pushPeer != nil {
		env := relaymsg.Envelope{Type: relaymsg.TypePeerConnection, PeerConnection: f.pushPeer}
		data, _ := json.Marshal(env)
		conn.WriteMessage(websocket.TextMessage, data)
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func newFakeRelayServer(t *testing.T, relay *fakeRelay) string {
	t.Helper()
	ts := httptest.NewServer(relay)
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestClientRegistersAndReportsConnected(t *testing.T) {
	relay := &fakeRelay{}
	wsURL := newFakeRelayServer(t, relay)

	c := New(Config{RelayURL: wsURL, Name: "endpoint-a", UUID: "uuid-a"})
	t.Cleanup(func() { c.Close() })

	require.Eventually(t, c.Connected, time.Second, 10*time.Millisecond)
}

func TestClientForwardsIncomingPeerConnection(t *testing.T) {
	peerMsg := &relaymsg.PeerConnectionRequest{
		SourceUUID:      "uuid-b",
		PeerUUID:        "uuid-a",
		DescriptionType: relaymsg.DescriptionOffer,
		Description:     "sdp-offer",
	}
	relay := &fakeRelay{pushPeer: peerMsg}
	wsURL := newFakeRelayServer(t, relay)

	c := New(Config{RelayURL: wsURL, Name: "endpoint-a", UUID: "uuid-a"})
	t.Cleanup(func() { c.Close() })

	select {
	case got := <-c.Incoming:
		assert.Equal(t, "sdp-offer", got.Description)
		assert.Equal(t, "uuid-b", got.SourceUUID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for forwarded peer connection request")
	}
}

func TestClientReconnectsAfterDrop(t *testing.T) {
	relay := &fakeRelay{dropAfterN: 1}
	wsURL := newFakeRelayServer(t, relay)

	c := New(Config{RelayURL: wsURL, Name: "endpoint-a", UUID: "uuid-a"})
	t.Cleanup(func() { c.Close() })

	require.Eventually(t, func() bool { return relay.connects.Load() >= 2 }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, c.Connected, 3*time.Second, 10*time.Millisecond)
}
