package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// headerUserAuthenticator assigns a distinct User per the X-Test-User
// header, letting tests exercise cross-user rejection without a real
// identity provider.
type headerUserAuthenticator struct{}

func (headerUserAuthenticator) AuthenticateUser(_ context.Context, h http.Header) (User, error) {
	u := h.Get("X-Test-User")
	if u == "" {
		return User{}, &ErrUnauthenticated{Reason: "missing X-Test-User"}
	}
	return User{Subject: u}, nil
}

func newTestRelay(t *testing.T, auth Authenticator) (*Server, string) {
	t.Helper()
	srv := NewServer(Config{Auth: auth})
	t.Cleanup(func() { srv.Close() })
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	return srv, wsURL
}

func dialAndRegister(t *testing.T, wsURL, user, uuidStr, name string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("X-Test-User", user)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(envelopeRegister(uuidStr, name)))
	var env map[string]any
	require.NoError(t, conn.ReadJSON(&env))
	return conn
}

func envelopeRegister(uuid, name string) map[string]any {
	return map[string]any{
		"message_type": "registration_request",
		"registration": map[string]string{"uuid": uuid, "name": name},
	}
}

func TestRegistrationSuccess(t *testing.T) {
	srv, wsURL := newTestRelay(t, headerUserAuthenticator{})

	conn := dialAndRegister(t, wsURL, "alice", "uuid-1", "alice-laptop")
	_ = conn

	require.Eventually(t, func() bool { return srv.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestRegistrationUnauthenticatedCloses(t *testing.T) {
	_, wsURL := newTestRelay(t, headerUserAuthenticator{})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(envelopeRegister("uuid-1", "nobody")))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok)
	assert.Equal(t, CloseUnauthenticated, closeErr.Code)
}

func TestRegistrationSameUUIDDifferentUserRejected(t *testing.T) {
	_, wsURL := newTestRelay(t, headerUserAuthenticator{})

	dialAndRegister(t, wsURL, "alice", "shared-uuid", "alice-laptop")

	header := http.Header{}
	header.Set("X-Test-User", "bob")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(envelopeRegister("shared-uuid", "bob-desktop")))

	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok)
	assert.Equal(t, CloseForbidden, closeErr.Code)
}

func TestPeerConnectionForwardedBetweenSameUserPeers(t *testing.T) {
	_, wsURL := newTestRelay(t, headerUserAuthenticator{})

	connA := dialAndRegister(t, wsURL, "alice", "uuid-a", "a")
	connB := dialAndRegister(t, wsURL, "alice", "uuid-b", "b")

	msg := map[string]any{
		"message_type": "peer_connection",
		"peer_connection": map[string]any{
			"source_uuid":     "uuid-a",
			"source_name":     "a",
			"peer_uuid":       "uuid-b",
			"description_type": "offer",
			"description":     "fake-sdp-offer",
		},
	}
	require.NoError(t, connA.WriteJSON(msg))

	var received map[string]any
	require.NoError(t, connB.ReadJSON(&received))
	pc, ok := received["peer_connection"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "fake-sdp-offer", pc["description"])
	assert.Equal(t, "uuid-a", pc["source_uuid"])
}

func TestPeerConnectionUnknownPeerBouncedWithError(t *testing.T) {
	_, wsURL := newTestRelay(t, headerUserAuthenticator{})

	connA := dialAndRegister(t, wsURL, "alice", "uuid-a", "a")

	msg := map[string]any{
		"message_type": "peer_connection",
		"peer_connection": map[string]any{
			"source_uuid":     "uuid-a",
			"source_name":     "a",
			"peer_uuid":       "does-not-exist",
			"description_type": "offer",
			"description":     "sdp",
		},
	}
	require.NoError(t, connA.WriteJSON(msg))

	var received map[string]any
	require.NoError(t, connA.ReadJSON(&received))
	pc, ok := received["peer_connection"].(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, pc["error"])
}

func TestPeerConnectionCrossUserBouncedWithError(t *testing.T) {
	_, wsURL := newTestRelay(t, headerUserAuthenticator{})

	connA := dialAndRegister(t, wsURL, "alice", "uuid-a", "a")
	dialAndRegister(t, wsURL, "bob", "uuid-b", "b")

	msg := map[string]any{
		"message_type": "peer_connection",
		"peer_connection": map[string]any{
			"source_uuid":     "uuid-a",
			"source_name":     "a",
			"peer_uuid":       "uuid-b",
			"description_type": "offer",
			"description":     "sdp",
		},
	}
	require.NoError(t, connA.WriteJSON(msg))

	var received map[string]any
	require.NoError(t, connA.ReadJSON(&received))
	pc, ok := received["peer_connection"].(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, pc["error"])
}
