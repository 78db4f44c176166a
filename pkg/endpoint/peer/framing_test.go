package peer

import (
	"net"
	"testing"

	"github.com/prep/socketpair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPipe fakes a duplex byte stream without any real network or WebRTC
// data channel, the same role socketpair plays for the teacher's loop
// endpoint (share/loop_stub_endpoint.go).
func newPipe(t *testing.T) (a, b net.Conn) {
	t.Helper()
	a, b, err := socketpair.New("unix")
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(); b.Close() })
	return a, b
}

func TestFrameRoundTripRequest(t *testing.T) {
	a, b := newPipe(t)

	req := Request{ID: 7, Op: OpGet, ObjectID: "obj-1"}
	errCh := make(chan error, 1)
	go func() { errCh <- writeFrame(a, req) }()

	var got Request
	require.NoError(t, readFrame(b, &got))
	require.NoError(t, <-errCh)
	assert.Equal(t, req, got)
}

func TestFrameRoundTripResponse(t *testing.T) {
	a, b := newPipe(t)

	resp := Response{ID: 7, Found: true, Data: []byte("payload")}
	errCh := make(chan error, 1)
	go func() { errCh <- writeFrame(a, resp) }()

	var got Response
	require.NoError(t, readFrame(b, &got))
	require.NoError(t, <-errCh)
	assert.Equal(t, resp, got)
}

func TestFrameOversizeRejected(t *testing.T) {
	a, _ := newPipe(t)

	huge := Request{Data: make([]byte, frameMaxBytes+1)}
	err := writeFrame(a, huge)
	assert.Error(t, err)
}
