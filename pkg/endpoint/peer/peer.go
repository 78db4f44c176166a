package peer

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/proxystore-go/proxystore/pkg/pslog"
	"github.com/proxystore-go/proxystore/pkg/relaymsg"
)

// State is one state of a Peer's connection lifecycle, per spec §4.6.
type State int

const (
	StateDisconnected State = iota
	StateDialing
	StateSignaling
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateDialing:
		return "dialing"
	case StateSignaling:
		return "signaling"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handler answers a Request received from a peer, the same contract a
// Connector offers locally (spec §4.2) adapted to travel over the wire.
type Handler interface {
	HandlePeerRequest(ctx context.Context, req Request) Response
}

// dataChannelConn adapts a webrtc.DataChannel's OnMessage callback to an
// io.Reader/io.Writer pair the framing layer can use, since pion exposes
// data channels as message-oriented rather than stream-oriented.
type dataChannelConn struct {
	dc *webrtc.DataChannel

	mu      sync.Mutex
	pending []byte
	msgCh   chan []byte
	closed  chan struct{}
}

func newDataChannelConn(dc *webrtc.DataChannel) *dataChannelConn {
	c := &dataChannelConn{
		dc:     dc,
		msgCh:  make(chan []byte, 64),
		closed: make(chan struct{}),
	}
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		select {
		case c.msgCh <- msg.Data:
		case <-c.closed:
		}
	})
	dc.OnClose(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		select {
		case <-c.closed:
		default:
			close(c.closed)
		}
	})
	return c
}

func (c *dataChannelConn) Write(p []byte) (int, error) {
	if err := c.dc.Send(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Read satisfies io.Reader by handing out the bytes of each message in
// arrival order, carrying any unread remainder over to the next call, since
// pion delivers each Send as one OnMessage callback. writeFrame sends a
// frame's header and body as two separate messages, and readFrame joins
// them back together with io.ReadFull.
func (c *dataChannelConn) Read(p []byte) (int, error) {
	if len(c.pending) == 0 {
		select {
		case data, ok := <-c.msgCh:
			if !ok {
				return 0, io.EOF
			}
			c.pending = data
		case <-c.closed:
			return 0, io.EOF
		}
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Peer manages one WebRTC connection to a remote endpoint UUID, brokered
// by the relay for signaling, per spec §4.6.
type Peer struct {
	UUID   string
	logger pslog.Logger
	handler Handler

	mu    sync.Mutex
	state State
	pc    *webrtc.PeerConnection
	dc    *webrtc.DataChannel
	conn  *dataChannelConn

	connectedCh chan struct{}
	closedCh    chan struct{}

	nextReqID atomic.Uint64
	pendingMu sync.Mutex
	pending   map[uint64]chan Response
}

func newPeer(uuid string, logger pslog.Logger, handler Handler) *Peer {
	return &Peer{
		UUID:        uuid,
		logger:      logger.Fork("peer/%s", uuid),
		handler:     handler,
		state:       StateDisconnected,
		pending:     make(map[uint64]chan Response),
		connectedCh: make(chan struct{}),
		closedCh:    make(chan struct{}),
	}
}

// State returns the peer's current connection state.
func (p *Peer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Peer) setState(s State) {
	p.mu.Lock()
	p.state = s
	if s == StateConnected {
		select {
		case <-p.connectedCh:
		default:
			close(p.connectedCh)
		}
	}
	p.mu.Unlock()
}

func newPeerConnection() (*webrtc.PeerConnection, error) {
	cfg := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
	}
	return webrtc.NewPeerConnection(cfg)
}

// dial initiates an outbound connection: creates a data channel, generates
// an offer, and returns the SDP to send via the relay.
func (p *Peer) dial() (string, error) {
	p.setState(StateDialing)
	pc, err := newPeerConnection()
	if err != nil {
		return "", fmt.Errorf("peer: creating connection: %w", err)
	}
	dc, err := pc.CreateDataChannel(fmt.Sprintf("proxystore-%s", p.UUID), nil)
	if err != nil {
		pc.Close()
		return "", fmt.Errorf("peer: creating data channel: %w", err)
	}
	p.attach(pc, dc)

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("peer: creating offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("peer: setting local description: %w", err)
	}
	p.setState(StateSignaling)
	return offer.SDP, nil
}

// acceptOffer handles an inbound offer: creates the answering
// PeerConnection, sets the remote offer, and returns the answer SDP.
func (p *Peer) acceptOffer(sdp string) (string, error) {
	p.setState(StateSignaling)
	pc, err := newPeerConnection()
	if err != nil {
		return "", fmt.Errorf("peer: creating connection: %w", err)
	}
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		p.attach(pc, dc)
	})
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		pc.Close()
		return "", fmt.Errorf("peer: setting remote offer: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return "", fmt.Errorf("peer: creating answer: %w", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return "", fmt.Errorf("peer: setting local answer: %w", err)
	}
	p.mu.Lock()
	p.pc = pc
	p.mu.Unlock()
	return answer.SDP, nil
}

// applyAnswer completes the dialing side once the remote answer arrives.
func (p *Peer) applyAnswer(sdp string) error {
	p.mu.Lock()
	pc := p.pc
	p.mu.Unlock()
	if pc == nil {
		return fmt.Errorf("peer: no pending connection to apply answer to")
	}
	return pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
}

func (p *Peer) attach(pc *webrtc.PeerConnection, dc *webrtc.DataChannel) {
	p.mu.Lock()
	p.pc = pc
	p.dc = dc
	p.mu.Unlock()

	dc.OnOpen(func() {
		conn := newDataChannelConn(dc)
		p.mu.Lock()
		p.conn = conn
		p.mu.Unlock()
		p.setState(StateConnected)
		go p.readLoop(conn)
	})
	pc.OnConnectionStateChange(func(cs webrtc.PeerConnectionState) {
		if cs == webrtc.PeerConnectionStateFailed || cs == webrtc.PeerConnectionStateClosed || cs == webrtc.PeerConnectionStateDisconnected {
			p.Close()
		}
	})
}

func (p *Peer) readLoop(conn *dataChannelConn) {
	for {
		var msg struct {
			IsRequest bool
			Req       Request
			Resp      Response
		}
		if err := readFrame(conn, &msg); err != nil {
			p.logger.DLogf("read loop ended: %s", err)
			p.Close()
			return
		}
		if msg.IsRequest {
			go p.serve(conn, msg.Req)
			continue
		}
		p.pendingMu.Lock()
		ch, ok := p.pending[msg.Resp.ID]
		if ok {
			delete(p.pending, msg.Resp.ID)
		}
		p.pendingMu.Unlock()
		if ok {
			ch <- msg.Resp
		}
	}
}

func (p *Peer) serve(conn *dataChannelConn, req Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	resp := p.handler.HandlePeerRequest(ctx, req)
	resp.ID = req.ID
	envelope := struct {
		IsRequest bool
		Req       Request
		Resp      Response
	}{Resp: resp}
	if err := writeFrame(conn, envelope); err != nil {
		p.logger.WLogf("writing response: %s", err)
	}
}

// Call sends req to the peer and blocks for its response, or until ctx is
// done. Multiple calls may be outstanding concurrently; responses complete
// out of order, matched by request ID.
func (p *Peer) Call(ctx context.Context, req Request) (Response, error) {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return Response{}, fmt.Errorf("peer: %s not connected", p.UUID)
	}

	req.ID = p.nextReqID.Add(1)
	ch := make(chan Response, 1)
	p.pendingMu.Lock()
	p.pending[req.ID] = ch
	p.pendingMu.Unlock()

	envelope := struct {
		IsRequest bool
		Req       Request
		Resp      Response
	}{IsRequest: true, Req: req}
	if err := writeFrame(conn, envelope); err != nil {
		p.pendingMu.Lock()
		delete(p.pending, req.ID)
		p.pendingMu.Unlock()
		return Response{}, fmt.Errorf("peer: sending request: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return Response{}, fmt.Errorf("peer: connection to %s closed before a response arrived", p.UUID)
		}
		return resp, nil
	case <-ctx.Done():
		p.pendingMu.Lock()
		delete(p.pending, req.ID)
		p.pendingMu.Unlock()
		return Response{}, ctx.Err()
	}
}

// Close tears down the peer connection and fails any pending calls.
func (p *Peer) Close() error {
	p.mu.Lock()
	if p.state == StateClosed {
		p.mu.Unlock()
		return nil
	}
	p.state = StateClosed
	pc := p.pc
	close(p.closedCh)
	p.mu.Unlock()

	p.pendingMu.Lock()
	for id, ch := range p.pending {
		close(ch)
		delete(p.pending, id)
	}
	p.pendingMu.Unlock()

	if pc != nil {
		return pc.Close()
	}
	return nil
}

// descriptionFor builds the relay-wire PeerConnectionRequest that carries
// sdp (offer or answer) from self to the peer.
func descriptionFor(selfUUID, selfName, peerUUID string, dt relaymsg.DescriptionType, sdp string) *relaymsg.PeerConnectionRequest {
	return &relaymsg.PeerConnectionRequest{
		SourceUUID:      selfUUID,
		SourceName:      selfName,
		PeerUUID:        peerUUID,
		DescriptionType: dt,
		Description:     sdp,
	}
}
