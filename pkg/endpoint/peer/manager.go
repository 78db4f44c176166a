package peer

import (
	"context"
	"fmt"
	"sync"

	"github.com/proxystore-go/proxystore/pkg/lifecycle"
	"github.com/proxystore-go/proxystore/pkg/pslog"
	"github.com/proxystore-go/proxystore/pkg/relayclient"
	"github.com/proxystore-go/proxystore/pkg/relaymsg"
)

// Manager owns the set of Peer connections for one local endpoint and
// dispatches relay-brokered signaling frames to the right Peer, per spec
// §4.6.
type Manager struct {
	lifecycle.Helper

	selfUUID string
	selfName string
	relay    *relayclient.Client
	handler  Handler
	logger   pslog.Logger

	mu    sync.Mutex
	peers map[string]*Peer
}

// NewManager constructs a Manager bound to relay for signaling and handler
// for answering incoming peer requests (typically the endpoint daemon's
// storage backend).
func NewManager(relay *relayclient.Client, selfUUID, selfName string, handler Handler, logger pslog.Logger) *Manager {
	if logger == nil {
		logger = pslog.Nop()
	}
	m := &Manager{
		selfUUID: selfUUID,
		selfName: selfName,
		relay:    relay,
		handler:  handler,
		logger:   logger.Fork("peer-manager"),
		peers:    make(map[string]*Peer),
	}
	m.Helper.Init(m.logger, m)
	m.Helper.PanicOnError(m.Helper.Activate())
	m.Helper.AddShutdownChild(relay)
	go m.dispatchLoop()
	return m
}

// HandleOnceShutdown implements lifecycle.OnceShutdownHandler.
func (m *Manager) HandleOnceShutdown(completionErr error) error {
	m.mu.Lock()
	peers := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	m.mu.Unlock()
	for _, p := range peers {
		p.Close()
	}
	return completionErr
}

func (m *Manager) dispatchLoop() {
	for {
		select {
		case req, ok := <-m.relay.Incoming:
			if !ok {
				return
			}
			m.handleSignal(req)
		case <-m.Helper.ShutdownDoneChan():
			return
		}
	}
}

func (m *Manager) handleSignal(req *relaymsg.PeerConnectionRequest) {
	if req.Error != "" {
		m.logger.WLogf("signaling error from relay regarding peer %s: %s", req.PeerUUID, req.Error)
		return
	}

	switch req.DescriptionType {
	case relaymsg.DescriptionOffer:
		p := m.getOrCreatePeer(req.SourceUUID)
		answerSDP, err := p.acceptOffer(req.Description)
		if err != nil {
			m.logger.ELogf("accepting offer from %s: %s", req.SourceUUID, err)
			return
		}
		answer := descriptionFor(m.selfUUID, m.selfName, req.SourceUUID, relaymsg.DescriptionAnswer, answerSDP)
		if err := m.relay.SendPeerConnection(context.Background(), answer); err != nil {
			m.logger.ELogf("sending answer to %s: %s", req.SourceUUID, err)
		}
	case relaymsg.DescriptionAnswer:
		m.mu.Lock()
		p, ok := m.peers[req.SourceUUID]
		m.mu.Unlock()
		if !ok {
			m.logger.WLogf("answer from %s with no pending offer", req.SourceUUID)
			return
		}
		if err := p.applyAnswer(req.Description); err != nil {
			m.logger.ELogf("applying answer from %s: %s", req.SourceUUID, err)
		}
	}
}

func (m *Manager) getOrCreatePeer(uuid string) *Peer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.peers[uuid]; ok {
		return p
	}
	p := newPeer(uuid, m.logger, m.handler)
	m.peers[uuid] = p
	return p
}

// Connect dials peerUUID if not already connecting/connected, sending the
// offer via the relay, and returns once the data channel is open or ctx is
// done.
func (m *Manager) Connect(ctx context.Context, peerUUID string) (*Peer, error) {
	m.mu.Lock()
	p, exists := m.peers[peerUUID]
	if !exists {
		p = newPeer(peerUUID, m.logger, m.handler)
		m.peers[peerUUID] = p
	}
	m.mu.Unlock()

	if p.State() == StateConnected {
		return p, nil
	}
	if p.State() == StateDisconnected {
		offerSDP, err := p.dial()
		if err != nil {
			return nil, err
		}
		offer := descriptionFor(m.selfUUID, m.selfName, peerUUID, relaymsg.DescriptionOffer, offerSDP)
		if err := m.relay.SendPeerConnection(ctx, offer); err != nil {
			return nil, fmt.Errorf("peer: sending offer: %w", err)
		}
	}

	select {
	case <-p.connectedCh:
		return p, nil
	case <-p.closedCh:
		return nil, fmt.Errorf("peer: connection to %s closed during signaling", peerUUID)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Peer returns the Peer for uuid, if one exists.
func (m *Manager) Peer(uuid string) (*Peer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peers[uuid]
	return p, ok
}
