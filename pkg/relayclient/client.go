// Package relayclient implements the endpoint daemon's side of the relay
// WebSocket protocol (spec §4.6, §4.7): register once, forward
// PeerConnectionRequest frames to and from the relay, and reconnect with
// backoff if the connection drops.
package relayclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/proxystore-go/proxystore/pkg/lifecycle"
	"github.com/proxystore-go/proxystore/pkg/pslog"
	"github.com/proxystore-go/proxystore/pkg/relaymsg"
)

// Config configures a Client.
type Config struct {
	RelayURL string // ws:// or wss:// URL of the relay's endpoint
	Name     string
	UUID     string
	Header   http.Header // e.g. Authorization: Bearer ...
	Logger   pslog.Logger
}

// Client maintains one registered WebSocket connection to a relay and
// dispatches incoming PeerConnectionRequest frames to Incoming.
type Client struct {
	lifecycle.Helper

	cfg     Config
	logger  pslog.Logger
	backoff *backoff.Backoff

	mu   sync.Mutex
	conn *websocket.Conn

	Incoming chan *relaymsg.PeerConnectionRequest
}

// New constructs and starts a Client. It connects in the background and
// keeps reconnecting (with exponential backoff, 1s to 60s) until Close is
// called.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.Nop()
	}
	c := &Client{
		cfg:      cfg,
		logger:   logger.Fork("relayclient"),
		backoff:  &backoff.Backoff{Min: time.Second, Max: 60 * time.Second, Factor: 2, Jitter: true},
		Incoming: make(chan *relaymsg.PeerConnectionRequest, 32),
	}
	c.Helper.Init(c.logger, c)
	c.Helper.PanicOnError(c.Helper.Activate())
	go c.connectLoop()
	return c
}

// HandleOnceShutdown implements lifecycle.OnceShutdownHandler.
func (c *Client) HandleOnceShutdown(completionErr error) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	return completionErr
}

func (c *Client) connectLoop() {
	for {
		if c.Helper.IsDoneShutdown() {
			return
		}
		if err := c.connectOnce(); err != nil {
			delay := c.backoff.Duration()
			c.logger.WLogf("relay connection failed, retrying in %s: %s", delay, err)
			select {
			case <-time.After(delay):
			case <-c.Helper.ShutdownDoneChan():
				return
			}
			continue
		}
		c.backoff.Reset()
	}
}

func (c *Client) connectOnce() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.cfg.RelayURL, c.cfg.Header)
	if err != nil {
		return fmt.Errorf("relayclient: dial: %w", err)
	}

	reg := relaymsg.Envelope{
		Type: relaymsg.TypeRegistrationRequest,
		Registration: &relaymsg.RegistrationRequest{
			Name: c.cfg.Name,
			UUID: c.cfg.UUID,
		},
	}
	data, err := json.Marshal(reg)
	if err != nil {
		conn.Close()
		return fmt.Errorf("relayclient: encoding registration: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		conn.Close()
		return fmt.Errorf("relayclient: sending registration: %w", err)
	}

	_, raw, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return fmt.Errorf("relayclient: reading registration response: %w", err)
	}
	var env relaymsg.Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Response == nil || !env.Response.Success {
		conn.Close()
		return fmt.Errorf("relayclient: registration rejected")
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.logger.ILogf("registered with relay as %s", c.cfg.UUID)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			return fmt.Errorf("relayclient: connection lost: %w", err)
		}
		var env relaymsg.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.logger.WLogf("decoding incoming frame: %s", err)
			continue
		}
		if env.Type == relaymsg.TypePeerConnection && env.PeerConnection != nil {
			select {
			case c.Incoming <- env.PeerConnection:
			default:
				c.logger.WLogf("incoming peer connection queue full, dropping frame from %s", env.PeerConnection.SourceUUID)
			}
		}
	}
}

// SendPeerConnection forwards req to the relay for delivery to req.PeerUUID.
func (c *Client) SendPeerConnection(ctx context.Context, req *relaymsg.PeerConnectionRequest) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("relayclient: not connected to relay")
	}
	env := relaymsg.Envelope{Type: relaymsg.TypePeerConnection, PeerConnection: req}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("relayclient: encoding peer connection: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("relayclient: sending peer connection: %w", err)
	}
	return nil
}

// Connected reports whether the client currently holds a live connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}
