// Package relay implements the relay server (spec §4.7): a WebSocket
// service that authenticates clients, tracks registered peers per user,
// and forwards WebRTC session descriptions between same-user peers.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/proxystore-go/proxystore/pkg/lifecycle"
	"github.com/proxystore-go/proxystore/pkg/pslog"
	"github.com/proxystore-go/proxystore/pkg/relaymsg"
	"github.com/tomasen/realip"
)

// WebSocket close codes, part of the wire contract (spec §6).
const (
	CloseExpected           = 1000
	CloseUnexpected         = 1001
	CloseUnknownMessageType = 4000
	CloseUnauthenticated    = 4001
	CloseForbidden          = 4002
	CloseMessageTooLarge    = 4003
)

// Config configures a Server.
type Config struct {
	Auth            Authenticator
	MaxMessageBytes int64 // 0 disables the cap; gorilla/websocket closes an oversized frame with 1009, not CloseMessageTooLarge
	Logger          pslog.Logger
}

// Server is the relay's WebSocket broker.
type Server struct {
	lifecycle.Helper

	auth            Authenticator
	maxMessageBytes int64
	clients         *clientManager
	upgrader        websocket.Upgrader
	logger          pslog.Logger
}

// NewServer constructs a relay Server from cfg.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.Nop()
	}
	s := &Server{
		auth:            cfg.Auth,
		maxMessageBytes: cfg.MaxMessageBytes,
		clients:         newClientManager(),
		logger:          logger.Fork("relay"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.Helper.Init(s.logger, s)
	s.Helper.PanicOnError(s.Helper.Activate())
	return s
}

// HandleOnceShutdown implements lifecycle.OnceShutdownHandler.
func (s *Server) HandleOnceShutdown(completionErr error) error {
	return completionErr
}

// ClientCount returns the number of currently registered clients.
func (s *Server) ClientCount() int { return s.clients.count() }

// ServeHTTP upgrades the request to a WebSocket and runs the per-connection
// handler loop until the connection closes or the server shuts down.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WLogf("upgrade from %s failed: %s", realip.RealIP(r), err)
		return
	}
	if s.maxMessageBytes > 0 {
		conn.SetReadLimit(s.maxMessageBytes)
	}
	go s.handleConn(conn, realip.RealIP(r), r.Header)
}

func (s *Server) handleConn(conn *websocket.Conn, remoteAddr string, header http.Header) {
	defer s.finishConn(conn, websocket.CloseNormalClosure, "")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err) {
				s.logger.WLogf("%s: unexpected close: %s", remoteAddr, err)
			}
			return
		}

		var env relaymsg.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.WLogf("%s: decode failure: %s", remoteAddr, err)
			s.closeWith(conn, CloseUnknownMessageType, "malformed message")
			return
		}

		switch env.Type {
		case relaymsg.TypeRegistrationRequest:
			if !s.handleRegistration(conn, remoteAddr, header, env.Registration) {
				return
			}
		case relaymsg.TypePeerConnection:
			if !s.handlePeerConnection(conn, env.PeerConnection) {
				return
			}
		default:
			s.logger.ELogf("%s: unreachable message type %q from a well-typed client", remoteAddr, env.Type)
			s.closeWith(conn, CloseUnknownMessageType, "unknown message type")
			return
		}
	}
}

func (s *Server) handleRegistration(conn *websocket.Conn, remoteAddr string, header http.Header, req *relaymsg.RegistrationRequest) bool {
	if req == nil {
		s.closeWith(conn, CloseUnknownMessageType, "missing registration payload")
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	user, err := s.auth.AuthenticateUser(ctx, header)
	if err != nil {
		s.logger.ELogf("%s: authentication failed: %s", remoteAddr, err)
		s.closeWith(conn, CloseUnauthenticated, "unauthenticated")
		return false
	}

	if existing, ok := s.clients.getByUUID(req.UUID); ok && existing.User != user {
		s.logger.ELogf("%s: uuid %s already registered to a different user", remoteAddr, req.UUID)
		s.closeWith(conn, CloseForbidden, "uuid registered to a different user")
		return false
	}

	client := &registeredClient{
		UUID:      req.UUID,
		Name:      req.Name,
		User:      user,
		Conn:      conn,
		CreatedAt: time.Now(),
	}
	evicted := s.clients.add(client)
	if evicted != nil && evicted != conn {
		evicted.Close()
	}

	resp := relaymsg.Envelope{Type: relaymsg.TypeResponse, Response: &relaymsg.Response{Success: true}}
	return s.send(conn, resp)
}

func (s *Server) handlePeerConnection(conn *websocket.Conn, req *relaymsg.PeerConnectionRequest) bool {
	if req == nil {
		s.closeWith(conn, CloseUnknownMessageType, "missing peer connection payload")
		return false
	}
	sender, ok := s.clients.getByConn(conn)
	if !ok {
		s.closeWith(conn, CloseForbidden, "not registered")
		return false
	}

	target, ok := s.clients.getByUUID(req.PeerUUID)
	if !ok {
		bounced := *req
		bounced.Error = fmt.Sprintf("unknown peer %s", req.PeerUUID)
		return s.send(conn, relaymsg.Envelope{Type: relaymsg.TypePeerConnection, PeerConnection: &bounced})
	}
	if target.User != sender.User {
		bounced := *req
		bounced.Error = fmt.Sprintf("peer %s belongs to a different user", req.PeerUUID)
		return s.send(conn, relaymsg.Envelope{Type: relaymsg.TypePeerConnection, PeerConnection: &bounced})
	}

	return s.send(target.Conn, relaymsg.Envelope{Type: relaymsg.TypePeerConnection, PeerConnection: req})
}

func (s *Server) send(conn *websocket.Conn, env relaymsg.Envelope) bool {
	data, err := json.Marshal(env)
	if err != nil {
		s.logger.ELogf("encoding outgoing message: %s", err)
		return false
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.WLogf("writing outgoing message: %s", err)
		return false
	}
	return true
}

func (s *Server) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	s.finishConn(conn, code, reason)
}

func (s *Server) finishConn(conn *websocket.Conn, code int, reason string) {
	if _, ok := s.clients.remove(conn); ok {
		s.logger.ILogf("unregistered client")
	}
	conn.Close()
}
