// Package endpoint implements the ProxyStore endpoint daemon (spec §4.4):
// a local HTTP surface mirroring the Connector contract, backed by
// Storage, and a peer fabric for satisfying requests from other endpoints
// belonging to the same user.
package endpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jpillora/requestlog"
	"github.com/jpillora/sizestr"
	"github.com/proxystore-go/proxystore/pkg/endpoint/peer"
	"github.com/proxystore-go/proxystore/pkg/lifecycle"
	"github.com/proxystore-go/proxystore/pkg/pslog"
	"github.com/proxystore-go/proxystore/pkg/relayclient"
	"github.com/tomasen/realip"
)

// Config configures a Server.
type Config struct {
	UUID    string
	Name    string
	Storage *Storage
	Relay   *relayclient.Client // nil disables peer forwarding
	Logger  pslog.Logger
}

// Server is the endpoint daemon: HTTP surface + optional peer fabric.
type Server struct {
	lifecycle.Helper

	uuid    string
	name    string
	storage *Storage
	relay   *relayclient.Client
	peers   *peer.Manager
	logger  pslog.Logger

	mux http.Handler
}

// New constructs a Server from cfg. If cfg.Relay is non-nil, the server
// also starts a peer.Manager so gets for objects missing locally can be
// forwarded to other same-user endpoints.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.Nop()
	}
	s := &Server{
		uuid:    cfg.UUID,
		name:    cfg.Name,
		storage: cfg.Storage,
		relay:   cfg.Relay,
		logger:  logger.Fork("endpoint"),
	}
	s.Helper.Init(s.logger, s)
	s.Helper.PanicOnError(s.Helper.Activate())

	if cfg.Relay != nil {
		s.peers = peer.NewManager(cfg.Relay, cfg.UUID, cfg.Name, s, s.logger)
		s.Helper.AddShutdownChild(s.peers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/endpoint", s.handleSelf)
	mux.HandleFunc("/set", s.handleSet)
	mux.HandleFunc("/get", s.handleGet)
	mux.HandleFunc("/exists", s.handleExists)
	mux.HandleFunc("/evict", s.handleEvict)

	var h http.Handler = mux
	if s.GetLogLevel() >= pslog.LogLevelDebug {
		h = requestlog.Wrap(h)
	}
	s.mux = h
	return s
}

// HandleOnceShutdown implements lifecycle.OnceShutdownHandler.
func (s *Server) HandleOnceShutdown(completionErr error) error { return completionErr }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type selfIdentity struct {
	UUID          string `json:"uuid"`
	Name          string `json:"name"`
	MaxObjectSize string `json:"max_object_size"`
}

func (s *Server) handleSelf(w http.ResponseWriter, r *http.Request) {
	max := int64(0)
	if s.storage != nil {
		max = s.storage.maxObject
	}
	json.NewEncoder(w).Encode(selfIdentity{
		UUID:          s.uuid,
		Name:          s.name,
		MaxObjectSize: sizestr.ToString(max),
	})
	s.logger.DLogf("self-identification request from %s", realip.RealIP(r))
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, chunkSize*64+1))
	if err != nil {
		http.Error(w, fmt.Sprintf("reading body: %s", err), http.StatusBadRequest)
		return
	}
	id, err := s.storage.Put(data)
	if err != nil {
		if _, ok := err.(*ErrObjectTooLarge); ok {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"object_id": id})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("object_id")
	if id == "" {
		http.Error(w, "missing object_id", http.StatusBadRequest)
		return
	}
	data, ok, err := s.storage.Get(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		if peerUUID := r.URL.Query().Get("peer_uuid"); peerUUID != "" && s.peers != nil {
			data, ok = s.getFromPeer(r.Context(), peerUUID, id)
		}
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

func (s *Server) getFromPeer(ctx context.Context, peerUUID, objectID string) ([]byte, bool) {
	p, err := s.peers.Connect(ctx, peerUUID)
	if err != nil {
		s.logger.WLogf("connecting to peer %s: %s", peerUUID, err)
		return nil, false
	}
	resp, err := p.Call(ctx, peer.Request{Op: peer.OpGet, ObjectID: objectID})
	if err != nil {
		s.logger.WLogf("forwarding get to peer %s: %s", peerUUID, err)
		return nil, false
	}
	return resp.Data, resp.Found
}

func (s *Server) handleExists(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("object_id")
	if id == "" {
		http.Error(w, "missing object_id", http.StatusBadRequest)
		return
	}
	json.NewEncoder(w).Encode(map[string]bool{"exists": s.storage.Exists(id)})
}

func (s *Server) handleEvict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("object_id")
	if id == "" {
		http.Error(w, "missing object_id", http.StatusBadRequest)
		return
	}
	if err := s.storage.Evict(id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePeerRequest implements peer.Handler, answering requests forwarded
// from other same-user endpoints over the WebRTC data channel fabric.
func (s *Server) HandlePeerRequest(ctx context.Context, req peer.Request) peer.Response {
	switch req.Op {
	case peer.OpGet:
		data, ok, err := s.storage.Get(req.ObjectID)
		if err != nil {
			return peer.Response{Error: err.Error()}
		}
		return peer.Response{Found: ok, Data: data}
	case peer.OpPut:
		id, err := s.storage.Put(req.Data)
		if err != nil {
			return peer.Response{Error: err.Error()}
		}
		return peer.Response{Found: true, Data: []byte(id)}
	case peer.OpExists:
		return peer.Response{Found: s.storage.Exists(req.ObjectID)}
	case peer.OpEvict:
		if err := s.storage.Evict(req.ObjectID); err != nil {
			return peer.Response{Error: err.Error()}
		}
		return peer.Response{Found: true}
	default:
		return peer.Response{Error: fmt.Sprintf("endpoint: unsupported peer op %q", req.Op)}
	}
}
