package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// registeredClient is a peer registration record (spec §3): uuid, name,
// user, websocket, and creation time. At most one live registration exists
// per client UUID.
type registeredClient struct {
	UUID      string
	Name      string
	User      User
	Conn      *websocket.Conn
	CreatedAt time.Time
}

// clientManager holds the relay's live client registry with two indexes —
// by UUID and by websocket — each operation O(1), per spec §4.7.
type clientManager struct {
	mu        sync.Mutex
	byUUID    map[string]*registeredClient
	byConn    map[*websocket.Conn]*registeredClient
}

func newClientManager() *clientManager {
	return &clientManager{
		byUUID: make(map[string]*registeredClient),
		byConn: make(map[*websocket.Conn]*registeredClient),
	}
}

// add registers client, evicting any previous registration for the same
// UUID. It does not close the evicted connection; it returns it, if any,
// so the caller can (the handler closes it before replying on the new
// socket).
func (m *clientManager) add(c *registeredClient) *websocket.Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	var evicted *websocket.Conn
	if old, ok := m.byUUID[c.UUID]; ok {
		evicted = old.Conn
		delete(m.byConn, old.Conn)
	}
	m.byUUID[c.UUID] = c
	m.byConn[c.Conn] = c
	return evicted
}

func (m *clientManager) getByUUID(uuid string) (*registeredClient, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byUUID[uuid]
	return c, ok
}

func (m *clientManager) getByConn(conn *websocket.Conn) (*registeredClient, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byConn[conn]
	return c, ok
}

// remove unregisters conn's client, if any, and returns it.
func (m *clientManager) remove(conn *websocket.Conn) (*registeredClient, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byConn[conn]
	if !ok {
		return nil, false
	}
	delete(m.byConn, conn)
	if m.byUUID[c.UUID] == c {
		delete(m.byUUID, c.UUID)
	}
	return c, true
}

func (m *clientManager) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byUUID)
}
