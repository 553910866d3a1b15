package ws

import (
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"golang.org/x/time/rate"

	"github.com/chatty/chat-relay/internal/roster"
)

// Connection is one connected player.
type Connection struct {
	ID        roster.PlayerID
	Name      string
	Conn      net.Conn
	Fd        int
	CreatedAt time.Time

	lastSeen   atomic.Int64 // unix nanos of the last frame read
	processing atomic.Bool  // set while a worker reads from the socket
	limiter    *rate.Limiter
	writeMu    sync.Mutex
}

func newConnection(id roster.PlayerID, name string, conn net.Conn, limiter *rate.Limiter) *Connection {
	c := &Connection{
		ID:        id,
		Name:      name,
		Conn:      conn,
		Fd:        socketFD(conn),
		CreatedAt: time.Now(),
		limiter:   limiter,
	}
	c.Touch()
	return c
}

// Touch records activity on the connection.
func (c *Connection) Touch() { c.lastSeen.Store(time.Now().UnixNano()) }

// LastSeen is the time of the last activity.
func (c *Connection) LastSeen() time.Time { return time.Unix(0, c.lastSeen.Load()) }

// Allow reports whether another inbound frame fits the connection's rate.
func (c *Connection) Allow() bool { return c.limiter == nil || c.limiter.Allow() }

// WriteMessage writes one text frame. Concurrent writers are serialized.
func (c *Connection) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerMessage(c.Conn, ws.OpText, data)
}

// WritePing writes a protocol-level ping frame.
func (c *Connection) WritePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewPingFrame(nil))
}

func (c *Connection) Close() error { return c.Conn.Close() }

// ConnectionManager indexes live connections by player ID, socket and
// lower-cased name.
type ConnectionManager struct {
	mu     sync.RWMutex
	byID   map[roster.PlayerID]*Connection
	byConn map[net.Conn]*Connection
	byName map[string]*Connection
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		byID:   make(map[roster.PlayerID]*Connection),
		byConn: make(map[net.Conn]*Connection),
		byName: make(map[string]*Connection),
	}
}

// Add registers c unless its name is already connected here.
func (cm *ConnectionManager) Add(c *Connection) bool {
	name := strings.ToLower(c.Name)
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if _, taken := cm.byName[name]; taken {
		return false
	}
	cm.byID[c.ID] = c
	cm.byConn[c.Conn] = c
	cm.byName[name] = c
	return true
}

// Remove drops the connection and closes it. It reports false when the
// connection was already gone, so concurrent removals clean up once.
func (cm *ConnectionManager) Remove(id roster.PlayerID) bool {
	cm.mu.Lock()
	c, ok := cm.byID[id]
	if ok {
		delete(cm.byID, id)
		delete(cm.byConn, c.Conn)
		delete(cm.byName, strings.ToLower(c.Name))
	}
	cm.mu.Unlock()

	if ok {
		_ = c.Close()
	}
	return ok
}

func (cm *ConnectionManager) Get(id roster.PlayerID) *Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.byID[id]
}

// GetByConn finds the connection wrapping a socket reported ready.
func (cm *ConnectionManager) GetByConn(conn net.Conn) *Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.byConn[conn]
}

func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.byID)
}

// All returns a snapshot of the live connections.
func (cm *ConnectionManager) All() []*Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	out := make([]*Connection, 0, len(cm.byID))
	for _, c := range cm.byID {
		out = append(out, c)
	}
	return out
}
