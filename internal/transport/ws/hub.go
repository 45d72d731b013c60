package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xiaot623/gogo/travel/internal/log"
	"github.com/xiaot623/gogo/travel/internal/metrics"
)

// ErrBufferFull is returned when a connection's send buffer is full.
var ErrBufferFull = errors.New("send buffer full")

// Connection represents a single WebSocket connection.
type Connection struct {
	ID        string
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte
	mu        sync.Mutex
}

// Hub tracks connections and the sessions they are bound to.
type Hub struct {
	connections map[string]*Connection
	// session_id -> connection ids
	sessions map[string]map[string]bool

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *SessionMessage

	metrics *metrics.Metrics
	done    chan struct{}
	mu      sync.RWMutex
}

// SessionMessage is used to broadcast a message to a session.
type SessionMessage struct {
	SessionID string
	Data      []byte
}

// NewHub creates a new Hub.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		sessions:    make(map[string]map[string]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *SessionMessage, 256),
		metrics:     m,
		done:        make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			h.mu.Unlock()
			h.metrics.ClientConnected(1)
			log.Debugf("connection registered: %s", conn.ID)

		case conn := <-h.unregister:
			h.remove(conn)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for connID := range h.sessions[msg.SessionID] {
				conn, ok := h.connections[connID]
				if !ok {
					continue
				}
				select {
				case conn.Send <- msg.Data:
				default:
					log.Warnf("connection %s buffer full, closing", connID)
					go h.Unregister(conn)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) remove(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return
	}
	delete(h.connections, conn.ID)
	h.unbind(conn)
	close(conn.Send)
	h.metrics.ClientConnected(-1)
	log.Debugf("connection unregistered: %s", conn.ID)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.connections))
	for _, conn := range h.connections {
		conns = append(conns, conn)
	}
	h.mu.Unlock()
	for _, conn := range conns {
		h.remove(conn)
	}
}

// unbind must be called with h.mu held.
func (h *Hub) unbind(conn *Connection) {
	if conn.SessionID == "" || h.sessions[conn.SessionID] == nil {
		return
	}
	delete(h.sessions[conn.SessionID], conn.ID)
	if len(h.sessions[conn.SessionID]) == 0 {
		delete(h.sessions, conn.SessionID)
	}
}

// NewConnection wraps a WebSocket connection.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:   uuid.New().String(),
		Conn: ws,
		Send: make(chan []byte, 256),
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
	}
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// BindSession binds a connection to a session, leaving any previous one.
func (h *Hub) BindSession(conn *Connection, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unbind(conn)
	conn.SessionID = sessionID
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[string]bool)
	}
	h.sessions[sessionID][conn.ID] = true
}

// SessionOf returns the session a connection is bound to.
func (h *Hub) SessionOf(conn *Connection) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return conn.SessionID
}

// BroadcastJSON sends a JSON message to all connections of a session.
func (h *Hub) BroadcastJSON(sessionID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- &SessionMessage{SessionID: sessionID, Data: data}:
	case <-h.done:
	}
	return nil
}

// SendJSONToConnection sends a JSON message to a specific connection.
func (h *Hub) SendJSONToConnection(conn *Connection, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// SessionCount returns the number of sessions with a bound connection.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}
