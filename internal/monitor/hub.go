// ABOUTME: Websocket feed of session status snapshots
// ABOUTME: Each client gets the latest snapshots on connect, then every update
package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Sendspin/sendspin-bridge/internal/session"
)

const (
	clientQueue   = 16
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
)

// Hub fans status snapshots out to websocket clients
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
	latest  map[string]session.Status // by role
	closed  bool
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub with no clients
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			// The feed is read-only status; any origin may watch it.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
		latest:  make(map[string]session.Status),
	}
}

// Observe implements session.Observer. Slow clients miss snapshots rather
// than delaying the session.
func (h *Hub) Observe(s session.Status) {
	data, err := json.Marshal(s)
	if err != nil {
		logrus.WithError(err).Warn("Status marshal failed")
		return
	}
	h.mu.Lock()
	h.latest[s.Role] = s
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and serves one client until it goes away
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Warnf("WebSocket upgrade error: %v", err)
		return
	}
	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, clientQueue)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	for _, s := range h.latest {
		if data, err := json.Marshal(s); err == nil {
			c.send <- data
		}
	}
	h.clients[c.id] = c
	h.mu.Unlock()
	logrus.Debugf("Status client %s connected from %s", c.id, r.RemoteAddr)

	go h.writer(c)
	// Reads only detect the peer going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
	logrus.Debugf("Status client %s disconnected", c.id)
}

// Close disconnects all clients and rejects new ones
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()
	for _, c := range clients {
		close(c.send)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
}

func (h *Hub) writer(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeDeadline))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}
