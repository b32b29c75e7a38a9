// Package realtime pushes task change events to the connected clients of
// the affected users.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/taskwise/internal/constants"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Publisher delivers an event to every live connection of one user.
// Delivery is at most once; nothing is stored for clients that connect later.
type Publisher interface {
	Publish(userID, event string, payload any)
}

// Frame is the JSON document written for every event
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Client is one websocket connection registered under its user
type Client struct {
	id     string
	userID string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
}

// Hub is the registry of open connections keyed by user id. It is created
// once at start-up and shared by the HTTP layer and the task service.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{}
	closed   bool
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

// NewHub creates a Hub. Browser upgrades are accepted only from the given
// origins; requests without an Origin header are always accepted.
func NewHub(log logrus.FieldLogger, allowedOrigins ...string) *Hub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		log:     log.WithField("component", "realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
	}
}

// Publish queues the event on every connection of userID. A connection whose
// queue is full misses the event.
func (h *Hub) Publish(userID, event string, payload any) {
	data, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		h.log.WithError(err).WithField("event", event).Error("Failed to marshal realtime frame")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		select {
		case client.send <- data:
		default:
			h.log.WithFields(logrus.Fields{
				"user_id":   userID,
				"client_id": client.id,
				"event":     event,
			}).Warn("Realtime queue full, dropping event")
		}
	}
}

// ConnectionCount returns the number of live connections of userID
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// ServeWS upgrades the request and serves it as a connection of userID until
// the peer goes away. The upgrade failure has already been answered when an
// error is returned.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &Client{
		id:     uuid.NewString(),
		userID: userID,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, constants.RealtimeSendBuffer),
	}
	if !h.register(client) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return nil
	}

	go client.writePump()
	client.readPump()
	return nil
}

// Close disconnects every client and rejects new ones
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for userID, set := range h.clients {
		for client := range set {
			close(client.send)
		}
		delete(h.clients, userID)
	}
	h.log.Info("Realtime hub closed")
	return nil
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}

	h.log.WithFields(logrus.Fields{"user_id": c.userID, "client_id": c.id}).Debug("Realtime client connected")
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}

	h.log.WithFields(logrus.Fields{"user_id": c.userID, "client_id": c.id}).Debug("Realtime client disconnected")
}

// readPump discards inbound messages; it exists to process control frames
// and notice when the peer leaves.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.WithError(err).WithField("client_id", c.id).Debug("Realtime read error")
			}
			return
		}
	}
}

// writePump is the only writer of the connection, so frames leave in the
// order they were queued.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
