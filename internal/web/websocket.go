package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeTimeout = 5 * time.Second
	// clientQueue is how many events a client may fall behind before it is
	// disconnected.
	clientQueue = 16
)

// EventCycle carries an orchestrator.CycleEvent.
const EventCycle = "cycle"

type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans cycle events out to websocket clients. The most recent cycle event
// is replayed to clients as they connect.
type Hub struct {
	broadcast chan Event

	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*client]struct{}),
		broadcast: make(chan Event, 256),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				slog.Warn("marshal websocket event failed", "type", event.Type, "error", err)
				continue
			}
			h.fanOut(event.Type, data)
		}
	}
}

func (h *Hub) fanOut(eventType string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if eventType == EventCycle {
		h.last = data
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slog.Warn("websocket client too slow, disconnecting", "remote", c.conn.RemoteAddr().String())
			h.dropLocked(c)
		}
	}
}

// Broadcast queues event for every client without blocking; events are
// dropped when the queue is full.
func (h *Hub) Broadcast(event Event) {
	select {
	case h.broadcast <- event:
	default:
		slog.Warn("websocket broadcast channel full, dropping event")
	}
}

func (h *Hub) register(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, clientQueue)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last != nil {
		c.send <- h.last
	}
	h.clients[c] = struct{}{}
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	c.conn.Close()
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) lastEvent() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.dropLocked(c)
	}
}

// writeLoop delivers queued events until the hub closes the queue or a write
// fails.
func (c *client) writeLoop() {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.conn.Close()
			return
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	c := s.hub.register(conn)
	go c.writeLoop()
	defer s.hub.unregister(c)

	// Drain client frames so close and ping are processed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
