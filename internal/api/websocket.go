package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openav/matrix-gate/internal/infrastructure/logging"
)

// WebSocket defaults, used when the websocket config section is absent.
const (
	wsWriteWait         = 10 * time.Second
	defaultPongWait     = 60 * time.Second
	defaultPingInterval = 54 * time.Second
	defaultMaxMessage   = 8192
	wsSendBufferSize    = 16

	// ticketTTL is how long a ws-ticket stays redeemable.
	ticketTTL = 30 * time.Second

	ticketBytes = 16
)

// ticketStore issues and redeems one-time WebSocket tickets.
type ticketStore struct {
	mu      sync.Mutex
	tickets map[string]ticket

	now func() time.Time
}

type ticket struct {
	username string
	expires  time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{
		tickets: make(map[string]ticket),
		now:     time.Now,
	}
}

// Issue mints a one-time ticket for the username.
func (ts *ticketStore) Issue(username string) (string, error) {
	raw := make([]byte, ticketBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating ticket: %w", err)
	}
	id := hex.EncodeToString(raw)

	ts.mu.Lock()
	ts.tickets[id] = ticket{username: username, expires: ts.now().Add(ticketTTL)}
	ts.mu.Unlock()

	return id, nil
}

// Redeem consumes a ticket, returning the username it was issued for.
// A ticket can be redeemed once; expired tickets fail.
func (ts *ticketStore) Redeem(id string) (string, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	t, ok := ts.tickets[id]
	if !ok {
		return "", false
	}
	delete(ts.tickets, id)

	if ts.now().After(t.expires) {
		return "", false
	}
	return t.username, true
}

// Hub broadcasts gateway events to connected WebSocket clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]bool
	logger  *logging.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		clients: make(map[*wsClient]bool),
		logger:  logger.With("component", "ws-hub"),
	}
}

// Broadcast queues a message for every connected client. Clients that
// cannot keep up are dropped.
func (h *Hub) Broadcast(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- message:
		default:
			h.removeLocked(c)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(c *wsClient) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

type wsClient struct {
	conn     *websocket.Conn
	send     chan []byte
	username string
}

// handleWebSocket upgrades a ticket-bearing request and streams events.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	username, ok := s.tickets.Redeem(r.URL.Query().Get("ticket"))
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_ticket", "missing, expired, or used ticket")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		conn:     conn,
		send:     make(chan []byte, wsSendBufferSize),
		username: username,
	}
	s.hub.add(client)
	s.logger.Info("websocket connected", "username", username, "remote", r.RemoteAddr)

	go s.writePump(client)
	go s.readPump(client)
}

// readPump discards client messages and watches for disconnect.
// The stream is one-way; clients only listen.
func (s *Server) readPump(c *wsClient) {
	defer func() {
		s.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(s.wsMaxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(s.wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.wsPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump drains the send channel and keeps the connection alive
// with pings.
func (s *Server) writePump(c *wsClient) {
	ticker := time.NewTicker(s.wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// broadcastSwitch pushes a routing.changed event to WebSocket clients.
func (s *Server) broadcastSwitch(input, output int) {
	event := map[string]any{
		"type":   "routing.changed",
		"input":  input,
		"output": output,
		"at":     time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	s.hub.Broadcast(data)
}
