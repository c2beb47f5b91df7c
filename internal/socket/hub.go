package socket

import (
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

type client struct {
	conn *websocket.Conn
	role string
}

// Hub tracks every connected WebSocket client, keyed by user email.
type Hub struct {
	clients map[string]*client
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
	}
}

// Register adds a client. A reconnect replaces the previous session.
func (h *Hub) Register(email, role string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[email] = &client{conn: conn, role: role}
	log.Printf("WebSocket client registered: %s", email)
}

// Unregister removes a client.
func (h *Hub) Unregister(email string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[email]; ok {
		delete(h.clients, email)
		log.Printf("WebSocket client unregistered: %s", email)
	}
}

// Send pushes a JSON event to one user. An offline user is not an error.
func (h *Hub) Send(email string, event any) error {
	message, err := json.Marshal(event)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[email]
	if !ok {
		return nil
	}
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// BroadcastRole pushes a JSON event to every client whose role contains one of
// the given substrings (case-insensitive). Write failures are logged and the
// remaining clients still receive the event.
func (h *Hub) BroadcastRole(event any, roleSubstrings ...string) {
	message, err := json.Marshal(event)
	if err != nil {
		log.Printf("WebSocket broadcast marshal failed: %v", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for email, c := range h.clients {
		role := strings.ToLower(c.role)
		for _, allowed := range roleSubstrings {
			if strings.Contains(role, strings.ToLower(allowed)) {
				if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
					log.Printf("WebSocket write to %s failed: %v", email, err)
				}
				break
			}
		}
	}
}
