package server

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/websocket/v2"

	"vitalscan/internal/scan"
)

// stateClient is one connected state subscriber.
type stateClient struct {
	conn *websocket.Conn
	send chan []byte
}

// StateHub fans session state changes out to every connected operator UI.
// It is the single consumer of the state store's update channel.
type StateHub struct {
	state      *scan.StateStore
	clients    map[*stateClient]bool
	register   chan *stateClient
	unregister chan *stateClient
	mu         sync.RWMutex
}

// NewStateHub creates a new StateHub.
func NewStateHub(state *scan.StateStore) *StateHub {
	return &StateHub{
		state:      state,
		clients:    make(map[*stateClient]bool),
		register:   make(chan *stateClient),
		unregister: make(chan *stateClient),
	}
}

// Run starts the hub's broadcast loop.
func (h *StateHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("StateHub: client connected (%d active)", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("StateHub: client disconnected (%d active)", count)

		case snap := <-h.state.Updates():
			payload, err := json.Marshal(snap)
			if err != nil {
				log.Printf("StateHub: failed to encode snapshot: %v", err)
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// handleClient serves one subscriber: the current snapshot first, then every
// state change until the peer disconnects.
func (h *StateHub) handleClient(c *websocket.Conn) {
	client := &stateClient{
		conn: c,
		send: make(chan []byte, 16),
	}

	if payload, err := json.Marshal(h.state.Snapshot()); err == nil {
		client.send <- payload
	}
	h.register <- client

	go client.writePump()

	// Subscribers only listen; reading surfaces the disconnect.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister <- client
}

// writePump pumps state payloads from the hub to the WebSocket connection.
func (c *stateClient) writePump() {
	defer c.conn.Close()
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("StateHub: write error: %v", err)
			return
		}
	}
}
