package ws

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Envelope is the wire frame for every event in both directions.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Client is one websocket connection. ID identifies the connection itself;
// UserID/UserName identify the participant behind it and are set by the
// setUserInfo event or the first room action.
type Client struct {
	ID       string
	UserID   string
	UserName string

	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
	send   chan Envelope
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan Envelope, 32),
	}
}

// Emit queues an event for this connection. A connection whose buffer is
// full drops the event rather than blocking a room broadcast. The mutex
// orders Emit against closeSend: a broadcast holding a stale snapshot of a
// room must see the closed flag instead of sending on a closed channel.
func (c *Client) Emit(event string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- Envelope{Type: event, Payload: payload}:
	default:
		log.Printf("ws %s: send buffer full, dropping %s", c.ID, event)
	}
}

// writePump serializes all writes to the connection; gorilla allows only
// one concurrent writer.
func (c *Client) writePump() {
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			log.Printf("ws %s: write: %v", c.ID, err)
			return
		}
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Hub tracks live connections and their room subscriptions and fans events
// out to room groups. It implements app.Broadcaster.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// unregister drops the client from every room and stops its writer.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	for phrase, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, phrase)
		}
	}
	h.mu.Unlock()
	c.closeSend()
}

// Subscribe adds the client to a room group. Subscribing twice is a no-op.
func (h *Hub) Subscribe(c *Client, phrase string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[phrase] == nil {
		h.rooms[phrase] = make(map[*Client]struct{})
	}
	h.rooms[phrase][c] = struct{}{}
}

// Unsubscribe removes the client from a room group.
func (h *Hub) Unsubscribe(c *Client, phrase string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[phrase]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, phrase)
		}
	}
}

// ToRoom emits an event to every subscriber of the room.
func (h *Hub) ToRoom(phrase, event string, payload any) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[phrase]))
	for c := range h.rooms[phrase] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.Emit(event, payload)
	}
}

// RoomSize reports the number of subscribers of a room.
func (h *Hub) RoomSize(phrase string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[phrase])
}
