// Package websocket adapts a minimal RFC 6455 frame codec and
// connection registry onto the router: a WebSocket endpoint is an
// ordinary router.Route whose Handler hijacks the HTTP connection and
// hands it to a Hub. Grounded on the teacher's core/websocket package.
package websocket

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/searchktools/meridian/logctx"
)

// Client is one registered connection.
type Client struct {
	ID     string
	Conn   *Conn
	Send   chan []byte
	closed atomic.Bool
}

func newClient(id string, conn *Conn) *Client {
	return &Client{ID: id, Conn: conn, Send: make(chan []byte, 256)}
}

// Close closes the client's send channel and underlying connection.
// Safe to call more than once.
func (c *Client) Close() {
	if c.closed.Swap(true) {
		return
	}
	close(c.Send)
	c.Conn.Close()
}

// IsClosed reports whether Close has run.
func (c *Client) IsClosed() bool { return c.closed.Load() }

// BroadcastMessage is one message fanned out by Hub.run, optionally
// scoped to a single room.
type BroadcastMessage struct {
	OpCode  OpCode
	Payload []byte
	Room    string
}

// Hub owns the registered clients and rooms for one WebSocket route
// and serializes registration/broadcast through a single goroutine.
type Hub struct {
	clients    sync.Map
	broadcast  chan *BroadcastMessage
	register   chan *Client
	unregister chan *Client
	rooms      sync.Map

	totalClients atomic.Int64
	messageCount atomic.Int64
	maxClients   int
	log          logctx.Logger
}

// NewHub creates a Hub accepting up to maxClients concurrent
// connections (<=0 defaults to 10000) and starts its dispatch loop.
func NewHub(maxClients int, log logctx.Logger) *Hub {
	if maxClients <= 0 {
		maxClients = 10000
	}
	if log == nil {
		log = logctx.Noop{}
	}

	h := &Hub{
		broadcast:  make(chan *BroadcastMessage, 1000),
		register:   make(chan *Client, 100),
		unregister: make(chan *Client, 100),
		maxClients: maxClients,
		log:        log,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients.Store(client.ID, client)
			h.totalClients.Add(1)

		case client := <-h.unregister:
			if _, ok := h.clients.Load(client.ID); ok {
				h.clients.Delete(client.ID)
				client.Close()
			}

		case msg := <-h.broadcast:
			h.messageCount.Add(1)
			if msg.Room == "" {
				h.clients.Range(func(_, value any) bool {
					client := value.(*Client)
					select {
					case client.Send <- msg.Payload:
					default:
						h.unregister <- client
					}
					return true
				})
			} else if room, ok := h.GetRoom(msg.Room); ok {
				room.Broadcast(msg.Payload)
			}
		}
	}
}

// registerClient admits client, starting its read/write pumps.
// Returns an error if the hub is already at capacity.
func (h *Hub) registerClient(client *Client) error {
	if h.ClientCount() >= h.maxClients {
		return fmt.Errorf("websocket: hub at capacity (%d clients)", h.maxClients)
	}
	h.register <- client
	go h.readPump(client)
	go h.writePump(client)
	return nil
}

// Unregister removes client and closes its connection.
func (h *Hub) Unregister(client *Client) { h.unregister <- client }

// Broadcast fans payload out to every client, or to room's members
// if room is non-empty.
func (h *Hub) Broadcast(opcode OpCode, payload []byte, room string) {
	h.broadcast <- &BroadcastMessage{OpCode: opcode, Payload: payload, Room: room}
}

// BroadcastText broadcasts a text frame.
func (h *Hub) BroadcastText(text string, room string) { h.Broadcast(OpText, []byte(text), room) }

// SendTo delivers payload to a single client by ID.
func (h *Hub) SendTo(clientID string, payload []byte) error {
	val, ok := h.clients.Load(clientID)
	if !ok {
		return fmt.Errorf("websocket: client not found: %s", clientID)
	}
	select {
	case val.(*Client).Send <- payload:
		return nil
	default:
		return fmt.Errorf("websocket: client %s send buffer full", clientID)
	}
}

// GetClient looks up a registered client by ID.
func (h *Hub) GetClient(clientID string) (*Client, bool) {
	val, ok := h.clients.Load(clientID)
	if !ok {
		return nil, false
	}
	return val.(*Client), true
}

// ClientCount reports the number of currently registered clients.
func (h *Hub) ClientCount() int {
	n := 0
	h.clients.Range(func(_, _ any) bool { n++; return true })
	return n
}

// Stats reports hub counters for diagnostics.
func (h *Hub) Stats() map[string]any {
	return map[string]any{
		"total_clients":   h.totalClients.Load(),
		"current_clients": h.ClientCount(),
		"messages_sent":   h.messageCount.Load(),
		"rooms":           h.RoomCount(),
	}
}

func (h *Hub) readPump(client *Client) {
	defer h.Unregister(client)
	for {
		if _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(client *Client) {
	defer h.Unregister(client)
	for payload := range client.Send {
		if err := client.Conn.WriteMessage(OpText, payload); err != nil {
			h.log.Debugf("websocket: write to %s failed: %v", client.ID, err)
			return
		}
	}
}

// Room is a named subset of a Hub's clients that can be addressed
// with a single Broadcast call.
type Room struct {
	Name    string
	clients sync.Map
	hub     *Hub
}

// CreateRoom creates and registers a new room under name.
func (h *Hub) CreateRoom(name string) *Room {
	room := &Room{Name: name, hub: h}
	h.rooms.Store(name, room)
	return room
}

// GetRoom looks up a room by name.
func (h *Hub) GetRoom(name string) (*Room, bool) {
	val, ok := h.rooms.Load(name)
	if !ok {
		return nil, false
	}
	return val.(*Room), true
}

// RoomCount reports the number of currently registered rooms.
func (h *Hub) RoomCount() int {
	n := 0
	h.rooms.Range(func(_, _ any) bool { n++; return true })
	return n
}

// Join adds the already-registered client clientID to room.
func (r *Room) Join(clientID string) error {
	client, ok := r.hub.GetClient(clientID)
	if !ok {
		return fmt.Errorf("websocket: client not found: %s", clientID)
	}
	r.clients.Store(clientID, client)
	return nil
}

// Leave removes clientID from room.
func (r *Room) Leave(clientID string) { r.clients.Delete(clientID) }

// Broadcast fans payload out to every client in room.
func (r *Room) Broadcast(payload []byte) {
	r.clients.Range(func(_, value any) bool {
		select {
		case value.(*Client).Send <- payload:
		default:
		}
		return true
	})
}

// ClientCount reports the number of clients currently in room.
func (r *Room) ClientCount() int {
	n := 0
	r.clients.Range(func(_, _ any) bool { n++; return true })
	return n
}
