// Package sse adapts a Server-Sent Events broker onto the router: an
// SSE route is an ordinary router.Route whose handler hijacks the
// connection and streams Stream events to it until the client
// disconnects. Grounded on the teacher's core/sse package.
package sse

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Event is one Server-Sent Event.
type Event struct {
	ID    string
	Event string
	Data  string
	Retry int // milliseconds
}

// Format renders event in the text/event-stream wire format.
func (e *Event) Format() []byte {
	var buf []byte
	if e.ID != "" {
		buf = append(buf, fmt.Sprintf("id: %s\n", e.ID)...)
	}
	if e.Event != "" {
		buf = append(buf, fmt.Sprintf("event: %s\n", e.Event)...)
	}
	if e.Retry > 0 {
		buf = append(buf, fmt.Sprintf("retry: %d\n", e.Retry)...)
	}
	if e.Data != "" {
		buf = append(buf, fmt.Sprintf("data: %s\n", e.Data)...)
	}
	return append(buf, '\n')
}

// Client is one subscribed SSE connection.
type Client struct {
	ID        string
	Channel   chan *Event
	closeCh   chan struct{}
	closeOnce sync.Once
}

func newClient(id string, bufferSize int) *Client {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Client{ID: id, Channel: make(chan *Event, bufferSize), closeCh: make(chan struct{})}
}

// Close closes the client. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		close(c.Channel)
	})
}

// Send delivers event to the client without blocking; returns false
// if the client is closed or its buffer is full.
func (c *Client) Send(event *Event) bool {
	select {
	case <-c.closeCh:
		return false
	default:
	}
	select {
	case c.Channel <- event:
		return true
	default:
		return false
	}
}

// Stream is one SSE endpoint's set of subscribers, identified by
// namespace for the synthetic event IDs it assigns.
type Stream struct {
	namespace string
	eventID   atomic.Uint64

	clients     sync.Map
	newClients  chan *Client
	deadClients chan *Client
	messages    chan *Event

	totalClients  atomic.Int64
	messagesCount atomic.Int64
	droppedCount  atomic.Int64
	maxClients    int
}

// NewStream creates a Stream scoped to namespace, accepting up to
// maxClients subscribers (<=0 defaults to 10000), and starts its
// dispatch and keepalive goroutines.
func NewStream(namespace string, maxClients int, keepaliveInterval time.Duration) *Stream {
	if maxClients <= 0 {
		maxClients = 10000
	}
	if keepaliveInterval <= 0 {
		keepaliveInterval = 30 * time.Second
	}

	s := &Stream{
		namespace:   namespace,
		newClients:  make(chan *Client, 100),
		deadClients: make(chan *Client, 100),
		messages:    make(chan *Event, 1000),
		maxClients:  maxClients,
	}
	go s.run()
	go s.keepalive(keepaliveInterval)
	return s
}

func (s *Stream) run() {
	for {
		select {
		case client := <-s.newClients:
			s.clients.Store(client.ID, client)
			s.totalClients.Add(1)

		case client := <-s.deadClients:
			s.clients.Delete(client.ID)
			client.Close()

		case event := <-s.messages:
			s.messagesCount.Add(1)
			s.broadcast(event)
		}
	}
}

func (s *Stream) keepalive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		s.broadcast(&Event{Event: "keepalive", Data: fmt.Sprintf("timestamp:%d", time.Now().Unix())})
	}
}

func (s *Stream) broadcast(event *Event) {
	s.clients.Range(func(_, value any) bool {
		if !value.(*Client).Send(event) {
			s.droppedCount.Add(1)
		}
		return true
	})
}

// Subscribe registers and returns a new Client for clientID.
func (s *Stream) Subscribe(clientID string) (*Client, error) {
	if s.ClientCount() >= s.maxClients {
		return nil, fmt.Errorf("sse: max clients reached (%d)", s.maxClients)
	}
	client := newClient(clientID, 100)
	s.newClients <- client
	return client, nil
}

// Unsubscribe removes client from the stream.
func (s *Stream) Unsubscribe(client *Client) { s.deadClients <- client }

func (s *Stream) nextEvent(eventType, data string) *Event {
	id := s.eventID.Add(1)
	return &Event{ID: fmt.Sprintf("%s-%d", s.namespace, id), Event: eventType, Data: data}
}

// Send broadcasts an event to every subscriber.
func (s *Stream) Send(eventType, data string) {
	s.messages <- s.nextEvent(eventType, data)
}

// SendTo delivers an event to a single subscriber by ID.
func (s *Stream) SendTo(clientID, eventType, data string) error {
	val, ok := s.clients.Load(clientID)
	if !ok {
		return fmt.Errorf("sse: client not found: %s", clientID)
	}
	if !val.(*Client).Send(s.nextEvent(eventType, data)) {
		return fmt.Errorf("sse: client %s channel full", clientID)
	}
	return nil
}

// ClientCount reports the number of currently subscribed clients.
func (s *Stream) ClientCount() int {
	n := 0
	s.clients.Range(func(_, _ any) bool { n++; return true })
	return n
}

// Stats reports stream counters for diagnostics.
func (s *Stream) Stats() map[string]any {
	return map[string]any{
		"namespace":        s.namespace,
		"total_clients":    s.totalClients.Load(),
		"current_clients":  s.ClientCount(),
		"messages_sent":    s.messagesCount.Load(),
		"messages_dropped": s.droppedCount.Load(),
		"last_assigned_id": s.eventID.Load(),
	}
}
