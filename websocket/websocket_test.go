package websocket

import (
	"bufio"
	"net"
	"testing"
	"time"
)

func newTestConn() *Conn {
	server, _ := net.Pipe()
	return &Conn{
		conn:           server,
		reader:         bufio.NewReader(server),
		writer:         bufio.NewWriter(server),
		maxMessageSize: 1024,
	}
}

func waitForClientCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for client count %d, got %d", want, hub.ClientCount())
}

func TestAcceptKeyMatchesRFC6455Example(t *testing.T) {
	got := AcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Fatalf("AcceptKey mismatch: got %q want %q", got, want)
	}
}

func TestHubRegisterClientRejectsOverCapacity(t *testing.T) {
	hub := NewHub(1, nil)
	c1 := newClient("a", newTestConn())
	if err := hub.registerClient(c1); err != nil {
		t.Fatalf("unexpected error admitting first client: %v", err)
	}
	waitForClientCount(t, hub, 1)

	c2 := newClient("b", newTestConn())
	if err := hub.registerClient(c2); err == nil {
		t.Fatal("expected capacity error for second client")
	}
}

func TestRoomBroadcastDeliversToMembers(t *testing.T) {
	hub := NewHub(10, nil)
	room := hub.CreateRoom("lobby")

	client := newClient("solo", newTestConn())
	hub.clients.Store(client.ID, client)
	if err := room.Join(client.ID); err != nil {
		t.Fatalf("unexpected join error: %v", err)
	}

	room.Broadcast([]byte("hi"))
	select {
	case msg := <-client.Send:
		if string(msg) != "hi" {
			t.Fatalf("unexpected payload: %q", msg)
		}
	default:
		t.Fatal("expected message on client channel")
	}
}
