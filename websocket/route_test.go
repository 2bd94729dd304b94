package websocket

import (
	"context"
	"net/http"
	"testing"

	"github.com/searchktools/meridian/server"
)

func TestRouteHandlerRejectsMissingUpgradeHeaders(t *testing.T) {
	hub := NewHub(10, nil)
	handler := RouteHandler(hub, func(*server.Request) string { return "client-1" })

	req := &server.Request{Headers: http.Header{}}
	resp, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != 400 {
		t.Fatalf("expected 400, got %d", resp.Status)
	}
}

func TestRouteHandlerRejectsNonWebsocketUpgrade(t *testing.T) {
	hub := NewHub(10, nil)
	handler := RouteHandler(hub, func(*server.Request) string { return "client-1" })

	h := http.Header{}
	h.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	req := &server.Request{Headers: h}

	resp, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != 400 {
		t.Fatalf("expected 400 for missing Upgrade header, got %d", resp.Status)
	}
}

func TestRouteHandlerFailsWithoutHijackableWriter(t *testing.T) {
	hub := NewHub(10, nil)
	handler := RouteHandler(hub, func(*server.Request) string { return "client-1" })

	h := http.Header{}
	h.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	h.Set("Upgrade", "websocket")
	h.Set("Connection", "Upgrade")
	req := &server.Request{Headers: h}

	if _, err := handler(context.Background(), req); err == nil {
		t.Fatal("expected hijack error for a request with no response writer attached")
	}
}

func TestRouteHandlerRejectsMissingConnectionUpgrade(t *testing.T) {
	hub := NewHub(10, nil)
	handler := RouteHandler(hub, func(*server.Request) string { return "client-1" })

	h := http.Header{}
	h.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	h.Set("Upgrade", "websocket")
	req := &server.Request{Headers: h}

	resp, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != 400 {
		t.Fatalf("expected 400 for missing Connection: Upgrade, got %d", resp.Status)
	}
}
