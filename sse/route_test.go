package sse

import (
	"context"
	"testing"
	"time"

	"github.com/searchktools/meridian/server"
)

func TestRouteHandlerFailsWithoutHijackableWriter(t *testing.T) {
	stream := NewStream("test", 10, time.Hour)
	handler := RouteHandler(stream, func(*server.Request) string { return "sub-1" }, nil)

	req := &server.Request{}
	if _, err := handler(context.Background(), req); err == nil {
		t.Fatal("expected hijack error for a request with no response writer attached")
	}
}
