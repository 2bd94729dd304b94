package rawloop

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/searchktools/meridian/pools"
)

func TestRawResponseWriterRendersStatusHeadersAndBody(t *testing.T) {
	pool := pools.NewBufferPool()
	rw := newRawResponseWriter(pool)
	rw.Header().Set("X-Custom", "yes")
	rw.WriteHeader(http.StatusCreated)
	rw.Write([]byte("hello"))

	frame := rw.frame()
	rw.release()

	if !bytes.HasPrefix(frame, []byte("HTTP/1.1 201 Created\r\n")) {
		t.Fatalf("unexpected status line: %q", frame)
	}
	if !bytes.Contains(frame, []byte("X-Custom: yes\r\n")) {
		t.Fatalf("missing custom header: %q", frame)
	}
	if !bytes.Contains(frame, []byte("Content-Length: 5\r\n")) {
		t.Fatalf("missing content-length: %q", frame)
	}
	if !bytes.HasSuffix(frame, []byte("hello")) {
		t.Fatalf("missing body: %q", frame)
	}
}

func TestRawResponseWriterDefaultsToOK(t *testing.T) {
	pool := pools.NewBufferPool()
	rw := newRawResponseWriter(pool)
	rw.Write([]byte("x"))

	frame := rw.frame()
	rw.release()
	if !bytes.HasPrefix(frame, []byte("HTTP/1.1 200 OK\r\n")) {
		t.Fatalf("expected implicit 200, got %q", frame)
	}
}
