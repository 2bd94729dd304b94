package rawloop

import "testing"

func TestParseRequestParsesLineHeadersAndBody(t *testing.T) {
	raw := []byte("POST /widgets?id=7 HTTP/1.1\r\nHost: example.com\r\nContent-Type: application/json\r\nContent-Length: 13\r\nX-Trace: abc\r\n\r\n{\"ok\":true}\r\n")

	req, err := parseRequest(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer releaseRawRequest(req)

	if req.Method != "POST" {
		t.Fatalf("expected POST, got %q", req.Method)
	}
	if req.Path != "/widgets" {
		t.Fatalf("expected path stripped of query, got %q", req.Path)
	}
	if req.Query["id"] != "7" {
		t.Fatalf("expected query id=7, got %v", req.Query)
	}
	if req.Host != "example.com" || req.ContentType != "application/json" {
		t.Fatalf("unexpected predefined headers: %+v", req)
	}
	if req.ExtraHeaders["X-Trace"] != "abc" {
		t.Fatalf("expected extra header X-Trace, got %v", req.ExtraHeaders)
	}
	if string(req.Body) != "{\"ok\":true}\r\n" {
		t.Fatalf("unexpected body: %q", req.Body)
	}
}

func TestParseRequestReturnsIncompleteForPartialData(t *testing.T) {
	raw := []byte("GET / HTTP/1.1\r\nHost: example.com\r\n")
	_, err := parseRequest(raw)
	if err != ErrIncomplete {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
}

func TestParseRequestReturnsMalformedForBadRequestLine(t *testing.T) {
	raw := []byte("GARBAGE\r\n\r\n")
	_, err := parseRequest(raw)
	if err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestParseRequestHandlesPathWithoutQuery(t *testing.T) {
	raw := []byte("GET /health HTTP/1.1\r\n\r\n")
	req, err := parseRequest(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer releaseRawRequest(req)

	if req.Path != "/health" {
		t.Fatalf("unexpected path: %q", req.Path)
	}
	if len(req.Query) != 0 {
		t.Fatalf("expected no query params, got %v", req.Query)
	}
}
