// Package errs defines the sealed error taxonomy shared by the client
// and server halves of the runtime.
package errs

import "fmt"

// Kind identifies one of the error kinds from the error taxonomy.
// It exists so callers can switch on errors.As without depending on
// every concrete error type.
type Kind int

const (
	KindUnprocessedRequest Kind = iota
	KindClosedSession
	KindSessionProtocolNegotiation
	KindResponseTimeout
	KindWriteTimeout
	KindRefusedStream
	KindContentTooLarge
	KindClosedPublisher
	KindHTTPStatus
	KindHTTPResponse
	KindProtocolViolation
)

func (k Kind) String() string {
	switch k {
	case KindUnprocessedRequest:
		return "UnprocessedRequest"
	case KindClosedSession:
		return "ClosedSession"
	case KindSessionProtocolNegotiation:
		return "SessionProtocolNegotiation"
	case KindResponseTimeout:
		return "ResponseTimeout"
	case KindWriteTimeout:
		return "WriteTimeout"
	case KindRefusedStream:
		return "RefusedStream"
	case KindContentTooLarge:
		return "ContentTooLarge"
	case KindClosedPublisher:
		return "ClosedPublisher"
	case KindHTTPStatus:
		return "HTTPStatus"
	case KindHTTPResponse:
		return "HTTPResponse"
	case KindProtocolViolation:
		return "ProtocolViolation"
	default:
		return "Unknown"
	}
}

// Retryable reports whether a caller may safely retry a request that
// failed with this kind of error, per the table in the error taxonomy.
func (k Kind) Retryable() bool {
	switch k {
	case KindUnprocessedRequest, KindClosedSession, KindRefusedStream:
		return true
	default:
		return false
	}
}

// UnprocessedRequest wraps a connect/negotiation failure. The wrapped
// request was never written to the wire, so it is always retry-safe
// regardless of the cause.
type UnprocessedRequest struct {
	Cause error
}

func (e *UnprocessedRequest) Error() string {
	return fmt.Sprintf("unprocessed request: %v", e.Cause)
}

func (e *UnprocessedRequest) Unwrap() error { return e.Cause }

func (e *UnprocessedRequest) Kind() Kind { return KindUnprocessedRequest }

// ClosedSession indicates the transport channel closed while a request
// was in flight on it.
type ClosedSession struct {
	Reason string
}

func (e *ClosedSession) Error() string {
	if e.Reason == "" {
		return "session closed"
	}
	return "session closed: " + e.Reason
}

func (e *ClosedSession) Kind() Kind { return KindClosedSession }

// SessionProtocolNegotiation indicates an ALPN/upgrade mismatch between
// the protocol the caller desired and the protocol the peer offered.
type SessionProtocolNegotiation struct {
	Expected string
	Actual   string // empty if negotiation never completed
	Reason   string
}

func (e *SessionProtocolNegotiation) Error() string {
	if e.Actual == "" {
		return fmt.Sprintf("protocol negotiation failed for %s: %s", e.Expected, e.Reason)
	}
	return fmt.Sprintf("expected protocol %s but negotiated %s: %s", e.Expected, e.Actual, e.Reason)
}

func (e *SessionProtocolNegotiation) Kind() Kind { return KindSessionProtocolNegotiation }

// ResponseTimeout indicates no response arrived within the configured
// response deadline.
type ResponseTimeout struct{}

func (e *ResponseTimeout) Error() string { return "response timed out" }
func (e *ResponseTimeout) Kind() Kind     { return KindResponseTimeout }

// WriteTimeout indicates the request body was not drained by the peer
// within the configured write deadline.
type WriteTimeout struct{}

func (e *WriteTimeout) Error() string { return "write timed out" }
func (e *WriteTimeout) Kind() Kind     { return KindWriteTimeout }

// RefusedStream indicates the server's SETTINGS forbid opening any new
// stream on the connection (MAX_CONCURRENT_STREAMS == 0, or similar).
type RefusedStream struct{}

func (e *RefusedStream) Error() string { return "stream refused by peer" }
func (e *RefusedStream) Kind() Kind     { return KindRefusedStream }

// ContentTooLarge indicates an incoming payload exceeded the
// configured maximum content length. Never retryable: a retry would
// hit the same limit.
type ContentTooLarge struct {
	Limit    int64
	Received int64
}

func (e *ContentTooLarge) Error() string {
	return fmt.Sprintf("content length %d exceeds limit %d", e.Received, e.Limit)
}

func (e *ContentTooLarge) Kind() Kind { return KindContentTooLarge }

// ClosedPublisher indicates the response consumer cancelled its
// subscription before the stream completed.
type ClosedPublisher struct{}

func (e *ClosedPublisher) Error() string { return "publisher closed by consumer" }
func (e *ClosedPublisher) Kind() Kind     { return KindClosedPublisher }

// HTTPStatus is server-side control flow: a handler raises this to
// short-circuit the decorator chain with a bare status code.
type HTTPStatus struct {
	Status int
}

func (e *HTTPStatus) Error() string { return fmt.Sprintf("http status %d", e.Status) }
func (e *HTTPStatus) Kind() Kind     { return KindHTTPStatus }

// HTTPResponse is server-side control flow: a handler raises this to
// short-circuit the decorator chain with a literal response value.
type HTTPResponse struct {
	Response any
}

func (e *HTTPResponse) Error() string { return "http response short-circuit" }
func (e *HTTPResponse) Kind() Kind     { return KindHTTPResponse }

// ProtocolViolation indicates malformed wire data: a bad path, header,
// or frame. Never retryable.
type ProtocolViolation struct {
	Detail string
}

func (e *ProtocolViolation) Error() string { return "protocol violation: " + e.Detail }
func (e *ProtocolViolation) Kind() Kind     { return KindProtocolViolation }

// Fatal panics with a description of an invariant breach. The error
// taxonomy above covers recoverable, wire-facing failures; invariant
// breaches (pool accessed off its worker, negative backoff, duplicate
// timeout registration, ...) are bugs in the caller and must abort the
// process rather than be swallowed.
func Fatal(format string, args ...any) {
	panic(fmt.Sprintf("invariant breach: "+format, args...))
}
