// Package server adapts the composite router and pipeline decorator
// chain onto an HTTP transport. Grounded on the teacher's
// core/http2/server.go: an http.Server for H1/H1C, wrapped with
// golang.org/x/net/http2 + h2c.NewHandler for H2/H2C, dispatching
// every accepted request the same way regardless of which protocol it
// arrived on.
package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/searchktools/meridian/router"
)

// Request is the value a registered Handler receives: the decoded
// method/path/headers plus the still-unread body.
type Request struct {
	Method      string
	Path        string
	Query       string
	PathParams  map[string]string
	Headers     http.Header
	ContentType string
	Body        io.Reader

	raw *http.Request
	rw  http.ResponseWriter
}

// Raw exposes the underlying *http.Request for handlers that need
// transport-level detail (e.g. to Hijack for a WebSocket upgrade).
func (r *Request) Raw() *http.Request { return r.raw }

// Context returns the request's context.Context.
func (r *Request) Context() context.Context { return r.raw.Context() }

// Hijack takes over the underlying connection for protocols that
// don't fit the request/response model, such as a WebSocket or SSE
// upgrade. The caller owns conn afterward and must close it; a
// handler that hijacks must return a Response with Hijacked set so
// the server doesn't attempt to write a response over the same
// connection.
func (r *Request) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.rw.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("server: response writer does not support hijacking")
	}
	return hj.Hijack()
}

// Response is what a Handler returns: a status code, headers, and a
// body. Body may be nil for an empty response. Hijacked marks that
// the handler already took over the connection via Request.Hijack
// and wrote its own bytes directly, so the server must not write
// anything more.
type Response struct {
	Status   int
	Headers  http.Header
	Body     []byte
	Hijacked bool
}

// Handler is the server-side request handler signature every Route's
// router.Handler is expected to satisfy once type-asserted back out of
// the router (the router package itself stays decoupled from this
// type so it never needs to import net/http).
type Handler func(ctx context.Context, req *Request) (*Response, error)

func buildRoutingContext(r *http.Request) *router.RoutingContext {
	ctx := &router.RoutingContext{
		Hostname: r.Host,
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Accept:   router.ParseAcceptList(r.Header.Get("Accept")),
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, ok := router.ParseMediaType(ct); ok {
			ctx.ContentType = &mt
		}
	}
	if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
		ctx.IsCorsPreflight = true
	}
	return ctx
}
