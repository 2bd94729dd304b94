package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/searchktools/meridian/errs"
	"github.com/searchktools/meridian/logctx"
	"github.com/searchktools/meridian/observability"
	"github.com/searchktools/meridian/pipeline"
	"github.com/searchktools/meridian/router"
)

// Config mirrors the teacher's http2.Config, generalized with the
// router/pipeline/content-length knobs the connection-options table
// requires on the server side.
type Config struct {
	Addr                 string
	TLSConfig            *tls.Config
	MaxConcurrentStreams uint32
	MaxReadFrameSize     uint32
	IdleTimeout          time.Duration

	Router *router.Router

	// Decorators apply to every route, composed outermost-first ahead
	// of any per-route declarations supplied to Handle.
	Decorators []pipeline.Declaration

	RequestTimeoutMillis int
	MaxRequestLength     int64

	Fallback pipeline.FallbackFunc
	Log      logctx.Logger

	// Monitor records per-route latency/error metrics when set. Every
	// route registered through Handle is wrapped with
	// observability.Decorate(Monitor, <route skeleton>).
	Monitor *observability.Monitor
}

// Server wraps net/http for H1/H1C and golang.org/x/net/http2 + h2c for
// H2/H2C, dispatching every accepted request through the composite
// router and the pipeline decorator chain.
type Server struct {
	cfg    Config
	server *http.Server
	h2     *http2.Server
	log    logctx.Logger

	mu     sync.Mutex
	closed bool
}

// New creates a Server from cfg. A nil cfg.Router is an invariant
// breach: a server with nothing to dispatch to is a caller bug, not a
// recoverable runtime condition.
func New(cfg Config) *Server {
	if cfg.Router == nil {
		errs.Fatal("server: Config.Router must not be nil")
	}
	if cfg.MaxConcurrentStreams == 0 {
		cfg.MaxConcurrentStreams = 250
	}
	if cfg.MaxReadFrameSize == 0 {
		cfg.MaxReadFrameSize = 1 << 20
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 120 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = logctx.Noop{}
	}

	s := &Server{cfg: cfg, log: cfg.Log}

	s.h2 = &http2.Server{
		MaxConcurrentStreams: cfg.MaxConcurrentStreams,
		MaxReadFrameSize:     cfg.MaxReadFrameSize,
		IdleTimeout:          cfg.IdleTimeout,
	}

	s.server = &http.Server{
		Addr:    cfg.Addr,
		Handler: s,
	}

	if cfg.TLSConfig != nil {
		tlsCfg := cfg.TLSConfig.Clone()
		tlsCfg.NextProtos = []string{"h2", "http/1.1"}
		s.server.TLSConfig = tlsCfg
	} else {
		s.server.Handler = h2c.NewHandler(s, s.h2)
	}

	return s
}

// ListenAndServe starts the server, blocking until it stops.
func (s *Server) ListenAndServe() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("server: already closed")
	}
	tlsConfigured := s.server.TLSConfig != nil
	s.mu.Unlock()

	if tlsConfigured {
		s.log.Infof("listening on %s (h2, TLS)", s.cfg.Addr)
		return s.server.ListenAndServeTLS("", "")
	}
	s.log.Infof("listening on %s (h2c, cleartext)", s.cfg.Addr)
	return s.server.ListenAndServe()
}

// Close shuts the server down immediately, dropping active connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.server.Close()
}

// Shutdown gracefully drains active connections before returning.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.server.Shutdown(ctx)
}

// ServeHTTP implements http.Handler: it routes the request, assembles
// the per-request Request value, and invokes the matched route's
// composed pipeline.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	routingCtx := buildRoutingContext(r)
	result := s.cfg.Router.Route(routingCtx)

	if result.Empty() {
		s.writeRoutingFailure(w, routingCtx)
		return
	}

	handler, ok := result.Route.Handler.(pipeline.Handler)
	if !ok {
		http.Error(w, "route has no usable handler", http.StatusInternalServerError)
		return
	}

	if err := pipeline.CheckContentLength(r.ContentLength, s.cfg.MaxRequestLength); err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	req := &Request{
		Method:      r.Method,
		Path:        result.Path,
		Query:       result.Query,
		PathParams:  result.PathParams,
		Headers:     r.Header,
		ContentType: r.Header.Get("Content-Type"),
		Body:        r.Body,
		raw:         r,
		rw:          w,
	}

	ctx := r.Context()
	if s.cfg.RequestTimeoutMillis > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.RequestTimeoutMillis)*time.Millisecond)
		defer cancel()
	}

	resp, err := handler(ctx, req)
	if err != nil {
		s.writeHandlerError(w, err)
		return
	}
	writeResponse(w, resp)
}

func (s *Server) writeRoutingFailure(w http.ResponseWriter, ctx *router.RoutingContext) {
	cause := ctx.DelayedCause()
	if cause == nil {
		http.NotFound(w, nil)
		return
	}
	http.Error(w, http.StatusText(cause.Status), cause.Status)
}

func (s *Server) writeHandlerError(w http.ResponseWriter, err error) {
	var status int
	switch e := err.(type) {
	case *errs.HTTPStatus:
		status = e.Status
	case *errs.HTTPResponse:
		if resp, ok := e.Response.(*Response); ok {
			writeResponse(w, resp)
			return
		}
		status = http.StatusInternalServerError
	case *errs.ContentTooLarge:
		status = http.StatusRequestEntityTooLarge
	default:
		status = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), status)
}

func writeResponse(w http.ResponseWriter, resp *Response) {
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if resp.Hijacked {
		return
	}
	for k, vs := range resp.Headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(resp.Body) > 0 {
		w.Write(resp.Body)
	}
}

// Handle registers handler at matcher for methods/consumes/produces,
// composing declarative decorators in the order: cfg.Decorators first
// (outermost), then perRoute, sorted by Order/ClassLevel per
// pipeline.Sort.
func (s *Server) Handle(matcher router.PathMatcher, methods []string, consumes, produces []router.MediaType, handler Handler, perRoute ...pipeline.Declaration) error {
	decls := make([]pipeline.Declaration, 0, len(s.cfg.Decorators)+len(perRoute))
	decls = append(decls, s.cfg.Decorators...)
	decls = append(decls, perRoute...)
	decls = pipeline.Sort(decls)

	base := adaptHandler(handler)
	if s.cfg.Fallback != nil {
		base = pipeline.WithFallback(base, s.cfg.Fallback, func(ctx context.Context, req pipeline.Request, cause error) {
			s.log.Warnf("handler fallback: %v", cause)
		})
	}
	composed := pipeline.Compose(decls, base)
	if s.cfg.Monitor != nil {
		composed = observability.Decorate(s.cfg.Monitor, matcher.Skeleton())(composed)
	}

	route := router.NewRoute(matcher, methods, consumes, produces, composed)
	return s.cfg.Router.Register(route)
}

func adaptHandler(h Handler) pipeline.Handler {
	return func(ctx context.Context, req pipeline.Request) (pipeline.Response, error) {
		r, ok := req.(*Request)
		if !ok {
			errs.Fatal("server: handler invoked with non-*Request value")
		}
		return h(ctx, r)
	}
}
