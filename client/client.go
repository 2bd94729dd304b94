package client

import (
	"context"

	"github.com/searchktools/meridian/client/eventloop"
	"github.com/searchktools/meridian/client/pool"
	"github.com/searchktools/meridian/client/session"
	"github.com/searchktools/meridian/codec"
	"github.com/searchktools/meridian/endpoint"
	"github.com/searchktools/meridian/errs"
	"github.com/searchktools/meridian/logctx"
	"github.com/searchktools/meridian/pipeline"
	"github.com/searchktools/meridian/stream"
)

// Options configures a Client. Zero values fall back to the defaults
// in the connection-options table: unlimited response length, no
// negotiation override, one worker per endpoint.
type Options struct {
	DefaultPort           int
	ResponseTimeoutMillis int
	WriteTimeoutMillis    int
	MaxResponseLength     int64
	Workers               int
	Previewer             *codec.Registry
	Log                   logctx.Logger
}

// Request describes one outbound call. Body is optional: a nil Body
// means a request with no payload (e.g. GET).
type Request struct {
	Endpoint endpoint.Endpoint
	Scheme   pool.Scheme
	Method   string
	Path     string
	Headers  map[string]string
	Body     *stream.Stream
}

// Client composes the connection pool, per-endpoint event-loop
// scheduler, and content previewer registry into the single call
// surface callers use to issue requests.
type Client struct {
	pool      *pool.Pool
	scheduler *eventloop.Scheduler
	previewer *codec.Registry
	opts      Options
	log       logctx.Logger
}

// New creates a Client backed by dialer.
func New(dialer pool.Dialer, opts Options) *Client {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Previewer == nil {
		opts.Previewer = defaultPreviewRegistry()
	}
	if opts.Log == nil {
		opts.Log = logctx.Noop{}
	}
	return &Client{
		pool:      pool.New(dialer),
		scheduler: eventloop.New(opts.Workers),
		previewer: opts.Previewer,
		opts:      opts,
		log:       opts.Log,
	}
}

func defaultPreviewRegistry() *codec.Registry {
	r := codec.NewRegistry()
	r.Register("application/json", codec.JSONPreviewer{})
	r.Register("text/", codec.TextPreviewer{})
	r.Register("application/x-protobuf", codec.ProtobufPreviewer{})
	r.Register("application/grpc+proto", codec.ProtobufPreviewer{})
	return r
}

// PreviewRequestBody renders a bounded preview of a request/response
// body for logging, dispatching on contentType via the Client's
// content previewer registry.
func (c *Client) PreviewRequestBody(contentType string, data []byte, maxLen int) string {
	return c.previewer.Preview(contentType, data, maxLen)
}

// Execute acquires a connection for req's endpoint, invokes the
// session, and returns a handle to the demand-driven response body.
// The returned handle's Body must eventually be drained (or
// Cancelled) so the underlying connection is released back to the
// pool in the H1/H1C case.
func (c *Client) Execute(ctx context.Context, req Request) (*ResponseHandle, error) {
	key := endpoint.NewPoolKey(req.Endpoint, c.opts.DefaultPort)
	schedKey := key.String()

	entry := c.scheduler.Acquire(schedKey)
	release := func() { c.scheduler.Release(schedKey, entry) }

	conn, ok := c.pool.AcquireNow(req.Scheme, key)
	if !ok {
		var err error
		conn, err = c.pool.AcquireLater(ctx, req.Scheme, key)
		if err != nil {
			release()
			return nil, err
		}
	}

	if !conn.Session.CanSendRequest() {
		release()
		return nil, &errs.RefusedStream{}
	}

	respStream := stream.New(stream.NewController())

	timeout := pipeline.NewTimeout(c.opts.ResponseTimeoutMillis, func() {
		respStream.CloseWithError(&errs.ResponseTimeout{})
	})

	id, dispatched, err := conn.Session.Invoke(respStream, func(uint64) {
		timeout.Cancel()
	})
	if err != nil {
		release()
		return nil, err
	}
	if !dispatched {
		release()
		return nil, &errs.ClosedPublisher{}
	}

	timeout.Start()

	respStream.OnClose(func(error) {
		timeout.Cancel()
		drained := conn.Session.Complete(id)
		if drained {
			c.log.Debugf("session on %s drained after request %d, closing channel", key, id)
			conn.Channel.Close()
			c.pool.Forget(conn)
		} else {
			c.releaseConnection(conn)
		}
		release()
	})

	c.log.Debugf("dispatched request %d on %s via %s", id, key, conn.Protocol)

	return &ResponseHandle{RequestID: id, Body: respStream}, nil
}

func (c *Client) releaseConnection(conn *pool.Connection) {
	if !conn.Channel.Active() {
		c.pool.Forget(conn)
		return
	}
	c.pool.Release(conn)
}

// Close closes every live pooled connection.
func (c *Client) Close() error {
	return c.pool.Close()
}
