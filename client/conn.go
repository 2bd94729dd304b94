// Package client assembles the pool, session, event-loop, and content
// previewer packages into the single entry point callers invoke
// requests through: Client.Execute.
package client

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/searchktools/meridian/client/pool"
	"github.com/searchktools/meridian/client/session"
	"github.com/searchktools/meridian/endpoint"
	"github.com/searchktools/meridian/errs"
	"github.com/searchktools/meridian/logctx"
	"github.com/searchktools/meridian/stream"
)

// netChannel adapts a net.Conn to pool.Channel.
type netChannel struct {
	conn net.Conn
}

func (c *netChannel) Close() error { return c.conn.Close() }
func (c *netChannel) Active() bool { return c.conn != nil }

// netDialer is the default pool.Dialer: it opens a connection through
// the embedder-supplied dial function and drives the session through
// negotiation. TLS, ALPN and h2c upgrade byte-pushing are whatever the
// supplied dial and negotiate functions do; here the concern is solely
// the pool/session bookkeeping contract a Dialer must uphold.
type netDialer struct {
	dial               func(ctx context.Context, network, addr string) (net.Conn, error)
	negotiate          func(ctx context.Context, conn net.Conn, protocol session.Protocol) (session.Protocol, error)
	negotiationTimeout time.Duration
	maxRequestsSent    int64
	log                logctx.Logger
}

// NewNetDialer builds a pool.Dialer that opens TCP connections via
// dial and negotiates protocol via negotiate. Both are required; a nil
// dial or negotiate is an invariant breach by the embedder wiring this
// type up, since there is no meaningful fallback transport.
//
// maxRequestsSent overrides session.MaxRequestID as the request-id cap
// that triggers graceful drain on each dialed session; pass 0 to keep
// the default. Production callers wire
// config.Config.MaxRequestsSentPerSession through here; tests can pass
// a small cap to exercise drain without sending that many requests.
func NewNetDialer(
	dial func(ctx context.Context, network, addr string) (net.Conn, error),
	negotiate func(ctx context.Context, conn net.Conn, protocol session.Protocol) (session.Protocol, error),
	negotiationTimeout time.Duration,
	maxRequestsSent int64,
	log logctx.Logger,
) pool.Dialer {
	if dial == nil || negotiate == nil {
		errs.Fatal("client: NewNetDialer requires non-nil dial and negotiate funcs")
	}
	if log == nil {
		log = logctx.Noop{}
	}
	return &netDialer{
		dial:               dial,
		negotiate:          negotiate,
		negotiationTimeout: negotiationTimeout,
		maxRequestsSent:    maxRequestsSent,
		log:                log,
	}
}

func (d *netDialer) Dial(ctx context.Context, key endpoint.PoolKey, protocol session.Protocol) (*pool.Connection, error) {
	conn, err := d.dial(ctx, "tcp", key.String())
	if err != nil {
		return nil, err
	}

	sess := session.New()
	sess.SetMaxRequestsSent(d.maxRequestsSent)
	negCtx, cancel := context.WithTimeout(ctx, d.negotiationTimeout)
	sess.SetNegotiationCancel(cancel)

	negotiated, err := d.negotiate(negCtx, conn, protocol)
	cancel()
	if err != nil {
		sess.OnNegotiationFailed(err)
		conn.Close()
		return nil, &errs.SessionProtocolNegotiation{Expected: protocol.String(), Reason: err.Error()}
	}
	sess.OnNegotiated(negotiated)

	if negotiated.Multiplexed() && !sess.CanSendRequest() {
		// The peer's first SETTINGS capped concurrent streams at 0:
		// nothing can ever be dispatched on this connection.
		conn.Close()
		return nil, &errs.UnprocessedRequest{Cause: &errs.RefusedStream{}}
	}

	id := uuid.New().String()
	d.log.Debugf("negotiated %s for %s (conn %s)", negotiated, key, id)

	return &pool.Connection{
		ID:       id,
		Key:      key,
		Protocol: negotiated,
		Session:  sess,
		Channel:  &netChannel{conn: conn},
	}, nil
}

// ResponseHandle is what a caller gets back from Execute: the demand-driven
// body stream plus the means to learn the server's assigned request id
// (for cross-referencing logs/traces) and to cancel early.
type ResponseHandle struct {
	RequestID uint64
	Body      *stream.Stream
}

// Cancel aborts the in-flight response, releasing the session's
// in-flight-response slot and notifying any producer still pushing
// frames.
func (h *ResponseHandle) Cancel() {
	h.Body.Cancel()
}
