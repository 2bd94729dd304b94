// Package pool implements the process-wide connection pool: per-(protocol,
// PoolKey) idle connection caches, single-flight pending acquisitions,
// and the acquire/release/death/close lifecycle. All pool state is
// owned by one logical worker; the Pool does not itself enforce that
// invariant (there is no transport event loop in this tree to pin it
// to) but every mutation path is funneled through the same mutex so a
// single worker goroutine can serialize access exactly the way the
// connection's real event loop would.
package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/searchktools/meridian/client/session"
	"github.com/searchktools/meridian/endpoint"
	"github.com/searchktools/meridian/errs"
)

// Scheme is the caller-desired protocol preference, before the pool
// resolves it down to one concrete session.Protocol.
type Scheme int

const (
	SchemeHTTP Scheme = iota
	SchemeHTTPS
	SchemeH1
	SchemeH1C
	SchemeH2
	SchemeH2C
)

func candidatesFor(s Scheme) []session.Protocol {
	switch s {
	case SchemeHTTP:
		return []session.Protocol{session.H2C, session.H1C}
	case SchemeHTTPS:
		return []session.Protocol{session.H2, session.H1}
	case SchemeH1:
		return []session.Protocol{session.H1}
	case SchemeH1C:
		return []session.Protocol{session.H1C}
	case SchemeH2:
		return []session.Protocol{session.H2}
	case SchemeH2C:
		return []session.Protocol{session.H2C}
	default:
		return nil
	}
}

// Channel is the minimal transport handle a Connection wraps. A real
// implementation backs this with a net.Conn or an HTTP/2 client
// connection; tests use a fake.
type Channel interface {
	Close() error
	Active() bool
}

// Connection is one pooled, negotiated connection. ID is a
// caller-assigned correlation id (a Dialer is expected to fill it with
// something unique, e.g. a uuid) used only for logging/tracing; the
// pool itself never inspects it.
type Connection struct {
	ID       string
	Key      endpoint.PoolKey
	Protocol session.Protocol
	Session  *session.Session
	Channel  Channel
}

// Healthy reports whether c may still be handed out: its channel is
// active and its session reports it can accept requests.
func (c *Connection) Healthy() bool {
	return c.Channel != nil && c.Channel.Active() && c.Session.CanSendRequest()
}

// Dialer connects a fresh Connection for key at the given protocol.
// Implementations perform the actual transport connect plus the
// negotiation handshake and must return a Connection whose Session has
// already reached the Active state (or an error).
type Dialer interface {
	Dial(ctx context.Context, key endpoint.PoolKey, protocol session.Protocol) (*Connection, error)
}

type pendingAcquire struct {
	done chan struct{}
	conn *Connection
	err  error
}

// Pool is the per-protocol × PoolKey idle cache plus single-flight
// pending acquisitions.
type Pool struct {
	mu sync.Mutex

	idle    map[session.Protocol]map[endpoint.PoolKey][]*Connection
	pending map[session.Protocol]map[endpoint.PoolKey]*pendingAcquire
	live    map[*Connection]struct{}

	// negotiationFailed remembers (key, scheme) pairs a previous
	// connect attempt already proved unsupported, so subsequent calls
	// fail fast instead of repeating a doomed handshake.
	negotiationFailed map[string]struct{}

	dialer Dialer
	closed bool
}

// New creates an empty Pool backed by dialer.
func New(dialer Dialer) *Pool {
	return &Pool{
		idle:              make(map[session.Protocol]map[endpoint.PoolKey][]*Connection),
		pending:           make(map[session.Protocol]map[endpoint.PoolKey]*pendingAcquire),
		live:              make(map[*Connection]struct{}),
		negotiationFailed: make(map[string]struct{}),
		dialer:            dialer,
	}
}

func negotiationCacheKey(scheme Scheme, key endpoint.PoolKey) string {
	return fmt.Sprintf("%d|%s", scheme, key.String())
}

// AcquireNow attempts a synchronous, best-effort acquisition: an idle,
// healthy connection for one of scheme's candidate protocols. ok is
// false if no such connection exists right now (the caller should fall
// back to AcquireLater).
func (p *Pool) AcquireNow(scheme Scheme, key endpoint.PoolKey) (conn *Connection, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, proto := range candidatesFor(scheme) {
		if conn, ok := p.tryProtocolLocked(proto, key); ok {
			return conn, true
		}
	}
	return nil, false
}

func (p *Pool) tryProtocolLocked(proto session.Protocol, key endpoint.PoolKey) (*Connection, bool) {
	byKey := p.idle[proto]
	if byKey == nil {
		return nil, false
	}
	deque := byKey[key]

	if proto.Multiplexed() {
		n := len(deque)
		for i := 0; i < n; i++ {
			if len(deque) == 0 {
				break
			}
			cand := deque[len(deque)-1]
			if !cand.Healthy() {
				deque = deque[:len(deque)-1]
				continue
			}
			if cand.Session.AtCapacity() {
				deque = deque[:len(deque)-1]
				deque = append([]*Connection{cand}, deque...)
				continue
			}
			byKey[key] = deque
			return cand, true
		}
		byKey[key] = deque
		return nil, false
	}

	for len(deque) > 0 {
		cand := deque[len(deque)-1]
		deque = deque[:len(deque)-1]
		if cand.Healthy() {
			byKey[key] = deque
			return cand, true
		}
		delete(p.live, cand)
	}
	byKey[key] = deque
	return nil, false
}

// AcquireLater performs an async acquisition: it piggybacks on an
// in-flight connect for (scheme, key) when one exists and the protocol
// being negotiated allows it, otherwise starts a new connect.
func (p *Pool) AcquireLater(ctx context.Context, scheme Scheme, key endpoint.PoolKey) (*Connection, error) {
	if p.closed {
		return nil, &errs.UnprocessedRequest{Cause: fmt.Errorf("pool closed")}
	}

	cacheKey := negotiationCacheKey(scheme, key)
	p.mu.Lock()
	if _, known := p.negotiationFailed[cacheKey]; known {
		p.mu.Unlock()
		return nil, &errs.UnprocessedRequest{Cause: fmt.Errorf("negotiation previously failed for %s", key)}
	}

	protocols := candidatesFor(scheme)
	primary := protocols[0]

	// HTTP/1-like protocols are never shared: a connection is loaned
	// to exactly one caller, so there is nothing useful to piggyback
	// on. Every H1/H1C acquireLater starts its own connect.
	if primary == session.H1 || primary == session.H1C {
		p.mu.Unlock()
		return p.startConnect(ctx, scheme, key, cacheKey, primary)
	}

	if byProto := p.pending[primary]; byProto != nil {
		if pa := byProto[key]; pa != nil {
			p.mu.Unlock()
			<-pa.done
			if pa.err == nil && pa.conn.Protocol.Multiplexed() {
				return pa.conn, nil
			}
			if conn, ok := p.AcquireNow(scheme, key); ok {
				return conn, nil
			}
			return p.startConnect(ctx, scheme, key, cacheKey, primary)
		}
	}

	p.mu.Unlock()
	return p.startConnect(ctx, scheme, key, cacheKey, primary)
}

// startConnect registers a fresh pending acquisition for (primary,
// key) and runs the dial, replacing whatever was previously recorded
// (a prior pending acquisition must already have been consumed or
// have failed by the time a caller reaches here).
func (p *Pool) startConnect(ctx context.Context, scheme Scheme, key endpoint.PoolKey, cacheKey string, primary session.Protocol) (*Connection, error) {
	pa := &pendingAcquire{done: make(chan struct{})}
	p.mu.Lock()
	byProto, ok := p.pending[primary]
	if !ok {
		byProto = make(map[endpoint.PoolKey]*pendingAcquire)
		p.pending[primary] = byProto
	}
	byProto[key] = pa
	p.mu.Unlock()
	return p.runConnect(ctx, scheme, key, cacheKey, primary, pa)
}

func (p *Pool) runConnect(ctx context.Context, scheme Scheme, key endpoint.PoolKey, cacheKey string, primary session.Protocol, pa *pendingAcquire) (*Connection, error) {
	conn, err := p.dialer.Dial(ctx, key, primary)

	p.mu.Lock()
	delete(p.pending[primary], key)

	if err != nil {
		p.negotiationFailed[cacheKey] = struct{}{}
		pa.err = &errs.UnprocessedRequest{Cause: err}
		close(pa.done)
		p.mu.Unlock()
		return nil, pa.err
	}

	if conn.Protocol.Multiplexed() && !conn.Session.CanSendRequest() {
		// The peer's first SETTINGS capped concurrent streams at 0:
		// fail this acquisition instead of publishing a connection
		// nothing can ever be dispatched on.
		pa.err = &errs.UnprocessedRequest{Cause: &errs.RefusedStream{}}
		close(pa.done)
		p.mu.Unlock()
		if conn.Channel != nil {
			conn.Channel.Close()
		}
		return nil, pa.err
	}

	p.live[conn] = struct{}{}
	if conn.Protocol.Multiplexed() {
		byKey, ok := p.idle[conn.Protocol]
		if !ok {
			byKey = make(map[endpoint.PoolKey][]*Connection)
			p.idle[conn.Protocol] = byKey
		}
		byKey[key] = append(byKey[key], conn)
	}
	pa.conn = conn
	close(pa.done)
	p.mu.Unlock()

	return conn, nil
}

// Release returns conn to the idle cache. H2/H2C releases are no-ops:
// the connection never left the idle deque. H1/H1C releases re-check
// health and append to the deque's tail (most-recently-released),
// dropping the connection instead if it is no longer healthy.
func (p *Pool) Release(conn *Connection) {
	if conn.Protocol.Multiplexed() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !conn.Healthy() {
		delete(p.live, conn)
		return
	}
	byKey, ok := p.idle[conn.Protocol]
	if !ok {
		byKey = make(map[endpoint.PoolKey][]*Connection)
		p.idle[conn.Protocol] = byKey
	}
	byKey[conn.Key] = append(byKey[conn.Key], conn)
}

// Forget removes conn from the live and idle sets after its channel
// has closed out-of-band (connection death). Any caller still holding
// an in-flight request on conn observes ClosedSession from the
// session's own OnChannelInactive handling; Forget only updates pool
// bookkeeping.
func (p *Pool) Forget(conn *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.live, conn)
	if byKey, ok := p.idle[conn.Protocol]; ok {
		deque := byKey[conn.Key]
		for i, c := range deque {
			if c == conn {
				byKey[conn.Key] = append(deque[:i], deque[i+1:]...)
				break
			}
		}
	}
}

// Close blocks new acquisitions and closes every live channel.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	live := make([]*Connection, 0, len(p.live))
	for c := range p.live {
		live = append(live, c)
	}
	p.live = make(map[*Connection]struct{})
	p.idle = make(map[session.Protocol]map[endpoint.PoolKey][]*Connection)
	p.mu.Unlock()

	var firstErr error
	for _, c := range live {
		if c.Channel == nil {
			continue
		}
		if err := c.Channel.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LiveCount reports how many connections are currently tracked as
// live, for tests.
func (p *Pool) LiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

// IdleCount reports how many idle connections are cached for
// (protocol, key), for tests.
func (p *Pool) IdleCount(proto session.Protocol, key endpoint.PoolKey) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if byKey, ok := p.idle[proto]; ok {
		return len(byKey[key])
	}
	return 0
}
