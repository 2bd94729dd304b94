package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/searchktools/meridian/client/session"
	"github.com/searchktools/meridian/endpoint"
	"github.com/searchktools/meridian/errs"
)

type fakeChannel struct{ active atomic.Bool }

func newFakeChannel() *fakeChannel {
	c := &fakeChannel{}
	c.active.Store(true)
	return c
}
func (c *fakeChannel) Close() error { c.active.Store(false); return nil }
func (c *fakeChannel) Active() bool { return c.active.Load() }

type fakeDialer struct {
	mu      sync.Mutex
	dials   int
	makeErr bool
}

func (d *fakeDialer) Dial(ctx context.Context, key endpoint.PoolKey, proto session.Protocol) (*Connection, error) {
	d.mu.Lock()
	d.dials++
	d.mu.Unlock()

	s := session.New()
	s.OnNegotiated(proto)
	return &Connection{Key: key, Protocol: proto, Session: s, Channel: newFakeChannel()}, nil
}

func testKey() endpoint.PoolKey {
	return endpoint.NewPoolKey(endpoint.New("example.com").WithPort(443), 443)
}

func TestAcquireReuseHTTP2(t *testing.T) {
	dialer := &fakeDialer{}
	p := New(dialer)
	key := testKey()

	var first *Connection
	for i := 0; i < 3; i++ {
		conn, ok := p.AcquireNow(SchemeH2, key)
		if !ok {
			c, err := p.AcquireLater(context.Background(), SchemeH2, key)
			if err != nil {
				t.Fatalf("acquire %d: %v", i, err)
			}
			conn = c
		}
		if first == nil {
			first = conn
		} else if conn != first {
			t.Fatalf("expected the same H2 connection to be reused on call %d", i)
		}
		p.Release(conn)
	}

	if dialer.dials != 1 {
		t.Fatalf("expected exactly one connect, got %d", dialer.dials)
	}
}

func TestAcquireHTTP1TwoConnections(t *testing.T) {
	dialer := &fakeDialer{}
	p := New(dialer)
	key := testKey()

	c1, err := p.AcquireLater(context.Background(), SchemeH1C, key)
	if err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	c2, err := p.AcquireLater(context.Background(), SchemeH1C, key)
	if err != nil {
		t.Fatalf("acquire 2: %v", err)
	}
	if c1 == c2 {
		t.Fatalf("expected two distinct H1 connections")
	}

	p.Release(c1)
	p.Release(c2)

	if got := p.IdleCount(session.H1C, key); got != 2 {
		t.Fatalf("expected 2 idle connections after release, got %d", got)
	}

	c3, ok := p.AcquireNow(SchemeH1C, key)
	if !ok {
		t.Fatalf("expected acquireNow to find an idle connection")
	}
	if got := p.IdleCount(session.H1C, key); got != 1 {
		t.Fatalf("expected 1 idle connection remaining, got %d", got)
	}
	_ = c3
	if dialer.dials != 2 {
		t.Fatalf("expected exactly two connects, got %d", dialer.dials)
	}
}

type zeroCapDialer struct{ conn *Connection }

func (d *zeroCapDialer) Dial(ctx context.Context, key endpoint.PoolKey, proto session.Protocol) (*Connection, error) {
	s := session.New()
	s.OnNegotiated(proto)
	s.OnSettings(0)
	d.conn = &Connection{Key: key, Protocol: proto, Session: s, Channel: newFakeChannel()}
	return d.conn, nil
}

// TestAcquireFailsWhenPeerCapsStreamsAtZero exercises the connect-time
// rejection: a multiplexed connection whose first SETTINGS caps
// concurrent streams at 0 must never be published to the idle deque,
// and the acquisition must fail with RefusedStream wrapped in
// UnprocessedRequest instead.
func TestAcquireFailsWhenPeerCapsStreamsAtZero(t *testing.T) {
	dialer := &zeroCapDialer{}
	p := New(dialer)
	key := testKey()

	conn, err := p.AcquireLater(context.Background(), SchemeH2, key)
	if conn != nil {
		t.Fatalf("expected no connection, got %+v", conn)
	}
	var unprocessed *errs.UnprocessedRequest
	if !errors.As(err, &unprocessed) {
		t.Fatalf("expected *errs.UnprocessedRequest, got %T (%v)", err, err)
	}
	var refused *errs.RefusedStream
	if !errors.As(unprocessed.Cause, &refused) {
		t.Fatalf("expected wrapped *errs.RefusedStream, got %T (%v)", unprocessed.Cause, unprocessed.Cause)
	}

	if got := p.IdleCount(session.H2, key); got != 0 {
		t.Fatalf("expected no idle connections published, got %d", got)
	}
	if dialer.conn.Channel.Active() {
		t.Fatalf("expected the zero-capacity channel to be closed")
	}
}

func TestCloseClosesLiveChannels(t *testing.T) {
	dialer := &fakeDialer{}
	p := New(dialer)
	key := testKey()

	conn, err := p.AcquireLater(context.Background(), SchemeH2, key)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if conn.Channel.Active() {
		t.Fatalf("expected channel to be closed")
	}
}
