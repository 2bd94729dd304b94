// Package session implements the per-connection state machine: request
// id allocation, in-flight response bookkeeping, protocol negotiation,
// SETTINGS handling, and graceful drain after the request cap is hit.
// The request-id-keyed pending map and atomic counter are the same
// shape the teacher's RPC client uses for its Call bookkeeping,
// generalized here to live inside one pooled connection instead of a
// single fire-and-forget client.
package session

import (
	"context"
	"sync"

	"github.com/searchktools/meridian/errs"
	"github.com/searchktools/meridian/stream"
)

// Protocol identifies the negotiated wire dialect.
type Protocol int

const (
	Unknown Protocol = iota
	H1
	H1C
	H2
	H2C
)

func (p Protocol) Multiplexed() bool { return p == H2 || p == H2C }

func (p Protocol) String() string {
	switch p {
	case H1:
		return "h1"
	case H1C:
		return "h1c"
	case H2:
		return "h2"
	case H2C:
		return "h2c"
	default:
		return "unknown"
	}
}

// State is the connection lifecycle the session drives.
type State int

const (
	Connecting State = iota
	Negotiating
	Active
	Draining
	Closed
)

// ResponseState tracks one in-flight response's progress.
type ResponseState int

const (
	WaitHeaders ResponseState = iota
	WaitBodyOrTrailers
	Done
)

// MaxRequestID is the default cap on session request ids (2^29):
// comfortably below the 32-bit overflow point without claiming any
// particular significance for the round number itself. A session drains
// and reconnects once this many requests have been sent on it; tests
// may lower the cap with SetMaxRequestsSent to exercise that drain
// without actually sending 2^29 requests.
const MaxRequestID = 1 << 29

// InFlightResponse is the decoder-side record for one dispatched
// request: where its bytes land, how long it may take, and how far
// along it is.
type InFlightResponse struct {
	RequestID        uint64
	ResponseStream   *stream.Stream
	MaxContentLength int64
	State            ResponseState

	cancelTimeout func()
}

// CancelTimeout cancels this response's scheduled timeout exactly
// once; later calls are no-ops, matching the "first winner" race
// between an explicit cancel and the timer firing.
func (r *InFlightResponse) CancelTimeout() {
	if r.cancelTimeout != nil {
		c := r.cancelTimeout
		r.cancelTimeout = nil
		c()
	}
}

// Session owns exactly one connection's multiplexing state.
type Session struct {
	mu sync.Mutex

	protocol               Protocol
	state                  State
	maxUnfinishedResponses int64
	requestsSent           uint64
	maxRequestsSent        uint64
	unfinishedResponses    int64
	disconnectWhenFinished bool

	inFlight map[uint64]*InFlightResponse

	readyOnce sync.Once
	ready     chan struct{}
	readyErr  error

	negotiationCancel func()
}

// New creates a session in the Connecting state.
func New() *Session {
	return &Session{
		state:                  Connecting,
		maxUnfinishedResponses: 1<<31 - 1,
		maxRequestsSent:        MaxRequestID,
		inFlight:               make(map[uint64]*InFlightResponse),
		ready:                  make(chan struct{}),
	}
}

// SetMaxRequestsSent overrides the request-id cap that triggers
// graceful drain, in place of the MaxRequestID default. Zero or
// negative values are ignored. Intended for tests exercising drain
// behavior without sending MaxRequestID requests; callers wire
// config.Config.MaxRequestsSentPerSession through here in production.
func (s *Session) SetMaxRequestsSent(max int64) {
	if max <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxRequestsSent = uint64(max)
}

// Ready blocks until negotiation completes (success or failure), or
// ctx is cancelled first.
func (s *Session) Ready(ctx context.Context) error {
	select {
	case <-s.ready:
		s.mu.Lock()
		err := s.readyErr
		s.mu.Unlock()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) resolveReady(err error) {
	s.readyOnce.Do(func() {
		s.readyErr = err
		close(s.ready)
	})
}

// CanSendRequest reports whether the session currently accepts new
// requests: it must be ACTIVE and not already marked to disconnect
// once its in-flight work drains.
func (s *Session) CanSendRequest() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Active && !s.disconnectWhenFinished &&
		s.unfinishedResponses < s.maxUnfinishedResponses
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Invoke allocates a request id and registers resp as its in-flight
// response. If resp's stream is already cancelled (the peer hung up
// before the request was even sent), the request is silently dropped
// and Invoke returns (0, false, nil): the caller should treat this as
// a successful no-op, not an error.
func (s *Session) Invoke(resp *stream.Stream, onTimeout func(id uint64)) (id uint64, dispatched bool, err error) {
	if resp.Cancelled() {
		return 0, false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Active {
		return 0, false, &errs.ClosedSession{Reason: "session not active"}
	}

	s.requestsSent++
	id = s.requestsSent
	if id >= s.maxRequestsSent {
		s.disconnectWhenFinished = true
	}

	ifr := &InFlightResponse{RequestID: id, ResponseStream: resp, State: WaitHeaders}
	if onTimeout != nil {
		ifr.cancelTimeout = func() { onTimeout(id) }
	}
	s.inFlight[id] = ifr
	s.unfinishedResponses++

	return id, true, nil
}

// Complete removes id's in-flight record, marking one fewer unfinished
// response. It is a no-op if id is unknown (already completed or
// never dispatched). drained reports whether this was the last
// in-flight response on a session already marked disconnectWhenFinished
// (by MarkDraining or by hitting its request-id cap in Invoke); the
// caller should tear the underlying channel down instead of returning
// it to the pool when drained is true.
func (s *Session) Complete(id uint64) (drained bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inFlight[id]; !ok {
		return false
	}
	delete(s.inFlight, id)
	s.unfinishedResponses--

	if s.disconnectWhenFinished && s.unfinishedResponses == 0 {
		s.state = Closed
		return true
	}
	return false
}

// InFlight returns the record for id, if any.
func (s *Session) InFlight(id uint64) (*InFlightResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.inFlight[id]
	return r, ok
}

// OnSettings applies an HTTP/2 SETTINGS frame's MAX_CONCURRENT_STREAMS
// value, clamped to the 32-bit signed range.
func (s *Session) OnSettings(maxConcurrentStreams uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := int64(maxConcurrentStreams)
	if v > 1<<31-1 {
		v = 1<<31 - 1
	}
	s.maxUnfinishedResponses = v
}

// OnNegotiated transitions Negotiating -> Active and resolves the
// ready promise, cancelling any pending negotiation timeout.
func (s *Session) OnNegotiated(protocol Protocol) {
	s.mu.Lock()
	s.protocol = protocol
	s.state = Active
	cancel := s.negotiationCancel
	s.negotiationCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.resolveReady(nil)
}

// OnNegotiationFailed fails the ready promise and transitions to
// Closed; callers are expected to close the underlying channel next.
func (s *Session) OnNegotiationFailed(cause error) {
	s.mu.Lock()
	s.state = Closed
	s.mu.Unlock()
	s.resolveReady(&errs.SessionProtocolNegotiation{Reason: cause.Error()})
}

// SetNegotiationCancel installs the cancel function for the
// negotiation-timeout task, invoked automatically by OnNegotiated.
func (s *Session) SetNegotiationCancel(cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.negotiationCancel = cancel
}

// OnChannelInactive fails every in-flight response with ClosedSession,
// fails the ready promise if still pending, and cancels the
// negotiation timeout. Returns the list of response streams that need
// a ClosedSession error delivered to their consumer.
func (s *Session) OnChannelInactive() []*stream.Stream {
	s.mu.Lock()
	s.state = Closed
	cancel := s.negotiationCancel
	s.negotiationCancel = nil
	streams := make([]*stream.Stream, 0, len(s.inFlight))
	for id, ifr := range s.inFlight {
		streams = append(streams, ifr.ResponseStream)
		delete(s.inFlight, id)
	}
	s.unfinishedResponses = 0
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.resolveReady(&errs.ClosedSession{Reason: "channel inactive"})

	for _, st := range streams {
		st.CloseWithError(&errs.ClosedSession{Reason: "channel inactive"})
	}
	return streams
}

// MarkDraining transitions the session so it stops accepting new
// requests once any currently in-flight work completes.
func (s *Session) MarkDraining() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Active {
		s.state = Draining
	}
	s.disconnectWhenFinished = true
}

// AtCapacity reports whether the session has as many unfinished
// responses as its negotiated (or default) stream cap allows, meaning
// an HTTP/2 connection should be deprioritized rather than handed out
// for a new multiplexed request.
func (s *Session) AtCapacity() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unfinishedResponses >= s.maxUnfinishedResponses
}

// UnfinishedResponses reports the current in-flight count.
func (s *Session) UnfinishedResponses() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unfinishedResponses
}

// Protocol returns the negotiated protocol, or Unknown before
// negotiation completes.
func (s *Session) Protocol() Protocol {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocol
}
