// Package stream implements the pull-based, demand-driven body streams
// used for both request and response payloads. There is no external
// Reactive Streams dependency: a consumer explicitly requests frames,
// and a bounded byte counter at the producer/consumer boundary is the
// only backpressure signal.
package stream

import (
	"context"
	"sync"

	"github.com/searchktools/meridian/errs"
)

// Frame is one chunk of a body stream. The final frame of a response
// may carry Trailers instead of (or in addition to) Data.
type Frame struct {
	Data     []byte
	Trailers map[string]string
}

// Controller is the inbound-traffic backpressure primitive: a signed
// byte counter that increments on writes and decrements on reads. The
// session consults Suspended to decide whether to keep requesting
// demand from the transport.
type Controller struct {
	mu             sync.Mutex
	bytes          int64
	highWatermark  int64
	lowWatermark   int64
	suspended      bool
}

// DefaultHighWatermark is the buffered-byte threshold above which a
// session stops requesting more demand from the transport.
const DefaultHighWatermark = 64 * 1024

// DefaultLowWatermark is the buffered-byte threshold below which a
// suspended session resumes requesting demand.
const DefaultLowWatermark = 16 * 1024

// NewController creates a Controller with the default watermarks.
func NewController() *Controller {
	return &Controller{highWatermark: DefaultHighWatermark, lowWatermark: DefaultLowWatermark}
}

// NewControllerWithWatermarks creates a Controller with explicit
// watermarks. Panics if low > high: that is a misconfiguration, not a
// wire-facing condition.
func NewControllerWithWatermarks(low, high int64) *Controller {
	if low > high {
		errs.Fatal("stream: low watermark %d exceeds high watermark %d", low, high)
	}
	return &Controller{highWatermark: high, lowWatermark: low}
}

// OnBytesWritten records that n bytes were buffered for the consumer.
func (c *Controller) OnBytesWritten(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bytes += int64(n)
	if c.bytes > c.highWatermark {
		c.suspended = true
	}
}

// OnBytesRead records that n bytes were delivered to the consumer.
func (c *Controller) OnBytesRead(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bytes -= int64(n)
	if c.bytes < 0 {
		c.bytes = 0
	}
	if c.bytes < c.lowWatermark {
		c.suspended = false
	}
}

// Suspended reports whether the transport should stop requesting more
// demand: the buffered byte count has crossed the high watermark and
// has not yet fallen back below the low watermark.
func (c *Controller) Suspended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suspended
}

// Buffered returns the current buffered byte count.
func (c *Controller) Buffered() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Stream is a pull-based, demand-driven sequence of Frames. A producer
// calls Push for every frame it decodes off the wire; a consumer calls
// RequestN to signal how many frames it is ready to receive and Next
// to pull the next one. Push blocks (respecting ctx) until demand is
// available or the stream is closed.
type Stream struct {
	ctrl *Controller

	mu        sync.Mutex
	cond      *sync.Cond
	buf       []Frame
	demand    int64
	closed    bool
	err       error
	cancelled bool
	onClose   []func(error)
}

// New creates a Stream backed by ctrl. ctrl may be nil, in which case
// no backpressure accounting is performed (useful for small, bounded
// control-plane bodies).
func New(ctrl *Controller) *Stream {
	s := &Stream{ctrl: ctrl}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// RequestN increases the outstanding demand by n, waking any producer
// blocked in Push.
func (s *Stream) RequestN(n int64) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.demand += n
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Push delivers f to the stream, blocking until the consumer has
// outstanding demand, the stream is closed, or ctx is done. It returns
// ClosedPublisher if the consumer has cancelled, or ctx.Err() on
// cancellation.
func (s *Stream) Push(ctx context.Context, f Frame) error {
	done := make(chan struct{})
	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				s.mu.Lock()
				s.cond.Broadcast()
				s.mu.Unlock()
			case <-done:
			}
		}()
		defer close(done)
	}

	s.mu.Lock()
	for s.demand <= 0 && !s.closed && !s.cancelled {
		if ctx != nil {
			select {
			case <-ctx.Done():
				s.mu.Unlock()
				return ctx.Err()
			default:
			}
		}
		s.cond.Wait()
	}
	if s.cancelled {
		s.mu.Unlock()
		return &errs.ClosedPublisher{}
	}
	if s.closed {
		s.mu.Unlock()
		return &errs.ClosedPublisher{}
	}
	s.demand--
	s.buf = append(s.buf, f)
	s.cond.Broadcast()
	s.mu.Unlock()

	if s.ctrl != nil {
		s.ctrl.OnBytesWritten(len(f.Data))
	}
	return nil
}

// Next pulls the next available frame, blocking until one arrives, the
// stream completes, or ctx is done. ok is false once the stream has
// been fully drained after CloseWithError(nil).
func (s *Stream) Next(ctx context.Context) (f Frame, ok bool, err error) {
	done := make(chan struct{})
	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				s.mu.Lock()
				s.cond.Broadcast()
				s.mu.Unlock()
			case <-done:
			}
		}()
		defer close(done)
	}

	s.mu.Lock()
	for len(s.buf) == 0 && !s.closed {
		if ctx != nil {
			select {
			case <-ctx.Done():
				s.mu.Unlock()
				return Frame{}, false, ctx.Err()
			default:
			}
		}
		s.cond.Wait()
	}

	if len(s.buf) > 0 {
		f = s.buf[0]
		s.buf = s.buf[1:]
		s.mu.Unlock()
		if s.ctrl != nil {
			s.ctrl.OnBytesRead(len(f.Data))
		}
		return f, true, nil
	}

	// Buffer drained and closed.
	err = s.err
	s.mu.Unlock()
	return Frame{}, false, err
}

// CloseWithError marks the stream complete. err may be nil for a
// normal end-of-stream. Closing an already-closed stream is a no-op.
func (s *Stream) CloseWithError(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	callbacks := s.onClose
	s.onClose = nil
	s.cond.Broadcast()
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(err)
	}
}

// OnClose registers fn to run once, after the stream closes (whether
// normally or with an error). If the stream is already closed, fn runs
// synchronously before OnClose returns. Callers use this to release
// connection-pool resources exactly when a response body is fully
// drained, without racing the consumer's own Next calls.
func (s *Stream) OnClose(fn func(error)) {
	s.mu.Lock()
	if s.closed {
		err := s.err
		s.mu.Unlock()
		fn(err)
		return
	}
	s.onClose = append(s.onClose, fn)
	s.mu.Unlock()
}

// Cancel is called by the consumer to drop the stream before it
// completes. Any producer currently blocked in Push observes
// ClosedPublisher; the stream is equivalent to being closed.
func (s *Stream) Cancel() {
	s.mu.Lock()
	if s.cancelled || s.closed {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	callbacks := s.onClose
	s.onClose = nil
	s.cond.Broadcast()
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(&errs.ClosedPublisher{})
	}
}

// Cancelled reports whether the consumer cancelled the stream.
func (s *Stream) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}
