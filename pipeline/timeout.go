package pipeline

import (
	"sync"
	"time"

	"github.com/searchktools/meridian/errs"
)

// Timeout is a cancellable one-shot timer bound to a single request's
// response. The timer firing and Cancel race; whichever reaches the shared
// "fired" flag first wins, matching the close-path-takes-first-winner
// rule for response timeouts.
type Timeout struct {
	mu      sync.Mutex
	timer   *time.Timer
	millis  int64
	fired   bool
	onFire  func()
	started bool
}

// NewTimeout creates a Timeout for the given millisecond duration.
// millis <= 0 disables the timeout entirely: Start becomes a no-op and
// Cancel always "wins".
func NewTimeout(millis int64, onFire func()) *Timeout {
	return &Timeout{millis: millis, onFire: onFire}
}

// Start arms the timer. Call once, typically when the first bytes of
// the response become available.
func (t *Timeout) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started || t.millis <= 0 {
		return
	}
	t.started = true
	t.timer = time.AfterFunc(time.Duration(t.millis)*time.Millisecond, t.fire)
}

func (t *Timeout) fire() {
	t.mu.Lock()
	if t.fired {
		t.mu.Unlock()
		return
	}
	t.fired = true
	onFire := t.onFire
	t.mu.Unlock()
	if onFire != nil {
		onFire()
	}
}

// Cancel stops the timer if it has not already fired. Returns true if
// this call won the race (the timer had not fired yet).
func (t *Timeout) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired {
		return false
	}
	t.fired = true
	if t.timer != nil {
		t.timer.Stop()
	}
	return true
}

// Reschedule changes the timeout's duration and restarts it if already
// started. Setting millis to 0 disables the timeout and stops any
// running timer. Mirrors the server-side setRequestTimeoutMillis
// contract: 0 disables, any other value reschedules from now.
func (t *Timeout) Reschedule(millis int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.millis = millis
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if millis <= 0 || t.fired {
		return
	}
	if t.started {
		t.timer = time.AfterFunc(time.Duration(millis)*time.Millisecond, t.fire)
	}
}

// CheckContentLength returns a *errs.ContentTooLarge if received
// exceeds max. max <= 0 means unlimited.
func CheckContentLength(received, max int64) error {
	if max <= 0 {
		return nil
	}
	if received > max {
		return &errs.ContentTooLarge{Limit: max, Received: received}
	}
	return nil
}
