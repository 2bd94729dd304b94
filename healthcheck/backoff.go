package healthcheck

import (
	"math/rand"
	"time"

	"github.com/searchktools/meridian/errs"
)

// Backoff computes the delay before the next probe attempt.
// NextDelayMillis must never return a negative value; doing so is a
// contract breach in the caller-supplied implementation, not a
// recoverable wire condition.
type Backoff interface {
	NextDelayMillis(attempt int) int64
}

// FixedJitterBackoff is the default: a fixed base delay plus up to
// jitterFraction of additional random delay.
type FixedJitterBackoff struct {
	BaseMillis     int64
	JitterFraction float64
}

// NextDelayMillis ignores attempt: the default policy does not back
// off further on repeated failures.
func (b FixedJitterBackoff) NextDelayMillis(attempt int) int64 {
	jitter := int64(float64(b.BaseMillis) * b.JitterFraction * rand.Float64())
	return b.BaseMillis + jitter
}

// DefaultBackoff is fixed 3s with 20% jitter.
func DefaultBackoff() Backoff {
	return FixedJitterBackoff{BaseMillis: 3000, JitterFraction: 0.2}
}

// delay validates and converts a Backoff's output to a time.Duration,
// raising a fatal invariant breach on a negative delay.
func delay(b Backoff, attempt int) time.Duration {
	ms := b.NextDelayMillis(attempt)
	if ms < 0 {
		errs.Fatal("healthcheck: backoff returned negative delay %dms", ms)
	}
	return time.Duration(ms) * time.Millisecond
}
