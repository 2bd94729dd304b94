package pipeline

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimeoutFiresAfterDuration(t *testing.T) {
	var fired atomic.Bool
	to := NewTimeout(20, func() { fired.Store(true) })
	to.Start()

	time.Sleep(100 * time.Millisecond)
	if !fired.Load() {
		t.Fatalf("expected timeout to fire")
	}
}

func TestCancelWinsBeforeFire(t *testing.T) {
	var fired atomic.Bool
	to := NewTimeout(200, func() { fired.Store(true) })
	to.Start()

	if !to.Cancel() {
		t.Fatalf("expected cancel to win the race")
	}
	time.Sleep(250 * time.Millisecond)
	if fired.Load() {
		t.Fatalf("expected cancelled timer to never fire")
	}
}

func TestZeroMillisDisablesTimeout(t *testing.T) {
	var fired atomic.Bool
	to := NewTimeout(0, func() { fired.Store(true) })
	to.Start()
	time.Sleep(20 * time.Millisecond)
	if fired.Load() {
		t.Fatalf("expected disabled timeout to never fire")
	}
}

func TestCheckContentLength(t *testing.T) {
	if err := CheckContentLength(100, 0); err != nil {
		t.Fatalf("expected unlimited (max=0) to always pass, got %v", err)
	}
	if err := CheckContentLength(100, 50); err == nil {
		t.Fatalf("expected content-too-large error")
	}
	if err := CheckContentLength(10, 50); err != nil {
		t.Fatalf("expected under-limit to pass, got %v", err)
	}
}
