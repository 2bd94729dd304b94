package healthcheck

import (
	"context"
	"testing"
	"time"

	"github.com/searchktools/meridian/endpoint"
)

type fakeChecker struct{ closed bool }

func (f *fakeChecker) Close() error { f.closed = true; return nil }

// scriptedFactory drives each context's health with a caller-supplied
// score, and reports every produced Context back to the test so it can
// push further updates.
func scriptedFactory(initial map[string]float64, seen chan<- *Context) CheckerFactory {
	return func(c *Context) (Checker, error) {
		score, ok := initial[c.Endpoint(0).Host()]
		if !ok {
			score = 1
		}
		c.UpdateHealth(score)
		seen <- c
		return &fakeChecker{}, nil
	}
}

func namesOf(eps []endpoint.Endpoint) []string {
	out := make([]string, len(eps))
	for i, e := range eps {
		out[i] = e.Host()
	}
	return out
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestHealthCheckChurn(t *testing.T) {
	delegate := endpoint.NewDynamic()
	seen := make(chan *Context, 16)
	contexts := make(map[string]*Context)

	factory := scriptedFactory(nil, seen)
	ctx := context.Background()

	go delegate.Update([]endpoint.Endpoint{endpoint.New("a"), endpoint.New("b"), endpoint.New("c")})

	g, err := New(ctx, delegate, factory, 0)
	if err != nil {
		t.Fatalf("new group: %v", err)
	}
	drain := func(n int) {
		for i := 0; i < n; i++ {
			c := <-seen
			contexts[c.Endpoint(0).Host()] = c
		}
	}
	drain(3)

	waitFor(t, func() bool { return equalNames(namesOf(g.Endpoints()), []string{"a", "b", "c"}) })

	contexts["a"].UpdateHealth(0)
	waitFor(t, func() bool { return equalNames(namesOf(g.Endpoints()), []string{"b", "c"}) })

	delegate.Update([]endpoint.Endpoint{endpoint.New("a"), endpoint.New("c")})
	waitFor(t, func() bool { return equalNames(namesOf(g.Endpoints()), []string{"c"}) })

	delegate.Update([]endpoint.Endpoint{endpoint.New("a"), endpoint.New("c")})
	contexts["a"].UpdateHealth(1)
	waitFor(t, func() bool { return equalNames(namesOf(g.Endpoints()), []string{"a", "c"}) })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition never became true")
}

func TestContextDestroyIsIdempotent(t *testing.T) {
	c := newContext(endpoint.New("x"), func(endpoint.Endpoint, float64) {})
	fired := 0
	c.Schedule(func() { fired++ })
	c.Destroy()
	c.Destroy()
	if fired != 1 {
		t.Fatalf("expected exactly one teardown, got %d", fired)
	}
}

func TestDefaultBackoffNeverNegative(t *testing.T) {
	b := DefaultBackoff()
	for i := 0; i < 100; i++ {
		if b.NextDelayMillis(i) < 0 {
			t.Fatalf("expected non-negative delay")
		}
	}
}
