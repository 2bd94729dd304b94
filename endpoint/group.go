package endpoint

import (
	"context"
	"sync"
)

// Listener is notified after every mutation of a Group's membership.
// It receives a snapshot of the new ordered endpoint list.
type Listener func(endpoints []Endpoint)

// Group is a dynamic ordered set of Endpoints with change notification.
// Endpoints returns a consistent snapshot; listeners observe mutations
// strictly after they take effect.
type Group interface {
	// Endpoints returns the current ordered snapshot.
	Endpoints() []Endpoint
	// AddListener registers l to be called after every mutation. l is
	// also invoked once immediately with the current snapshot.
	AddListener(l Listener)
	// Ready blocks until the group's first snapshot is available, or
	// ctx is done.
	Ready(ctx context.Context) error
	// Close terminates the group. Closing a group twice is a no-op
	// that yields the same observable state as the first close.
	Close()
}

// Static returns a Group that never changes and is immediately ready.
func Static(endpoints ...Endpoint) Group {
	cp := make([]Endpoint, len(endpoints))
	copy(cp, endpoints)
	return &staticGroup{endpoints: cp}
}

type staticGroup struct{ endpoints []Endpoint }

func (g *staticGroup) Endpoints() []Endpoint { return g.endpoints }
func (g *staticGroup) AddListener(l Listener) { l(g.endpoints) }
func (g *staticGroup) Ready(ctx context.Context) error { return nil }
func (g *staticGroup) Close()                          {}

// Dynamic is a mutable Group: callers push new membership snapshots
// with Update and every registered Listener is invoked in turn. The
// "initial-ready" promise (Ready) resolves on the first Update; Close
// before any Update cancels outstanding Ready waiters.
type Dynamic struct {
	mu        sync.Mutex
	endpoints []Endpoint
	listeners []Listener
	ready     chan struct{}
	readyOnce sync.Once
	readyErr  error
	closed    bool
	closeOnce sync.Once
}

// NewDynamic creates an empty Dynamic group.
func NewDynamic() *Dynamic {
	return &Dynamic{ready: make(chan struct{})}
}

// Update replaces the group's endpoint snapshot and notifies every
// listener, in registration order, with the new snapshot.
func (g *Dynamic) Update(endpoints []Endpoint) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	cp := make([]Endpoint, len(endpoints))
	copy(cp, endpoints)
	g.endpoints = cp
	listeners := append([]Listener(nil), g.listeners...)
	g.mu.Unlock()

	g.resolveReady(nil)

	for _, l := range listeners {
		l(cp)
	}
}

func (g *Dynamic) Endpoints() []Endpoint {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.endpoints
}

func (g *Dynamic) AddListener(l Listener) {
	g.mu.Lock()
	g.listeners = append(g.listeners, l)
	snapshot := g.endpoints
	g.mu.Unlock()
	l(snapshot)
}

func (g *Dynamic) Ready(ctx context.Context) error {
	select {
	case <-g.ready:
		g.mu.Lock()
		err := g.readyErr
		g.mu.Unlock()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Dynamic) resolveReady(err error) {
	g.readyOnce.Do(func() {
		g.mu.Lock()
		g.readyErr = err
		g.mu.Unlock()
		close(g.ready)
	})
}

// Close terminates the group. If the initial-ready promise never
// resolved, waiters are released with a cancellation error (their
// Ready call unblocks reporting context.Canceled, never nil, since no
// endpoints were ever published). Close is idempotent.
func (g *Dynamic) Close() {
	g.closeOnce.Do(func() {
		g.mu.Lock()
		g.closed = true
		g.mu.Unlock()
		g.resolveReady(context.Canceled)
	})
}

// OrElse returns a Group whose Endpoints() is primary's snapshot
// unless it is empty, in which case secondary's snapshot is used. This
// is the literal reading of the "if primary.endpoints() is empty, use
// secondary.endpoints()" contract; see DESIGN.md Open Questions.
func OrElse(primary, secondary Group) Group {
	return &orElseGroup{primary: primary, secondary: secondary}
}

type orElseGroup struct {
	primary   Group
	secondary Group
}

func (g *orElseGroup) Endpoints() []Endpoint {
	if es := g.primary.Endpoints(); len(es) > 0 {
		return es
	}
	return g.secondary.Endpoints()
}

func (g *orElseGroup) AddListener(l Listener) {
	// Both inner groups call notify once on registration; those calls
	// are suppressed so l sees exactly one immediate snapshot.
	var mu sync.Mutex
	primed := false
	notify := func([]Endpoint) {
		mu.Lock()
		ready := primed
		mu.Unlock()
		if ready {
			l(g.Endpoints())
		}
	}
	g.primary.AddListener(notify)
	g.secondary.AddListener(notify)
	mu.Lock()
	primed = true
	mu.Unlock()
	l(g.Endpoints())
}

func (g *orElseGroup) Ready(ctx context.Context) error {
	if err := g.primary.Ready(ctx); err != nil {
		return err
	}
	return g.secondary.Ready(ctx)
}

func (g *orElseGroup) Close() {
	g.primary.Close()
	g.secondary.Close()
}
