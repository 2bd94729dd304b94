// Package healthcheck maintains a set of "healthy" endpoints by
// continuously probing each candidate drawn from a delegate
// endpoint.Group, publishing the filtered, delegate-ordered list
// downstream. The per-endpoint context churn on delegate membership
// change is grounded on the reconcile-loop shape of a per-backend
// probe-goroutine health checker: cancel what dropped out, start what
// is new, never touch what didn't change.
package healthcheck

import (
	"context"
	"sync"

	"github.com/searchktools/meridian/endpoint"
)

// Group filters a delegate endpoint.Group down to the subset currently
// reporting healthy, preserving the delegate's relative order.
type Group struct {
	delegate    endpoint.Group
	factory     CheckerFactory
	probePort   int
	downstream  *endpoint.Dynamic

	mu       sync.Mutex
	contexts map[string]*Context
	healthy  map[string]bool
	order    []endpoint.Endpoint
}

// New constructs a Group, blocking until every initial delegate
// endpoint's first probe has resolved so Endpoints() is meaningful on
// return, matching the constructor-blocks contract for health-check
// bootstrap.
func New(ctx context.Context, delegate endpoint.Group, factory CheckerFactory, probePort int) (*Group, error) {
	g := &Group{
		delegate:   delegate,
		factory:    factory,
		probePort:  probePort,
		downstream: endpoint.NewDynamic(),
		contexts:   make(map[string]*Context),
		healthy:    make(map[string]bool),
	}

	if err := delegate.Ready(ctx); err != nil {
		return nil, err
	}

	ready := make(chan struct{})
	var once sync.Once
	delegate.AddListener(func(endpoints []endpoint.Endpoint) {
		created := g.reconcile(endpoints)
		for _, c := range created {
			<-c.awaitInitial()
		}
		once.Do(func() { close(ready) })
	})

	select {
	case <-ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return g, nil
}

// reconcile applies the churn rule: destroy contexts for endpoints no
// longer present, create contexts for newly-seen endpoints. Returns
// the newly-created contexts so the caller can await their first
// probe.
func (g *Group) reconcile(endpoints []endpoint.Endpoint) []*Context {
	g.mu.Lock()
	current := make(map[string]endpoint.Endpoint, len(endpoints))
	for _, ep := range endpoints {
		current[ep.String()] = ep
	}

	var removed []*Context
	for key, c := range g.contexts {
		if _, still := current[key]; !still {
			delete(g.contexts, key)
			delete(g.healthy, key)
			removed = append(removed, c)
		}
	}

	var created []*Context
	for key, ep := range current {
		if _, exists := g.contexts[key]; exists {
			continue
		}
		c := newContext(ep, g.onProbeUpdate)
		g.contexts[key] = c
		created = append(created, c)
		g.mu.Unlock()
		checker, err := g.factory(c)
		g.mu.Lock()
		if err != nil {
			c.forceInitial()
			continue
		}
		c.checker = checker
	}
	g.order = append([]endpoint.Endpoint(nil), endpoints...)
	g.mu.Unlock()

	for _, c := range removed {
		c.Destroy()
	}

	g.rebuild()
	return created
}

func (g *Group) onProbeUpdate(ep endpoint.Endpoint, score float64) {
	g.mu.Lock()
	key := ep.String()
	was := g.healthy[key]
	now := score > 0
	if was == now {
		g.mu.Unlock()
		return
	}
	g.healthy[key] = now
	g.mu.Unlock()
	g.rebuild()
}

// rebuild republishes the downstream list: the delegate's current
// order, filtered to endpoints currently marked healthy.
func (g *Group) rebuild() {
	g.mu.Lock()
	out := make([]endpoint.Endpoint, 0, len(g.order))
	for _, ep := range g.order {
		if g.healthy[ep.String()] {
			out = append(out, ep)
		}
	}
	g.mu.Unlock()
	g.downstream.Update(out)
}

// Endpoints returns the current healthy, delegate-ordered snapshot.
func (g *Group) Endpoints() []endpoint.Endpoint { return g.downstream.Endpoints() }

// AddListener registers l against the downstream healthy-filtered
// list.
func (g *Group) AddListener(l endpoint.Listener) { g.downstream.AddListener(l) }

// Ready blocks until the first healthy/unhealthy snapshot has been
// published downstream.
func (g *Group) Ready(ctx context.Context) error { return g.downstream.Ready(ctx) }

// Close tears down every context and the downstream group.
func (g *Group) Close() {
	g.mu.Lock()
	contexts := make([]*Context, 0, len(g.contexts))
	for _, c := range g.contexts {
		contexts = append(contexts, c)
	}
	g.contexts = make(map[string]*Context)
	g.mu.Unlock()

	for _, c := range contexts {
		c.Destroy()
	}
	g.downstream.Close()
}
