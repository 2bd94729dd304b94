package healthcheck

import (
	"sync"

	"github.com/searchktools/meridian/endpoint"
)

// Checker is the opaque, closable handle a CheckerFactory produces. It
// owns the actual probing logic (HTTP GET, raw TCP dial, ...); closing
// it must stop issuing probes.
type Checker interface {
	Close() error
}

// CheckerFactory builds a Checker bound to ctx. The factory is free to
// call ctx.Schedule to arrange its own periodic probing.
type CheckerFactory func(ctx *Context) (Checker, error)

// Context is the per-endpoint state a Group maintains for as long as
// that endpoint is a delegate-group member. mu guards scheduledTasks
// and every schedule/destroy transition.
type Context struct {
	mu sync.Mutex

	endpoint endpoint.Endpoint
	onUpdate func(endpoint.Endpoint, float64)

	scheduledTasks map[int]func()
	nextTaskID     int

	initialOnce sync.Once
	initialCh   chan struct{}

	destroyed bool
	checker   Checker
}

func newContext(ep endpoint.Endpoint, onUpdate func(endpoint.Endpoint, float64)) *Context {
	return &Context{
		endpoint:       ep,
		onUpdate:       onUpdate,
		scheduledTasks: make(map[int]func()),
		initialCh:      make(chan struct{}),
	}
}

// Endpoint returns the endpoint this context probes, with its port
// rewritten to probePort when probePort is non-zero.
func (c *Context) Endpoint(probePort int) endpoint.Endpoint {
	if probePort == 0 {
		return c.endpoint
	}
	return c.endpoint.WithPort(probePort)
}

// Schedule registers a cancellable task. It refuses (returns false)
// once the context is destroyed, mirroring the scheduler view that
// stops accepting work after teardown.
func (c *Context) Schedule(cancel func()) (id int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return 0, false
	}
	id = c.nextTaskID
	c.nextTaskID++
	c.scheduledTasks[id] = cancel
	return id, true
}

// Unschedule removes a previously-registered task, e.g. after it fires
// and reschedules itself under a new id.
func (c *Context) Unschedule(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.scheduledTasks, id)
}

// UpdateHealth reports a probe score in [0, 1]. A positive score marks
// the endpoint healthy; zero marks it unhealthy. Either way, the
// initial-probe promise resolves if this is the first update.
func (c *Context) UpdateHealth(score float64) {
	c.mu.Lock()
	destroyed := c.destroyed
	c.mu.Unlock()
	if destroyed {
		return
	}
	c.onUpdate(c.endpoint, score)
	c.initialOnce.Do(func() { close(c.initialCh) })
}

// awaitInitial blocks until the first UpdateHealth (or forceInitial).
func (c *Context) awaitInitial() <-chan struct{} { return c.initialCh }

// forceInitial resolves the initial-probe promise without requiring an
// UpdateHealth call, used by the destroy path so a context removed
// before its first probe completes never blocks group construction.
func (c *Context) forceInitial() {
	c.initialOnce.Do(func() { close(c.initialCh) })
}

// Destroy cancels every scheduled task this context owns and marks it
// destroyed. Idempotent: only the first call has any effect.
func (c *Context) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	// Snapshot before cancelling: a task's cancel function may itself
	// try to unschedule, which would mutate the map mid-iteration.
	tasks := make([]func(), 0, len(c.scheduledTasks))
	for _, cancel := range c.scheduledTasks {
		tasks = append(tasks, cancel)
	}
	c.scheduledTasks = make(map[int]func())
	checker := c.checker
	c.mu.Unlock()

	for _, cancel := range tasks {
		cancel()
	}
	if checker != nil {
		checker.Close()
	}
	c.forceInitial()
}
