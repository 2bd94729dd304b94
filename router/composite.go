package router

import (
	"fmt"
	"sync"
)

// DuplicateRouteError is returned by Register when a new route is
// indistinguishable from one already registered: same skeleton, same
// kind, same complexity, and an overlapping method × consumes ×
// produces set. Two routes that only differ by method or media type
// are not duplicates.
type DuplicateRouteError struct {
	Skeleton string
}

func (e *DuplicateRouteError) Error() string {
	return fmt.Sprintf("router: duplicate route for %q", e.Skeleton)
}

// Router is the composite dispatcher: every trie-able route lives in a
// single trieRouter and every regex route in a single linearRouter. A
// lookup merges the candidates of both, orders them by descending
// complexity and returns the best-scoring match among all of them.
// Routes are not split into declaration-ordered groups, so a route of
// one kind can win over an earlier-registered route of the other kind.
// Misses are remembered in a negative cache.
type Router struct {
	mu     sync.RWMutex
	trie   *trieRouter
	linear *linearRouter
	all    []*Route

	negCache   map[string]struct{}
	negCacheMu sync.RWMutex
}

// New creates an empty Router.
func New() *Router {
	return &Router{
		trie:     newTrieRouter(),
		linear:   newLinearRouter(),
		negCache: make(map[string]struct{}),
	}
}

// Register adds route, rejecting it with *DuplicateRouteError if an
// indistinguishable route already exists.
func (r *Router) Register(route *Route) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.all {
		if duplicates(existing, route) {
			return &DuplicateRouteError{Skeleton: route.Matcher.Skeleton()}
		}
	}

	r.all = append(r.all, route)
	if route.Matcher.Trieable() {
		r.trie.add(route)
	} else {
		r.linear.add(route)
	}

	// Registering a new route can turn a previous miss (a 404, or a
	// 405/415/406) into a hit, so the whole negative cache is cleared.
	r.negCacheMu.Lock()
	r.negCache = make(map[string]struct{})
	r.negCacheMu.Unlock()

	return nil
}

func duplicates(a, b *Route) bool {
	if a.Matcher.Skeleton() != b.Matcher.Skeleton() {
		return false
	}
	if a.Matcher.Kind() != b.Matcher.Kind() {
		return false
	}
	if a.Complexity != b.Complexity {
		return false
	}
	return methodsOverlap(a.Methods, b.Methods) &&
		mediaSetsOverlap(a.Consumes, b.Consumes) &&
		mediaSetsOverlap(a.Produces, b.Produces)
}

func methodsOverlap(a, b map[string]bool) bool {
	if len(a) == 0 || len(b) == 0 {
		return true // "any method" overlaps everything
	}
	for m := range a {
		if b[m] {
			return true
		}
	}
	return false
}

func mediaSetsOverlap(a, b []MediaType) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	for _, x := range a {
		for _, y := range b {
			if x.BelongsTo(y) || y.BelongsTo(x) {
				return true
			}
		}
	}
	return false
}

// Route finds the best match for ctx. If nothing matches, the zero
// RoutingResult is returned and ctx.DelayedCause() reports the most
// specific rejection reason (405/415/406), or nil for a plain 404. A
// context whose summary is already in the negative cache gets the zero
// result without any matching, so its DelayedCause() is nil.
func (r *Router) Route(ctx *RoutingContext) RoutingResult {
	summary := ctx.Summary()

	r.negCacheMu.RLock()
	_, missed := r.negCache[summary]
	r.negCacheMu.RUnlock()
	if missed {
		return RoutingResult{}
	}

	r.mu.RLock()
	candidates := append([]*Route(nil), r.trie.candidates(ctx.Path)...)
	candidates = append(candidates, r.linear.candidates()...)
	r.mu.RUnlock()

	sortByComplexityDesc(candidates)
	result := bestMatch(candidates, ctx)

	if result.Empty() {
		r.negCacheMu.Lock()
		r.negCache[summary] = struct{}{}
		r.negCacheMu.Unlock()
	}

	return result
}

// Routes returns every registered route in registration order.
func (r *Router) Routes() []*Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Route, len(r.all))
	copy(out, r.all)
	return out
}
