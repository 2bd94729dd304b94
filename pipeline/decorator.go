// Package pipeline implements the decorator chain, timeout wheel, and
// fallback surfacing shared by the client invocation path and the
// server dispatch path. Decorators are plain functions, not an
// inheritance hierarchy: composing a chain is a fold, not a class
// hierarchy walk, grounded on the teacher's own middleware pipeline
// (a flat []HandlerFunc executed in order) generalized to wrap a
// handler rather than mutate a shared context in place.
package pipeline

import (
	"context"
	"sort"
)

// Request and Response are left abstract: the pipeline only composes
// functions over them, it never inspects their shape. The server and
// client packages bind concrete types.
type Request any
type Response any

// Handler processes one request into a response.
type Handler func(ctx context.Context, req Request) (Response, error)

// Decorator wraps an inner Handler to produce an outer one.
type Decorator func(inner Handler) Handler

// Declaration pairs a Decorator with its ordering attributes: Order
// (lower runs first), and whether it was declared at class (service)
// level rather than method level.
type Declaration struct {
	Decorator  Decorator
	Order      int
	ClassLevel bool
}

// Sort orders declarations by Order ascending; within equal Order,
// class-level declarations precede method-level ones; within equal
// Order and level, declaration order is preserved. The input order is
// assumed to already be declaration order.
func Sort(decls []Declaration) []Declaration {
	out := make([]Declaration, len(decls))
	copy(out, decls)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ClassLevel && !out[j].ClassLevel
	})
	return out
}

// Compose builds the chain: if decls lists [A, B, C] (in the order
// Sort would produce), the result is A(B(C(inner))) — a right fold
// where the first-listed decorator is outermost.
func Compose(decls []Declaration, inner Handler) Handler {
	h := inner
	for i := len(decls) - 1; i >= 0; i-- {
		h = decls[i].Decorator(h)
	}
	return h
}

// ComposeFuncs is Compose's convenience form for callers that already
// have a plain, pre-sorted []Decorator (no order/level bookkeeping
// needed, e.g. a fixed internal chain).
func ComposeFuncs(decorators []Decorator, inner Handler) Handler {
	h := inner
	for i := len(decorators) - 1; i >= 0; i-- {
		h = decorators[i](h)
	}
	return h
}
