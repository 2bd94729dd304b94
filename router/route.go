package router

import (
	"math"
	"sort"
	"strings"
)

// Score bounds. HIGHEST short-circuits best-match scanning; LOWEST is
// never itself a winning score (any concrete score beats it on the
// first comparison against the zero Result).
const (
	ScoreHighest = math.MaxInt32
	ScoreLowest  = math.MinInt32
)

// Handler is left abstract at the router layer: the router only needs
// to carry *something* per Route and hand it back on a match. The
// server package binds this to its own decorated-handler type so the
// router never has to import the pipeline package.
type Handler any

// Route is an immutable description of one registered endpoint:
// path-matcher, allowed methods, acceptable content-types, producible
// media types, and the two derived identifiers used for logging and
// metrics.
type Route struct {
	Matcher    PathMatcher
	Methods    map[string]bool // empty = any method
	Consumes   []MediaType     // empty = accept any content-type
	Produces   []MediaType     // empty = offer any
	Complexity int
	LoggerName string
	MeterTag   string
	Handler    Handler
}

// NewRoute builds a Route and derives LoggerName/MeterTag from the
// matcher's skeleton if not already set.
func NewRoute(matcher PathMatcher, methods []string, consumes, produces []MediaType, handler Handler) *Route {
	methodSet := make(map[string]bool, len(methods))
	for _, m := range methods {
		methodSet[strings.ToUpper(m)] = true
	}
	r := &Route{
		Matcher:    matcher,
		Methods:    methodSet,
		Consumes:   consumes,
		Produces:   produces,
		Complexity: complexityOf(matcher, methodSet, consumes, produces),
		Handler:    handler,
	}
	r.LoggerName = "route." + sanitize(matcher.Skeleton())
	r.MeterTag = matcher.Skeleton()
	return r
}

func sanitize(s string) string {
	b := []byte(s)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		default:
			b[i] = '_'
		}
	}
	return string(b)
}

// complexityOf assigns a higher score to more specific routes: methods
// restricted, content-type restricted, produces restricted, and
// non-wildcard path kinds all add specificity. Used both for ordering
// (more specific first) and duplicate-route detection.
func complexityOf(m PathMatcher, methods map[string]bool, consumes, produces []MediaType) int {
	c := 0
	switch m.Kind() {
	case KindExact:
		c += 100
	case KindParameterized:
		c += 80
	case KindRegexWithPrefix:
		c += 60
	case KindRegex:
		c += 40
	case KindPrefix:
		c += 10
	}
	if len(methods) > 0 {
		c += 20
	}
	if len(consumes) > 0 {
		c += 5
	}
	if len(produces) > 0 {
		c += 5
	}
	return c
}

// RoutingContext is the per-request query against the route set. Two
// contexts are equal iff their Summary()s are equal; this identity
// drives the router's negative-result cache.
type RoutingContext struct {
	VirtualHost     string
	Hostname        string
	Method          string
	Path            string
	RawQuery        string
	ContentType     *MediaType
	Accept          []MediaType // sorted by preference, most-preferred first
	IsCorsPreflight bool

	// delayedCause is the "delayed throwable": the most specific
	// rejection reason found across every candidate route, surfaced
	// only if no route ultimately matches.
	delayedCause *DelayedCause
}

// DelayedCause records a non-matching-but-informative rejection: a
// 405/415/406 the router can report once every candidate has been
// exhausted. A more specific cause (415/406) always overrides a less
// specific one (405) recorded earlier.
type DelayedCause struct {
	Status int
}

func causePriority(status int) int {
	switch status {
	case 405:
		return 1
	case 415, 406:
		return 2
	default:
		return 0
	}
}

// DelayCause records cause unless a higher-priority cause is already
// recorded.
func (c *RoutingContext) DelayCause(status int) {
	if c.delayedCause == nil || causePriority(status) > causePriority(c.delayedCause.Status) {
		c.delayedCause = &DelayedCause{Status: status}
	}
}

// DelayedCause returns the recorded delayed cause, or nil.
func (c *RoutingContext) DelayedCause() *DelayedCause { return c.delayedCause }

// Summary returns the context's identity for the negative-result
// cache: [host, method, path, content-type, ...accept].
func (c *RoutingContext) Summary() string {
	var b strings.Builder
	b.WriteString(c.Hostname)
	b.WriteByte('|')
	b.WriteString(c.Method)
	b.WriteByte('|')
	b.WriteString(c.Path)
	b.WriteByte('|')
	if c.ContentType != nil {
		b.WriteString(c.ContentType.String())
	}
	for _, a := range c.Accept {
		b.WriteByte('|')
		b.WriteString(a.String())
	}
	return b.String()
}

// RoutingResult is the outcome of matching one route.
type RoutingResult struct {
	Route          *Route
	Path           string
	Query          string
	PathParams     map[string]string
	Score          int
	NegotiatedType MediaType
}

// Empty reports whether r represents "no match".
func (r RoutingResult) Empty() bool { return r.Route == nil }

// matchOne applies the full per-candidate matching algorithm from the
// router spec (path -> method -> content-type -> accept) to a single
// route, recording a delayed cause on ctx if it is rejected for a
// reason more specific matches could still override.
func matchOne(route *Route, ctx *RoutingContext) RoutingResult {
	params, reportedPath, ok := route.Matcher.Match(ctx.Path)
	if !ok {
		return RoutingResult{}
	}

	score := 0

	if len(route.Methods) > 0 {
		if !route.Methods[ctx.Method] {
			if ctx.IsCorsPreflight {
				// Preflight always passes through to the designated handler.
			} else {
				ctx.DelayCause(405)
				return RoutingResult{}
			}
		}
	}

	if ctx.ContentType == nil {
		if len(route.Consumes) != 0 {
			// A route restricted to specific content-types rejects a
			// request that sends none.
			ctx.DelayCause(415)
			return RoutingResult{}
		}
	} else if len(route.Consumes) > 0 {
		matched := false
		for _, c := range route.Consumes {
			if ctx.ContentType.BelongsTo(c) {
				matched = true
				break
			}
		}
		if !matched {
			ctx.DelayCause(415)
			return RoutingResult{}
		}
	}

	var negotiated MediaType
	if len(ctx.Accept) == 0 {
		if len(route.Produces) == 0 {
			score = ScoreHighest
		} else {
			for _, p := range route.Produces {
				if !p.IsWildcard() {
					negotiated = p
					break
				}
			}
		}
	} else {
		found := false
		for _, p := range route.Produces {
			for idx, a := range ctx.Accept {
				if p.BelongsTo(a) {
					found = true
					if idx == 0 {
						score = ScoreHighest
					} else if -idx > score || score == 0 {
						score = -idx
					}
					if !p.IsWildcard() {
						negotiated = p
					}
					break
				}
			}
			if score == ScoreHighest {
				break
			}
		}
		if !found {
			ctx.DelayCause(406)
			return RoutingResult{}
		}
	}

	return RoutingResult{
		Route:          route,
		Path:           reportedPath,
		Query:          ctx.RawQuery,
		PathParams:     params,
		Score:          score,
		NegotiatedType: negotiated,
	}
}

// bestMatch iterates candidates and returns the single best-scoring
// RoutingResult, short-circuiting on the first HIGHEST score. Ties are
// broken by registration order (the earlier candidate wins), since
// candidates is iterated in order and a later one must strictly beat
// the current best to replace it.
func bestMatch(candidates []*Route, ctx *RoutingContext) RoutingResult {
	var best RoutingResult
	for _, route := range candidates {
		res := matchOne(route, ctx)
		if res.Empty() {
			continue
		}
		if res.Score == ScoreHighest {
			return res
		}
		if best.Empty() || res.Score > best.Score {
			best = res
		}
	}
	return best
}

// sortByComplexityDesc sorts routes by descending complexity so more
// specific routes win ties; stable to preserve registration order
// among equal-complexity routes.
func sortByComplexityDesc(routes []*Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].Complexity > routes[j].Complexity
	})
}
