package router

import "testing"

func ctxFor(method, path string) *RoutingContext {
	return &RoutingContext{Method: method, Path: path, Hostname: "localhost"}
}

func TestRouterExactBeatsParam(t *testing.T) {
	r := New()
	must(t, r.Register(NewRoute(NewExact("/user/admin"), []string{"GET"}, nil, nil, "exact")))
	must(t, r.Register(NewRoute(NewParameterized("/user/{id}"), []string{"GET"}, nil, nil, "param")))

	res := r.Route(ctxFor("GET", "/user/admin"))
	if res.Empty() || res.Route.Handler != "exact" {
		t.Fatalf("expected exact route to win, got %+v", res)
	}

	res = r.Route(ctxFor("GET", "/user/123"))
	if res.Empty() || res.Route.Handler != "param" {
		t.Fatalf("expected param route to match, got %+v", res)
	}
	if res.PathParams["id"] != "123" {
		t.Fatalf("expected id=123, got %v", res.PathParams)
	}
}

func TestRouterMethodNotAllowed(t *testing.T) {
	r := New()
	must(t, r.Register(NewRoute(NewExact("/items"), []string{"GET"}, nil, nil, "h")))

	ctx := ctxFor("POST", "/items")
	res := r.Route(ctx)
	if !res.Empty() {
		t.Fatalf("expected no match for wrong method")
	}
	if ctx.DelayedCause() == nil || ctx.DelayedCause().Status != 405 {
		t.Fatalf("expected delayed 405, got %+v", ctx.DelayedCause())
	}
}

func TestRouterContentTypeOverridesMethod(t *testing.T) {
	r := New()
	json := MediaType{Type: "application", Subtype: "json"}
	must(t, r.Register(NewRoute(NewExact("/items"), []string{"POST"}, []MediaType{json}, nil, "h")))
	must(t, r.Register(NewRoute(NewExact("/items"), []string{"GET"}, []MediaType{json}, nil, "g")))

	ctx := ctxFor("GET", "/items")
	ct, _ := ParseMediaType("text/plain")
	ctx.ContentType = &ct
	res := r.Route(ctx)
	if !res.Empty() {
		t.Fatalf("expected no match")
	}
	if ctx.DelayedCause() == nil || ctx.DelayedCause().Status != 415 {
		t.Fatalf("expected 415 to override 405, got %+v", ctx.DelayedCause())
	}
}

func TestRouterDuplicateRejected(t *testing.T) {
	r := New()
	must(t, r.Register(NewRoute(NewExact("/ping"), []string{"GET"}, nil, nil, "a")))
	err := r.Register(NewRoute(NewExact("/ping"), []string{"GET"}, nil, nil, "b"))
	if err == nil {
		t.Fatalf("expected duplicate route error")
	}
	if _, ok := err.(*DuplicateRouteError); !ok {
		t.Fatalf("expected *DuplicateRouteError, got %T", err)
	}
}

func TestRouterDistinctMethodsNotDuplicate(t *testing.T) {
	r := New()
	must(t, r.Register(NewRoute(NewExact("/res"), []string{"GET"}, nil, nil, "get")))
	must(t, r.Register(NewRoute(NewExact("/res"), []string{"POST"}, nil, nil, "post")))
}

func TestRouterNegativeCache(t *testing.T) {
	r := New()
	must(t, r.Register(NewRoute(NewExact("/a"), nil, nil, nil, "h")))

	ctx1 := ctxFor("GET", "/missing")
	res := r.Route(ctx1)
	if !res.Empty() {
		t.Fatalf("expected miss")
	}
	ctx2 := ctxFor("GET", "/missing")
	res = r.Route(ctx2)
	if !res.Empty() {
		t.Fatalf("expected cached miss")
	}
}

func TestRouterAcceptNegotiation(t *testing.T) {
	r := New()
	html := MediaType{Type: "text", Subtype: "html"}
	jsonT := MediaType{Type: "application", Subtype: "json"}
	must(t, r.Register(NewRoute(NewExact("/doc"), nil, nil, []MediaType{html}, "html")))
	must(t, r.Register(NewRoute(NewExact("/doc2"), nil, nil, []MediaType{jsonT}, "json")))

	ctx := ctxFor("GET", "/doc")
	ctx.Accept = ParseAcceptList("application/json;q=0.5, text/html")
	res := r.Route(ctx)
	if res.Empty() || res.Route.Handler != "html" {
		t.Fatalf("expected html route to match preferred accept entry, got %+v", res)
	}
}

func TestRouterAcceptNegotiationPrefersMostSpecificOverUnrestricted(t *testing.T) {
	r := New()
	text := MediaType{Type: "text", Subtype: "plain"}
	jsonT := MediaType{Type: "application", Subtype: "json"}
	must(t, r.Register(NewRoute(NewExact("/x"), []string{"GET"}, nil, []MediaType{text}, "text")))
	must(t, r.Register(NewRoute(NewExact("/x"), []string{"GET"}, nil, []MediaType{jsonT}, "json")))
	must(t, r.Register(NewRoute(NewExact("/x"), []string{"GET"}, nil, nil, "any")))

	ctx := ctxFor("GET", "/x")
	ctx.Accept = ParseAcceptList("application/json, text/plain;q=0.5")
	res := r.Route(ctx)
	if res.Empty() || res.Route.Handler != "json" {
		t.Fatalf("expected json route to win on the first Accept entry, got %+v", res)
	}

	ctx2 := ctxFor("GET", "/x")
	ctx2.Accept = ParseAcceptList("application/xml")
	res2 := r.Route(ctx2)
	if !res2.Empty() {
		t.Fatalf("expected no match for an unsatisfiable Accept list, got %+v", res2)
	}
	if ctx2.DelayedCause() == nil || ctx2.DelayedCause().Status != 406 {
		t.Fatalf("expected delayed 406, got %+v", ctx2.DelayedCause())
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
