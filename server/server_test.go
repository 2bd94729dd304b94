package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/searchktools/meridian/errs"
	"github.com/searchktools/meridian/pipeline"
	"github.com/searchktools/meridian/router"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(Config{Router: router.New()})
}

func TestServeHTTPDispatchesMatchedRoute(t *testing.T) {
	s := newTestServer(t)
	matcher := router.NewExact("/hello")
	err := s.Handle(matcher, []string{"GET"}, nil, nil, func(ctx context.Context, req *Request) (*Response, error) {
		return &Response{Status: http.StatusOK, Body: []byte("hi")}, nil
	})
	if err != nil {
		t.Fatalf("unexpected register error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/hello", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "hi" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}

func TestServeHTTPReturns404ForUnmatchedPath(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestServeHTTPReturns405ForWrongMethod(t *testing.T) {
	s := newTestServer(t)
	matcher := router.NewExact("/only-post")
	s.Handle(matcher, []string{"POST"}, nil, nil, func(ctx context.Context, req *Request) (*Response, error) {
		return &Response{Status: http.StatusOK}, nil
	})

	req := httptest.NewRequest(http.MethodGet, "/only-post", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestServeHTTPRunsDecoratorsInOrder(t *testing.T) {
	s := newTestServer(t)
	var trail []string
	record := func(name string) pipeline.Decorator {
		return func(inner pipeline.Handler) pipeline.Handler {
			return func(ctx context.Context, req pipeline.Request) (pipeline.Response, error) {
				trail = append(trail, name)
				return inner(ctx, req)
			}
		}
	}
	s.cfg.Decorators = []pipeline.Declaration{
		{Decorator: record("outer"), Order: 0},
	}

	matcher := router.NewExact("/decorated")
	s.Handle(matcher, []string{"GET"}, nil, nil, func(ctx context.Context, req *Request) (*Response, error) {
		trail = append(trail, "handler")
		return &Response{Status: http.StatusOK}, nil
	}, pipeline.Declaration{Decorator: record("inner"), Order: 1})

	req := httptest.NewRequest(http.MethodGet, "/decorated", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	want := []string{"outer", "inner", "handler"}
	if len(trail) != len(want) {
		t.Fatalf("expected %v, got %v", want, trail)
	}
	for i := range want {
		if trail[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, trail)
		}
	}
}

func TestServeHTTPHandlerErrorMapsToStatus(t *testing.T) {
	s := newTestServer(t)
	matcher := router.NewExact("/boom")
	s.Handle(matcher, []string{"GET"}, nil, nil, func(ctx context.Context, req *Request) (*Response, error) {
		return nil, &errs.HTTPStatus{Status: http.StatusTeapot}
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rec.Code)
	}
}
