package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/searchktools/meridian/pipeline"
)

func TestDecorateRecordsSuccessAndFailure(t *testing.T) {
	m := NewMonitor()
	defer m.Close()

	ok := pipeline.Handler(func(ctx context.Context, req pipeline.Request) (pipeline.Response, error) {
		return "ok", nil
	})
	fail := pipeline.Handler(func(ctx context.Context, req pipeline.Request) (pipeline.Response, error) {
		return nil, errors.New("boom")
	})

	wrapped := Decorate(m, "route.test")(ok)
	if _, err := wrapped(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wrappedFail := Decorate(m, "route.test")(fail)
	if _, err := wrappedFail(context.Background(), nil); err == nil {
		t.Fatal("expected wrapped handler to surface the inner error")
	}

	val, ok2 := m.handlers.Load("route.test")
	if !ok2 {
		t.Fatal("expected route.test metrics to be recorded")
	}
	hm := val.(*HandlerMetrics)
	if count := hm.Count.Load(); count != 2 {
		t.Fatalf("expected 2 recorded calls, got %d", count)
	}
	if errs := hm.Errors.Load(); errs != 1 {
		t.Fatalf("expected 1 recorded error, got %d", errs)
	}
}
