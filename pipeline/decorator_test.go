package pipeline

import (
	"context"
	"testing"
)

func record(name string, trail *[]string) Decorator {
	return func(inner Handler) Handler {
		return func(ctx context.Context, req Request) (Response, error) {
			*trail = append(*trail, name)
			return inner(ctx, req)
		}
	}
}

func TestComposeIsRightFold(t *testing.T) {
	var trail []string
	inner := func(ctx context.Context, req Request) (Response, error) {
		trail = append(trail, "inner")
		return "ok", nil
	}

	decls := []Declaration{
		{Decorator: record("A", &trail), Order: 0},
		{Decorator: record("B", &trail), Order: 1},
		{Decorator: record("C", &trail), Order: 2},
	}
	h := Compose(decls, inner)
	if _, err := h(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"A", "B", "C", "inner"}
	if len(trail) != len(want) {
		t.Fatalf("expected %v, got %v", want, trail)
	}
	for i := range want {
		if trail[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, trail)
		}
	}
}

func TestSortClassBeforeMethodAtEqualOrder(t *testing.T) {
	decls := []Declaration{
		{Order: 0, ClassLevel: false},
		{Order: 0, ClassLevel: true},
		{Order: -1, ClassLevel: false},
	}
	sorted := Sort(decls)
	if sorted[0].Order != -1 {
		t.Fatalf("expected lowest order first, got %+v", sorted[0])
	}
	if !sorted[1].ClassLevel {
		t.Fatalf("expected class-level decorator to precede method-level at equal order, got %+v", sorted[1])
	}
}
