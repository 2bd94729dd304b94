package endpoint

import (
	"context"
	"testing"
	"time"
)

func TestDynamicGroupNotifiesAfterMutation(t *testing.T) {
	g := NewDynamic()
	var got []Endpoint
	g.AddListener(func(es []Endpoint) { got = es })

	g.Update([]Endpoint{New("a"), New("b")})
	if len(got) != 2 {
		t.Fatalf("expected listener to observe 2 endpoints, got %d", len(got))
	}
	if len(g.Endpoints()) != 2 {
		t.Fatalf("expected snapshot to reflect update")
	}
}

func TestDynamicGroupReadyResolvesOnFirstUpdate(t *testing.T) {
	g := NewDynamic()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- g.Ready(ctx) }()
	g.Update(nil)

	if err := <-done; err != nil {
		t.Fatalf("expected ready to resolve, got %v", err)
	}
}

func TestDynamicGroupCloseIsIdempotent(t *testing.T) {
	g := NewDynamic()
	g.Close()
	g.Close()
	if err := g.Ready(context.Background()); err != context.Canceled {
		t.Fatalf("expected closed group's ready to report cancellation, got %v", err)
	}
}

// TestDynamicGroupCloseAfterUpdateResolvesCleanly confirms Close only
// cancels the ready promise when it fires before the first Update; a
// group that already published a snapshot keeps reporting success.
func TestDynamicGroupCloseAfterUpdateResolvesCleanly(t *testing.T) {
	g := NewDynamic()
	g.Update([]Endpoint{New("a")})
	g.Close()
	if err := g.Ready(context.Background()); err != nil {
		t.Fatalf("expected ready to resolve cleanly after Update, got %v", err)
	}
}

func TestOrElseLiteralContract(t *testing.T) {
	primary := NewDynamic()
	secondary := Static(New("fallback"))
	combo := OrElse(primary, secondary)

	if es := combo.Endpoints(); len(es) != 1 || es[0].Host() != "fallback" {
		t.Fatalf("expected fallback when primary is empty, got %v", es)
	}

	primary.Update([]Endpoint{New("real")})
	if es := combo.Endpoints(); len(es) != 1 || es[0].Host() != "real" {
		t.Fatalf("expected primary once non-empty, got %v", es)
	}
}
