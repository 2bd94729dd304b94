package eventloop

import "testing"

func TestAcquireReleaseBalances(t *testing.T) {
	s := New(3)
	const key = "example.com:443"

	e1 := s.Acquire(key)
	e2 := s.Acquire(key)
	e3 := s.Acquire(key)
	if e1.ID == e2.ID || e2.ID == e3.ID || e1.ID == e3.ID {
		t.Fatalf("expected three distinct entries, got %d %d %d", e1.ID, e2.ID, e3.ID)
	}

	s.Release(key, e1)
	s.Release(key, e2)
	s.Release(key, e3)

	for i, c := range s.Snapshot(key) {
		if c != 0 {
			t.Fatalf("entry %d: expected counter 0 after balancing, got %d", i, c)
		}
	}
}

func TestAcquireTieBreaksOnLowestID(t *testing.T) {
	s := New(2)
	const key = "k"
	e := s.Acquire(key)
	if e.ID != 0 {
		t.Fatalf("expected entry 0 to win on a fresh scheduler, got %d", e.ID)
	}
}
