package endpoint

import "testing"

func TestEndpointEquality(t *testing.T) {
	a := New("example.com").WithPort(443)
	b := New("example.com").WithPort(443)
	c := New("example.com").WithPort(80)
	if !a.Equal(b) {
		t.Fatalf("expected equal endpoints")
	}
	if a.Equal(c) {
		t.Fatalf("expected different ports to differ")
	}
}

func TestEndpointPortRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for out-of-range port")
		}
	}()
	New("example.com").WithPort(70000)
}

func TestPoolKeyEqualityPrefersIP(t *testing.T) {
	e1 := New("example.com").WithIP("1.2.3.4").WithPort(80)
	e2 := New("other.com").WithIP("1.2.3.4").WithPort(80)
	k1 := NewPoolKey(e1, 80)
	k2 := NewPoolKey(e2, 80)
	if k1.Equal(k2) {
		t.Fatalf("expected different hosts to produce unequal keys despite matching ip")
	}

	e3 := New("example.com").WithIP("1.2.3.4").WithPort(80)
	k3 := NewPoolKey(e3, 80)
	if !k1.Equal(k3) {
		t.Fatalf("expected identical endpoints to produce equal pool keys")
	}
	if k1.Hash() != k3.Hash() {
		t.Fatalf("expected identical pool keys to hash equally")
	}
}

func TestPoolKeyDefaultPort(t *testing.T) {
	e := New("example.com")
	k := NewPoolKey(e, 443)
	if k.Port != 443 {
		t.Fatalf("expected default port 443, got %d", k.Port)
	}
}
