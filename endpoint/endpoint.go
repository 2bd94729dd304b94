// Package endpoint models the logical addresses the client pool connects
// to: a DNS host, an optional resolved IP, and an optional port.
package endpoint

import (
	"fmt"
	"hash/maphash"
)

var seed = maphash.MakeSeed()

// Endpoint is an immutable (host, ip, port) identity. Two endpoints are
// equal iff their (host, ip, port) triples are equal; hashing considers
// the same fields.
type Endpoint struct {
	host string
	ip   string // "" if unresolved
	port int    // 0 if unset
}

// New creates an Endpoint for host. Panics if host is empty: endpoints
// without a host are not a supported state, this is an invariant
// breach by the caller.
func New(host string) Endpoint {
	if host == "" {
		panic("endpoint: host must not be empty")
	}
	return Endpoint{host: host}
}

// WithIP returns a copy of e with its resolved IP set.
func (e Endpoint) WithIP(ip string) Endpoint {
	e.ip = ip
	return e
}

// WithPort returns a copy of e with the given port. Panics if port is
// out of the 1..65535 range.
func (e Endpoint) WithPort(port int) Endpoint {
	if port < 1 || port > 65535 {
		panic(fmt.Sprintf("endpoint: port %d out of range", port))
	}
	e.port = port
	return e
}

// WithoutPort returns a copy of e with no port set.
func (e Endpoint) WithoutPort() Endpoint {
	e.port = 0
	return e
}

// Host returns the DNS host.
func (e Endpoint) Host() string { return e.host }

// IP returns the resolved IP, or "" if unresolved.
func (e Endpoint) IP() string { return e.ip }

// HasIP reports whether the endpoint carries a resolved IP.
func (e Endpoint) HasIP() bool { return e.ip != "" }

// Port returns the port, or 0 if unset.
func (e Endpoint) Port() int { return e.port }

// HasPort reports whether the endpoint carries an explicit port.
func (e Endpoint) HasPort() bool { return e.port != 0 }

// Authority returns "host:port", falling back to the resolved IP when
// present and to the bare host when no port is set.
func (e Endpoint) Authority() string {
	host := e.host
	if e.ip != "" {
		host = e.ip
	}
	if e.port == 0 {
		return host
	}
	return fmt.Sprintf("%s:%d", host, e.port)
}

// Equal reports whether e and o identify the same endpoint.
func (e Endpoint) Equal(o Endpoint) bool {
	return e.host == o.host && e.ip == o.ip && e.port == o.port
}

func (e Endpoint) String() string {
	if e.port != 0 {
		return fmt.Sprintf("%s:%d", e.host, e.port)
	}
	return e.host
}

// PoolKey is the immutable map key the connection pool indexes idle
// connections and pending acquisitions by. Equality compares ip first
// since it is the most selective field; Hash is precomputed once at
// construction.
type PoolKey struct {
	Host string
	IP   string
	Port int
	hash uint64
}

// NewPoolKey derives a PoolKey from an endpoint and an effective port
// (the endpoint's port if set, else defaultPort).
func NewPoolKey(e Endpoint, defaultPort int) PoolKey {
	port := e.port
	if port == 0 {
		port = defaultPort
	}
	k := PoolKey{Host: e.host, IP: e.ip, Port: port}
	k.hash = hashKey(k.Host, k.IP, k.Port)
	return k
}

func hashKey(host, ip string, port int) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	h.WriteString(ip)
	h.WriteByte(0)
	h.WriteString(host)
	h.WriteByte(0)
	h.WriteByte(byte(port))
	h.WriteByte(byte(port >> 8))
	return h.Sum64()
}

// Hash returns the precomputed hash of the key.
func (k PoolKey) Hash() uint64 { return k.hash }

// Equal compares ip first (most selective), matching the order
// specified for PoolKey equality.
func (k PoolKey) Equal(o PoolKey) bool {
	return k.IP == o.IP && k.Host == o.Host && k.Port == o.Port
}

func (k PoolKey) String() string {
	if k.IP != "" {
		return fmt.Sprintf("%s(%s):%d", k.Host, k.IP, k.Port)
	}
	return fmt.Sprintf("%s:%d", k.Host, k.Port)
}
