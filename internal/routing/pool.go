// Package routing holds the data plane: upstream backend pools and the
// per-entrypoint Host routing table that the proxy hook and reconciler
// share.
package routing

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"
)

// ErrEmptyPool is returned by NewPool when the backend address list is empty.
var ErrEmptyPool = errors.New("routing: pool: empty backend list")

// ErrAddressParse is returned by NewPool when a backend address is not a
// valid "host:port" string.
var ErrAddressParse = errors.New("routing: pool: malformed backend address")

// Pool is an immutable set of backend socket addresses plus a fixed SNI
// string, with a round-robin selection cursor. Once constructed, the
// backend list is never mutated in place — updates replace the Pool
// wholesale via the route Table.
type Pool struct {
	sni      string
	backends []string
	cursor   atomic.Uint64
}

// NewPool validates addrs and returns a Pool that selects among them
// round-robin. addrs must be non-empty "host:port" strings; sni is fixed
// for the life of the Pool.
func NewPool(sni string, addrs []string) (*Pool, error) {
	if len(addrs) == 0 {
		return nil, ErrEmptyPool
	}
	backends := make([]string, len(addrs))
	for i, a := range addrs {
		if _, _, err := net.SplitHostPort(a); err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrAddressParse, a, err)
		}
		backends[i] = a
	}
	return &Pool{sni: sni, backends: backends}, nil
}

// Select returns the next backend in round-robin order. Safe for
// concurrent use; each caller observes a distinct, monotonically
// advancing index modulo len(backends).
func (p *Pool) Select() string {
	n := p.cursor.Add(1) - 1
	return p.backends[n%uint64(len(p.backends))]
}

// SNI returns the TLS server name to present to upstream backends.
func (p *Pool) SNI() string {
	return p.sni
}

// Addresses returns a copy of the backend address list, for introspection.
func (p *Pool) Addresses() []string {
	out := make([]string, len(p.backends))
	copy(out, p.backends)
	return out
}

// Len reports the number of backends in the pool.
func (p *Pool) Len() int {
	return len(p.backends)
}
