package routing

import "sync"

// Table is a concurrent mapping from request Host to the Pool serving it,
// scoped to a single entrypoint. The proxy hook reads it on every request;
// the reconciler and endpoints watchers write it on route/endpoint
// changes. Readers never block writers on distinct keys beyond the single
// RWMutex critical section each operation holds — Go maps give us no
// finer sharding without added complexity this table's expected size
// (tens to low thousands of hosts per entrypoint) does not warrant.
type Table struct {
	mu     sync.RWMutex
	routes map[string]*Pool
}

// NewTable creates an empty route table.
func NewTable() *Table {
	return &Table{routes: make(map[string]*Pool)}
}

// Insert adds or overwrites the pool for host.
func (t *Table) Insert(host string, pool *Pool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes[host] = pool
}

// ReplaceIfPresent swaps the pool for host only if an entry already
// exists. It reports whether the replacement happened. Used by the
// endpoints watcher, which must never resurrect a route the reconciler
// has already removed.
func (t *Table) ReplaceIfPresent(host string, pool *Pool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.routes[host]; !ok {
		return false
	}
	t.routes[host] = pool
	return true
}

// Remove deletes the entry for host, if any.
func (t *Table) Remove(host string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.routes, host)
}

// Get returns the pool for host and whether it was found. The returned
// *Pool is immutable and safe to use after the lock is released.
func (t *Table) Get(host string) (*Pool, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.routes[host]
	return p, ok
}

// RouteSnapshot is one entry of Table.Snapshot's output.
type RouteSnapshot struct {
	Host     string
	SNI      string
	Backends []string
}

// Snapshot returns a weakly-consistent view of every route currently in
// the table, for introspection. Updates concurrent with Snapshot may or
// may not be reflected in the result.
func (t *Table) Snapshot() []RouteSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]RouteSnapshot, 0, len(t.routes))
	for host, pool := range t.routes {
		out = append(out, RouteSnapshot{
			Host:     host,
			SNI:      pool.SNI(),
			Backends: pool.Addresses(),
		})
	}
	return out
}

// Len returns the number of routes currently installed.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.routes)
}
