package reconcile

import "github.com/plexsphere/ferrix/internal/routing"

// Dispatcher maps an entrypoint name to its routing table. It is built
// once at startup from the configured entrypoint list and never mutated
// afterward (spec.md §4.5) — only the tables it hands out change.
type Dispatcher struct {
	tables map[string]*routing.Table
}

// NewDispatcher allocates one empty Table per named entrypoint.
func NewDispatcher(entrypoints []string) *Dispatcher {
	tables := make(map[string]*routing.Table, len(entrypoints))
	for _, name := range entrypoints {
		tables[name] = routing.NewTable()
	}
	return &Dispatcher{tables: tables}
}

// Lookup returns the Table bound to the named entrypoint, if any.
func (d *Dispatcher) Lookup(name string) (*routing.Table, bool) {
	t, ok := d.tables[name]
	return t, ok
}

// Tables returns every entrypoint name alongside its Table, for the
// introspection endpoint and for supervisor wiring.
func (d *Dispatcher) Tables() map[string]*routing.Table {
	return d.tables
}
