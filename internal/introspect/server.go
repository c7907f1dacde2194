// Package introspect serves the read-only /routes snapshot endpoint.
package introspect

import (
	"encoding/json"
	"net/http"

	"github.com/plexsphere/ferrix/internal/reconcile"
)

// routeSnapshotRecord is one route within an entrypoint's list in the
// /routes response.
type routeSnapshotRecord struct {
	Host     string   `json:"host"`
	SNI      string   `json:"sni"`
	Backends []string `json:"backends"`
}

// Handler serves GET /routes: a JSON object keyed by entrypoint name, each
// value the list of routes currently live on that entrypoint's table,
// weakly consistent with the live tables per spec.md §4.2/§6.4 — a route
// observed mid-update may show its old or new pool, never a torn one.
type Handler struct {
	dispatch *reconcile.Dispatcher
}

// NewHandler binds a Handler to the dispatcher backing every entrypoint.
func NewHandler(dispatch *reconcile.Dispatcher) *Handler {
	return &Handler{dispatch: dispatch}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	tables := h.dispatch.Tables()
	snapshot := make(map[string][]routeSnapshotRecord, len(tables))
	for name, table := range tables {
		routes := table.Snapshot()
		records := make([]routeSnapshotRecord, 0, len(routes))
		for _, rt := range routes {
			records = append(records, routeSnapshotRecord{
				Host:     rt.Host,
				SNI:      rt.SNI,
				Backends: rt.Backends,
			})
		}
		snapshot[name] = records
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// Mux returns a ready-to-serve http.Handler bound at /routes.
func Mux(dispatch *reconcile.Dispatcher) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/routes", NewHandler(dispatch))
	return mux
}
