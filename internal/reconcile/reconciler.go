package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"k8s.io/apimachinery/pkg/types"

	"github.com/plexsphere/ferrix/internal/clusterapi"
	"github.com/plexsphere/ferrix/internal/metrics"
	"github.com/plexsphere/ferrix/internal/routing"
)

// Reconciler consumes the IngressRoute event stream and keeps the
// entrypoint dispatcher's routing tables in sync with it. Unlike the
// poll-driven reconciler this one replaces, there is no cycle interval:
// Run blocks on the watcher's event channel and reacts to each event as
// it arrives.
type Reconciler struct {
	watcher  clusterapi.IngressRouteWatcher
	fetcher  clusterapi.EndpointsFetcher
	dispatch *Dispatcher
	logger   *slog.Logger
	index    *index
	locks    keyedLock
	metrics  *metrics.Registry
}

// NewReconciler wires a watcher and a fetcher against a dispatcher.
// cfg.EntryPoints is not consulted here — the dispatcher is already built
// from it — Config exists for validation at the config-loading layer.
func NewReconciler(watcher clusterapi.IngressRouteWatcher, fetcher clusterapi.EndpointsFetcher, dispatch *Dispatcher, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		watcher:  watcher,
		fetcher:  fetcher,
		dispatch: dispatch,
		logger:   logger,
		index:    newIndex(),
	}
}

// WithMetrics attaches a registry that reconcile events are recorded
// against. Unset, the reconciler runs without emitting metrics.
func (r *Reconciler) WithMetrics(reg *metrics.Registry) *Reconciler {
	r.metrics = reg
	return r
}

// Run subscribes to the IngressRoute event stream and blocks until ctx is
// cancelled or the stream closes. A WatchCreate failure (the initial
// subscribe) is returned to the caller, who per spec.md §7 treats it as
// fatal; stream-level errors never reach here — clusterapi.Client retries
// internally.
func (r *Reconciler) Run(ctx context.Context) error {
	if r.watcher == nil || r.fetcher == nil {
		return errors.New("reconcile: watcher and fetcher must be set")
	}

	events, err := r.watcher.Watch(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: watch ingressroutes: %w", err)
	}

	r.logger.Info("reconciler started", "component", "reconcile")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped", "component", "reconcile")
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				r.logger.Info("reconciler stopped: event stream closed", "component", "reconcile")
				return nil
			}
			r.handleEvent(ctx, evt)
		}
	}
}

func (r *Reconciler) handleEvent(ctx context.Context, evt clusterapi.RouteEvent) {
	switch evt.Type {
	case clusterapi.Applied:
		r.handleApplied(ctx, evt.Object)
	case clusterapi.Deleted:
		r.handleDeleted(evt.Object)
	case clusterapi.Restarted:
		r.handleRestarted(ctx, evt.List)
	}
}

func (r *Reconciler) handleApplied(ctx context.Context, route *clusterapi.IngressRoute) {
	if route == nil {
		return
	}
	if route.Deleting() {
		r.handleDeleted(route)
		return
	}

	lock := r.locks.forUID(route.UID)
	lock.Lock()
	defer lock.Unlock()

	table, ok := r.dispatch.Lookup(route.Spec.EntryPoint)
	if !ok {
		r.logger.Warn("ingressroute names unknown entrypoint",
			"component", "reconcile", "uid", route.UID, "entrypoint", route.Spec.EntryPoint)
		return
	}

	host := route.Spec.Route.Host
	if host == "" || len(route.Spec.Route.Rules) == 0 {
		r.logger.Warn("ingressroute missing host or rules, skipping",
			"component", "reconcile", "uid", route.UID)
		return
	}
	svc := route.Spec.Route.Rules[0].Service
	sni := serviceSNI(svc.Name, svc.Namespace)
	key := fmt.Sprintf("%s|%s|%s/%s:%d", route.Spec.EntryPoint, host, svc.Namespace, svc.Name, svc.Port)

	if existing, ok := r.index.get(route.UID); ok {
		if existing.key == key && !existing.placeholder {
			// Nothing about this route's identity changed and the last
			// fetch for it succeeded; the endpoints watcher already
			// tracks it.
			return
		}
		// Either the route's identity changed, or it is still stuck on
		// the fetch-failure placeholder from a previous Apply — in both
		// cases the fetch and pool build below must run again (spec.md
		// §7's EndpointFetch retry-on-next-event policy).
		existing.cancel()
		if existing.table != table || existing.host != host {
			existing.table.Remove(existing.host)
		}
	}

	addrs, err := r.fetcher.GetEndpoints(ctx, svc.Namespace, svc.Name, svc.Port)
	if err != nil {
		r.logger.Warn("endpoints fetch failed, route stays on placeholder pool until a future Apply retries",
			"component", "reconcile", "uid", route.UID, "service", svc.Namespace+"/"+svc.Name, "error", err)
		addrs = nil
	}
	pool, buildErr := buildPool(sni, addrs)
	placeholder := err != nil || buildErr != nil
	if buildErr != nil {
		r.logger.Warn("pool build failed for new route, deferring to watcher",
			"component", "reconcile", "uid", route.UID, "error", buildErr)
		pool = emptyPool(sni)
	}
	table.Insert(host, pool)

	watchCtx, cancel := context.WithCancel(ctx)
	r.index.set(route.UID, managedRoute{table: table, entrypoint: route.Spec.EntryPoint, host: host, key: key, cancel: cancel, placeholder: placeholder})
	go watchEndpoints(watchCtx, r.fetcher, svc.Namespace, svc.Name, svc.Port, table, host, sni, r.logger, r.metrics)

	if r.metrics != nil {
		r.metrics.RoutesApplied.WithLabelValues(route.Spec.EntryPoint).Inc()
		if buildErr != nil {
			r.metrics.PoolBuildErrors.WithLabelValues(host).Inc()
		}
		r.metrics.ActiveRoutes.WithLabelValues(route.Spec.EntryPoint).Set(float64(table.Len()))
	}
}

func (r *Reconciler) handleDeleted(route *clusterapi.IngressRoute) {
	if route == nil {
		return
	}
	lock := r.locks.forUID(route.UID)
	lock.Lock()
	defer lock.Unlock()

	entry, ok := r.index.delete(route.UID)
	if !ok {
		return
	}
	entry.cancel()
	entry.table.Remove(entry.host)

	if r.metrics != nil {
		r.metrics.RoutesDeleted.WithLabelValues(entry.entrypoint).Inc()
		r.metrics.ActiveRoutes.WithLabelValues(entry.entrypoint).Set(float64(entry.table.Len()))
	}
}

// handleRestarted reconciles the full known-object list of a resync
// against the index: objects no longer present are torn down exactly as
// a Deleted event would, objects present are (re-)applied. This is never
// synthesized from individual Delete+Add pairs — doing so would
// needlessly tear down and rebuild every unchanged route's pool.
func (r *Reconciler) handleRestarted(ctx context.Context, list []*clusterapi.IngressRoute) {
	seen := make(map[types.UID]bool, len(list))
	for _, route := range list {
		seen[route.UID] = true
		r.handleApplied(ctx, route)
	}
	for _, uid := range r.index.uids() {
		if !seen[uid] {
			r.handleDeleted(&clusterapi.IngressRoute{UID: uid})
		}
	}
}

func serviceSNI(name, namespace string) string {
	return fmt.Sprintf("%s.%s.svc.cluster.local", name, namespace)
}

func emptyPool(sni string) *routing.Pool {
	// A pool can never legally be empty (routing.NewPool rejects it), so
	// a route with no live backends yet gets a pool pointing at an
	// address that always refuses — picked up and corrected by the
	// endpoints watcher's first event.
	pool, _ := routing.NewPool(sni, []string{"127.0.0.1:0"})
	return pool
}
