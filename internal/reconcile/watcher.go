package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/plexsphere/ferrix/internal/clusterapi"
	"github.com/plexsphere/ferrix/internal/metrics"
	"github.com/plexsphere/ferrix/internal/routing"
)

// buildPool resolves a route's current backend addresses into a *routing.Pool.
// A pool-build failure (spec.md §7, PoolBuild error kind) is reported to the
// caller rather than logged here, so the caller can decide whether to keep
// the previous pool.
func buildPool(sni string, addrs []string) (*routing.Pool, error) {
	pool, err := routing.NewPool(sni, addrs)
	if err != nil {
		return nil, fmt.Errorf("reconcile: build pool for %s: %w", sni, err)
	}
	return pool, nil
}

// watchEndpoints tails a single Endpoints object for the lifetime of ctx,
// rebuilding and swapping the route's pool on every Applied/Restarted
// event. It never removes the table entry on its own — that only happens
// through the reconciler tearing down the managed-object index entry
// (spec.md §4.3's open question: a lone Endpoints delete is not a route
// delete).
func watchEndpoints(ctx context.Context, fetcher clusterapi.EndpointsFetcher, namespace, name string, port int32, table *routing.Table, host, sni string, logger *slog.Logger, reg *metrics.Registry) {
	events, err := fetcher.WatchEndpoints(ctx, namespace, name, port)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("endpoints watch failed to start",
				"component", "reconcile", "host", host, "service", namespace+"/"+name, "error", err)
		}
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			switch evt.Type {
			case clusterapi.Deleted:
				// A bare Endpoints delete leaves the route table entry in
				// place; only an IngressRoute delete removes it.
				continue
			case clusterapi.Applied, clusterapi.Restarted:
				pool, err := buildPool(sni, evt.Addresses)
				if err != nil {
					logger.Warn("pool rebuild failed, keeping previous pool",
						"component", "reconcile", "host", host, "error", err)
					if reg != nil {
						reg.PoolBuildErrors.WithLabelValues(host).Inc()
					}
					continue
				}
				table.ReplaceIfPresent(host, pool)
				if reg != nil {
					reg.PoolRebuilds.WithLabelValues(host).Inc()
				}
			}
		}
	}
}
