package clusterapi

import (
	"context"
	"errors"
)

// Sentinel errors surfaced by the Fetcher/Watcher implementations.
var (
	// ErrNotFound is returned when a requested Endpoints object does not exist.
	ErrNotFound = errors.New("clusterapi: resource not found")
	// ErrUnauthorized is returned by GetEndpoints when the client lacks
	// valid credentials.
	ErrUnauthorized = errors.New("clusterapi: unauthorized")
)

// IngressRouteWatcher is the interface the reconciler (§4.4) consumes to
// learn about IngressRoute changes. All methods must tolerate the
// returned channel being drained until ctx is cancelled; the
// implementation owns reconnect-with-backoff internally (spec.md §7,
// WatchStream policy) and is never expected to hand a fatal error back
// through the channel — fatal client construction/subscribe failures are
// returned directly from Watch.
type IngressRouteWatcher interface {
	Watch(ctx context.Context) (<-chan RouteEvent, error)
}

// EndpointsFetcher is the interface the endpoints watcher (§4.3) consumes
// to read and watch a single Endpoints object.
type EndpointsFetcher interface {
	// GetEndpoints returns the flat ip:port backend list for the named
	// Endpoints object's port, combining every subset's addresses with
	// port (spec.md §3).
	GetEndpoints(ctx context.Context, namespace, name string, port int32) ([]string, error)

	// WatchEndpoints streams EndpointsEvent for the named Endpoints
	// object, already combined with port. The channel closes when ctx is
	// cancelled.
	WatchEndpoints(ctx context.Context, namespace, name string, port int32) (<-chan EndpointsEvent, error)
}

// ClusterClient is the full surface the supervisor wires into the
// reconciler: an IngressRouteWatcher plus an EndpointsFetcher sharing one
// underlying client-go connection.
type ClusterClient interface {
	IngressRouteWatcher
	EndpointsFetcher
}
