package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry collects the reconcile and proxy activity counters this core
// exposes. One Registry is created per process and shared by the
// reconciler and every entrypoint's proxy hook.
type Registry struct {
	registry *prometheus.Registry

	RoutesApplied   *prometheus.CounterVec
	RoutesDeleted   *prometheus.CounterVec
	PoolRebuilds    *prometheus.CounterVec
	PoolBuildErrors *prometheus.CounterVec
	ProxyRequests   *prometheus.CounterVec
	ActiveRoutes    *prometheus.GaugeVec
}

// NewRegistry builds a fresh Prometheus registry with this core's metrics
// pre-registered, following the `promauto` idiom (register-at-construction,
// no package-level globals).
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		registry: reg,
		RoutesApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ferrix",
			Name:      "routes_applied_total",
			Help:      "IngressRoute Applied events processed, by entrypoint.",
		}, []string{"entrypoint"}),
		RoutesDeleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ferrix",
			Name:      "routes_deleted_total",
			Help:      "IngressRoute Deleted events processed, by entrypoint.",
		}, []string{"entrypoint"}),
		PoolRebuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ferrix",
			Name:      "pool_rebuilds_total",
			Help:      "Backend pool rebuilds triggered by an Endpoints event, by host.",
		}, []string{"host"}),
		PoolBuildErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ferrix",
			Name:      "pool_build_errors_total",
			Help:      "Pool rebuilds that failed and kept the previous pool, by host.",
		}, []string{"host"}),
		ProxyRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ferrix",
			Name:      "proxy_requests_total",
			Help:      "Requests handled by a proxy hook, by entrypoint and result.",
		}, []string{"entrypoint", "result"}),
		ActiveRoutes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ferrix",
			Name:      "active_routes",
			Help:      "Currently active routes in an entrypoint's table.",
		}, []string{"entrypoint"}),
	}
}

// Server serves the /metrics endpoint for a Registry over plain HTTP.
type Server struct {
	httpServer *http.Server
}

// NewServer binds a metrics HTTP server to addr. It does not start
// listening until Run is called.
func NewServer(addr string, reg *Registry) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg.registry, promhttp.HandlerOpts{}))
	return &Server{httpServer: &http.Server{Addr: addr, Handler: mux}}
}

// Run starts serving until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics: serve: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		_ = s.httpServer.Shutdown(context.Background())
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
