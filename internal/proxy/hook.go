// Package proxy implements the per-entrypoint reverse-proxy handler: a
// Host-header lookup against a live routing table, round-robin backend
// selection, and SNI-aware forwarding to the chosen upstream.
package proxy

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"

	"github.com/plexsphere/ferrix/internal/metrics"
	"github.com/plexsphere/ferrix/internal/routing"
)

// Hook wraps httputil.ReverseProxy with a Director that resolves the
// backend per request instead of targeting one fixed address — the same
// Director/ErrorHandler shape the teacher's Kubernetes API proxy used,
// generalized from a single target to the entrypoint's routing table.
type Hook struct {
	table      *routing.Table
	proxy      *httputil.ReverseProxy
	logger     *slog.Logger
	entrypoint string
	metrics    *metrics.Registry
}

// NewHook binds a Hook to one entrypoint's Table. A process typically
// creates one Hook per configured entrypoint.
func NewHook(table *routing.Table, logger *slog.Logger) *Hook {
	h := &Hook{table: table, logger: logger}
	h.proxy = &httputil.ReverseProxy{
		Director:       h.direct,
		Transport:      newDialer(),
		ErrorHandler:   h.handleError,
		ModifyResponse: h.modifyResponse,
	}
	return h
}

// WithMetrics attaches a registry that every proxied request is recorded
// against, labeled by entrypoint and result. Unset, the hook runs without
// emitting metrics.
func (h *Hook) WithMetrics(entrypoint string, reg *metrics.Registry) *Hook {
	h.entrypoint = entrypoint
	h.metrics = reg
	return h
}

func (h *Hook) recordResult(result string) {
	if h.metrics == nil {
		return
	}
	h.metrics.ProxyRequests.WithLabelValues(h.entrypoint, result).Inc()
}

func (h *Hook) modifyResponse(resp *http.Response) error {
	h.recordResult("success")
	return nil
}

func (h *Hook) direct(req *http.Request) {
	pool, ok := h.table.Get(req.Host)
	if !ok {
		// Leave URL.Host empty; the dialer turns this into errNoRoute.
		req.URL.Host = ""
		return
	}

	backend := pool.Select()
	req.URL.Scheme = "http"
	req.URL.Host = backend
	// req.Host is left as the client's original Host header — this proxy
	// routes on it, it does not rewrite it for the upstream.

	ctx := context.WithValue(req.Context(), sniKey{}, pool.SNI())
	*req = *req.WithContext(ctx)

	clientIP := req.RemoteAddr
	if host, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		clientIP = host
	}
	req.Header.Set("X-Forwarded-For", clientIP)
}

func (h *Hook) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errNoRoute) {
		h.logger.Debug("no route for host", "component", "proxy", "host", r.Host)
		h.recordResult("not_found")
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h.logger.Warn("upstream request failed",
		"component", "proxy", "host", r.Host, "error", err)
	h.recordResult("error")
	w.WriteHeader(http.StatusBadGateway)
}

// ServeHTTP implements http.Handler.
func (h *Hook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.proxy.ServeHTTP(w, r)
}
