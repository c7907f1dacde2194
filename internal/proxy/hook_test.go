package proxy

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/plexsphere/ferrix/internal/metrics"
	"github.com/plexsphere/ferrix/internal/routing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHook_ForwardsToSelectedBackend(t *testing.T) {
	var gotHost string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer backend.Close()

	table := routing.NewTable()
	pool, err := routing.NewPool("svc-a.default.svc.cluster.local", []string{backend.Listener.Addr().String()})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	table.Insert("a.example.com", pool)

	hook := NewHook(table, discardLogger())

	req := httptest.NewRequest("GET", "/", nil)
	req.Host = "a.example.com"
	rec := httptest.NewRecorder()
	hook.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	// The upstream sees the client's original Host header, not the backend addr.
	if gotHost != "a.example.com" {
		t.Errorf("backend saw Host = %q, want %q", gotHost, "a.example.com")
	}
}

func TestHook_UnknownHostReturns404(t *testing.T) {
	table := routing.NewTable()
	hook := NewHook(table, discardLogger())

	req := httptest.NewRequest("GET", "/", nil)
	req.Host = "unknown.example.com"
	rec := httptest.NewRecorder()
	hook.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHook_UnreachableBackendReturns502(t *testing.T) {
	table := routing.NewTable()
	pool, _ := routing.NewPool("svc-a.default.svc.cluster.local", []string{"127.0.0.1:1"})
	table.Insert("a.example.com", pool)

	hook := NewHook(table, discardLogger())

	req := httptest.NewRequest("GET", "/", nil)
	req.Host = "a.example.com"
	rec := httptest.NewRecorder()
	hook.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestHook_RecordsMetricsByResult(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	table := routing.NewTable()
	pool, _ := routing.NewPool("svc-a.default.svc.cluster.local", []string{backend.Listener.Addr().String()})
	table.Insert("a.example.com", pool)
	unreachable, _ := routing.NewPool("svc-b.default.svc.cluster.local", []string{"127.0.0.1:1"})
	table.Insert("b.example.com", unreachable)

	reg := metrics.NewRegistry()
	hook := NewHook(table, discardLogger()).WithMetrics("web", reg)

	req := httptest.NewRequest("GET", "/", nil)
	req.Host = "a.example.com"
	hook.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest("GET", "/", nil)
	req.Host = "unknown.example.com"
	hook.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest("GET", "/", nil)
	req.Host = "b.example.com"
	hook.ServeHTTP(httptest.NewRecorder(), req)

	if got := testutil.ToFloat64(reg.ProxyRequests.WithLabelValues("web", "success")); got != 1 {
		t.Errorf("success count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(reg.ProxyRequests.WithLabelValues("web", "not_found")); got != 1 {
		t.Errorf("not_found count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(reg.ProxyRequests.WithLabelValues("web", "error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}

func TestHook_RoundRobinsAcrossBackends(t *testing.T) {
	seen := make(map[int]int)
	var hits [2]atomic.Int32
	var addrs []string
	for i := 0; i < 2; i++ {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits[i].Add(1)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()
		addrs = append(addrs, srv.Listener.Addr().String())
	}

	table := routing.NewTable()
	pool, _ := routing.NewPool("svc-a.default.svc.cluster.local", addrs)
	table.Insert("a.example.com", pool)
	hook := NewHook(table, discardLogger())

	for i := 0; i < 4; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		req.Host = "a.example.com"
		rec := httptest.NewRecorder()
		hook.ServeHTTP(rec, req)
		seen[rec.Code]++
	}
	if seen[http.StatusOK] != 4 {
		t.Fatalf("expected all 4 requests to succeed, got %v", seen)
	}
	for i := range hits {
		if got := hits[i].Load(); got != 2 {
			t.Errorf("backend %d served %d requests, want 2", i, got)
		}
	}
}
