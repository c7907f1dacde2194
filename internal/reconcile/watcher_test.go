package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/plexsphere/ferrix/internal/clusterapi"
	"github.com/plexsphere/ferrix/internal/metrics"
	"github.com/plexsphere/ferrix/internal/routing"
)

func TestBuildPool_RejectsEmptyAddresses(t *testing.T) {
	if _, err := buildPool("svc.default.svc.cluster.local", nil); err == nil {
		t.Fatal("expected error for empty address list")
	}
}

func TestWatchEndpoints_ReplacesPoolOnApplied(t *testing.T) {
	fetcher := newMockFetcher()
	table := routing.NewTable()
	pool, _ := routing.NewPool("svc-a.default.svc.cluster.local", []string{"127.0.0.1:0"})
	table.Insert("a.example.com", pool)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watchEndpoints(ctx, fetcher, "default", "svc-a", 80, table, "a.example.com", "svc-a.default.svc.cluster.local", discardLogger(), nil)

	fetcher.push("default", "svc-a", clusterapi.EndpointsEvent{Type: clusterapi.Applied, Addresses: []string{"10.0.0.5:80"}})

	waitFor(t, func() bool {
		p, _ := table.Get("a.example.com")
		return p != nil && p.Select() == "10.0.0.5:80"
	})
}

func TestWatchEndpoints_DeletedDoesNotRemoveRoute(t *testing.T) {
	fetcher := newMockFetcher()
	table := routing.NewTable()
	pool, _ := routing.NewPool("svc-a.default.svc.cluster.local", []string{"10.0.0.1:80"})
	table.Insert("a.example.com", pool)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watchEndpoints(ctx, fetcher, "default", "svc-a", 80, table, "a.example.com", "svc-a.default.svc.cluster.local", discardLogger(), nil)

	fetcher.push("default", "svc-a", clusterapi.EndpointsEvent{Type: clusterapi.Deleted})

	time.Sleep(50 * time.Millisecond)
	if _, ok := table.Get("a.example.com"); !ok {
		t.Error("route entry removed on bare Endpoints delete")
	}
}

func TestWatchEndpoints_RecordsPoolRebuildAndBuildErrorMetrics(t *testing.T) {
	fetcher := newMockFetcher()
	table := routing.NewTable()
	pool, _ := routing.NewPool("svc-a.default.svc.cluster.local", []string{"127.0.0.1:0"})
	table.Insert("a.example.com", pool)
	reg := metrics.NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watchEndpoints(ctx, fetcher, "default", "svc-a", 80, table, "a.example.com", "svc-a.default.svc.cluster.local", discardLogger(), reg)

	fetcher.push("default", "svc-a", clusterapi.EndpointsEvent{Type: clusterapi.Applied, Addresses: []string{"10.0.0.5:80"}})
	waitFor(t, func() bool { return testutil.ToFloat64(reg.PoolRebuilds.WithLabelValues("a.example.com")) == 1 })

	fetcher.push("default", "svc-a", clusterapi.EndpointsEvent{Type: clusterapi.Applied, Addresses: nil})
	waitFor(t, func() bool { return testutil.ToFloat64(reg.PoolBuildErrors.WithLabelValues("a.example.com")) == 1 })
}

func TestWatchEndpoints_StopsOnContextCancel(t *testing.T) {
	fetcher := newMockFetcher()
	table := routing.NewTable()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		watchEndpoints(ctx, fetcher, "default", "svc-a", 80, table, "a.example.com", "svc-a.default.svc.cluster.local", discardLogger(), nil)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watchEndpoints did not exit after context cancel")
	}
}
