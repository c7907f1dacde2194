package clusterapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
)

// Client is the client-go-backed ClusterClient: a dynamic client for the
// unstructured IngressRoute CRD (this core ships no generated clientset,
// spec.md §6.2) and a typed Clientset for Endpoints, following the same
// split the example CRD watchers in the wild use (dynamic client for the
// custom resource, typed client for built-ins).
type Client struct {
	dynamicClient dynamic.Interface
	typedClient   kubernetes.Interface
	logger        *slog.Logger

	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// NewClient wraps already-constructed client-go clients. Construction of
// the underlying *rest.Config (in-cluster or --kubeconfig) is the
// supervisor's job, per spec.md's framing of the cluster API client as an
// external collaborator.
func NewClient(dynamicClient dynamic.Interface, typedClient kubernetes.Interface, logger *slog.Logger) *Client {
	return &Client{
		dynamicClient: dynamicClient,
		typedClient:   typedClient,
		logger:        logger,
		baseBackoff:   defaultBaseBackoff,
		maxBackoff:    defaultMaxBackoff,
	}
}

// Watch subscribes to the cluster-scoped IngressRoute watch and resolves
// every event into a RouteEvent on the returned channel. The channel
// closes only when ctx is cancelled; transient stream errors are logged
// and the watch resubscribes with exponential backoff (spec.md §7,
// WatchStream policy) rather than being surfaced to the caller.
func (c *Client) Watch(ctx context.Context) (<-chan RouteEvent, error) {
	resource := c.dynamicClient.Resource(IngressRouteResource)

	// Fail fast on the *initial* subscribe — this is the WatchCreate
	// error kind, fatal via the caller's failure channel (spec.md §7).
	initial, err := resource.Watch(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("clusterapi: watch ingressroutes: %w", err)
	}

	out := make(chan RouteEvent)
	go c.runRouteWatch(ctx, resource, initial, out)
	return out, nil
}

func (c *Client) runRouteWatch(ctx context.Context, resource dynamic.NamespaceableResourceInterface, first watch.Interface, out chan<- RouteEvent) {
	defer close(out)

	w := first
	backoff := c.baseBackoff
	for {
		if w == nil {
			var err error
			w, err = resource.Watch(ctx, metav1.ListOptions{})
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Warn("clusterapi: ingressroute watch resubscribe failed", "error", err, "backoff", backoff)
				if !sleepOrDone(ctx, jitter(backoff)) {
					return
				}
				backoff = nextBackoff(backoff, c.maxBackoff)
				continue
			}
			backoff = c.baseBackoff
		}

		select {
		case <-ctx.Done():
			w.Stop()
			return
		case evt, ok := <-w.ResultChan():
			if !ok {
				c.logger.Warn("clusterapi: ingressroute watch stream closed, reconnecting")
				w = nil
				continue
			}
			route, skip := decodeRouteEvent(evt)
			if skip {
				continue
			}
			select {
			case out <- route:
			case <-ctx.Done():
				w.Stop()
				return
			}
		}
	}
}

func decodeRouteEvent(evt watch.Event) (RouteEvent, bool) {
	if evt.Type == watch.Error {
		return RouteEvent{}, true
	}
	u, ok := evt.Object.(*unstructured.Unstructured)
	if !ok {
		return RouteEvent{}, true
	}
	route, err := fromUnstructured(u)
	if err != nil {
		return RouteEvent{}, true
	}

	switch evt.Type {
	case watch.Deleted:
		return RouteEvent{Type: Deleted, Object: route}, false
	case watch.Added, watch.Modified:
		return RouteEvent{Type: Applied, Object: route}, false
	default:
		return RouteEvent{}, true
	}
}

// fromUnstructured decodes the subset of IngressRoute fields this core
// reads out of an unstructured watch object. Unknown/missing fields
// decode to zero values rather than erroring, matching how a tolerant CRD
// consumer should behave across schema versions.
func fromUnstructured(u *unstructured.Unstructured) (*IngressRoute, error) {
	spec, _, _ := unstructured.NestedMap(u.Object, "spec")
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("clusterapi: marshal spec: %w", err)
	}

	var decoded struct {
		EntryPoint string `json:"entrypoint"`
		Route      struct {
			Host  string `json:"host"`
			Rules []struct {
				Service struct {
					Name      string `json:"name"`
					Namespace string `json:"namespace"`
					Port      int32  `json:"port"`
				} `json:"service"`
			} `json:"rules"`
		} `json:"route"`
		TLS *struct {
			SecretName string `json:"secretName"`
		} `json:"tls"`
	}
	if err := json.Unmarshal(specJSON, &decoded); err != nil {
		return nil, fmt.Errorf("clusterapi: unmarshal spec: %w", err)
	}

	route := &IngressRoute{
		Name:      u.GetName(),
		Namespace: u.GetNamespace(),
		Spec: IngressRouteSpec{
			EntryPoint: decoded.EntryPoint,
			Route: RouteSpec{
				Host: decoded.Route.Host,
			},
		},
	}
	route.UID = u.GetUID()
	if ts := u.GetDeletionTimestamp(); ts != nil {
		route.DeletionTimestamp = ts
	}
	for _, r := range decoded.Route.Rules {
		route.Spec.Route.Rules = append(route.Spec.Route.Rules, RouteRule{
			Service: ServiceRef{Name: r.Service.Name, Namespace: r.Service.Namespace, Port: r.Service.Port},
		})
	}
	if decoded.TLS != nil {
		route.Spec.TLS = &TLSSpec{SecretName: decoded.TLS.SecretName}
	}
	return route, nil
}

// GetEndpoints implements EndpointsFetcher.GetEndpoints.
func (c *Client) GetEndpoints(ctx context.Context, namespace, name string, port int32) ([]string, error) {
	ep, err := c.typedClient.CoreV1().Endpoints(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("clusterapi: get endpoints %s/%s: %w", namespace, name, ErrNotFound)
		}
		if apierrors.IsUnauthorized(err) {
			return nil, fmt.Errorf("clusterapi: get endpoints %s/%s: %w", namespace, name, ErrUnauthorized)
		}
		return nil, fmt.Errorf("clusterapi: get endpoints %s/%s: %w", namespace, name, err)
	}
	return addressesFromEndpoints(ep, port), nil
}

// WatchEndpoints implements EndpointsFetcher.WatchEndpoints.
func (c *Client) WatchEndpoints(ctx context.Context, namespace, name string, port int32) (<-chan EndpointsEvent, error) {
	selector := fields(name)
	initial, err := c.typedClient.CoreV1().Endpoints(namespace).Watch(ctx, metav1.ListOptions{FieldSelector: selector})
	if err != nil {
		return nil, fmt.Errorf("clusterapi: watch endpoints %s/%s: %w", namespace, name, err)
	}

	out := make(chan EndpointsEvent)
	go c.runEndpointsWatch(ctx, namespace, name, port, initial, out)
	return out, nil
}

func (c *Client) runEndpointsWatch(ctx context.Context, namespace, name string, port int32, first watch.Interface, out chan<- EndpointsEvent) {
	defer close(out)

	w := first
	backoff := c.baseBackoff
	for {
		if w == nil {
			var err error
			w, err = c.typedClient.CoreV1().Endpoints(namespace).Watch(ctx, metav1.ListOptions{FieldSelector: fields(name)})
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Warn("clusterapi: endpoints watch resubscribe failed",
					"namespace", namespace, "name", name, "error", err, "backoff", backoff)
				if !sleepOrDone(ctx, jitter(backoff)) {
					return
				}
				backoff = nextBackoff(backoff, c.maxBackoff)
				continue
			}
			backoff = c.baseBackoff
		}

		select {
		case <-ctx.Done():
			w.Stop()
			return
		case evt, ok := <-w.ResultChan():
			if !ok {
				w = nil
				continue
			}
			if evt.Type == watch.Deleted {
				select {
				case out <- EndpointsEvent{Type: Deleted}:
				case <-ctx.Done():
					w.Stop()
					return
				}
				continue
			}
			ep, ok := evt.Object.(*corev1.Endpoints)
			if !ok {
				continue
			}
			select {
			case out <- EndpointsEvent{Type: Applied, Addresses: addressesFromEndpoints(ep, port)}:
			case <-ctx.Done():
				w.Stop()
				return
			}
		}
	}
}

func addressesFromEndpoints(ep *corev1.Endpoints, port int32) []string {
	var addrs []string
	for _, subset := range ep.Subsets {
		for _, a := range subset.Addresses {
			addrs = append(addrs, fmt.Sprintf("%s:%d", a.IP, port))
		}
	}
	return addrs
}

func fields(name string) string {
	return "metadata.name=" + name
}

// jitter and nextBackoff reproduce the teacher's exponential-backoff-with-
// jitter reconnection strategy (internal/api.ReconnectEngine), generalized
// to any watch.Interface instead of one SSE connection.
func jitter(d time.Duration) time.Duration {
	const fraction = 0.25
	delta := (rand.Float64()*2 - 1) * fraction * float64(d)
	return time.Duration(float64(d) + delta)
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
