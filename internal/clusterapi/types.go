// Package clusterapi wraps the Kubernetes API client and watch machinery
// that the reconciler consumes. Only the interfaces below are in scope
// for the core — the concrete client-go wiring in this package is the
// "external collaborator" spec.md treats as out of core, included here so
// the module builds end to end.
package clusterapi

import (
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
)

// IngressRoute is the ferrix.com/v1 IngressRoute custom resource, cluster
// identity assigned and never reused by the control plane.
type IngressRoute struct {
	UID               types.UID
	Name              string
	Namespace         string
	DeletionTimestamp *metav1.Time
	Spec              IngressRouteSpec
}

// Deleting reports whether this object is marked for deletion (a
// DeletionTimestamp is set but the object has not yet been removed from
// the API — the finalizer window).
func (r *IngressRoute) Deleting() bool {
	return r.DeletionTimestamp != nil
}

// IngressRouteSpec is the desired-state portion of an IngressRoute.
type IngressRouteSpec struct {
	EntryPoint string
	Route      RouteSpec
	TLS        *TLSSpec // reserved; unused by the data plane, see Open Questions
}

// RouteSpec names the Host this route matches and the rules selecting a
// backing service. Only Rules[0] is consumed; see spec's Open Question on
// multi-rule semantics.
type RouteSpec struct {
	Host  string
	Rules []RouteRule
}

// RouteRule names the service backing a route.
type RouteRule struct {
	Service ServiceRef
}

// ServiceRef identifies a Kubernetes Service by name, namespace, and port.
type ServiceRef struct {
	Name      string
	Namespace string
	Port      int32
}

// TLSSpec is a reserved reference to TLS material; not wired into the
// listener or upstream peer by this core (spec.md §9).
type TLSSpec struct {
	SecretName string
}

// EventType tags a RouteEvent or EndpointsEvent the way
// k8s.io/apimachinery/pkg/watch.Event does, generalized with a Restarted
// variant for a full-set resync (the informer's relist pass).
type EventType int

const (
	Applied EventType = iota
	Deleted
	Restarted
)

func (t EventType) String() string {
	switch t {
	case Applied:
		return "Applied"
	case Deleted:
		return "Deleted"
	case Restarted:
		return "Restarted"
	default:
		return "Unknown"
	}
}

// RouteEvent is one entry of the IngressRoute event stream the reconciler
// consumes. For Restarted, List holds every currently known object and
// Object is nil.
type RouteEvent struct {
	Type   EventType
	Object *IngressRoute
	List   []*IngressRoute
}

// EndpointsEvent is one entry of the per-route Endpoints watch. For
// Applied and Restarted, Addresses is the complete current backend list
// and replaces the previous pool outright, never merged with prior state.
type EndpointsEvent struct {
	Type      EventType
	Addresses []string // "ip:port" strings, already combined with service.port
}

// backoffDefaults mirror the teacher's reconnect-engine defaults.
const (
	defaultBaseBackoff = 1 * time.Second
	defaultMaxBackoff  = 60 * time.Second
)
