package clusterapi

import "k8s.io/apimachinery/pkg/runtime/schema"

// GroupVersion is the ferrix.com/v1 API group this core watches.
var GroupVersion = schema.GroupVersion{Group: "ferrix.com", Version: "v1"}

// IngressRouteResource is the plural resource name used by the dynamic
// client to list/watch IngressRoute objects — there is no generated
// clientset for this CRD in core scope (spec.md §6.2 names the schema
// renderer as an out-of-core companion CLI).
var IngressRouteResource = GroupVersion.WithResource("ingressroutes")

// IngressRouteKind identifies the GVK for decoding unstructured watch
// events into IngressRoute.
var IngressRouteKind = GroupVersion.WithKind("IngressRoute")
