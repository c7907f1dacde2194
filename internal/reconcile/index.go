package reconcile

import (
	"context"
	"sync"

	"k8s.io/apimachinery/pkg/types"

	"github.com/plexsphere/ferrix/internal/routing"
)

// managedRoute is everything the reconciler needs to tear down or compare
// against a previously applied IngressRoute, keyed by its uid. This is the
// managed-object index of spec.md §3/§4.4.
type managedRoute struct {
	table       *routing.Table
	entrypoint  string
	host        string
	key         string // desired-state fingerprint: entrypoint|host|namespace/name:port
	cancel      context.CancelFunc
	placeholder bool // true while the pool is the emptyPool fetch-failure stand-in
}

// index tracks every currently-applied IngressRoute by uid. A uid never
// moves tables without first being removed — the reconciler enforces that
// by always going through set/delete under the uid's keyed lock.
type index struct {
	mu      sync.RWMutex
	entries map[types.UID]managedRoute
}

func newIndex() *index {
	return &index{entries: make(map[types.UID]managedRoute)}
}

func (idx *index) get(uid types.UID) (managedRoute, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.entries[uid]
	return e, ok
}

func (idx *index) set(uid types.UID, e managedRoute) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[uid] = e
}

func (idx *index) delete(uid types.UID) (managedRoute, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	e, ok := idx.entries[uid]
	if ok {
		delete(idx.entries, uid)
	}
	return e, ok
}

// uids returns every uid currently tracked, used to diff against a
// Restarted event's full object list.
func (idx *index) uids() []types.UID {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]types.UID, 0, len(idx.entries))
	for uid := range idx.entries {
		out = append(out, uid)
	}
	return out
}

// keyedLock hands out a per-uid mutex, serializing events for the same
// IngressRoute while letting unrelated uids proceed concurrently —
// spec.md §5's ordering guarantee, generalized from the teacher's single
// table-wide lock to one lock per key.
type keyedLock struct {
	locks sync.Map // types.UID -> *sync.Mutex
}

func (k *keyedLock) forUID(uid types.UID) *sync.Mutex {
	v, _ := k.locks.LoadOrStore(uid, &sync.Mutex{})
	return v.(*sync.Mutex)
}
