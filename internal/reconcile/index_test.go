package reconcile

import (
	"context"
	"testing"

	"k8s.io/apimachinery/pkg/types"

	"github.com/plexsphere/ferrix/internal/routing"
)

func TestIndex_SetGetDelete(t *testing.T) {
	idx := newIndex()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	tbl := routing.NewTable()
	idx.set("uid-1", managedRoute{table: tbl, host: "a.example.com", key: "k1", cancel: cancel})

	got, ok := idx.get("uid-1")
	if !ok || got.host != "a.example.com" {
		t.Fatalf("get = %+v, %v", got, ok)
	}

	deleted, ok := idx.delete("uid-1")
	if !ok || deleted.host != "a.example.com" {
		t.Fatalf("delete = %+v, %v", deleted, ok)
	}
	if _, ok := idx.get("uid-1"); ok {
		t.Fatal("entry still present after delete")
	}
}

func TestIndex_UIDs(t *testing.T) {
	idx := newIndex()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	tbl := routing.NewTable()

	idx.set("uid-1", managedRoute{table: tbl, host: "a", cancel: cancel})
	idx.set("uid-2", managedRoute{table: tbl, host: "b", cancel: cancel})

	uids := idx.uids()
	if len(uids) != 2 {
		t.Fatalf("uids() = %v, want 2 entries", uids)
	}
	seen := map[types.UID]bool{}
	for _, u := range uids {
		seen[u] = true
	}
	if !seen["uid-1"] || !seen["uid-2"] {
		t.Errorf("uids() missing expected entries: %v", uids)
	}
}

func TestKeyedLock_SameUIDSerializes(t *testing.T) {
	var kl keyedLock
	l1 := kl.forUID("uid-1")
	l2 := kl.forUID("uid-1")
	if l1 != l2 {
		t.Error("forUID returned different locks for the same uid")
	}
	l3 := kl.forUID("uid-2")
	if l1 == l3 {
		t.Error("forUID returned the same lock for different uids")
	}
}
