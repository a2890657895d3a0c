package state

import (
	"testing"
	"time"

	"github.com/hupe1980/sessionmesh/core"
)

func TestInMemoryTransitionLog_AppendOrder(t *testing.T) {
	log := NewInMemoryTransitionLog()

	for _, to := range []string{StateInitialized, StateActive, StateCompleted} {
		if err := log.Append(core.Transition{SessionID: "s1", To: to, Timestamp: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}
	if err := log.Append(core.Transition{SessionID: "other", To: StateInitialized}); err != nil {
		t.Fatal(err)
	}

	got, err := log.BySession("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[2].To != StateCompleted {
		t.Fatalf("expected append order preserved, got %v", got)
	}
}

func TestInMemorySnapshotCache_BlobIsolation(t *testing.T) {
	cache := NewInMemorySnapshotCache()
	blob := []byte("state")
	if err := cache.Put("s1/latest", blob); err != nil {
		t.Fatal(err)
	}

	blob[0] = 'S'
	out, ok, err := cache.Get("s1/latest")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(out) != "state" {
		t.Fatalf("expected stored copy, got %q", string(out))
	}

	out[0] = 'x'
	out2, _, _ := cache.Get("s1/latest")
	if string(out2) != "state" {
		t.Fatalf("expected isolation, got %q", string(out2))
	}

	if _, ok, _ := cache.Get("missing"); ok {
		t.Fatal("expected miss for unknown key")
	}
}
