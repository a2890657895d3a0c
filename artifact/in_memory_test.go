package artifact

import (
	"errors"
	"testing"

	"github.com/hupe1980/sessionmesh/core"
)

// Interface compliance (compile-time assertions)
var _ core.ArtifactStore = (*InMemoryStore)(nil)

func TestInMemoryStore_PutGetIsolation(t *testing.T) {
	store := NewInMemoryStore()
	payload := []byte("hello")
	if err := store.Put(core.Artifact{SessionID: "s1", Step: "collect", Payload: payload, Status: core.ArtifactStatusCompleted}); err != nil {
		t.Fatalf("put: %v", err)
	}

	// mutate original slice
	payload[0] = 'H'
	out, err := store.Get("s1", "collect")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(out.Payload) != "hello" {
		t.Fatalf("expected 'hello', got %q", string(out.Payload))
	}
	if out.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be stamped")
	}

	// mutate returned slice
	out.Payload[0] = 'x'
	out2, _ := store.Get("s1", "collect")
	if string(out2.Payload) != "hello" {
		t.Fatalf("expected isolation, got %q", string(out2.Payload))
	}
}

func TestInMemoryStore_AppendOnly(t *testing.T) {
	store := NewInMemoryStore()
	if err := store.Put(core.Artifact{SessionID: "s1", Step: "collect", Payload: []byte("1")}); err != nil {
		t.Fatal(err)
	}

	err := store.Put(core.Artifact{SessionID: "s1", Step: "collect", Payload: []byte("2")})
	var dupErr *core.DuplicateArtifactError
	if !errors.As(err, &dupErr) {
		t.Fatalf("expected DuplicateArtifactError, got %v", err)
	}

	// the original record is untouched
	out, _ := store.Get("s1", "collect")
	if string(out.Payload) != "1" {
		t.Fatalf("expected first write to win, got %q", string(out.Payload))
	}
}

func TestInMemoryStore_MissingArtifact(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.Get("s1", "collect")
	var missingErr *core.MissingArtifactError
	if !errors.As(err, &missingErr) {
		t.Fatalf("expected MissingArtifactError, got %v", err)
	}
	if missingErr.SessionID != "s1" || missingErr.Step != "collect" {
		t.Fatalf("unexpected fields: %+v", missingErr)
	}
}

func TestInMemoryStore_ListInsertionOrder(t *testing.T) {
	store := NewInMemoryStore()
	for _, step := range []string{"collect", "analyze", "report"} {
		if err := store.Put(core.Artifact{SessionID: "s1", Step: step, Payload: []byte(step)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Put(core.Artifact{SessionID: "other", Step: "collect", Payload: []byte("x")}); err != nil {
		t.Fatal(err)
	}

	got, err := store.List("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 artifacts, got %d", len(got))
	}
	want := []string{"collect", "analyze", "report"}
	for i, a := range got {
		if a.Step != want[i] {
			t.Fatalf("expected order %v, got %s at %d", want, a.Step, i)
		}
	}
}
