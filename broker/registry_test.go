package broker

import (
	"errors"
	"testing"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/internal/testutil"
)

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(testutil.NewScriptedAgent("a1", []string{"analysis"})); err != nil {
		t.Fatalf("register: %v", err)
	}

	err := r.Register(testutil.NewScriptedAgent("a1", []string{"reporting"}))
	var dupErr *core.DuplicateAgentError
	if !errors.As(err, &dupErr) {
		t.Fatalf("expected DuplicateAgentError, got %v", err)
	}
}

func TestRegistry_Candidates_SupersetMatch(t *testing.T) {
	r := NewRegistry()
	must(t, r.Register(testutil.NewScriptedAgent("narrow", []string{"analysis"})))
	must(t, r.Register(testutil.NewScriptedAgent("wide", []string{"analysis", "reporting", "security"})))

	got := r.Candidates([]string{"analysis", "reporting"})
	if len(got) != 1 || got[0].ID() != "wide" {
		t.Fatalf("expected only the superset agent, got %v", ids(got))
	}
}

func TestRegistry_Candidates_SortedByID(t *testing.T) {
	r := NewRegistry()
	must(t, r.Register(testutil.NewScriptedAgent("zeta", []string{"analysis"})))
	must(t, r.Register(testutil.NewScriptedAgent("alpha", []string{"analysis"})))
	must(t, r.Register(testutil.NewScriptedAgent("mid", []string{"analysis"})))

	got := ids(r.Candidates([]string{"analysis"}))
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	must(t, r.Register(testutil.NewScriptedAgent("a1", []string{"analysis"})))

	r.Unregister("a1")

	if _, ok := r.Get("a1"); ok {
		t.Fatal("expected agent to be gone")
	}
	if r.Size() != 0 {
		t.Fatalf("size: got %d", r.Size())
	}
}

func TestRegistry_EmptyRequirementMatchesAll(t *testing.T) {
	r := NewRegistry()
	must(t, r.Register(testutil.NewScriptedAgent("a1", []string{"analysis"})))
	must(t, r.Register(testutil.NewScriptedAgent("a2", nil)))

	if got := len(r.Candidates(nil)); got != 2 {
		t.Fatalf("expected all agents, got %d", got)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func ids(agents []core.Agent) []string {
	out := make([]string, 0, len(agents))
	for _, a := range agents {
		out = append(out, a.ID())
	}
	return out
}
