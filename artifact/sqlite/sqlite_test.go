package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sessionmesh/core"
)

// Interface compliance (compile-time assertions)
var (
	_ core.ArtifactStore = (*Store)(nil)
	_ core.TransitionLog = (*Store)(nil)
)

func openStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "mesh.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func TestStore_ArtifactRoundTrip(t *testing.T) {
	s := openStore(t)

	in := core.Artifact{
		SessionID: "s1",
		Step:      "collect",
		Payload:   []byte(`{"updates":[]}`),
		Status:    core.ArtifactStatusCompleted,
		Metadata:  map[string]string{"agent_id": "facilitator"},
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, s.Put(in))

	out, err := s.Get("s1", "collect")
	require.NoError(t, err)
	assert.Equal(t, in.SessionID, out.SessionID)
	assert.Equal(t, in.Step, out.Step)
	assert.Equal(t, in.Payload, out.Payload)
	assert.Equal(t, in.Status, out.Status)
	assert.Equal(t, in.Metadata, out.Metadata)
	assert.True(t, out.CreatedAt.Equal(in.CreatedAt))
}

func TestStore_DuplicateArtifact(t *testing.T) {
	s := openStore(t)

	a := core.Artifact{SessionID: "s1", Step: "collect", Payload: []byte("1"), Status: core.ArtifactStatusCompleted}
	require.NoError(t, s.Put(a))

	err := s.Put(a)
	var dupErr *core.DuplicateArtifactError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "collect", dupErr.Step)
}

func TestStore_MissingArtifact(t *testing.T) {
	s := openStore(t)

	_, err := s.Get("s1", "nope")
	var missingErr *core.MissingArtifactError
	require.ErrorAs(t, err, &missingErr)
}

func TestStore_ListOrder(t *testing.T) {
	s := openStore(t)

	base := time.Now().UTC()
	for i, step := range []string{"collect", "analyze", "report"} {
		require.NoError(t, s.Put(core.Artifact{
			SessionID: "s1",
			Step:      step,
			Payload:   []byte(step),
			Status:    core.ArtifactStatusCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, s.Put(core.Artifact{SessionID: "other", Step: "collect", Status: core.ArtifactStatusCompleted}))

	got, err := s.List("s1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "collect", got[0].Step)
	assert.Equal(t, "analyze", got[1].Step)
	assert.Equal(t, "report", got[2].Step)
}

func TestStore_ListOrderOnEqualTimestamps(t *testing.T) {
	s := openStore(t)

	// same created_at for every row; insertion order must still win over
	// the lexicographic step order
	now := time.Now().UTC().Truncate(time.Microsecond)
	for _, step := range []string{"zeta", "midpoint", "alpha"} {
		require.NoError(t, s.Put(core.Artifact{
			SessionID: "s1",
			Step:      step,
			Payload:   []byte(step),
			Status:    core.ArtifactStatusCompleted,
			CreatedAt: now,
		}))
	}

	got, err := s.List("s1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "zeta", got[0].Step)
	assert.Equal(t, "midpoint", got[1].Step)
	assert.Equal(t, "alpha", got[2].Step)
}

func TestStore_TransitionLog(t *testing.T) {
	s := openStore(t)

	now := time.Now().UTC().Truncate(time.Microsecond)
	entries := []core.Transition{
		{SessionID: "s1", To: "initialized", Timestamp: now},
		{SessionID: "s1", From: "initialized", To: "active", Timestamp: now.Add(time.Second), Metadata: map[string]string{"requested_by": "orchestrator"}},
		{SessionID: "other", To: "initialized", Timestamp: now},
	}
	for _, e := range entries {
		require.NoError(t, s.Append(e))
	}

	got, err := s.BySession("s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "", got[0].From)
	assert.Equal(t, "active", got[1].To)
	assert.Equal(t, map[string]string{"requested_by": "orchestrator"}, got[1].Metadata)
	assert.True(t, got[1].Timestamp.Equal(now.Add(time.Second)))
}
