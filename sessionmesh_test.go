package sessionmesh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sessionmesh/agent"
	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/session"
	"github.com/hupe1980/sessionmesh/state"
)

func echoAgent(id string, caps ...string) *agent.Func {
	return agent.NewFunc(id, caps, func(ctx context.Context, msg core.Message) ([]byte, error) {
		return []byte(`{"from":"` + id + `"}`), nil
	})
}

func TestSessionMesh_EndToEnd(t *testing.T) {
	mesh, err := New(func(o *Options) {
		o.StepTimeout = 2 * time.Second
	})
	require.NoError(t, err)
	defer mesh.Close()

	require.NoError(t, mesh.RegisterAgent(echoAgent("facilitator", session.CapFacilitation)))
	require.NoError(t, mesh.RegisterAgent(echoAgent("analyst", session.CapAnalysis)))
	require.NoError(t, mesh.RegisterAgent(echoAgent("reporter", session.CapReporting)))

	sessionID, err := mesh.RunSession(context.Background(), "daily-standup", map[string]string{"team": "platform"})
	require.NoError(t, err)

	current, err := mesh.States().Current(sessionID)
	require.NoError(t, err)
	assert.Equal(t, state.StateCompleted, current)

	score, err := mesh.Analytics().PerformanceScore(sessionID)
	require.NoError(t, err)
	assert.Greater(t, score, 0.0)

	require.NoError(t, mesh.Orchestrator().ArchiveSession(sessionID))
	arch, err := mesh.Orchestrator().Archive(sessionID)
	require.NoError(t, err)
	assert.Equal(t, "daily-standup", arch.Type)
	assert.NotEmpty(t, arch.Artifacts)
}

func TestSessionMesh_CatalogRegisteredByDefault(t *testing.T) {
	mesh, err := New()
	require.NoError(t, err)
	defer mesh.Close()

	// every built-in type can be instantiated
	for name := range session.Catalog() {
		s, createErr := mesh.CreateSession(name, nil)
		require.NoError(t, createErr, "type %s", name)
		require.NotNil(t, s)
	}
}

func TestSessionMesh_CatalogOptOut(t *testing.T) {
	mesh, err := New(func(o *Options) {
		o.RegisterCatalog = false
	})
	require.NoError(t, err)
	defer mesh.Close()

	_, err = mesh.CreateSession("daily-standup", nil)
	require.Error(t, err, "catalog types absent when opted out")
}

func TestSessionMesh_CustomType(t *testing.T) {
	mesh, err := New(func(o *Options) {
		o.RegisterCatalog = false
	})
	require.NoError(t, err)
	defer mesh.Close()

	require.NoError(t, mesh.RegisterAgent(echoAgent("worker", "custom-cap")))
	require.NoError(t, mesh.RegisterType(session.Pipeline{
		Type:  "custom",
		Steps: []session.Step{{Name: "only", Capabilities: []string{"custom-cap"}}},
	}))

	sessionID, err := mesh.RunSession(context.Background(), "custom", nil)
	require.NoError(t, err)

	current, err := mesh.States().Current(sessionID)
	require.NoError(t, err)
	assert.Equal(t, state.StateCompleted, current)
}
