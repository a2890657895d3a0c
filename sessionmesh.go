// Package sessionmesh provides a high-level façade over the broker, state
// manager, orchestrator and analytics packages for collaborative session
// pipelines. Most applications interact with this package by:
//  1. Creating a SessionMesh via New() (optionally overriding default
//     in-memory stores)
//  2. Registering agents and session types (the built-in catalog or YAML
//     definitions)
//  3. Creating and running sessions through the orchestrator helpers
//
// All defaults are safe for local development and testing; production
// deployments typically supply the sqlite-backed stores and a structured
// logger.
package sessionmesh

import (
	"context"
	"time"

	"github.com/hupe1980/sessionmesh/analytics"
	"github.com/hupe1980/sessionmesh/artifact"
	"github.com/hupe1980/sessionmesh/broker"
	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/logging"
	"github.com/hupe1980/sessionmesh/orchestrator"
	"github.com/hupe1980/sessionmesh/session"
	"github.com/hupe1980/sessionmesh/state"
)

// Options configures the SessionMesh instance.
type Options struct {
	// Stores (default to in-memory implementations if not provided)
	ArtifactStore core.ArtifactStore
	TransitionLog core.TransitionLog
	SnapshotCache core.SnapshotCache
	Archives      orchestrator.ArchiveStore

	// Notifier receives lifecycle events (defaults to NoopNotifier)
	Notifier core.Notifier

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// Analytics scoring thresholds
	Thresholds analytics.Thresholds

	// Orchestrator tuning
	MaxConcurrentSessions int64
	StepTimeout           time.Duration
	HealthInterval        time.Duration

	// RegisterCatalog loads the built-in session-type catalog into the
	// orchestrator. Enabled by default.
	RegisterCatalog bool
}

// SessionMesh is the high-level façade aggregating the broker, state
// manager, orchestrator and analytics reader.
type SessionMesh struct {
	registry     *broker.Registry
	broker       *broker.Broker
	states       *state.Manager
	orchestrator *orchestrator.Orchestrator
	analytics    *analytics.Analytics
}

// New creates a new SessionMesh instance with optional overrides. Any unset
// store is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) (*SessionMesh, error) {
	opts := Options{
		ArtifactStore:         artifact.NewInMemoryStore(),
		TransitionLog:         state.NewInMemoryTransitionLog(),
		SnapshotCache:         state.NewInMemorySnapshotCache(),
		Archives:              orchestrator.NewInMemoryArchiveStore(),
		Notifier:              core.NoopNotifier{},
		Logger:                logging.NoOpLogger{},
		Thresholds:            analytics.DefaultThresholds(),
		MaxConcurrentSessions: 16,
		StepTimeout:           30 * time.Second,
		RegisterCatalog:       true,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	registry := broker.NewRegistry(func(o *broker.RegistryOptions) {
		o.Logger = opts.Logger
	})

	b := broker.New(registry, func(o *broker.Options) {
		o.DefaultTimeout = opts.StepTimeout
		o.Logger = opts.Logger
		o.Notifier = opts.Notifier
	})

	states := state.NewManager(func(o *state.Options) {
		o.TransitionLog = opts.TransitionLog
		o.SnapshotCache = opts.SnapshotCache
		o.Notifier = opts.Notifier
		o.Logger = opts.Logger
	})

	orch := orchestrator.New(b, states, func(o *orchestrator.Options) {
		o.ArtifactStore = opts.ArtifactStore
		o.Archives = opts.Archives
		o.Backups = opts.SnapshotCache
		o.Notifier = opts.Notifier
		o.Logger = opts.Logger
		o.MaxConcurrentSessions = opts.MaxConcurrentSessions
		o.StepTimeout = opts.StepTimeout
		o.HealthInterval = opts.HealthInterval
	})

	m := &SessionMesh{
		registry:     registry,
		broker:       b,
		states:       states,
		orchestrator: orch,
		analytics: analytics.New(orch.Metrics(), func(o *analytics.Options) {
			o.Thresholds = opts.Thresholds
		}),
	}

	if opts.RegisterCatalog {
		for _, p := range session.Catalog() {
			if err := orch.RegisterType(p); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

// RegisterAgent adds a capability provider to the broker's registry.
func (m *SessionMesh) RegisterAgent(a core.Agent) error { return m.registry.Register(a) }

// RegisterType adds a session type to the orchestrator.
func (m *SessionMesh) RegisterType(p session.Pipeline) error {
	return m.orchestrator.RegisterType(p)
}

// CreateSession instantiates a session of a registered type.
func (m *SessionMesh) CreateSession(sessionType string, config map[string]string) (*session.Session, error) {
	return m.orchestrator.CreateSession(sessionType, config)
}

// RunSession is a synchronous helper that creates and runs a session to its
// terminal state, returning the id. The run error, if any, reflects the
// failed step; the session itself ends in the failed state and can still be
// archived and inspected.
func (m *SessionMesh) RunSession(ctx context.Context, sessionType string, config map[string]string) (string, error) {
	s, err := m.orchestrator.CreateSession(sessionType, config)
	if err != nil {
		return "", err
	}
	return s.ID(), m.orchestrator.RunSession(ctx, s.ID())
}

// Orchestrator exposes the underlying orchestrator for lifecycle operations
// (start, coordinate, archive, recover).
func (m *SessionMesh) Orchestrator() *orchestrator.Orchestrator { return m.orchestrator }

// States exposes the underlying state manager.
func (m *SessionMesh) States() *state.Manager { return m.states }

// Broker exposes the underlying message broker.
func (m *SessionMesh) Broker() *broker.Broker { return m.broker }

// Analytics exposes the read-only analytics instance.
func (m *SessionMesh) Analytics() *analytics.Analytics { return m.analytics }

// Close shuts down the orchestrator and waits for running sessions.
func (m *SessionMesh) Close() error { return m.orchestrator.Close() }
