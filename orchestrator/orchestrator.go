package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/sessionmesh/artifact"
	"github.com/hupe1980/sessionmesh/broker"
	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/internal/util"
	"github.com/hupe1980/sessionmesh/logging"
	"github.com/hupe1980/sessionmesh/session"
	"github.com/hupe1980/sessionmesh/state"
)

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// ArtifactStore persists step artifacts. Defaults to in-memory.
	ArtifactStore core.ArtifactStore
	// Archives persists session archives. Defaults to in-memory.
	Archives ArchiveStore
	// Backups stores session working-data blobs for recovery. Defaults to
	// an in-memory snapshot cache.
	Backups core.SnapshotCache
	// Metrics records per-session counters. Defaults to a fresh Recorder.
	Metrics *Recorder
	// Notifier receives lifecycle events. Defaults to NoopNotifier.
	Notifier core.Notifier
	// Logger receives diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
	// MaxConcurrentSessions bounds pipelines running at once.
	MaxConcurrentSessions int64
	// StepTimeout is the default broker round-trip bound handed to
	// sessions created here.
	StepTimeout time.Duration
	// HealthInterval is the period of the health monitor. Zero disables it.
	HealthInterval time.Duration
}

// sessionBackup is the working data stored per session for recovery.
type sessionBackup struct {
	Type   string            `json:"type"`
	Config map[string]string `json:"config"`
}

// namedChannel is an idempotently-created conduit between two sessions.
// Sends are serialized per channel so the target observes arrival order.
type namedChannel struct {
	mu     sync.Mutex
	target *session.Session
}

// Orchestrator manages the set of concurrently active sessions. Public
// methods are safe for concurrent use.
type Orchestrator struct {
	broker    *broker.Broker
	states    *state.Manager
	artifacts core.ArtifactStore
	archives  ArchiveStore
	backups   core.SnapshotCache
	metrics   *Recorder
	notifier  core.Notifier
	logger    logging.Logger

	stepTimeout time.Duration

	sem   *semaphore.Weighted
	group *errgroup.Group

	mu       sync.RWMutex
	types    map[string]session.Pipeline
	active   map[string]*session.Session
	channels map[string]*namedChannel

	runCtx context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs an Orchestrator over the given broker and state manager
// with optional overrides. The health monitor starts immediately when
// HealthInterval is non-zero; call Close to stop it and wait for running
// pipelines.
func New(b *broker.Broker, states *state.Manager, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		ArtifactStore:         artifact.NewInMemoryStore(),
		Archives:              NewInMemoryArchiveStore(),
		Backups:               state.NewInMemorySnapshotCache(),
		Metrics:               NewRecorder(),
		Notifier:              core.NoopNotifier{},
		Logger:                logging.NoOpLogger{},
		MaxConcurrentSessions: 16,
		StepTimeout:           30 * time.Second,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	runCtx, cancel := context.WithCancel(context.Background())

	o := &Orchestrator{
		broker:      b,
		states:      states,
		artifacts:   opts.ArtifactStore,
		archives:    opts.Archives,
		backups:     opts.Backups,
		metrics:     opts.Metrics,
		notifier:    opts.Notifier,
		logger:      opts.Logger,
		stepTimeout: opts.StepTimeout,
		sem:         semaphore.NewWeighted(opts.MaxConcurrentSessions),
		group:       &errgroup.Group{},
		types:       make(map[string]session.Pipeline),
		active:      make(map[string]*session.Session),
		channels:    make(map[string]*namedChannel),
		runCtx:      runCtx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	if opts.HealthInterval > 0 {
		go o.healthLoop(opts.HealthInterval)
	} else {
		close(o.done)
	}

	return o
}

// RegisterType adds a session type. The pipeline is validated here, at
// registration time, so CreateSession never resolves an unchecked
// definition.
func (o *Orchestrator) RegisterType(p session.Pipeline) error {
	if err := p.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.types[p.Type]; exists {
		return fmt.Errorf("session type %q already registered", p.Type)
	}
	o.types[p.Type] = p

	o.logger.Info("session type registered", "type", p.Type, "steps", len(p.Steps))

	return nil
}

// CreateSession instantiates a session of the registered type, initializes
// its lifecycle state and metrics, stores a recovery backup and adds it to
// the active set.
func (o *Orchestrator) CreateSession(sessionType string, config map[string]string) (*session.Session, error) {
	o.mu.RLock()
	p, ok := o.types[sessionType]
	o.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown session type %q", sessionType)
	}

	s, err := session.New(p, config, o.broker, o.states, o.artifacts, func(so *session.Options) {
		so.StepTimeout = o.stepTimeout
		so.Logger = o.logger
		so.Notifier = o.notifier
		so.Metrics = o.metrics
	})
	if err != nil {
		return nil, err
	}

	if err := o.RegisterSession(s); err != nil {
		return nil, err
	}

	if err := o.BackupSession(s.ID()); err != nil {
		o.logger.Warn("initial session backup failed", "session_id", s.ID(), "error", err)
	}

	o.notifier.Notify(core.NewLifecycleEvent(core.EventSessionCreated, s.ID(), map[string]any{
		"type": sessionType,
	}))

	return s, nil
}

// RegisterSession adds an already-constructed session to the active set.
func (o *Orchestrator) RegisterSession(s *session.Session) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.active[s.ID()]; exists {
		return &core.DuplicateSessionError{SessionID: s.ID()}
	}
	o.active[s.ID()] = s

	return nil
}

// Get returns an active session by id.
func (o *Orchestrator) Get(sessionID string) (*session.Session, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.active[sessionID]
	return s, ok
}

// ActiveSessions returns the ids currently in the active set.
func (o *Orchestrator) ActiveSessions() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]string, 0, len(o.active))
	for id := range o.active {
		out = append(out, id)
	}
	return out
}

// StartSession runs the session's pipeline on a managed worker goroutine.
// Admission is bounded by the orchestrator's semaphore; ctx only bounds the
// wait for a slot, the pipeline itself runs under the orchestrator's
// lifetime. A pipeline failure ends that session in the failed state and
// never affects other sessions.
func (o *Orchestrator) StartSession(ctx context.Context, sessionID string) error {
	s, ok := o.Get(sessionID)
	if !ok {
		return &core.UnknownSessionError{SessionID: sessionID}
	}

	if err := o.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire session slot: %w", err)
	}

	o.group.Go(func() error {
		defer o.sem.Release(1)

		if err := s.Run(o.runCtx); err != nil {
			o.logger.Warn("session pipeline failed", "session_id", sessionID, "error", err)
		}
		return nil
	})

	return nil
}

// RunSession runs the session's pipeline synchronously in the caller's
// goroutine, still counted against the concurrency bound.
func (o *Orchestrator) RunSession(ctx context.Context, sessionID string) error {
	s, ok := o.Get(sessionID)
	if !ok {
		return &core.UnknownSessionError{SessionID: sessionID}
	}

	if err := o.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire session slot: %w", err)
	}
	defer o.sem.Release(1)

	return s.Run(ctx)
}

// CoordinateSessions delivers a payload from one active session to another
// over a named channel. The channel for a given (source, target) pair is
// created on first use and reused afterwards; deliveries on one channel
// reach the target in the order sent.
func (o *Orchestrator) CoordinateSessions(sourceID, targetID string, payload []byte) error {
	o.mu.Lock()
	if _, ok := o.active[sourceID]; !ok {
		o.mu.Unlock()
		return &core.UnknownSessionError{SessionID: sourceID}
	}
	target, ok := o.active[targetID]
	if !ok {
		o.mu.Unlock()
		return &core.UnknownSessionError{SessionID: targetID}
	}

	key := sourceID + "->" + targetID
	ch, ok := o.channels[key]
	if !ok {
		ch = &namedChannel{target: target}
		o.channels[key] = ch
	}
	o.mu.Unlock()

	ch.mu.Lock()
	ch.target.Deliver(payload)
	ch.mu.Unlock()

	return nil
}

// ChannelCount returns the number of coordination channels established.
func (o *Orchestrator) ChannelCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.channels)
}

// operatorStates are the states an operator may request through
// ManageSessionState. Terminal states are reached only by the pipeline
// itself or by ArchiveSession.
var operatorStates = map[string]bool{
	state.StateActive:  true,
	state.StatePaused:  true,
	state.StateBlocked: true,
}

// ManageSessionState requests a lifecycle change for an active session.
// The orchestrator only restricts which states may be requested here;
// whether the edge is valid is decided solely by the state manager.
func (o *Orchestrator) ManageSessionState(sessionID, newState string) error {
	if _, ok := o.Get(sessionID); !ok {
		return &core.UnknownSessionError{SessionID: sessionID}
	}
	if !operatorStates[newState] {
		return fmt.Errorf("state %q cannot be requested through the orchestrator", newState)
	}

	return o.states.Transition(sessionID, newState, map[string]string{"requested_by": "orchestrator"})
}

// BackupSession stores the session's working data and a state snapshot so
// RecoverSession can rebuild it later.
func (o *Orchestrator) BackupSession(sessionID string) error {
	s, ok := o.Get(sessionID)
	if !ok {
		return &core.UnknownSessionError{SessionID: sessionID}
	}

	blob, err := json.Marshal(sessionBackup{Type: s.Type(), Config: s.Config()})
	if err != nil {
		return fmt.Errorf("marshal session backup: %w", err)
	}
	if err := o.backups.Put(backupKey(sessionID), blob); err != nil {
		return fmt.Errorf("store session backup: %w", err)
	}
	if _, err := o.states.SaveSnapshot(sessionID); err != nil {
		return fmt.Errorf("snapshot session state: %w", err)
	}

	return nil
}

// RecoverSession rebuilds a session from its last backup: working data from
// the backup blob, lifecycle state from the latest state snapshot. It
// returns nil (and no error) when no backup exists. The recovered session
// joins the active set.
func (o *Orchestrator) RecoverSession(sessionID string) (*session.Session, error) {
	blob, ok, err := o.backups.Get(backupKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("load session backup: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var backup sessionBackup
	if err := json.Unmarshal(blob, &backup); err != nil {
		return nil, fmt.Errorf("unmarshal session backup: %w", err)
	}

	restored, err := o.states.RestoreLatest(sessionID)
	if err != nil {
		return nil, err
	}
	if !restored {
		return nil, nil
	}

	o.mu.RLock()
	p, ok := o.types[backup.Type]
	o.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown session type %q in backup for session %s", backup.Type, sessionID)
	}

	s, err := session.Rehydrate(p, sessionID, backup.Config, o.broker, o.states, o.artifacts, func(so *session.Options) {
		so.StepTimeout = o.stepTimeout
		so.Logger = o.logger
		so.Notifier = o.notifier
		so.Metrics = o.metrics
	})
	if err != nil {
		return nil, err
	}

	if err := o.RegisterSession(s); err != nil {
		return nil, err
	}

	o.logger.Info("session recovered from backup", "session_id", sessionID, "type", backup.Type)

	return s, nil
}

// ArchiveSession collects the session's final state, full history, metrics
// and artifacts into one durable archive and removes the session from the
// active set. Only sessions in a terminal lifecycle state can be archived;
// the completed/failed -> archived edge is checked against the state
// machine up front, so an in-flight pipeline (still active or paused)
// cannot be archived out from under its own step. The archived transition
// is recorded only after the archive is durably stored; the archive's
// history therefore ends at the terminal state. Archival is the only way a
// session leaves the active set.
func (o *Orchestrator) ArchiveSession(sessionID string) error {
	s, ok := o.Get(sessionID)
	if !ok {
		return &core.UnknownSessionError{SessionID: sessionID}
	}

	finalState, err := o.states.Current(sessionID)
	if err != nil {
		return err
	}
	if err := o.states.Machine().ValidateTransition(finalState, state.StateArchived); err != nil {
		return err
	}

	history, err := o.states.History(sessionID)
	if err != nil {
		return err
	}
	artifacts, err := o.artifacts.List(sessionID)
	if err != nil {
		return fmt.Errorf("collect artifacts: %w", err)
	}
	metrics, _ := o.metrics.Snapshot(sessionID)

	arch := Archive{
		ID:         util.NewID(),
		SessionID:  sessionID,
		Type:       s.Type(),
		FinalState: finalState,
		History:    history,
		Artifacts:  artifacts,
		Metrics:    metrics,
		ArchivedAt: time.Now().UTC(),
	}

	// The archive must be durable before anything else changes: a failed
	// Put leaves state and active set untouched so archival can be retried.
	if err := o.archives.Put(arch); err != nil {
		return fmt.Errorf("store archive: %w", err)
	}

	if err := o.states.Transition(sessionID, state.StateArchived, nil); err != nil {
		return err
	}

	o.mu.Lock()
	delete(o.active, sessionID)
	for key, ch := range o.channels {
		if ch.target == s || channelSource(key) == sessionID {
			delete(o.channels, key)
		}
	}
	o.mu.Unlock()

	o.notifier.Notify(core.NewLifecycleEvent(core.EventSessionArchived, sessionID, map[string]any{
		"final_state": finalState,
		"artifacts":   len(artifacts),
	}))
	o.logger.Info("session archived", "session_id", sessionID, "final_state", finalState)

	return nil
}

// Archive returns the stored archive for a session.
func (o *Orchestrator) Archive(sessionID string) (Archive, error) {
	return o.archives.Get(sessionID)
}

// Metrics exposes the read side of the recorder for analytics.
func (o *Orchestrator) Metrics() core.MetricsSource { return o.metrics }

// Close stops the health monitor and waits for running pipelines to finish.
func (o *Orchestrator) Close() error {
	o.cancel()
	<-o.done
	return o.group.Wait()
}

// healthLoop periodically reports every active session's lifecycle state
// and step progress through the notifier.
func (o *Orchestrator) healthLoop(interval time.Duration) {
	defer close(o.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-o.runCtx.Done():
			return
		case <-ticker.C:
			for _, id := range o.ActiveSessions() {
				current, err := o.states.Current(id)
				if err != nil {
					continue
				}
				m, _ := o.metrics.Snapshot(id)
				o.notifier.Notify(core.NewLifecycleEvent(core.EventSessionHealth, id, map[string]any{
					"state":           current,
					"steps_completed": m.StepsCompleted,
					"steps_total":     m.StepsTotal,
					"errors":          m.ErrorCount,
				}))
			}
		}
	}
}

func backupKey(sessionID string) string { return "backup/" + sessionID }

func channelSource(channelKey string) string {
	src, _, _ := strings.Cut(channelKey, "->")
	return src
}
