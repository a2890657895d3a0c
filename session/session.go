package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/sessionmesh/broker"
	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/internal/util"
	"github.com/hupe1980/sessionmesh/logging"
	"github.com/hupe1980/sessionmesh/state"
)

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// SessionID overrides the generated id. Mainly for tests and recovery.
	SessionID string
	// StepTimeout bounds broker round-trips for steps without their own.
	StepTimeout time.Duration
	// Backoff shapes the retry curve for timed-out steps.
	Backoff Backoff
	// Logger receives step diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
	// Notifier receives step and error lifecycle events.
	Notifier core.Notifier
	// Metrics receives step and message counters.
	Metrics core.MetricsSink
}

// Session is one running instance of a pipeline: a unique id, an immutable
// configuration map, per-step artifacts and a lifecycle state owned by the
// state manager. The zero value is not usable; construct via New.
type Session struct {
	id       string
	pipeline Pipeline
	config   map[string]string

	broker    *broker.Broker
	states    *state.Manager
	artifacts core.ArtifactStore

	stepTimeout time.Duration
	backoff     Backoff
	logger      logging.Logger
	notifier    core.Notifier
	metrics     core.MetricsSink

	mu    sync.Mutex
	inbox [][]byte
}

// New validates the pipeline, generates the session id, initializes the
// lifecycle state and returns a session ready to Run.
func New(
	p Pipeline,
	config map[string]string,
	b *broker.Broker,
	states *state.Manager,
	artifacts core.ArtifactStore,
	optFns ...func(o *Options),
) (*Session, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	opts := Options{
		StepTimeout: 30 * time.Second,
		Backoff:     DefaultBackoff(),
		Logger:      logging.NoOpLogger{},
		Notifier:    core.NoopNotifier{},
		Metrics:     core.NoopMetrics{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	id := opts.SessionID
	if id == "" {
		id = util.NewID()
	}

	cfg := make(map[string]string, len(config))
	for k, v := range config {
		cfg[k] = v
	}

	if err := states.Initialize(id, map[string]string{"type": p.Type}); err != nil {
		return nil, err
	}

	return &Session{
		id:          id,
		pipeline:    p,
		config:      cfg,
		broker:      b,
		states:      states,
		artifacts:   artifacts,
		stepTimeout: opts.StepTimeout,
		backoff:     opts.Backoff,
		logger:      opts.Logger,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
	}, nil
}

// Rehydrate reconstructs a session whose lifecycle state already exists in
// the state manager, e.g. after the orchestrator restored a backup
// snapshot. Unlike New it does not initialize state; the session id must be
// known to the manager.
func Rehydrate(
	p Pipeline,
	sessionID string,
	config map[string]string,
	b *broker.Broker,
	states *state.Manager,
	artifacts core.ArtifactStore,
	optFns ...func(o *Options),
) (*Session, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if _, err := states.Current(sessionID); err != nil {
		return nil, err
	}

	opts := Options{
		StepTimeout: 30 * time.Second,
		Backoff:     DefaultBackoff(),
		Logger:      logging.NoOpLogger{},
		Notifier:    core.NoopNotifier{},
		Metrics:     core.NoopMetrics{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := make(map[string]string, len(config))
	for k, v := range config {
		cfg[k] = v
	}

	return &Session{
		id:          sessionID,
		pipeline:    p,
		config:      cfg,
		broker:      b,
		states:      states,
		artifacts:   artifacts,
		stepTimeout: opts.StepTimeout,
		backoff:     opts.Backoff,
		logger:      opts.Logger,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
	}, nil
}

// ID returns the generated session id.
func (s *Session) ID() string { return s.id }

// Type returns the pipeline type name.
func (s *Session) Type() string { return s.pipeline.Type }

// Config returns a copy of the immutable configuration map.
func (s *Session) Config() map[string]string {
	cp := make(map[string]string, len(s.config))
	for k, v := range s.config {
		cp[k] = v
	}
	return cp
}

// Deliver appends a coordinated message payload to the session's inbox.
// Arrival order is preserved; steps read the inbox via StepContext.
func (s *Session) Deliver(payload []byte) {
	cp := make([]byte, len(payload))
	copy(cp, payload)

	s.mu.Lock()
	s.inbox = append(s.inbox, cp)
	s.mu.Unlock()
}

// Run executes the pipeline to completion. Steps run strictly in order;
// each produces exactly one artifact before the next starts. On success the
// final report is persisted under ReportStep and the session ends in the
// completed state. On any step failure a failure report is persisted
// instead and the session ends in the failed state; the error is returned
// to the caller but never panics across this boundary.
func (s *Session) Run(ctx context.Context) error {
	if err := s.states.Transition(s.id, state.StateActive, nil); err != nil {
		return err
	}

	s.metrics.SessionStarted(s.id, len(s.pipeline.Steps)+1)

	for _, st := range s.pipeline.Steps {
		if err := s.runStep(ctx, st); err != nil {
			s.fail(st.Name, err)
			return fmt.Errorf("step %q: %w", st.Name, err)
		}
	}

	report, err := s.aggregate()
	if err != nil {
		s.fail(ReportStep, err)
		return fmt.Errorf("aggregate report: %w", err)
	}

	if err := s.artifacts.Put(core.Artifact{
		SessionID: s.id,
		Step:      ReportStep,
		Payload:   report,
		Status:    core.ArtifactStatusCompleted,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		s.fail(ReportStep, err)
		return fmt.Errorf("persist report: %w", err)
	}

	s.metrics.StepCompleted(s.id, ReportStep, 0)

	if err := s.states.Transition(s.id, state.StateCompleted, nil); err != nil {
		return err
	}
	s.metrics.SessionFinished(s.id, true)

	return nil
}

// runStep performs one step: dependency check, payload build, bounded
// round-trip with timeout retries, artifact persistence.
func (s *Session) runStep(ctx context.Context, st Step) error {
	stepCtx := s.stepContext(st.Name)

	for _, need := range st.Needs {
		if _, err := s.artifacts.Get(s.id, need); err != nil {
			return err
		}
	}

	build := st.BuildPayload
	if build == nil {
		build = defaultPayload
	}
	payload, err := build(stepCtx)
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}

	msg := core.NewMessage(s.id).
		WithPayload(payload).
		WithMetadata("task", st.Name).
		WithMetadata("session_type", s.pipeline.Type).
		Require(st.Capabilities...).
		Build()

	timeout := st.Timeout
	if timeout <= 0 {
		timeout = s.stepTimeout
	}

	var reply core.Reply
	for attempt := 0; ; attempt++ {
		start := time.Now()
		s.metrics.MessageRouted(s.id, false)

		reply, err = s.broker.RouteAndWait(ctx, msg, timeout)
		if err == nil {
			s.logger.Debug("step round-trip completed", "session_id", s.id, "step", st.Name, "agent_id", reply.AgentID, "duration", time.Since(start))
			break
		}

		s.metrics.MessageRouted(s.id, true)

		var timeoutErr *core.TimeoutError
		if !errors.As(err, &timeoutErr) || attempt >= st.MaxRetries {
			return err
		}

		delay := s.backoff.Delay(attempt)
		s.logger.Warn("step timed out, retrying", "session_id", s.id, "step", st.Name, "attempt", attempt+1, "delay", delay)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	if err := s.artifacts.Put(core.Artifact{
		SessionID: s.id,
		Step:      st.Name,
		Payload:   reply.Payload,
		Status:    core.ArtifactStatusCompleted,
		Metadata:  map[string]string{"agent_id": reply.AgentID},
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	dur := time.Since(reply.Received)
	if dur < 0 {
		dur = 0
	}
	s.metrics.StepCompleted(s.id, st.Name, dur)
	s.notifier.Notify(core.NewLifecycleEvent(core.EventStepCompleted, s.id, map[string]any{
		"step":     st.Name,
		"agent_id": reply.AgentID,
	}))

	return nil
}

// aggregate compiles the final report from persisted artifacts only.
func (s *Session) aggregate() ([]byte, error) {
	stepCtx := s.stepContext("")

	if s.pipeline.Aggregate != nil {
		return s.pipeline.Aggregate(stepCtx)
	}
	return defaultAggregate(s.pipeline, stepCtx)
}

// fail records the failure report, emits the error event and drives the
// session into the failed state. Errors raised here are logged, not
// propagated: the caller already holds the primary failure.
func (s *Session) fail(step string, cause error) {
	s.metrics.ErrorHandled(s.id)

	report, err := json.Marshal(map[string]any{
		"failed_step": step,
		"reason":      cause.Error(),
	})
	if err == nil {
		if putErr := s.artifacts.Put(core.Artifact{
			SessionID: s.id,
			Step:      ReportStep,
			Payload:   report,
			Status:    core.ArtifactStatusFailed,
			CreatedAt: time.Now().UTC(),
		}); putErr != nil {
			s.logger.Warn("could not persist failure report", "session_id", s.id, "error", putErr)
		}
	}

	s.notifier.Notify(core.NewLifecycleEvent(core.EventErrorHandled, s.id, map[string]any{
		"step":  step,
		"error": cause.Error(),
	}))

	if err := s.states.Transition(s.id, state.StateFailed, map[string]string{"failed_step": step}); err != nil {
		s.logger.Error("could not transition session to failed", "session_id", s.id, "error", err)
	}
	s.metrics.SessionFinished(s.id, false)
}

func (s *Session) stepContext(step string) *StepContext {
	return &StepContext{
		SessionID:   s.id,
		SessionType: s.pipeline.Type,
		Step:        step,
		Config:      s.Config(),
		artifacts:   s.artifacts,
		inbox: func() [][]byte {
			s.mu.Lock()
			defer s.mu.Unlock()
			out := make([][]byte, len(s.inbox))
			copy(out, s.inbox)
			return out
		},
	}
}
