package orchestrator

import (
	"sync"
	"time"

	"github.com/hupe1980/sessionmesh/core"
)

// Recorder is the in-memory MetricsSink and MetricsSource implementation.
// It keeps cumulative counters per session; snapshots are copies, so
// analytics can read while pipelines keep writing.
type Recorder struct {
	mu       sync.RWMutex
	sessions map[string]*core.SessionMetrics
}

// NewRecorder constructs an empty metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{sessions: make(map[string]*core.SessionMetrics)}
}

// SessionStarted implements core.MetricsSink.
func (r *Recorder) SessionStarted(sessionID string, stepsTotal int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.get(sessionID)
	m.StepsTotal = stepsTotal
	m.StartedAt = time.Now().UTC()
}

// MessageRouted implements core.MetricsSink.
func (r *Recorder) MessageRouted(sessionID string, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.get(sessionID)
	if failed {
		m.MessagesFailed++
		m.ErrorCount++
		return
	}
	m.MessagesSent++
}

// StepCompleted implements core.MetricsSink.
func (r *Recorder) StepCompleted(sessionID, step string, dur time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.get(sessionID)
	m.StepsCompleted++
	m.StepDuration += dur
}

// ErrorHandled implements core.MetricsSink.
func (r *Recorder) ErrorHandled(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.get(sessionID).ErrorCount++
}

// SessionFinished implements core.MetricsSink.
func (r *Recorder) SessionFinished(sessionID string, completed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.get(sessionID)
	m.Completed = completed
	m.FinishedAt = time.Now().UTC()
}

// Snapshot implements core.MetricsSource.
func (r *Recorder) Snapshot(sessionID string) (core.SessionMetrics, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.sessions[sessionID]
	if !ok {
		return core.SessionMetrics{}, false
	}
	return *m, true
}

// get returns the record for the session, creating it lazily. Caller must
// hold the write lock.
func (r *Recorder) get(sessionID string) *core.SessionMetrics {
	m, ok := r.sessions[sessionID]
	if !ok {
		m = &core.SessionMetrics{SessionID: sessionID}
		r.sessions[sessionID] = m
	}
	return m
}
