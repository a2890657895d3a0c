package core

import "time"

// SessionMetrics aggregates the recorded counters for one session. Values
// are cumulative; analytics derives rates and scores from them.
type SessionMetrics struct {
	SessionID      string        `json:"session_id"`
	MessagesSent   int           `json:"messages_sent"`
	MessagesFailed int           `json:"messages_failed"`
	ErrorCount     int           `json:"error_count"`
	StepsCompleted int           `json:"steps_completed"`
	StepsTotal     int           `json:"steps_total"`
	StepDuration   time.Duration `json:"step_duration"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at,omitempty"`
	Completed      bool          `json:"completed"`
}

// AverageResponseTime returns the mean broker round-trip duration per
// completed step, or zero when no step finished yet.
func (m SessionMetrics) AverageResponseTime() time.Duration {
	if m.StepsCompleted == 0 {
		return 0
	}
	return m.StepDuration / time.Duration(m.StepsCompleted)
}

// ErrorRate returns errors per sent message in [0,1].
func (m SessionMetrics) ErrorRate() float64 {
	if m.MessagesSent == 0 {
		return 0
	}
	return float64(m.ErrorCount) / float64(m.MessagesSent)
}

// CompletionRate returns completed steps over total steps in [0,1].
func (m SessionMetrics) CompletionRate() float64 {
	if m.StepsTotal == 0 {
		return 0
	}
	return float64(m.StepsCompleted) / float64(m.StepsTotal)
}

// MetricsSink receives metric updates from the session pipeline and the
// orchestrator. Implementations must be safe for concurrent use.
type MetricsSink interface {
	// SessionStarted initializes counters for a session about to run.
	SessionStarted(sessionID string, stepsTotal int)
	// MessageRouted records one broker round-trip attempt.
	MessageRouted(sessionID string, failed bool)
	// StepCompleted records a successfully finished step.
	StepCompleted(sessionID, step string, dur time.Duration)
	// ErrorHandled records an error absorbed at the step boundary.
	ErrorHandled(sessionID string)
	// SessionFinished marks the terminal outcome.
	SessionFinished(sessionID string, completed bool)
}

// MetricsSource is the read side consumed by analytics.
type MetricsSource interface {
	// Snapshot returns a copy of the session's metrics; the boolean reports
	// whether any were recorded.
	Snapshot(sessionID string) (SessionMetrics, bool)
}

// NoopMetrics discards all updates. Default when no sink is configured.
type NoopMetrics struct{}

// SessionStarted implements MetricsSink.
func (NoopMetrics) SessionStarted(string, int) {}

// MessageRouted implements MetricsSink.
func (NoopMetrics) MessageRouted(string, bool) {}

// StepCompleted implements MetricsSink.
func (NoopMetrics) StepCompleted(string, string, time.Duration) {}

// ErrorHandled implements MetricsSink.
func (NoopMetrics) ErrorHandled(string) {}

// SessionFinished implements MetricsSink.
func (NoopMetrics) SessionFinished(string, bool) {}
