package analytics

import (
	"time"

	"github.com/hupe1980/sessionmesh/core"
)

// Health buckets a performance score into a coarse rating.
type Health string

const (
	HealthExcellent Health = "excellent"
	HealthGood      Health = "good"
	HealthFair      Health = "fair"
	HealthPoor      Health = "poor"
)

// Thresholds are the normalization targets for scoring. A session exactly
// at a target scores 1.0 for that dimension; worse values degrade linearly
// toward 0.
type Thresholds struct {
	// TargetResponseTime is the mean broker round-trip at which the
	// response dimension still scores 1.0.
	TargetResponseTime time.Duration
	// MaxErrorRate is the errors-per-message rate that scores 0.
	MaxErrorRate float64
	// TargetUtilization is the fraction of session wall time spent inside
	// step round-trips at which the utilization dimension scores 1.0.
	TargetUtilization float64
}

// DefaultThresholds returns targets suitable for LLM-backed agents.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TargetResponseTime: 5 * time.Second,
		MaxErrorRate:       0.25,
		TargetUtilization:  0.5,
	}
}

// Options configures an Analytics instance.
type Options struct {
	Thresholds Thresholds
}

// Analytics computes scores over a metrics source.
type Analytics struct {
	source     core.MetricsSource
	thresholds Thresholds
}

// New creates an Analytics reader over the given source.
func New(source core.MetricsSource, optFns ...func(o *Options)) *Analytics {
	opts := Options{Thresholds: DefaultThresholds()}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Analytics{source: source, thresholds: opts.Thresholds}
}

// PerformanceScore returns the session's overall score in [0,1], the mean
// of the response-time, error-rate, completion-rate and utilization
// dimensions. It returns UnknownSessionError when no metrics were recorded
// for the session.
func (a *Analytics) PerformanceScore(sessionID string) (float64, error) {
	m, ok := a.source.Snapshot(sessionID)
	if !ok {
		return 0, &core.UnknownSessionError{SessionID: sessionID}
	}
	return a.score(m), nil
}

// HealthStatus buckets the session's performance score.
func (a *Analytics) HealthStatus(sessionID string) (Health, error) {
	score, err := a.PerformanceScore(sessionID)
	if err != nil {
		return "", err
	}
	return bucket(score), nil
}

// Comparison is the result of comparing two sessions.
type Comparison struct {
	SessionA string  `json:"session_a"`
	SessionB string  `json:"session_b"`
	ScoreA   float64 `json:"score_a"`
	ScoreB   float64 `json:"score_b"`
	// Better is the id of the higher-scoring session, empty on a tie.
	Better string `json:"better,omitempty"`
}

// Compare scores both sessions and reports which performed better.
func (a *Analytics) Compare(sessionA, sessionB string) (Comparison, error) {
	scoreA, err := a.PerformanceScore(sessionA)
	if err != nil {
		return Comparison{}, err
	}
	scoreB, err := a.PerformanceScore(sessionB)
	if err != nil {
		return Comparison{}, err
	}

	c := Comparison{
		SessionA: sessionA,
		SessionB: sessionB,
		ScoreA:   scoreA,
		ScoreB:   scoreB,
	}
	switch {
	case scoreA > scoreB:
		c.Better = sessionA
	case scoreB > scoreA:
		c.Better = sessionB
	}

	return c, nil
}

func (a *Analytics) score(m core.SessionMetrics) float64 {
	sum := a.responseScore(m) + a.errorScore(m) + m.CompletionRate() + a.utilizationScore(m)
	return sum / 4
}

// responseScore is 1.0 at or below the target mean round-trip and decays
// proportionally above it.
func (a *Analytics) responseScore(m core.SessionMetrics) float64 {
	avg := m.AverageResponseTime()
	if avg <= 0 {
		if m.StepsCompleted == 0 {
			return 0
		}
		return 1
	}
	return clamp(float64(a.thresholds.TargetResponseTime) / float64(avg))
}

func (a *Analytics) errorScore(m core.SessionMetrics) float64 {
	if a.thresholds.MaxErrorRate <= 0 {
		if m.ErrorRate() > 0 {
			return 0
		}
		return 1
	}
	return clamp(1 - m.ErrorRate()/a.thresholds.MaxErrorRate)
}

// utilizationScore rewards sessions that spend wall time inside step
// round-trips rather than idling between them.
func (a *Analytics) utilizationScore(m core.SessionMetrics) float64 {
	end := m.FinishedAt
	if end.IsZero() {
		end = time.Now()
	}
	wall := end.Sub(m.StartedAt)
	if wall <= 0 || a.thresholds.TargetUtilization <= 0 {
		return 0
	}
	util := float64(m.StepDuration) / float64(wall)
	return clamp(util / a.thresholds.TargetUtilization)
}

func bucket(score float64) Health {
	switch {
	case score >= 0.85:
		return HealthExcellent
	case score >= 0.65:
		return HealthGood
	case score >= 0.40:
		return HealthFair
	default:
		return HealthPoor
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
