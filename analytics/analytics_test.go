package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sessionmesh/core"
)

// stubSource serves fixed metrics for scoring tests.
type stubSource map[string]core.SessionMetrics

func (s stubSource) Snapshot(sessionID string) (core.SessionMetrics, bool) {
	m, ok := s[sessionID]
	return m, ok
}

// perfectMetrics describes a finished session at every scoring target:
// fast steps, no errors, all steps done, high utilization.
func perfectMetrics(now time.Time) core.SessionMetrics {
	return core.SessionMetrics{
		SessionID:      "good",
		MessagesSent:   4,
		StepsCompleted: 4,
		StepsTotal:     4,
		StepDuration:   4 * time.Second,
		StartedAt:      now.Add(-5 * time.Second),
		FinishedAt:     now,
		Completed:      true,
	}
}

func TestPerformanceScore_AllTargetsMet(t *testing.T) {
	now := time.Now()
	a := New(stubSource{"good": perfectMetrics(now)})

	score, err := a.PerformanceScore("good")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 0.01)
}

func TestPerformanceScore_UnknownSession(t *testing.T) {
	a := New(stubSource{})

	_, err := a.PerformanceScore("missing")
	var unknownErr *core.UnknownSessionError
	require.ErrorAs(t, err, &unknownErr)
}

func TestPerformanceScore_DegradesWithErrors(t *testing.T) {
	now := time.Now()
	good := perfectMetrics(now)

	bad := good
	bad.SessionID = "bad"
	bad.ErrorCount = 4 // error rate 1.0, well past the 0.25 target

	a := New(stubSource{"good": good, "bad": bad})

	goodScore, err := a.PerformanceScore("good")
	require.NoError(t, err)
	badScore, err := a.PerformanceScore("bad")
	require.NoError(t, err)
	assert.Greater(t, goodScore, badScore)
}

func TestPerformanceScore_SlowResponsesClampToZeroNotNegative(t *testing.T) {
	now := time.Now()
	m := perfectMetrics(now)
	m.StepDuration = 400 * time.Second // 100s mean against a 5s target

	a := New(stubSource{"good": m})

	score, err := a.PerformanceScore("good")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.Less(t, score, 1.0)
}

func TestHealthStatus_Buckets(t *testing.T) {
	cases := []struct {
		score float64
		want  Health
	}{
		{0.95, HealthExcellent},
		{0.85, HealthExcellent},
		{0.70, HealthGood},
		{0.50, HealthFair},
		{0.10, HealthPoor},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, bucket(c.score), "score %f", c.score)
	}
}

func TestHealthStatus_EndToEnd(t *testing.T) {
	now := time.Now()
	a := New(stubSource{"good": perfectMetrics(now)})

	health, err := a.HealthStatus("good")
	require.NoError(t, err)
	assert.Equal(t, HealthExcellent, health)
}

func TestCompare(t *testing.T) {
	now := time.Now()
	good := perfectMetrics(now)
	bad := perfectMetrics(now)
	bad.SessionID = "bad"
	bad.StepsCompleted = 1 // completion rate drops to 0.25

	a := New(stubSource{"good": good, "bad": bad})

	c, err := a.Compare("good", "bad")
	require.NoError(t, err)
	assert.Equal(t, "good", c.Better)
	assert.Greater(t, c.ScoreA, c.ScoreB)

	tie, err := a.Compare("good", "good")
	require.NoError(t, err)
	assert.Empty(t, tie.Better)

	_, err = a.Compare("good", "missing")
	var unknownErr *core.UnknownSessionError
	require.ErrorAs(t, err, &unknownErr)
}

func TestThresholdOverrides(t *testing.T) {
	now := time.Now()
	m := perfectMetrics(now) // 1s mean response

	strict := New(stubSource{"good": m}, func(o *Options) {
		o.Thresholds = Thresholds{
			TargetResponseTime: 100 * time.Millisecond,
			MaxErrorRate:       0.25,
			TargetUtilization:  0.5,
		}
	})
	relaxed := New(stubSource{"good": m})

	strictScore, err := strict.PerformanceScore("good")
	require.NoError(t, err)
	relaxedScore, err := relaxed.PerformanceScore("good")
	require.NoError(t, err)
	assert.Less(t, strictScore, relaxedScore)
}
