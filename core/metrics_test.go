package core

import (
	"testing"
	"time"
)

func TestSessionMetrics_DerivedRates(t *testing.T) {
	m := SessionMetrics{
		MessagesSent:   4,
		ErrorCount:     1,
		StepsCompleted: 3,
		StepsTotal:     4,
		StepDuration:   6 * time.Second,
	}

	if got := m.AverageResponseTime(); got != 2*time.Second {
		t.Fatalf("average response time: got %s", got)
	}
	if got := m.ErrorRate(); got != 0.25 {
		t.Fatalf("error rate: got %f", got)
	}
	if got := m.CompletionRate(); got != 0.75 {
		t.Fatalf("completion rate: got %f", got)
	}
}

func TestSessionMetrics_ZeroDenominators(t *testing.T) {
	var m SessionMetrics

	if got := m.AverageResponseTime(); got != 0 {
		t.Fatalf("average response time: got %s", got)
	}
	if got := m.ErrorRate(); got != 0 {
		t.Fatalf("error rate: got %f", got)
	}
	if got := m.CompletionRate(); got != 0 {
		t.Fatalf("completion rate: got %f", got)
	}
}
