package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hupe1980/sessionmesh/core"
)

// ReportStep is the reserved artifact name under which the pipeline stores
// its final report (or, on failure, the failure report).
const ReportStep = "report"

// StepContext is passed to payload builders and aggregators. It exposes the
// session's immutable configuration, the artifacts persisted so far and any
// messages delivered through cross-session coordination.
type StepContext struct {
	// SessionID identifies the running session.
	SessionID string
	// SessionType is the pipeline type name.
	SessionType string
	// Step is the name of the step being built, empty during aggregation.
	Step string
	// Config is a copy of the session's immutable configuration.
	Config map[string]string

	artifacts core.ArtifactStore
	inbox     func() [][]byte
}

// Artifact returns the persisted artifact of a prior step, or
// MissingArtifactError when it has not been recorded.
func (c *StepContext) Artifact(step string) (core.Artifact, error) {
	return c.artifacts.Get(c.SessionID, step)
}

// Inbox returns the payloads delivered to this session via cross-session
// coordination, in arrival order.
func (c *StepContext) Inbox() [][]byte {
	if c.inbox == nil {
		return nil
	}
	return c.inbox()
}

// Step is one named unit of work in a pipeline. Every step produces exactly
// one artifact.
type Step struct {
	// Name identifies the step and its artifact. Must be unique within the
	// pipeline and must not be the reserved ReportStep.
	Name string
	// Capabilities are the tags a serving agent must declare.
	Capabilities []string
	// Timeout bounds the broker round-trip. Zero uses the session default.
	Timeout time.Duration
	// MaxRetries is the number of retry attempts after a timeout. Only
	// timeouts are retried; a missing capability is a configuration
	// problem that retrying cannot fix.
	MaxRetries int
	// Needs names earlier steps whose artifacts must exist before this
	// step runs. An absent dependency fails the step with
	// MissingArtifactError before any message is sent.
	Needs []string
	// BuildPayload produces the message payload. Nil uses the default
	// JSON envelope {"task": name, "context": config}.
	BuildPayload func(c *StepContext) ([]byte, error)
}

// Pipeline is the ordered step list plus the final aggregation for one
// session type.
type Pipeline struct {
	// Type is the session-type identifier, e.g. "daily-standup".
	Type string
	// Description is free-form documentation for catalogs and tooling.
	Description string
	// Steps run strictly in order; step N+1 never starts before step N's
	// artifact is recorded.
	Steps []Step
	// Aggregate compiles the final report from already-persisted artifacts
	// only; it must not trigger live broker calls. Nil uses the default
	// aggregation (a JSON map of step name to reply payload).
	Aggregate func(c *StepContext) ([]byte, error)
}

// Validate checks the pipeline's structural invariants: a type name, at
// least one step, unique step names, no use of the reserved report name and
// Needs references that point at earlier steps only.
func (p Pipeline) Validate() error {
	if p.Type == "" {
		return fmt.Errorf("pipeline: type is required")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("pipeline %s: at least one step is required", p.Type)
	}

	seen := make(map[string]struct{}, len(p.Steps))
	for i, s := range p.Steps {
		if s.Name == "" {
			return fmt.Errorf("pipeline %s: step %d has no name", p.Type, i)
		}
		if s.Name == ReportStep {
			return fmt.Errorf("pipeline %s: step name %q is reserved", p.Type, ReportStep)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("pipeline %s: duplicate step name %q", p.Type, s.Name)
		}
		for _, need := range s.Needs {
			if _, ok := seen[need]; !ok {
				return fmt.Errorf("pipeline %s: step %q needs %q which is not an earlier step", p.Type, s.Name, need)
			}
		}
		seen[s.Name] = struct{}{}
	}

	return nil
}

// defaultPayload is the envelope sent when a step has no custom builder.
func defaultPayload(c *StepContext) ([]byte, error) {
	return json.Marshal(map[string]any{
		"task":    c.Step,
		"context": c.Config,
	})
}

// defaultAggregate compiles the step replies into one JSON document.
func defaultAggregate(p Pipeline, c *StepContext) ([]byte, error) {
	steps := make(map[string]string, len(p.Steps))
	for _, s := range p.Steps {
		a, err := c.Artifact(s.Name)
		if err != nil {
			return nil, err
		}
		steps[s.Name] = string(a.Payload)
	}

	return json.Marshal(map[string]any{
		"session_id": c.SessionID,
		"type":       c.SessionType,
		"steps":      steps,
	})
}
