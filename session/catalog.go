package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// Capability tags used by the built-in pipelines. Deployments register
// agents declaring these (or their own) tags.
const (
	CapFacilitation = "facilitation"
	CapAnalysis     = "analysis"
	CapSecurity     = "security"
	CapPlanning     = "planning"
	CapReporting    = "reporting"
	CapCodeReview   = "code-review"
)

// Catalog returns the built-in pipeline definitions keyed by type name.
// Each is plain data for the one generic engine; deployments extend the
// set with their own Pipeline values or YAML definitions.
func Catalog() map[string]Pipeline {
	pipelines := []Pipeline{
		dailyStandup(),
		securityAudit(),
		retrospective(),
		releasePlanning(),
		codeReview(),
		incidentReview(),
	}

	out := make(map[string]Pipeline, len(pipelines))
	for _, p := range pipelines {
		out[p.Type] = p
	}

	return out
}

func dailyStandup() Pipeline {
	return Pipeline{
		Type:        "daily-standup",
		Description: "Collect team updates, surface blockers, produce the standup summary.",
		Steps: []Step{
			{Name: "collect-updates", Capabilities: []string{CapFacilitation}},
			{Name: "identify-blockers", Capabilities: []string{CapAnalysis}, Needs: []string{"collect-updates"}, BuildPayload: needsPayload("collect-updates")},
			{Name: "summarize", Capabilities: []string{CapReporting}, Needs: []string{"collect-updates", "identify-blockers"}, BuildPayload: needsPayload("collect-updates", "identify-blockers")},
		},
	}
}

func securityAudit() Pipeline {
	return Pipeline{
		Type:        "security-audit",
		Description: "Scope, scan and triage a security review, ending in a findings report.",
		Steps: []Step{
			{Name: "define-scope", Capabilities: []string{CapSecurity}},
			{Name: "run-scan", Capabilities: []string{CapSecurity}, Needs: []string{"define-scope"}, BuildPayload: needsPayload("define-scope"), Timeout: 2 * time.Minute, MaxRetries: 1},
			{Name: "triage-findings", Capabilities: []string{CapSecurity, CapAnalysis}, Needs: []string{"run-scan"}, BuildPayload: needsPayload("run-scan")},
			{Name: "draft-report", Capabilities: []string{CapReporting}, Needs: []string{"triage-findings"}, BuildPayload: needsPayload("define-scope", "triage-findings")},
		},
	}
}

func retrospective() Pipeline {
	return Pipeline{
		Type:        "sprint-retrospective",
		Description: "Gather feedback, cluster themes and derive action items.",
		Steps: []Step{
			{Name: "gather-feedback", Capabilities: []string{CapFacilitation}},
			{Name: "cluster-themes", Capabilities: []string{CapAnalysis}, Needs: []string{"gather-feedback"}, BuildPayload: needsPayload("gather-feedback")},
			{Name: "action-items", Capabilities: []string{CapPlanning}, Needs: []string{"cluster-themes"}, BuildPayload: needsPayload("cluster-themes")},
		},
	}
}

func releasePlanning() Pipeline {
	return Pipeline{
		Type:        "release-planning",
		Description: "Inventory changes, assess risk and lay out the release schedule.",
		Steps: []Step{
			{Name: "inventory-changes", Capabilities: []string{CapAnalysis}},
			{Name: "assess-risk", Capabilities: []string{CapAnalysis}, Needs: []string{"inventory-changes"}, BuildPayload: needsPayload("inventory-changes")},
			{Name: "draft-schedule", Capabilities: []string{CapPlanning}, Needs: []string{"inventory-changes", "assess-risk"}, BuildPayload: needsPayload("inventory-changes", "assess-risk")},
		},
	}
}

func codeReview() Pipeline {
	return Pipeline{
		Type:        "code-review",
		Description: "Collect diffs, review them and summarize the findings.",
		Steps: []Step{
			{Name: "collect-diffs", Capabilities: []string{CapCodeReview}},
			{Name: "review-changes", Capabilities: []string{CapCodeReview}, Needs: []string{"collect-diffs"}, BuildPayload: needsPayload("collect-diffs"), MaxRetries: 1},
			{Name: "summarize-findings", Capabilities: []string{CapReporting}, Needs: []string{"review-changes"}, BuildPayload: needsPayload("review-changes")},
		},
	}
}

func incidentReview() Pipeline {
	return Pipeline{
		Type:        "incident-review",
		Description: "Reconstruct the timeline, find the root cause, plan remediation.",
		Steps: []Step{
			{Name: "build-timeline", Capabilities: []string{CapAnalysis}},
			{Name: "root-cause", Capabilities: []string{CapAnalysis}, Needs: []string{"build-timeline"}, BuildPayload: needsPayload("build-timeline")},
			{Name: "remediation-plan", Capabilities: []string{CapPlanning}, Needs: []string{"root-cause"}, BuildPayload: needsPayload("build-timeline", "root-cause")},
		},
	}
}

// needsPayload builds the default envelope enriched with the payloads of
// the named prior steps so downstream agents see their inputs inline.
func needsPayload(steps ...string) func(c *StepContext) ([]byte, error) {
	return func(c *StepContext) ([]byte, error) {
		inputs := make(map[string]string, len(steps))
		for _, step := range steps {
			a, err := c.Artifact(step)
			if err != nil {
				return nil, fmt.Errorf("input for step %q: %w", c.Step, err)
			}
			inputs[step] = string(a.Payload)
		}

		return json.Marshal(map[string]any{
			"task":    c.Step,
			"context": c.Config,
			"inputs":  inputs,
		})
	}
}
