package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/sessionmesh/core"
)

// ScriptedAgent returns canned reply payloads keyed by the "task" metadata
// of the incoming message, and an optional error per step. Handy for
// driving a pipeline deterministically through success and failure paths.
type ScriptedAgent struct {
	id           string
	capabilities []string

	mu      sync.Mutex
	replies map[string][]byte
	errs    map[string]error
	delay   time.Duration
	calls   []string
}

// NewScriptedAgent creates an agent whose Handle looks up replies by step.
func NewScriptedAgent(id string, capabilities []string) *ScriptedAgent {
	return &ScriptedAgent{
		id:           id,
		capabilities: capabilities,
		replies:      map[string][]byte{},
		errs:         map[string]error{},
	}
}

// Reply registers the payload returned for a step (chainable).
func (a *ScriptedAgent) Reply(step string, payload []byte) *ScriptedAgent {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.replies[step] = payload
	return a
}

// Fail registers an error returned for a step (chainable).
func (a *ScriptedAgent) Fail(step string, err error) *ScriptedAgent {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errs[step] = err
	return a
}

// Delay makes every Handle call sleep first, respecting ctx (chainable).
func (a *ScriptedAgent) Delay(d time.Duration) *ScriptedAgent {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.delay = d
	return a
}

// Calls returns the step names handled so far, in order.
func (a *ScriptedAgent) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.calls))
	copy(out, a.calls)
	return out
}

// ID implements core.Agent.
func (a *ScriptedAgent) ID() string { return a.id }

// Capabilities implements core.Agent.
func (a *ScriptedAgent) Capabilities() []string {
	caps := make([]string, len(a.capabilities))
	copy(caps, a.capabilities)
	return caps
}

// Handle implements core.Agent.
func (a *ScriptedAgent) Handle(ctx context.Context, msg core.Message) (core.Reply, error) {
	step := msg.Metadata()["task"]

	a.mu.Lock()
	a.calls = append(a.calls, step)
	delay := a.delay
	err := a.errs[step]
	payload, ok := a.replies[step]
	a.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return core.Reply{}, ctx.Err()
		}
	}
	if err != nil {
		return core.Reply{}, err
	}
	if !ok {
		payload = []byte(`{"ok":true}`)
	}

	return core.Reply{Payload: payload}, nil
}

// RecordingNotifier collects lifecycle events for assertions.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []core.LifecycleEvent
}

// Notify implements core.Notifier.
func (n *RecordingNotifier) Notify(ev core.LifecycleEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

// Events returns a copy of everything recorded so far.
func (n *RecordingNotifier) Events() []core.LifecycleEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]core.LifecycleEvent, len(n.events))
	copy(out, n.events)
	return out
}

// Names returns the recorded event names in order.
func (n *RecordingNotifier) Names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Name)
	}
	return out
}

// Count returns how many events with the given name were recorded.
func (n *RecordingNotifier) Count(name string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, ev := range n.events {
		if ev.Name == name {
			c++
		}
	}
	return c
}
