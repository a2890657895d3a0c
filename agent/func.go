package agent

import (
	"context"

	"github.com/hupe1980/sessionmesh/core"
)

// HandlerFunc processes a routed message payload and returns a response
// payload. The message metadata is available for handlers that need the
// step or session context.
type HandlerFunc func(ctx context.Context, msg core.Message) ([]byte, error)

// Func adapts an id, a capability set and a handler function into a
// core.Agent. It is the simplest way to stand up an agent for tests,
// examples or local tooling.
type Func struct {
	id           string
	capabilities []string
	handler      HandlerFunc
}

// NewFunc creates a function-backed agent.
func NewFunc(id string, capabilities []string, handler HandlerFunc) *Func {
	caps := make([]string, len(capabilities))
	copy(caps, capabilities)

	return &Func{
		id:           id,
		capabilities: caps,
		handler:      handler,
	}
}

// ID implements core.Agent.
func (f *Func) ID() string { return f.id }

// Capabilities implements core.Agent.
func (f *Func) Capabilities() []string {
	caps := make([]string, len(f.capabilities))
	copy(caps, f.capabilities)
	return caps
}

// Handle implements core.Agent by delegating to the wrapped function.
func (f *Func) Handle(ctx context.Context, msg core.Message) (core.Reply, error) {
	payload, err := f.handler(ctx, msg)
	if err != nil {
		return core.Reply{}, err
	}

	return core.Reply{Payload: payload}, nil
}
