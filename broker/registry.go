package broker

import (
	"sort"
	"sync"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/logging"
)

// Registry is a thread-safe, capability-addressable agent registry. Agents
// register with an id and a declared capability set; Candidates answers the
// broker's "who can serve this message" query with a stable ordering.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]core.Agent
	logger logging.Logger
}

// RegistryOptions holds configuration overrides for NewRegistry.
type RegistryOptions struct {
	// Logger receives registration events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Registry{agents: make(map[string]core.Agent), logger: opts.Logger}
}

// Register adds an agent. The id must be non-empty and not yet taken.
func (r *Registry) Register(a core.Agent) error {
	if a == nil || a.ID() == "" {
		return &core.DuplicateAgentError{AgentID: ""}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[a.ID()]; exists {
		return &core.DuplicateAgentError{AgentID: a.ID()}
	}
	r.agents[a.ID()] = a

	r.logger.Info("agent registered", "agent_id", a.ID(), "capabilities", a.Capabilities())

	return nil
}

// Unregister removes an agent. Unknown ids are a no-op.
func (r *Registry) Unregister(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[agentID]; exists {
		delete(r.agents, agentID)
		r.logger.Info("agent unregistered", "agent_id", agentID)
	}
}

// Get returns the agent with the given id.
func (r *Registry) Get(agentID string) (core.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[agentID]
	return a, ok
}

// Candidates returns every agent whose declared capabilities are a superset
// of required, sorted by agent id. The slice is a snapshot safe for caller
// mutation; the ordering is what makes broker selection deterministic.
func (r *Registry) Candidates(required []string) []core.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []core.Agent
	for _, a := range r.agents {
		if covers(a.Capabilities(), required) {
			out = append(out, a)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })

	return out
}

// Size returns the number of registered agents.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// covers reports whether declared contains every tag in required.
func covers(declared, required []string) bool {
	if len(required) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(declared))
	for _, c := range declared {
		set[c] = struct{}{}
	}
	for _, c := range required {
		if _, ok := set[c]; !ok {
			return false
		}
	}
	return true
}
