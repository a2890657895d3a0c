package state

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/sessionmesh/core"
)

// Default session lifecycle states.
const (
	StateInitialized = "initialized"
	StateActive      = "active"
	StatePaused      = "paused"
	StateBlocked     = "blocked"
	StateCompleted   = "completed"
	StateFailed      = "failed"
	StateArchived    = "archived"
)

// Machine holds the declared states and the directed transition table.
// It is safe for concurrent use; the default table can be extended at
// runtime via AddState/AddTransition but never shrunk.
type Machine struct {
	mu          sync.RWMutex
	states      map[string]struct{}
	transitions map[string]map[string]struct{}
}

// NewMachine constructs a machine with the default session lifecycle:
//
//	initialized -> active
//	active      -> paused, blocked, completed, failed
//	paused      -> active, completed, failed
//	blocked     -> active, failed
//	completed   -> archived
//	failed      -> archived
//	archived    -> (terminal)
func NewMachine() *Machine {
	m := &Machine{
		states:      make(map[string]struct{}),
		transitions: make(map[string]map[string]struct{}),
	}

	for _, s := range []string{StateInitialized, StateActive, StatePaused, StateBlocked, StateCompleted, StateFailed, StateArchived} {
		m.states[s] = struct{}{}
	}

	edges := map[string][]string{
		StateInitialized: {StateActive},
		StateActive:      {StatePaused, StateBlocked, StateCompleted, StateFailed},
		StatePaused:      {StateActive, StateCompleted, StateFailed},
		StateBlocked:     {StateActive, StateFailed},
		StateCompleted:   {StateArchived},
		StateFailed:      {StateArchived},
	}
	for from, tos := range edges {
		m.transitions[from] = make(map[string]struct{}, len(tos))
		for _, to := range tos {
			m.transitions[from][to] = struct{}{}
		}
	}

	return m
}

// AddState declares an additional state. Duplicate names are rejected.
func (m *Machine) AddState(name string) error {
	if name == "" {
		return fmt.Errorf("state name must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.states[name]; exists {
		return fmt.Errorf("state %q already declared", name)
	}
	m.states[name] = struct{}{}

	return nil
}

// AddTransition declares an additional edge. Both endpoints must already be
// declared states.
func (m *Machine) AddTransition(from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.states[from]; !ok {
		return &core.UnknownStateError{State: from}
	}
	if _, ok := m.states[to]; !ok {
		return &core.UnknownStateError{State: to}
	}

	if m.transitions[from] == nil {
		m.transitions[from] = make(map[string]struct{})
	}
	m.transitions[from][to] = struct{}{}

	return nil
}

// HasState reports whether the state is declared.
func (m *Machine) HasState(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.states[name]
	return ok
}

// ValidateTransition checks that both states are declared and that the edge
// exists in the table. It returns UnknownStateError or
// InvalidTransitionError accordingly.
func (m *Machine) ValidateTransition(from, to string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.states[from]; !ok {
		return &core.UnknownStateError{State: from}
	}
	if _, ok := m.states[to]; !ok {
		return &core.UnknownStateError{State: to}
	}
	if _, ok := m.transitions[from][to]; !ok {
		return &core.InvalidTransitionError{From: from, To: to}
	}

	return nil
}

// CanTransition reports whether the edge is valid without distinguishing the
// failure reason.
func (m *Machine) CanTransition(from, to string) bool {
	return m.ValidateTransition(from, to) == nil
}

// States returns the declared state names sorted alphabetically.
func (m *Machine) States() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.states))
	for s := range m.states {
		out = append(out, s)
	}
	sort.Strings(out)

	return out
}

// IsTerminal reports whether the state has no outgoing transitions.
func (m *Machine) IsTerminal(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.states[name]; !ok {
		return false
	}
	return len(m.transitions[name]) == 0
}
