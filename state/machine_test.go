package state

import (
	"errors"
	"testing"

	"github.com/hupe1980/sessionmesh/core"
)

func TestMachine_DefaultTable(t *testing.T) {
	m := NewMachine()

	valid := [][2]string{
		{StateInitialized, StateActive},
		{StateActive, StatePaused},
		{StateActive, StateBlocked},
		{StateActive, StateCompleted},
		{StateActive, StateFailed},
		{StatePaused, StateActive},
		{StatePaused, StateCompleted},
		{StatePaused, StateFailed},
		{StateBlocked, StateActive},
		{StateBlocked, StateFailed},
		{StateCompleted, StateArchived},
		{StateFailed, StateArchived},
	}
	for _, edge := range valid {
		if !m.CanTransition(edge[0], edge[1]) {
			t.Errorf("expected %s -> %s to be valid", edge[0], edge[1])
		}
	}

	invalid := [][2]string{
		{StateInitialized, StateCompleted},
		{StateCompleted, StateActive},
		{StateFailed, StateActive},
		{StateArchived, StateActive},
		{StateBlocked, StateCompleted},
	}
	for _, edge := range invalid {
		if m.CanTransition(edge[0], edge[1]) {
			t.Errorf("expected %s -> %s to be invalid", edge[0], edge[1])
		}
	}
}

func TestMachine_ValidateTransitionErrors(t *testing.T) {
	m := NewMachine()

	var unknownErr *core.UnknownStateError
	if err := m.ValidateTransition("bogus", StateActive); !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownStateError, got %v", err)
	}
	if unknownErr.State != "bogus" {
		t.Fatalf("state: got %q", unknownErr.State)
	}

	var invalidErr *core.InvalidTransitionError
	if err := m.ValidateTransition(StateArchived, StateActive); !errors.As(err, &invalidErr) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestMachine_AddState(t *testing.T) {
	m := NewMachine()

	if err := m.AddState("reviewing"); err != nil {
		t.Fatalf("add state: %v", err)
	}
	if err := m.AddState("reviewing"); err == nil {
		t.Fatal("expected duplicate state to be rejected")
	}
	if err := m.AddState(""); err == nil {
		t.Fatal("expected empty state to be rejected")
	}
	if !m.HasState("reviewing") {
		t.Fatal("expected state to be declared")
	}
}

func TestMachine_AddTransition(t *testing.T) {
	m := NewMachine()

	if err := m.AddTransition(StateActive, "reviewing"); err == nil {
		t.Fatal("expected undeclared endpoint to be rejected")
	}

	if err := m.AddState("reviewing"); err != nil {
		t.Fatal(err)
	}
	if err := m.AddTransition(StateActive, "reviewing"); err != nil {
		t.Fatalf("add transition: %v", err)
	}
	if err := m.AddTransition("reviewing", StateCompleted); err != nil {
		t.Fatalf("add transition: %v", err)
	}

	if !m.CanTransition(StateActive, "reviewing") {
		t.Fatal("expected custom edge to be valid")
	}
	if !m.CanTransition("reviewing", StateCompleted) {
		t.Fatal("expected custom edge into default table to be valid")
	}
}

func TestMachine_IsTerminal(t *testing.T) {
	m := NewMachine()

	if !m.IsTerminal(StateArchived) {
		t.Fatal("expected archived to be terminal")
	}
	if m.IsTerminal(StateCompleted) {
		t.Fatal("completed has an outgoing edge to archived")
	}
	if m.IsTerminal("bogus") {
		t.Fatal("undeclared states are never terminal")
	}
}
