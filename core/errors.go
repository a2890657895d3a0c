package core

import (
	"fmt"
	"strings"
	"time"
)

// NoCapableAgentError reports that no registered agent declares a superset
// of the message's required capabilities. Fatal for that message; callers
// may retry with a relaxed capability set.
type NoCapableAgentError struct {
	Capabilities []string
}

func (e *NoCapableAgentError) Error() string {
	return fmt.Sprintf("no capable agent for capabilities [%s]", strings.Join(e.Capabilities, ", "))
}

// TimeoutError reports that a waiting route exceeded its bound. Recoverable:
// the step pipeline decides between retry-with-backoff and aborting.
type TimeoutError struct {
	AgentID string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("agent %s did not reply within %s", e.AgentID, e.Timeout)
}

// UnknownStateError reports a state name that is not declared in the
// machine. Always a programming or configuration error.
type UnknownStateError struct {
	State string
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("unknown state %q", e.State)
}

// InvalidTransitionError reports an edge missing from the transition table.
// Always fatal to the operation that raised it.
type InvalidTransitionError struct {
	From, To string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

// MissingArtifactError reports a read of an artifact that does not exist,
// typically an out-of-order or skipped step dependency.
type MissingArtifactError struct {
	SessionID, Step string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("no artifact for step %q in session %s", e.Step, e.SessionID)
}

// DuplicateArtifactError reports an attempt to write a second artifact for
// the same (session, step) pair. The artifact store is append-only.
type DuplicateArtifactError struct {
	SessionID, Step string
}

func (e *DuplicateArtifactError) Error() string {
	return fmt.Sprintf("artifact for step %q in session %s already exists", e.Step, e.SessionID)
}

// DuplicateSessionError reports a session id that is already known.
type DuplicateSessionError struct {
	SessionID string
}

func (e *DuplicateSessionError) Error() string {
	return fmt.Sprintf("session %s already exists", e.SessionID)
}

// UnknownSessionError reports a session id that is not registered.
type UnknownSessionError struct {
	SessionID string
}

func (e *UnknownSessionError) Error() string {
	return fmt.Sprintf("unknown session %s", e.SessionID)
}

// DuplicateAgentError reports an agent id that is already registered.
type DuplicateAgentError struct {
	AgentID string
}

func (e *DuplicateAgentError) Error() string {
	return fmt.Sprintf("agent %s already registered", e.AgentID)
}
