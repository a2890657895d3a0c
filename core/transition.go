package core

import "time"

// Transition is one entry in a session's append-only state history. From is
// empty for the initial transition into the machine's starting state.
type Transition struct {
	SessionID string            `json:"session_id"`
	From      string            `json:"from_state,omitempty"`
	To        string            `json:"to_state"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// TransitionLog is the durable, append-only audit trail of state changes.
// The state manager appends here before (or atomically with) updating its
// current-state cache; the log is never rewritten.
type TransitionLog interface {
	// Append records one transition.
	Append(t Transition) error
	// BySession returns the session's transitions ordered by time.
	BySession(sessionID string) ([]Transition, error)
}

// SnapshotCache is a key-value store for serialized session-state blobs,
// used for state snapshots and orchestrator-level backup/recovery.
type SnapshotCache interface {
	// Put stores a blob under the key, overwriting any previous value.
	Put(key string, blob []byte) error
	// Get returns the blob for the key; the boolean reports existence.
	Get(key string) ([]byte, bool, error)
}
