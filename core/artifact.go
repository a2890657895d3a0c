package core

import "time"

// ArtifactStatus marks whether the step that produced an artifact succeeded.
type ArtifactStatus string

const (
	// ArtifactStatusCompleted marks the result of a successful step.
	ArtifactStatusCompleted ArtifactStatus = "completed"
	// ArtifactStatusFailed marks a failure report recorded for a step.
	ArtifactStatusFailed ArtifactStatus = "failed"
)

// Artifact is the immutable, persisted result of one pipeline step. Exactly
// one artifact may exist per (SessionID, Step) pair; an artifact is written
// only after the step's message round-trip (or local aggregation) completed.
type Artifact struct {
	SessionID string            `json:"session_id"`
	Step      string            `json:"step"`
	Payload   []byte            `json:"payload"`
	Status    ArtifactStatus    `json:"status"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// ArtifactStore persists step artifacts. Implementations are append-only:
// Put must reject a second artifact for the same (session, step) pair with
// DuplicateArtifactError, and nothing ever updates an artifact in place.
type ArtifactStore interface {
	// Put appends a new artifact record.
	Put(a Artifact) error
	// Get returns the artifact for the (sessionID, step) pair or
	// MissingArtifactError.
	Get(sessionID, step string) (Artifact, error)
	// List returns all artifacts recorded for the session in insertion order.
	List(sessionID string) ([]Artifact, error)
}
