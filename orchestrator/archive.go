package orchestrator

import (
	"sync"
	"time"

	"github.com/hupe1980/sessionmesh/core"
)

// Archive is the durable record produced when a session leaves the active
// set: its final state, full transition history, all artifacts and the
// recorded metrics. Archival is agnostic to completed vs failed sessions;
// the audit trail is always preserved in full.
type Archive struct {
	ID         string              `json:"id"`
	SessionID  string              `json:"session_id"`
	Type       string              `json:"type"`
	FinalState string              `json:"final_state"`
	History    []core.Transition   `json:"history"`
	Artifacts  []core.Artifact     `json:"artifacts"`
	Metrics    core.SessionMetrics `json:"metrics"`
	ArchivedAt time.Time           `json:"archived_at"`
}

// ArchiveStore persists archives. Append-only: one archive per session.
type ArchiveStore interface {
	// Put stores the archive; a second archive for the same session fails
	// with DuplicateSessionError.
	Put(a Archive) error
	// Get returns the archive for the session or UnknownSessionError.
	Get(sessionID string) (Archive, error)
}

// InMemoryArchiveStore is a volatile ArchiveStore for tests and
// single-process deployments.
type InMemoryArchiveStore struct {
	mu       sync.RWMutex
	archives map[string]Archive
}

// NewInMemoryArchiveStore constructs an empty archive store.
func NewInMemoryArchiveStore() *InMemoryArchiveStore {
	return &InMemoryArchiveStore{archives: make(map[string]Archive)}
}

// Put stores the archive.
func (s *InMemoryArchiveStore) Put(a Archive) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.archives[a.SessionID]; exists {
		return &core.DuplicateSessionError{SessionID: a.SessionID}
	}
	s.archives[a.SessionID] = a

	return nil
}

// Get returns the archive for the session.
func (s *InMemoryArchiveStore) Get(sessionID string) (Archive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.archives[sessionID]
	if !ok {
		return Archive{}, &core.UnknownSessionError{SessionID: sessionID}
	}

	return a, nil
}
