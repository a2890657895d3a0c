package artifact

import (
	"sync"
	"time"

	"github.com/hupe1980/sessionmesh/core"
)

// InMemoryStore is an in-process ArtifactStore implementation useful for
// tests, examples and single-process deployments. It keeps all artifacts in
// a nested map guarded by an RWMutex; payloads are copied on save and
// retrieval to avoid accidental external mutation of internal buffers.
//
// The store enforces the append-only contract: a second Put for the same
// (session, step) pair fails with DuplicateArtifactError, and nothing ever
// updates an artifact in place.
type InMemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]map[string]core.Artifact // sessionID -> step -> artifact
	order     map[string][]string                 // sessionID -> step insertion order
}

// NewInMemoryStore returns an empty in-memory artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		artifacts: make(map[string]map[string]core.Artifact),
		order:     make(map[string][]string),
	}
}

// Put appends a new artifact record.
func (s *InMemoryStore) Put(a core.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps, exists := s.artifacts[a.SessionID]
	if !exists {
		steps = make(map[string]core.Artifact)
		s.artifacts[a.SessionID] = steps
	}
	if _, exists := steps[a.Step]; exists {
		return &core.DuplicateArtifactError{SessionID: a.SessionID, Step: a.Step}
	}

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	steps[a.Step] = copyArtifact(a)
	s.order[a.SessionID] = append(s.order[a.SessionID], a.Step)

	return nil
}

// Get returns the artifact for the (sessionID, step) pair.
func (s *InMemoryStore) Get(sessionID, step string) (core.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps, ok := s.artifacts[sessionID]
	if !ok {
		return core.Artifact{}, &core.MissingArtifactError{SessionID: sessionID, Step: step}
	}
	a, ok := steps[step]
	if !ok {
		return core.Artifact{}, &core.MissingArtifactError{SessionID: sessionID, Step: step}
	}

	return copyArtifact(a), nil
}

// List returns all artifacts recorded for the session in insertion order.
func (s *InMemoryStore) List(sessionID string) ([]core.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps := s.artifacts[sessionID]
	out := make([]core.Artifact, 0, len(steps))
	for _, step := range s.order[sessionID] {
		out = append(out, copyArtifact(steps[step]))
	}

	return out, nil
}

func copyArtifact(a core.Artifact) core.Artifact {
	cp := a
	cp.Payload = make([]byte, len(a.Payload))
	copy(cp.Payload, a.Payload)
	if a.Metadata != nil {
		cp.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			cp.Metadata[k] = v
		}
	}
	return cp
}
