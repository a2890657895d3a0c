package state

import (
	"sync"

	"github.com/hupe1980/sessionmesh/core"
)

// InMemoryTransitionLog is a volatile TransitionLog implementation keeping
// the audit trail in a process-local map. Suited for tests and single
// process deployments; durable deployments should use a database-backed
// log (see artifact/sqlite).
type InMemoryTransitionLog struct {
	mu      sync.RWMutex
	entries map[string][]core.Transition
}

// NewInMemoryTransitionLog constructs an empty in-memory transition log.
func NewInMemoryTransitionLog() *InMemoryTransitionLog {
	return &InMemoryTransitionLog{entries: make(map[string][]core.Transition)}
}

// Append records one transition.
func (l *InMemoryTransitionLog) Append(t core.Transition) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[t.SessionID] = append(l.entries[t.SessionID], t)
	return nil
}

// BySession returns a copy of the session's transitions in append order.
func (l *InMemoryTransitionLog) BySession(sessionID string) ([]core.Transition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.entries[sessionID]
	out := make([]core.Transition, len(src))
	copy(out, src)
	return out, nil
}

// InMemorySnapshotCache is a volatile SnapshotCache implementation. Blobs
// are copied on put and get to avoid accidental external mutation.
type InMemorySnapshotCache struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewInMemorySnapshotCache constructs an empty in-memory snapshot cache.
func NewInMemorySnapshotCache() *InMemorySnapshotCache {
	return &InMemorySnapshotCache{blobs: make(map[string][]byte)}
}

// Put stores a copy of the blob under the key.
func (c *InMemorySnapshotCache) Put(key string, blob []byte) error {
	cp := make([]byte, len(blob))
	copy(cp, blob)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.blobs[key] = cp

	return nil
}

// Get returns a copy of the blob for the key.
func (c *InMemorySnapshotCache) Get(key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	blob, ok := c.blobs[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(blob))
	copy(cp, blob)

	return cp, true, nil
}
