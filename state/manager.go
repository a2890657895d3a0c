package state

import (
	"encoding/json"
	"fmt"
	"time"

	"sync"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/internal/util"
	"github.com/hupe1980/sessionmesh/logging"
)

// Options holds dependency overrides passed to NewManager().
type Options struct {
	// Machine supplies the lifecycle FSM. Defaults to NewMachine().
	Machine *Machine
	// TransitionLog receives the durable append-only audit trail.
	// Defaults to an in-memory log.
	TransitionLog core.TransitionLog
	// SnapshotCache backs SaveSnapshot/RestoreSnapshot. Defaults to an
	// in-memory cache.
	SnapshotCache core.SnapshotCache
	// Notifier receives session.state.transitioned events.
	Notifier core.Notifier
	// Logger receives transition diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// sessionRecord pairs the materialized current-state cache with the
// in-memory view of the append-only history. Both are mutated together
// under the manager's lock; the cache is derived from the latest history
// entry, never a separate source of truth.
type sessionRecord struct {
	current string
	history []core.Transition
}

// Manager tracks the lifecycle state of every known session. All operations
// are safe for concurrent use; a concurrent reader never observes a current
// state ahead of its history entry.
type Manager struct {
	mu       sync.RWMutex
	machine  *Machine
	sessions map[string]*sessionRecord

	log       core.TransitionLog
	snapshots core.SnapshotCache
	notifier  core.Notifier
	logger    logging.Logger
}

// NewManager constructs a Manager with optional overrides.
func NewManager(optFns ...func(o *Options)) *Manager {
	opts := Options{
		Machine:       NewMachine(),
		TransitionLog: NewInMemoryTransitionLog(),
		SnapshotCache: NewInMemorySnapshotCache(),
		Notifier:      core.NoopNotifier{},
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Manager{
		machine:   opts.Machine,
		sessions:  make(map[string]*sessionRecord),
		log:       opts.TransitionLog,
		snapshots: opts.SnapshotCache,
		notifier:  opts.Notifier,
		logger:    opts.Logger,
	}
}

// Machine exposes the underlying FSM for custom state/transition additions.
func (m *Manager) Machine() *Machine { return m.machine }

// Initialize creates the session's first history entry in the machine's
// initialized state. A second call for the same id fails with
// DuplicateSessionError.
func (m *Manager) Initialize(sessionID string, metadata map[string]string) error {
	t := core.Transition{
		SessionID: sessionID,
		To:        StateInitialized,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}

	m.mu.Lock()
	if _, exists := m.sessions[sessionID]; exists {
		m.mu.Unlock()
		return &core.DuplicateSessionError{SessionID: sessionID}
	}
	if err := m.log.Append(t); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("append transition log: %w", err)
	}
	m.sessions[sessionID] = &sessionRecord{current: StateInitialized, history: []core.Transition{t}}
	m.mu.Unlock()

	m.logger.Debug("session state initialized", "session_id", sessionID)

	return nil
}

// Transition moves the session from its current state to newState. The edge
// is validated against the machine's table; on success the history entry is
// appended and the current-state cache updated under one critical section,
// so the two never diverge. If the durable log rejects the append neither
// happens.
func (m *Manager) Transition(sessionID, newState string, metadata map[string]string) error {
	m.mu.Lock()

	rec, exists := m.sessions[sessionID]
	if !exists {
		m.mu.Unlock()
		return &core.UnknownSessionError{SessionID: sessionID}
	}

	if err := m.machine.ValidateTransition(rec.current, newState); err != nil {
		m.mu.Unlock()
		return err
	}

	t := core.Transition{
		SessionID: sessionID,
		From:      rec.current,
		To:        newState,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}

	if err := m.log.Append(t); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("append transition log: %w", err)
	}

	from := rec.current
	rec.history = append(rec.history, t)
	rec.current = newState

	m.mu.Unlock()

	m.logger.Info("session state transitioned", "session_id", sessionID, "from", from, "to", newState)
	m.notifier.Notify(core.NewLifecycleEvent(core.EventStateTransitioned, sessionID, map[string]any{
		"from": from,
		"to":   newState,
	}))

	return nil
}

// Current returns the session's materialized current state.
func (m *Manager) Current(sessionID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, exists := m.sessions[sessionID]
	if !exists {
		return "", &core.UnknownSessionError{SessionID: sessionID}
	}

	return rec.current, nil
}

// History returns a copy of the session's transition history in order.
func (m *Manager) History(sessionID string) ([]core.Transition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, exists := m.sessions[sessionID]
	if !exists {
		return nil, &core.UnknownSessionError{SessionID: sessionID}
	}

	out := make([]core.Transition, len(rec.history))
	copy(out, rec.history)

	return out, nil
}

// stateExport is the serialized form used by snapshots and export/import.
type stateExport struct {
	SessionID string            `json:"session_id"`
	Current   string            `json:"current"`
	History   []core.Transition `json:"history"`
}

// SaveSnapshot stores a point-in-time copy of the session's current state
// and history in the snapshot cache and returns the generated snapshot id.
// The blob is additionally stored under a "latest" key per session so
// recovery can find the newest backup without tracking ids.
func (m *Manager) SaveSnapshot(sessionID string) (string, error) {
	blob, err := m.Export(sessionID)
	if err != nil {
		return "", err
	}

	snapshotID := util.NewID()
	if err := m.snapshots.Put(snapshotKey(sessionID, snapshotID), blob); err != nil {
		return "", fmt.Errorf("store snapshot: %w", err)
	}
	if err := m.snapshots.Put(latestSnapshotKey(sessionID), blob); err != nil {
		return "", fmt.Errorf("store latest snapshot: %w", err)
	}

	m.logger.Debug("state snapshot saved", "session_id", sessionID, "snapshot_id", snapshotID)

	return snapshotID, nil
}

// RestoreSnapshot overwrites the session's current state and history with a
// previously saved snapshot. The transition table is deliberately bypassed:
// this is the recovery escape hatch, and any history recorded after the
// snapshot is truncated back to the snapshot point. A session unknown to
// this manager is recreated from the snapshot.
func (m *Manager) RestoreSnapshot(sessionID, snapshotID string) error {
	blob, ok, err := m.snapshots.Get(snapshotKey(sessionID, snapshotID))
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return fmt.Errorf("snapshot %s for session %s not found", snapshotID, sessionID)
	}

	return m.restore(blob)
}

// RestoreLatest restores the most recent snapshot saved for the session.
// The boolean reports whether a backup existed.
func (m *Manager) RestoreLatest(sessionID string) (bool, error) {
	blob, ok, err := m.snapshots.Get(latestSnapshotKey(sessionID))
	if err != nil {
		return false, fmt.Errorf("load latest snapshot: %w", err)
	}
	if !ok {
		return false, nil
	}

	if err := m.restore(blob); err != nil {
		return false, err
	}

	return true, nil
}

// Export serializes the session's full state (cache + history) for
// migration to another process.
func (m *Manager) Export(sessionID string) ([]byte, error) {
	m.mu.RLock()
	rec, exists := m.sessions[sessionID]
	if !exists {
		m.mu.RUnlock()
		return nil, &core.UnknownSessionError{SessionID: sessionID}
	}
	exp := stateExport{SessionID: sessionID, Current: rec.current, History: make([]core.Transition, len(rec.history))}
	copy(exp.History, rec.history)
	m.mu.RUnlock()

	blob, err := json.Marshal(exp)
	if err != nil {
		return nil, fmt.Errorf("marshal state export: %w", err)
	}

	return blob, nil
}

// Import registers a session from a blob produced by Export. It fails with
// DuplicateSessionError when the session already exists here.
func (m *Manager) Import(blob []byte) (string, error) {
	var exp stateExport
	if err := json.Unmarshal(blob, &exp); err != nil {
		return "", fmt.Errorf("unmarshal state export: %w", err)
	}
	if exp.SessionID == "" || exp.Current == "" {
		return "", fmt.Errorf("state export is incomplete")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[exp.SessionID]; exists {
		return "", &core.DuplicateSessionError{SessionID: exp.SessionID}
	}
	m.sessions[exp.SessionID] = &sessionRecord{current: exp.Current, history: exp.History}

	return exp.SessionID, nil
}

// restore overwrites (or creates) the in-memory record from a snapshot blob.
func (m *Manager) restore(blob []byte) error {
	var exp stateExport
	if err := json.Unmarshal(blob, &exp); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if exp.SessionID == "" || exp.Current == "" {
		return fmt.Errorf("snapshot is incomplete")
	}

	m.mu.Lock()
	m.sessions[exp.SessionID] = &sessionRecord{current: exp.Current, history: exp.History}
	m.mu.Unlock()

	m.logger.Info("session state restored from snapshot", "session_id", exp.SessionID, "state", exp.Current)

	return nil
}

func snapshotKey(sessionID, snapshotID string) string { return sessionID + "/" + snapshotID }

func latestSnapshotKey(sessionID string) string { return sessionID + "/latest" }
