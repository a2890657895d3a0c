package core

import (
	"sync"
	"time"

	"github.com/hupe1980/sessionmesh/internal/util"
)

// Lifecycle event names emitted through the Notifier. Consumers should
// switch on these rather than parsing payloads.
const (
	EventSessionCreated    = "session.created"
	EventStateTransitioned = "session.state.transitioned"
	EventStepCompleted     = "session.step.completed"
	EventErrorHandled      = "session.error_handled"
	EventSessionArchived   = "session.archived"
	EventSessionHealth     = "session.health"
)

// LifecycleEvent is a typed notification about a session lifecycle change.
// After emission it should be treated as immutable.
type LifecycleEvent struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewLifecycleEvent creates an event with a generated id and UTC timestamp.
func NewLifecycleEvent(name, sessionID string, payload map[string]any) LifecycleEvent {
	return LifecycleEvent{
		ID:        util.NewID(),
		Name:      name,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Notifier is the pub/sub sink for lifecycle events. Delivery and
// consumption are the collaborator's concern; Notify must never block the
// caller indefinitely.
type Notifier interface {
	Notify(ev LifecycleEvent)
}

// NoopNotifier discards all events. Default when no sink is configured.
type NoopNotifier struct{}

// Notify implements Notifier.
func (NoopNotifier) Notify(LifecycleEvent) {}

// ChannelNotifier buffers events on a channel for in-process consumers.
// When the buffer is full the event is dropped rather than blocking the
// emitting component; Dropped reports how many were lost.
type ChannelNotifier struct {
	ch      chan LifecycleEvent
	mu      sync.Mutex
	dropped int
}

// NewChannelNotifier creates a notifier with the given buffer size.
func NewChannelNotifier(buffer int) *ChannelNotifier {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelNotifier{ch: make(chan LifecycleEvent, buffer)}
}

// Notify implements Notifier with a non-blocking send.
func (n *ChannelNotifier) Notify(ev LifecycleEvent) {
	select {
	case n.ch <- ev:
	default:
		n.mu.Lock()
		n.dropped++
		n.mu.Unlock()
	}
}

// Events returns the receive side of the event channel.
func (n *ChannelNotifier) Events() <-chan LifecycleEvent { return n.ch }

// Dropped returns the number of events lost to a full buffer.
func (n *ChannelNotifier) Dropped() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dropped
}
