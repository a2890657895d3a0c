// Package orchestrator manages the set of concurrently active sessions:
// creation by registered type, bounded concurrent execution, cross-session
// messaging over idempotent named channels, health monitoring, metrics
// recording, backup/recovery and archival.
//
// Sessions are causally independent: each pipeline runs on its own worker
// goroutine, admission is bounded by a weighted semaphore, and a failure in
// one session never propagates to another. Archival is the only way a
// session leaves the active set; it requires a terminal lifecycle state, so
// an in-flight step can never race a concurrent archive.
//
// Transition validity has a single authority, the state manager. The
// orchestrator's own allow-list only restricts which states an operator may
// request through ManageSessionState; the edge itself is validated by the
// manager.
package orchestrator
