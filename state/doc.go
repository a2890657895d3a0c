// Package state implements the session lifecycle finite-state machine and
// the per-session state manager built on it.
//
// The Machine owns the declared states and the transition table; the
// Manager owns per-session current-state caches plus append-only histories
// and keeps the two consistent: a reader never observes a cached state
// without its history entry or vice versa. Snapshots and export/import
// provide point-in-time recovery and cross-process migration.
//
// The Manager is the single authority on transition validity. Higher layers
// (the orchestrator) delegate here instead of keeping their own table.
package state
