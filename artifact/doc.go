// Package artifact contains concrete implementations of the
// core.ArtifactStore contract.
//
// The canonical interface lives in the core package to avoid dependency
// cycles and keep domain contracts central. Implementation packages like
// this one (in-memory, SQLite, cloud object stores) provide storage
// backends that can be swapped without touching calling code.
package artifact
