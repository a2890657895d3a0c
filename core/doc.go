// Package core defines the domain contracts shared by all SessionMesh
// components: the immutable Message value, the Agent capability-provider
// interface, artifact and state-transition records, lifecycle events,
// session metrics and the error taxonomy.
//
// The canonical store interfaces (ArtifactStore, TransitionLog,
// SnapshotCache) live here to avoid dependency cycles and keep domain
// contracts central. Implementation packages (in-memory, SQLite, cloud
// stores) provide storage backends that can be swapped without touching
// calling code.
package core
