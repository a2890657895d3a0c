// Package session implements the generic step-pipeline engine shared by all
// session types. A Pipeline is an ordered list of named steps; each step
// builds a message, routes it through the broker to a capability-matched
// agent, waits for the bounded reply and persists it as an immutable
// artifact before the next step may start.
//
// Session-type-specific behavior is configuration data, not a class
// hierarchy: the built-in Catalog and the YAML loader both produce plain
// Pipeline values consumed by the one engine. Steps that depend on earlier
// results declare them in Needs and fail fast with MissingArtifactError
// when an expected artifact is absent.
//
// A session that fails does not disappear: it records a failure report
// artifact naming the failing step and reason, then transitions to the
// failed state, from which it can only be archived.
package session
