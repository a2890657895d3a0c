package util

import "github.com/google/uuid"

// NewID generates a new unique identifier.
//
// Used for sessions, messages, snapshots and archives so that every
// addressable record in the system carries a collision-free id.
func NewID() string { return uuid.NewString() }
