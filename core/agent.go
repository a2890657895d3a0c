package core

import "context"

// Agent is an external worker addressable by capability tags. The broker
// selects an agent whose declared capabilities are a superset of a message's
// required capabilities and delivers the message via Handle.
//
// Implementations must:
//   - Respect context cancellation; Handle is always called with a bounded
//     deadline when invoked through the broker's waiting path
//   - Return either a Reply or an error, never block past the context
//   - Be safe for concurrent Handle calls (the broker does not serialize
//     deliveries to one agent)
type Agent interface {
	ID() string
	Capabilities() []string
	Handle(ctx context.Context, msg Message) (Reply, error)
}

// AgentInfo carries identifying details about an agent used in events and
// metrics without holding a reference to the agent itself.
type AgentInfo struct {
	ID           string   `json:"id"`
	Capabilities []string `json:"capabilities"`
}
