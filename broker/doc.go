// Package broker routes messages to capability-matched agents. The Registry
// tracks which agents declare which capability tags; the Broker selects
// exactly one qualified agent per message and either fires-and-forgets
// (Route) or blocks the caller for a bounded reply (RouteAndWait).
//
// RouteAndWait is the sole suspension point of the session step pipeline:
// every step is logically synchronous even though delivery to the agent is
// asynchronous. The call always returns within the timeout bound, never
// hangs on an unreachable agent.
//
// When several agents qualify for a message the broker rotates round-robin
// over the id-sorted candidate list, so selection is deterministic for a
// given registry snapshot.
package broker
