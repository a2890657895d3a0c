package core

import (
	"sort"
	"time"

	"github.com/hupe1980/sessionmesh/internal/util"
)

// Message is one immutable unit of inter-agent communication. It carries an
// opaque payload, free-form metadata and the capability tags a receiving
// agent must declare in order to serve it.
//
// Messages have no routing identity of their own beyond the generated id;
// correlating a request with its reply is the broker's responsibility.
// All accessors return defensive copies so a constructed message can never
// be mutated through its getters.
type Message struct {
	id           string
	sender       string
	payload      []byte
	metadata     map[string]string
	capabilities []string
	timestamp    time.Time
}

// MessageBuilder constructs messages with a fluent API.
type MessageBuilder struct {
	msg Message
}

// NewMessage creates a message builder for the given sender id.
func NewMessage(sender string) *MessageBuilder {
	return &MessageBuilder{
		msg: Message{
			id:        util.NewID(),
			sender:    sender,
			metadata:  map[string]string{},
			timestamp: time.Now().UTC(),
		},
	}
}

// WithPayload sets the opaque payload. The slice is copied.
func (b *MessageBuilder) WithPayload(payload []byte) *MessageBuilder {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	b.msg.payload = cp
	return b
}

// WithMetadata adds a metadata key/value pair.
func (b *MessageBuilder) WithMetadata(key, value string) *MessageBuilder {
	b.msg.metadata[key] = value
	return b
}

// Require appends capability tags the target agent must declare. Duplicate
// tags are collapsed; the final set is stored sorted so the broker's
// candidate selection is deterministic.
func (b *MessageBuilder) Require(capabilities ...string) *MessageBuilder {
	b.msg.capabilities = append(b.msg.capabilities, capabilities...)
	return b
}

// Build finalizes the message. The builder must not be reused afterwards.
func (b *MessageBuilder) Build() Message {
	seen := make(map[string]struct{}, len(b.msg.capabilities))
	caps := make([]string, 0, len(b.msg.capabilities))
	for _, c := range b.msg.capabilities {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		caps = append(caps, c)
	}
	sort.Strings(caps)
	b.msg.capabilities = caps
	return b.msg
}

// ID returns the unique identifier of this message.
func (m Message) ID() string { return m.id }

// Sender returns the id of the session or component that built the message.
func (m Message) Sender() string { return m.sender }

// Timestamp returns the UTC construction time.
func (m Message) Timestamp() time.Time { return m.timestamp }

// Payload returns a copy of the opaque payload bytes.
func (m Message) Payload() []byte {
	cp := make([]byte, len(m.payload))
	copy(cp, m.payload)
	return cp
}

// Metadata returns a copy of the metadata map.
func (m Message) Metadata() map[string]string {
	cp := make(map[string]string, len(m.metadata))
	for k, v := range m.metadata {
		cp[k] = v
	}
	return cp
}

// RequiredCapabilities returns the sorted capability tags a serving agent
// must declare. The slice is a copy.
func (m Message) RequiredCapabilities() []string {
	cp := make([]string, len(m.capabilities))
	copy(cp, m.capabilities)
	return cp
}

// Reply is the response produced by an agent for a routed message.
type Reply struct {
	// AgentID identifies the agent that served the message.
	AgentID string `json:"agent_id"`
	// MessageID correlates the reply with the routed message.
	MessageID string `json:"message_id"`
	// Payload is the opaque response body.
	Payload []byte `json:"payload"`
	// Received is the time the broker accepted the reply.
	Received time.Time `json:"received"`
}
