// Package anthropic provides a capability provider backed by the Anthropic
// Messages API. Message payloads are treated as prompt text; the reply
// payload is the concatenated text content of the completion.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/sessionmesh/core"
)

// Options configures the Anthropic agent (model id, temperature, max
// tokens, API key, system prompt). Extend via functional options to
// preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	// System is an optional system prompt prepended to every call; useful
	// for giving one agent a persona matching its capabilities.
	System string
}

// Agent serves routed messages with Claude completions.
type Agent struct {
	id           string
	capabilities []string
	client       *anthropic.Client
	opts         Options
}

// New creates a new Anthropic-backed agent using the official client.
func New(id string, capabilities []string, optFns ...func(o *Options)) *Agent {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return newAgent(id, capabilities, &client, opts)
}

// NewFromClient creates a new Anthropic-backed agent from an existing client.
func NewFromClient(id string, capabilities []string, client *anthropic.Client, optFns ...func(o *Options)) *Agent {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	return newAgent(id, capabilities, client, opts)
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

func newAgent(id string, capabilities []string, client *anthropic.Client, opts Options) *Agent {
	caps := make([]string, len(capabilities))
	copy(caps, capabilities)

	return &Agent{
		id:           id,
		capabilities: caps,
		client:       client,
		opts:         opts,
	}
}

// ID implements core.Agent.
func (a *Agent) ID() string { return a.id }

// Capabilities implements core.Agent.
func (a *Agent) Capabilities() []string {
	caps := make([]string, len(a.capabilities))
	copy(caps, a.capabilities)
	return caps
}

// Handle implements core.Agent. The message payload becomes the user turn;
// the reply payload is the completion's text blocks joined together.
func (a *Agent) Handle(ctx context.Context, msg core.Message) (core.Reply, error) {
	params := anthropic.MessageNewParams{
		Model: a.opts.Model,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(string(msg.Payload()))),
		},
		MaxTokens:   a.opts.MaxTokens,
		Temperature: anthropic.Float(a.opts.Temperature),
	}

	if a.opts.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: a.opts.System}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return core.Reply{}, fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}

	return core.Reply{Payload: []byte(sb.String())}, nil
}
