// Package openai provides a capability provider backed by the OpenAI Chat
// Completions API. Message payloads are treated as prompt text; the reply
// payload is the first choice's message content.
package openai

import (
	"context"
	"fmt"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Options configure the OpenAI agent. Fields mirror a subset of Chat
// Completion parameters intentionally kept minimal; extend via functional
// options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
	System              string
}

// Agent serves routed messages with chat completions.
type Agent struct {
	id           string
	capabilities []string
	client       *openai.Client
	opts         Options
}

// New creates a new OpenAI-backed agent using the official client.
func New(id string, capabilities []string, optFns ...func(o *Options)) *Agent {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := openai.NewClient(clientOpts...)

	return newAgent(id, capabilities, &client, opts)
}

// NewFromClient creates a new OpenAI-backed agent from an existing client.
func NewFromClient(id string, capabilities []string, client *openai.Client, optFns ...func(o *Options)) *Agent {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	return newAgent(id, capabilities, client, opts)
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
}

func newAgent(id string, capabilities []string, client *openai.Client, opts Options) *Agent {
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

// Handle implements core.Agent.
func (a *Agent) Handle(ctx context.Context, msg core.Message) (core.Reply, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if a.opts.System != "" {
		messages = append(messages, openai.SystemMessage(a.opts.System))
	}
	messages = append(messages, openai.UserMessage(string(msg.Payload())))

	params := openai.ChatCompletionNewParams{
		Model:               a.opts.Model,
		Messages:            messages,
		Temperature:         openai.Float(a.opts.Temperature),
		MaxCompletionTokens: openai.Int(a.opts.MaxCompletionTokens),
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return core.Reply{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return core.Reply{}, fmt.Errorf("openai api returned no choices")
	}

	return core.Reply{Payload: []byte(resp.Choices[0].Message.Content)}, nil
}
