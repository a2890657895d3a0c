// Package agent provides helpers for building capability providers. The
// Func adapter turns a plain handler function into a core.Agent; the
// anthropic and openai subpackages back an agent's Handle with an LLM call.
package agent
