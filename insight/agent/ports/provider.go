package agentports

import (
	"context"
)

// PromptMessage represents a single chat message used to build prompts.
type PromptMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// PromptInput aggregates everything the provider needs to produce a completion.
type PromptInput struct {
	System   string            // high-level system instructions
	Messages []PromptMessage   // ordered chat messages
	Meta     map[string]string // lightweight metadata for tracing/caching keys
}

// Options controls sampling and limits.
type Options struct {
	Model        string
	MaxNewTokens int
	Temperature  float32
	TopP         float32
	Seed         int
	Stop         []string
}

// Usage captures token accounting for cost/telemetry.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the provider's response.
type Completion struct {
	Text  string
	Raw   any    // raw provider payload for debugging/telemetry
	Usage *Usage // optional usage information
}

// Provider is the abstraction for all LLM backends.
type Provider interface {
	Name() string
	Complete(ctx context.Context, in PromptInput, opts Options) (Completion, error)
}
