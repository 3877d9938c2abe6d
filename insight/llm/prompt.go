package llm

import (
	"strings"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
)

// PromptBuilder assembles model-ready inputs from system text and messages.
type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder { return &PromptBuilder{} }

// Build normalises system + chat messages into a Provider PromptInput.
// Leading system messages are folded into System.
func (b *PromptBuilder) Build(system string, messages []ports.PromptMessage, meta map[string]string) ports.PromptInput {
	// Normalize newlines and trim whitespace to reduce prompt diffs for caching
	norm := func(s string) string { return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n")) }

	systemParts := []string{}
	if s := norm(system); s != "" {
		systemParts = append(systemParts, s)
	}

	out := make([]ports.PromptMessage, 0, len(messages))
	for _, m := range messages {
		content := norm(m.Content)
		if m.Role == "system" && len(out) == 0 {
			if content != "" {
				systemParts = append(systemParts, content)
			}
			continue
		}
		out = append(out, ports.PromptMessage{Role: m.Role, Content: content})
	}

	return ports.PromptInput{
		System:   strings.Join(systemParts, "\n\n"),
		Messages: out,
		Meta:     meta,
	}
}
