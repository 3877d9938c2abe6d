package providers

import (
	"strings"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
)

// flatten renders an input as one text prompt for backends without chat
// roles. A lone message is passed through unlabelled.
func flatten(in ports.PromptInput) string {
	var b strings.Builder
	if in.System != "" {
		b.WriteString(in.System)
		b.WriteString("\n\n")
	}
	for i, m := range in.Messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if len(in.Messages) > 1 && m.Role != "" {
			b.WriteString(strings.ToUpper(m.Role[:1]) + m.Role[1:] + ": ")
		}
		b.WriteString(m.Content)
	}
	return b.String()
}
