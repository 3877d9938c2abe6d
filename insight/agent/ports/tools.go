package agentports

import (
	"context"
	"fmt"
)

// ToolSpec describes a callable tool exposed to the planner.
type ToolSpec struct {
	Name        string `json:"name"`        // unique logical name
	Description string `json:"description"` // concise doc for model selection
	Parameters  string `json:"parameters"`  // free-form argument hint shown to the planner
	JSONSchema  []byte `json:"-"`           // optional schema for advisory argument checks
}

// StepResult is the outcome of one tool invocation. Success=false means
// Result carries a diagnostic. An empty ArtifactPath means no image.
type StepResult struct {
	Success      bool           `json:"success"`
	Result       string         `json:"result"`
	Data         map[string]any `json:"data,omitempty"`
	ArtifactPath string         `json:"image_path,omitempty"`
	Tool         string         `json:"tool"`
	Reason       string         `json:"reason,omitempty"`
}

// Failed builds an unsuccessful StepResult.
func Failed(format string, args ...any) StepResult {
	return StepResult{Success: false, Result: fmt.Sprintf(format, args...)}
}

// Tool defines the runtime that executes a tool call.
type Tool interface {
	Describe() ToolSpec
	Execute(ctx context.Context, args map[string]any) (StepResult, error)
}
