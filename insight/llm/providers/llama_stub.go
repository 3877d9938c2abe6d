//go:build !llama || no_llama

package providers

import (
	"context"
	"errors"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
)

// ErrLlamaUnavailable is returned when the binary was built without llama.cpp.
var ErrLlamaUnavailable = errors.New("llama provider not available: rebuild with -tags llama")

// LlamaProvider is a placeholder when llama.cpp support is compiled out.
type LlamaProvider struct{}

func NewLlamaProvider(path string, contextSize, gpuLayers, threads int) (*LlamaProvider, error) {
	return nil, ErrLlamaUnavailable
}

func (p *LlamaProvider) Name() string { return "llama" }

func (p *LlamaProvider) Close() error { return nil }

func (p *LlamaProvider) Complete(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
	return ports.Completion{}, ErrLlamaUnavailable
}

var _ ports.Provider = (*LlamaProvider)(nil)
