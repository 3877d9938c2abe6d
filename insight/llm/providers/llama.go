//go:build llama && !no_llama

package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-skynet/go-llama.cpp"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
)

// LlamaProvider runs a local GGUF model through llama.cpp.
type LlamaProvider struct {
	model   *llama.LLama
	threads int
	mu      sync.Mutex
}

// NewLlamaProvider loads the model at path.
func NewLlamaProvider(path string, contextSize, gpuLayers, threads int) (*LlamaProvider, error) {
	if path == "" {
		return nil, fmt.Errorf("llama: model_path is required")
	}
	options := []llama.ModelOption{
		llama.SetContext(contextSize),
		llama.SetGPULayers(gpuLayers),
	}
	model, err := llama.New(path, options...)
	if err != nil {
		return nil, fmt.Errorf("llama.New failed: %w", err)
	}
	return &LlamaProvider{model: model, threads: threads}, nil
}

func (p *LlamaProvider) Name() string { return "llama" }

// Close frees the model.
func (p *LlamaProvider) Close() error {
	p.model.Free()
	return nil
}

func (p *LlamaProvider) Complete(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
	if err := ctx.Err(); err != nil {
		return ports.Completion{}, err
	}

	predict := []llama.PredictOption{
		llama.SetTemperature(opts.Temperature),
		llama.SetTopP(opts.TopP),
		llama.SetTokens(opts.MaxNewTokens),
	}
	if p.threads > 0 {
		predict = append(predict, llama.SetThreads(p.threads))
	}
	if len(opts.Stop) > 0 {
		predict = append(predict, llama.SetStopWords(opts.Stop...))
	}

	// llama.cpp contexts are not safe for concurrent prediction
	p.mu.Lock()
	defer p.mu.Unlock()

	text, err := p.model.Predict(flatten(in), predict...)
	if err != nil {
		return ports.Completion{}, fmt.Errorf("prediction failed: %w", err)
	}
	return ports.Completion{Text: text}, nil
}

var _ ports.Provider = (*LlamaProvider)(nil)
