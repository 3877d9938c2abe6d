package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	ollama "github.com/ollama/ollama/api"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
)

// OllamaProvider runs prompts against a local Ollama server.
type OllamaProvider struct {
	client *ollama.Client
}

func NewOllamaProvider(baseURL string, httpClient *http.Client) (*OllamaProvider, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OllamaProvider{client: ollama.NewClient(u, httpClient)}, nil
}

func (p *OllamaProvider) Name() string { return "ollama" }

func (p *OllamaProvider) Complete(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
	stream := false
	options := map[string]any{"temperature": opts.Temperature}
	if opts.TopP > 0 {
		options["top_p"] = opts.TopP
	}
	if opts.MaxNewTokens > 0 {
		options["num_predict"] = opts.MaxNewTokens
	}
	if opts.Seed != 0 {
		options["seed"] = opts.Seed
	}
	if len(opts.Stop) > 0 {
		options["stop"] = opts.Stop
	}

	req := &ollama.GenerateRequest{
		Model:   opts.Model,
		Prompt:  flatten(ports.PromptInput{Messages: in.Messages}),
		System:  in.System,
		Stream:  &stream,
		Options: options,
	}

	var b strings.Builder
	var last ollama.GenerateResponse
	err := p.client.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
		b.WriteString(gr.Response)
		last = gr
		return nil
	})
	if err != nil {
		return ports.Completion{}, err
	}

	return ports.Completion{
		Text: b.String(),
		Raw:  last,
		Usage: &ports.Usage{
			PromptTokens:     last.PromptEvalCount,
			CompletionTokens: last.EvalCount,
			TotalTokens:      last.PromptEvalCount + last.EvalCount,
		},
	}, nil
}

var _ ports.Provider = (*OllamaProvider)(nil)
