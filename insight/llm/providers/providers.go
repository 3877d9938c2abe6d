// Package providers binds the LLM backends to ports.Provider.
package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
	"github.com/ZanzyTHEbar/insight-agent/insight/config"
)

// New selects a provider by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (ports.Provider, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider: api key is required (set LLM_API_KEY or API_KEY)")
		}
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, httpClient), nil
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider: api key is required")
		}
		return NewAnthropicProvider(cfg.APIKey, cfg.BaseURL), nil
	case "ollama":
		p, err := NewOllamaProvider(cfg.BaseURL, httpClient)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini provider: api key is required")
		}
		p, err := NewGeminiProvider(ctx, cfg.APIKey)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "llama":
		p, err := NewLlamaProvider(cfg.ModelPath, cfg.ContextSize, cfg.GPULayers, cfg.Threads)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// OptionsFromConfig maps the llm config section to sampling options.
func OptionsFromConfig(cfg config.LLMConfig) ports.Options {
	return ports.Options{
		Model:        cfg.Model,
		MaxNewTokens: cfg.MaxNewTokens,
		Temperature:  cfg.Temperature,
		TopP:         cfg.TopP,
	}
}
