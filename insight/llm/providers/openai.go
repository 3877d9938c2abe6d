package providers

import (
	"context"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
)

// OpenAIProvider talks to OpenAI or any OpenAI-compatible gateway.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider builds a provider; baseURL may be empty.
func NewOpenAIProvider(apiKey, baseURL string, httpClient *http.Client) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg)}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Complete(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(in.Messages)+1)
	if in.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: in.System})
	}
	for _, m := range in.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: openAIRole(m.Role), Content: m.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:       opts.Model,
		Messages:    messages,
		MaxTokens:   opts.MaxNewTokens,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		Stop:        opts.Stop,
	}
	if opts.Seed != 0 {
		seed := opts.Seed
		req.Seed = &seed
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return ports.Completion{}, err
	}
	if len(resp.Choices) == 0 {
		return ports.Completion{}, fmt.Errorf("openai: no choices in response")
	}

	return ports.Completion{
		Text: resp.Choices[0].Message.Content,
		Raw:  resp,
		Usage: &ports.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func openAIRole(role string) string {
	switch role {
	case "assistant":
		return openai.ChatMessageRoleAssistant
	case "system":
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}

var _ ports.Provider = (*OpenAIProvider)(nil)
