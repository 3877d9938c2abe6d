package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
)

// GeminiProvider uses the Google Generative AI API.
type GeminiProvider struct {
	client *genai.Client
}

func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

// Close releases the underlying client.
func (p *GeminiProvider) Close() error { return p.client.Close() }

func (p *GeminiProvider) Complete(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
	model := p.client.GenerativeModel(opts.Model)
	model.SetTemperature(opts.Temperature)
	if opts.TopP > 0 {
		model.SetTopP(opts.TopP)
	}
	if opts.MaxNewTokens > 0 {
		model.SetMaxOutputTokens(int32(opts.MaxNewTokens))
	}
	if len(opts.Stop) > 0 {
		model.StopSequences = opts.Stop
	}
	if in.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(in.System)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(flatten(ports.PromptInput{Messages: in.Messages})))
	if err != nil {
		return ports.Completion{}, err
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		break
	}

	out := ports.Completion{Text: b.String(), Raw: resp}
	if resp.UsageMetadata != nil {
		out.Usage = &ports.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

var _ ports.Provider = (*GeminiProvider)(nil)
