package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
	"github.com/ZanzyTHEbar/insight-agent/insight/config"
)

var testInput = ports.PromptInput{
	System:   "You are terse.",
	Messages: []ports.PromptMessage{{Role: "user", Content: "How many orders?"}},
}

// TestOpenAIProvider_Complete tests request mapping against a fake gateway.
func TestOpenAIProvider_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"42 orders"},"finish_reason":"stop"}],"usage":{"prompt_tokens":7,"completion_tokens":2,"total_tokens":9}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL+"/v1", srv.Client())
	out, err := p.Complete(context.Background(), testInput, ports.Options{Model: "qwen", Temperature: 0.1, MaxNewTokens: 64})
	require.NoError(t, err)

	assert.Equal(t, "42 orders", out.Text)
	require.NotNil(t, out.Usage)
	assert.Equal(t, 9, out.Usage.TotalTokens)
	assert.Equal(t, "qwen", got["model"])

	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "How many orders?", msgs[1].(map[string]any)["content"])
}

// TestOpenAIProvider_NoChoices tests the empty choice list error.
func TestOpenAIProvider_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","choices":[]}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL, srv.Client())
	_, err := p.Complete(context.Background(), testInput, ports.Options{Model: "qwen"})
	assert.Error(t, err)
}

// TestAnthropicProvider_Complete tests the Messages API mapping.
func TestAnthropicProvider_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/messages"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude","content":[{"type":"text","text":"Four."}],"stop_reason":"end_turn","usage":{"input_tokens":5,"output_tokens":1}}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("key", srv.URL+"/")
	out, err := p.Complete(context.Background(), testInput, ports.Options{Model: "claude", MaxNewTokens: 32})
	require.NoError(t, err)

	assert.Equal(t, "Four.", out.Text)
	assert.Equal(t, 6, out.Usage.TotalTokens)
	assert.Equal(t, float64(32), got["max_tokens"])
	assert.NotEmpty(t, got["system"])
}

// TestOllamaProvider_Complete tests the generate endpoint mapping.
func TestOllamaProvider_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"model":"llama3","response":"SELECT 1","done":true,"prompt_eval_count":4,"eval_count":3}`+"\n")
	}))
	defer srv.Close()

	p, err := NewOllamaProvider(srv.URL, srv.Client())
	require.NoError(t, err)

	out, err := p.Complete(context.Background(), testInput, ports.Options{Model: "llama3", MaxNewTokens: 16})
	require.NoError(t, err)

	assert.Equal(t, "SELECT 1", out.Text)
	assert.Equal(t, 7, out.Usage.TotalTokens)
	assert.Equal(t, "You are terse.", got["system"])
	assert.Equal(t, "How many orders?", got["prompt"])
	assert.Equal(t, false, got["stream"])
}

// TestFlatten tests role labelling for multi-message prompts.
func TestFlatten(t *testing.T) {
	assert.Equal(t, "hi", flatten(ports.PromptInput{Messages: []ports.PromptMessage{{Role: "user", Content: "hi"}}}))

	out := flatten(ports.PromptInput{
		System: "sys",
		Messages: []ports.PromptMessage{
			{Role: "user", Content: "a"},
			{Role: "assistant", Content: "b"},
		},
	})
	assert.Equal(t, "sys\n\nUser: a\n\nAssistant: b", out)
}

// TestNew tests provider selection.
func TestNew(t *testing.T) {
	ctx := context.Background()

	p, err := New(ctx, config.LLMConfig{Provider: "openai", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	p, err = New(ctx, config.LLMConfig{Provider: "Ollama"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())

	p, err = New(ctx, config.LLMConfig{Provider: "anthropic", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	_, err = New(ctx, config.LLMConfig{Provider: "openai"})
	assert.Error(t, err)

	_, err = New(ctx, config.LLMConfig{Provider: "gemini"})
	assert.Error(t, err)

	_, err = New(ctx, config.LLMConfig{Provider: "mystery"})
	assert.ErrorContains(t, err, "unknown llm provider")
}

// TestOptionsFromConfig tests option mapping.
func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.LLMConfig{Model: "m", MaxNewTokens: 10, Temperature: 0.1, TopP: 0.9})
	assert.Equal(t, ports.Options{Model: "m", MaxNewTokens: 10, Temperature: 0.1, TopP: 0.9}, opts)
}
