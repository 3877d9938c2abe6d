package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/insight-agent/insight/agent/adapters"
	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
)

// StubProvider implements ports.Provider for testing.
type StubProvider struct {
	CompleteFunc func(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error)
	calls        int
	last         ports.PromptInput
}

func (s *StubProvider) Name() string { return "stub" }

func (s *StubProvider) Complete(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
	s.calls++
	s.last = in
	if s.CompleteFunc != nil {
		return s.CompleteFunc(ctx, in, opts)
	}
	return ports.Completion{Text: "ok"}, nil
}

// StubTracer records span names.
type StubTracer struct {
	spans  []string
	events []string
	errs   []error
}

func (s *StubTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	s.spans = append(s.spans, name)
	return ctx, func(err error) { s.errs = append(s.errs, err) }
}

func (s *StubTracer) Event(ctx context.Context, name string, attrs map[string]any) {
	s.events = append(s.events, name)
}

// StubLimiter refuses every call when Err is set.
type StubLimiter struct {
	Err      error
	released int
}

func (s *StubLimiter) Acquire(ctx context.Context, key string) (func(), error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return func() { s.released++ }, nil
}

// TestClient_Complete tests prompt shaping and trimming.
func TestClient_Complete(t *testing.T) {
	provider := &StubProvider{CompleteFunc: func(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
		assert.Equal(t, "m1", opts.Model)
		return ports.Completion{Text: "  SELECT 1  \n", Usage: &ports.Usage{PromptTokens: 3}}, nil
	}}
	client := NewClient(provider, ports.Options{Model: "m1"}, zerolog.Nop())

	out, err := client.Complete(context.Background(), "question\r\n")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", out)
	require.Len(t, provider.last.Messages, 1)
	assert.Equal(t, "question", provider.last.Messages[0].Content)
	assert.Equal(t, "user", provider.last.Messages[0].Role)
}

// TestClient_Chat_SystemFolded tests that a leading system message becomes System.
func TestClient_Chat_SystemFolded(t *testing.T) {
	provider := &StubProvider{}
	client := NewClient(provider, ports.Options{}, zerolog.Nop())

	_, err := client.Chat(context.Background(), []ports.PromptMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "be brief", provider.last.System)
	assert.Len(t, provider.last.Messages, 1)
}

// TestClient_Cache tests that identical prompts hit the cache.
func TestClient_Cache(t *testing.T) {
	provider := &StubProvider{}
	tracer := &StubTracer{}
	client := NewClient(provider, ports.Options{Model: "m"}, zerolog.Nop(),
		WithCache(adapters.NewLRUCache(8), 60),
		WithTracer(tracer),
	)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		out, err := client.Complete(ctx, "same prompt")
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
	}
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, []string{"cache_hit", "cache_hit"}, tracer.events)
	assert.Len(t, tracer.spans, 3)

	_, err := client.Complete(ctx, "different prompt")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls)
}

// TestClient_NoRetryByDefault tests that failures propagate after one attempt.
func TestClient_NoRetryByDefault(t *testing.T) {
	boom := errors.New("connection refused")
	provider := &StubProvider{CompleteFunc: func(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
		return ports.Completion{}, boom
	}}
	tracer := &StubTracer{}
	client := NewClient(provider, ports.Options{}, zerolog.Nop(), WithTracer(tracer))

	_, err := client.Complete(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, provider.calls)
	require.Len(t, tracer.errs, 1)
	assert.ErrorIs(t, tracer.errs[0], boom)
}

// TestClient_Retry tests recovery after a transient failure.
func TestClient_Retry(t *testing.T) {
	provider := &StubProvider{}
	provider.CompleteFunc = func(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
		if provider.calls < 3 {
			return ports.Completion{}, errors.New("503")
		}
		return ports.Completion{Text: "recovered"}, nil
	}
	client := NewClient(provider, ports.Options{}, zerolog.Nop(), WithRetry(2, time.Millisecond))

	out, err := client.Complete(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, 3, provider.calls)
}

// TestClient_EmptyCompletion tests the empty text sentinel.
func TestClient_EmptyCompletion(t *testing.T) {
	provider := &StubProvider{CompleteFunc: func(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
		return ports.Completion{Text: "   "}, nil
	}}
	client := NewClient(provider, ports.Options{}, zerolog.Nop())

	_, err := client.Complete(context.Background(), "q")
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

// TestClient_Limiter tests limiter rejection and release.
func TestClient_Limiter(t *testing.T) {
	provider := &StubProvider{}
	limiter := &StubLimiter{}
	client := NewClient(provider, ports.Options{}, zerolog.Nop(), WithLimiter(limiter))

	_, err := client.Complete(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 1, limiter.released)

	limiter.Err = adapters.ErrRateLimitExceeded
	_, err = client.Complete(context.Background(), "q")
	assert.ErrorIs(t, err, adapters.ErrRateLimitExceeded)
	assert.Equal(t, 1, provider.calls)
}

// TestPromptBuilder_Build tests normalisation.
func TestPromptBuilder_Build(t *testing.T) {
	in := NewPromptBuilder().Build(" base \r\n", []ports.PromptMessage{
		{Role: "system", Content: "extra"},
		{Role: "user", Content: " a\r\nb "},
		{Role: "system", Content: "late"},
	}, nil)

	assert.Equal(t, "base\n\nextra", in.System)
	require.Len(t, in.Messages, 2)
	assert.Equal(t, "a\nb", in.Messages[0].Content)
	assert.Equal(t, "system", in.Messages[1].Role)
}

// TestHashString tests determinism.
func TestHashString(t *testing.T) {
	assert.Equal(t, hashString("abc"), hashString("abc"))
	assert.NotEqual(t, hashString("abc"), hashString("abd"))
	assert.Equal(t, "1505", hashString(""))
}
