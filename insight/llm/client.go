// Package llm wraps a ports.Provider with the prompt cache, rate limiter,
// tracer and retry policy every model call goes through.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
)

// ErrEmptyCompletion is returned when a provider answers with no text.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// Client is the language-model collaborator used by the planner and tools.
type Client struct {
	provider ports.Provider
	builder  *PromptBuilder
	opts     ports.Options
	logger   zerolog.Logger

	cache    ports.Cache
	cacheTTL int
	limiter  ports.RateLimiter
	tracer   ports.Tracer

	retries uint64
	backoff time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithCache memoizes completions for ttlSeconds.
func WithCache(cache ports.Cache, ttlSeconds int) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttlSeconds
	}
}

// WithLimiter gates every provider call.
func WithLimiter(limiter ports.RateLimiter) Option {
	return func(c *Client) { c.limiter = limiter }
}

// WithTracer wraps every call in a span.
func WithTracer(tracer ports.Tracer) Option {
	return func(c *Client) { c.tracer = tracer }
}

// WithRetry retries failed provider calls count times with exponential backoff.
func WithRetry(count int, backoff time.Duration) Option {
	return func(c *Client) {
		if count > 0 {
			c.retries = uint64(count)
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// NewClient builds a Client. Missing cache, limiter and tracer are no-ops.
func NewClient(provider ports.Provider, opts ports.Options, logger zerolog.Logger, options ...Option) *Client {
	c := &Client{
		provider: provider,
		builder:  NewPromptBuilder(),
		opts:     opts,
		logger:   logger.With().Str("component", "llm").Str("provider", provider.Name()).Logger(),
		backoff:  500 * time.Millisecond,
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// Provider returns the wrapped backend.
func (c *Client) Provider() ports.Provider { return c.provider }

// Complete sends a single user prompt.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, []ports.PromptMessage{{Role: "user", Content: prompt}})
}

// Chat sends an ordered message list and returns the completion text.
func (c *Client) Chat(ctx context.Context, messages []ports.PromptMessage) (text string, err error) {
	in := c.builder.Build("", messages, map[string]string{"model": c.opts.Model})

	if c.tracer != nil {
		var finish func(error)
		ctx, finish = c.tracer.StartSpan(ctx, "llm.complete", map[string]any{
			"provider": c.provider.Name(),
			"model":    c.opts.Model,
			"messages": len(in.Messages),
		})
		defer func() { finish(err) }()
	}
	return c.chat(ctx, in, c.cacheKey(in))
}

func (c *Client) chat(ctx context.Context, in ports.PromptInput, key string) (string, error) {
	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, key); ok {
			c.event(ctx, "cache_hit", map[string]any{"key": key})
			return string(cached), nil
		}
	}

	if c.limiter != nil {
		release, err := c.limiter.Acquire(ctx, c.provider.Name())
		if err != nil {
			return "", fmt.Errorf("rate limit: %w", err)
		}
		defer release()
	}

	start := time.Now()
	var completion ports.Completion
	attempt := 0
	err := retry.Do(ctx, retry.WithMaxRetries(c.retries, retry.NewExponential(c.backoff)), func(ctx context.Context) error {
		attempt++
		var err error
		completion, err = c.provider.Complete(ctx, in, c.opts)
		if err != nil {
			if attempt <= int(c.retries) {
				c.logger.Warn().Err(err).Int("attempt", attempt).Msg("Provider call failed, retrying")
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", c.provider.Name(), err)
	}

	text := strings.TrimSpace(completion.Text)
	if text == "" {
		return "", ErrEmptyCompletion
	}

	ev := c.logger.Debug().Dur("elapsed", time.Since(start)).Int("attempts", attempt)
	if completion.Usage != nil {
		ev = ev.Int("prompt_tokens", completion.Usage.PromptTokens).Int("completion_tokens", completion.Usage.CompletionTokens)
	}
	ev.Msg("Completion received")

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, []byte(text), c.cacheTTL); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache completion")
		}
	}
	return text, nil
}

func (c *Client) event(ctx context.Context, name string, attrs map[string]any) {
	if c.tracer != nil {
		c.tracer.Event(ctx, name, attrs)
	}
}

// cacheKey creates a deterministic key from the model, sampling and messages.
func (c *Client) cacheKey(in ports.PromptInput) string {
	var b strings.Builder
	b.WriteString(in.System)
	for _, m := range in.Messages {
		b.WriteString("\x00")
		b.WriteString(m.Role)
		b.WriteString(":")
		b.WriteString(m.Content)
	}
	return fmt.Sprintf("llm:%s|model:%s|t:%.2f|msgs:%d|h:%s",
		c.provider.Name(), c.opts.Model, c.opts.Temperature, len(in.Messages), hashString(b.String()))
}

// hashString is a djb2 hash for deterministic but shorter keys.
func hashString(s string) string {
	hash := uint32(5381)
	for _, r := range s {
		hash = ((hash << 5) + hash) + uint32(r)
	}
	return fmt.Sprintf("%x", hash)
}
