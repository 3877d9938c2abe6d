package agent

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/insight-agent/insight/agent/adapters"
	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
	"github.com/ZanzyTHEbar/insight-agent/insight/config"
	"github.com/ZanzyTHEbar/insight-agent/insight/datastore"
	"github.com/ZanzyTHEbar/insight-agent/insight/llm"
	"github.com/ZanzyTHEbar/insight-agent/insight/llm/providers"
	"github.com/ZanzyTHEbar/insight-agent/insight/render"
	"github.com/ZanzyTHEbar/insight-agent/insight/tools"
)

// Policy holds the clamped orchestration limits.
type Policy struct {
	MaxSteps      int
	HistoryWindow int
	MaxHistory    int
	ToolTimeout   time.Duration
}

// Runtime is the shared, wired object graph behind every Agent.
type Runtime struct {
	Client   *llm.Client
	Registry *Registry
	Planner  *Planner
	Store    ports.ConversationStore
	Tracer   ports.Tracer
	Policy   *Policy
	Schema   string

	persist bool
	logger  zerolog.Logger
}

// NewAgent creates an Agent with a fresh conversation.
func (r *Runtime) NewAgent() *Agent {
	var store ports.ConversationStore
	if r.persist {
		store = r.Store
	}
	conv := NewConversation(r.Policy.MaxHistory, store, r.logger)
	return New(r.Planner, r.Registry, conv, Options{
		MaxSteps:      r.Policy.MaxSteps,
		HistoryWindow: r.Policy.HistoryWindow,
		Schema:        r.Schema,
		Store:         store,
		Tracer:        r.Tracer,
	}, r.logger)
}

// NewSessions creates a per-client session table over this runtime.
func (r *Runtime) NewSessions(opts ...SessionsOption) *Sessions {
	return NewSessions(r.NewAgent, opts...)
}

// Factory creates and wires agent components from configuration.
type Factory struct {
	cfg     *config.Config
	stateDB *sql.DB // Optional, for conversation store
	logger  zerolog.Logger
}

// NewFactory creates a new agent factory.
func NewFactory(cfg *config.Config, stateDB *sql.DB, logger zerolog.Logger) *Factory {
	return &Factory{
		cfg:     cfg,
		stateDB: stateDB,
		logger:  logger,
	}
}

// CreateRuntime wires the LLM client, tools, registry and planner over the
// analysis data store.
func (f *Factory) CreateRuntime(ctx context.Context, provider ports.Provider, data *datastore.Store) (*Runtime, error) {
	if provider == nil {
		return nil, errors.New("llm provider is required")
	}
	if data == nil {
		return nil, errors.New("data store is required")
	}

	tracer := f.createTracer()
	store := f.createStore()
	policy := f.CreatePolicy()
	client := f.CreateClient(provider, tracer)

	registry := NewRegistry(f.logger, f.registryOptions(policy)...)
	charts := render.NewChartRenderer(f.cfg.App.OutputDir, f.logger)
	reports := render.NewReportWriter(f.cfg.App.OutputDir, f.logger)
	for _, t := range tools.All(data, client, charts, reports) {
		registry.Register(t)
	}

	schema, err := data.DescribeSchema(ctx)
	if err != nil {
		f.logger.Warn().Err(err).Msg("Failed to describe data schema; planning without it")
		schema = ""
	}

	_, isNoOp := store.(*noOpStore)
	rt := &Runtime{
		Client:   client,
		Registry: registry,
		Planner:  NewPlanner(client, f.logger),
		Store:    store,
		Tracer:   tracer,
		Policy:   policy,
		Schema:   schema,
		persist:  !isNoOp,
		logger:   f.logger,
	}

	f.logger.Info().
		Str("provider", provider.Name()).
		Int("tools", len(registry.Names())).
		Bool("persist", rt.persist).
		Msg("Agent runtime ready")
	return rt, nil
}

// CreateClient wraps provider with the configured cache, limiter, tracer and
// retry policy.
func (f *Factory) CreateClient(provider ports.Provider, tracer ports.Tracer) *llm.Client {
	h := f.cfg.Harness
	opts := []llm.Option{
		llm.WithTracer(tracer),
		llm.WithCache(f.createCache(), h.CacheTTLSeconds),
		llm.WithLimiter(f.createRateLimiter()),
	}
	if h.RetryCount > 0 {
		opts = append(opts, llm.WithRetry(h.RetryCount, h.RetryBackoff))
	}
	return llm.NewClient(provider, providers.OptionsFromConfig(f.cfg.LLM), f.logger, opts...)
}

func (f *Factory) registryOptions(policy *Policy) []RegistryOption {
	opts := []RegistryOption{WithToolTimeout(policy.ToolTimeout)}
	if f.cfg.Harness.ValidateToolArgs {
		opts = append(opts, WithArgValidation(NewArgValidator()))
	}
	return opts
}

// createCache creates a cache adapter from config.
func (f *Factory) createCache() ports.Cache {
	if !f.cfg.Harness.CacheEnabled {
		return &noOpCache{}
	}

	return adapters.NewLRUCache(f.cfg.Harness.CacheCapacity)
}

// createRateLimiter creates a rate limiter adapter from config.
func (f *Factory) createRateLimiter() ports.RateLimiter {
	if !f.cfg.Harness.RateLimitEnabled {
		return &noOpRateLimiter{}
	}

	return adapters.NewKeyedLimiter(f.cfg.Harness.RateLimitCapacity, f.cfg.Harness.RateLimitRefillRate)
}

// createTracer prefers OpenTelemetry when an exporter is configured.
func (f *Factory) createTracer() ports.Tracer {
	if f.cfg.Telemetry.Enabled {
		return adapters.NewOTelTracer(f.cfg.Telemetry.ServiceName)
	}
	if !f.cfg.Harness.EnableTracing {
		return &noOpTracer{}
	}

	return adapters.NewZerologTracer(f.logger)
}

// createStore creates a conversation store adapter from config.
func (f *Factory) createStore() ports.ConversationStore {
	if f.stateDB == nil || !f.cfg.State.Enabled || !f.cfg.Agent.PersistConversations {
		return &noOpStore{}
	}

	return adapters.NewSQLConversationStore(f.stateDB)
}

// CreatePolicy creates a policy from config with validation.
func (f *Factory) CreatePolicy() *Policy {
	ac := f.cfg.Agent
	policy := &Policy{
		MaxSteps:      ac.MaxSteps,
		HistoryWindow: ac.HistoryWindow,
		MaxHistory:    ac.MaxHistory,
		ToolTimeout:   ac.ToolTimeout,
	}

	// Validate and clamp policy values
	if policy.MaxSteps < 1 {
		policy.MaxSteps = 1
		f.logger.Warn().Int("max_steps", ac.MaxSteps).Msg("MaxSteps clamped to minimum of 1")
	}
	if policy.MaxSteps > 20 {
		policy.MaxSteps = 20
		f.logger.Warn().Int("max_steps", ac.MaxSteps).Msg("MaxSteps clamped to maximum of 20")
	}

	if policy.MaxHistory < 1 {
		policy.MaxHistory = DefaultMaxHistory
		f.logger.Warn().Int("max_history", ac.MaxHistory).Msg("MaxHistory reset to default")
	}
	if policy.HistoryWindow < 1 {
		policy.HistoryWindow = 1
		f.logger.Warn().Int("history_window", ac.HistoryWindow).Msg("HistoryWindow clamped to minimum of 1")
	}
	if policy.HistoryWindow > policy.MaxHistory {
		policy.HistoryWindow = policy.MaxHistory
		f.logger.Warn().Int("history_window", ac.HistoryWindow).Msg("HistoryWindow clamped to MaxHistory")
	}

	if policy.ToolTimeout <= 0 {
		policy.ToolTimeout = 60 * time.Second
		f.logger.Warn().Dur("tool_timeout", ac.ToolTimeout).Msg("ToolTimeout reset to 60s")
	}

	return policy
}

// noOpCache implements Cache interface with no-op behavior for disabled cache.
type noOpCache struct{}

func (c *noOpCache) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }
func (c *noOpCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	return nil
}
func (c *noOpCache) Delete(ctx context.Context, key string) error { return nil }

// noOpRateLimiter implements RateLimiter interface with no-op behavior.
type noOpRateLimiter struct{}

func (r *noOpRateLimiter) Acquire(ctx context.Context, key string) (release func(), err error) {
	return func() {}, nil
}

// noOpTracer implements Tracer interface with no-op behavior.
type noOpTracer struct{}

func (t *noOpTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	return ctx, func(err error) {}
}

func (t *noOpTracer) Event(ctx context.Context, name string, attrs map[string]any) {}

// noOpStore implements ConversationStore interface with no-op behavior.
type noOpStore struct{}

func (s *noOpStore) SaveTurn(ctx context.Context, conversationID string, turn ports.Turn) error {
	return nil
}

func (s *noOpStore) LoadTurns(ctx context.Context, conversationID string, k int) ([]ports.Turn, error) {
	return nil, nil
}

func (s *noOpStore) AppendToolArtifact(ctx context.Context, conversationID, name string, payload []byte) error {
	return nil
}

// Ensure all no-op types implement their interfaces.
var (
	_ ports.Cache             = (*noOpCache)(nil)
	_ ports.RateLimiter       = (*noOpRateLimiter)(nil)
	_ ports.Tracer            = (*noOpTracer)(nil)
	_ ports.ConversationStore = (*noOpStore)(nil)
)
