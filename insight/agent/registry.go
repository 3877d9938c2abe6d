package agent

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
	"github.com/ZanzyTHEbar/insight-agent/insight/tools"
)

// Registry maps tool names to tools and is the only way steps reach them.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]ports.Tool
	order     []string
	timeout   time.Duration
	validator *ArgValidator // nil disables schema checks
	logger    zerolog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithToolTimeout bounds every tool call. Zero means no deadline.
func WithToolTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.timeout = d }
}

// WithArgValidation enables advisory JSON-schema checks of tool arguments.
func WithArgValidation(v *ArgValidator) RegistryOption {
	return func(r *Registry) { r.validator = v }
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:  make(map[string]ports.Tool),
		logger: logger.With().Str("component", "registry").Logger(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register adds or replaces a tool. A replaced tool keeps its catalogue position.
func (r *Registry) Register(tool ports.Tool) {
	name := tool.Describe().Name

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
	r.logger.Info().Str("tool", name).Msg("Registered tool")
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (ports.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// ListDescriptions returns every tool's descriptor in registration order.
func (r *Registry) ListDescriptions() []ports.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]ports.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Describe())
	}
	return specs
}

// Execute runs the named tool behind the fault-isolation boundary. It never
// returns an error; failures come back as unsuccessful results.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) ports.StepResult {
	tool, ok := r.Get(name)
	if !ok {
		r.logger.Warn().Str("tool", name).Msg("Tool not found")
		res := ports.Failed("tool not found: %s", name)
		res.Tool = name
		return res
	}

	if args == nil {
		args = map[string]any{}
	}

	if r.validator != nil {
		if err := r.validator.Validate(tool.Describe().JSONSchema, args); err != nil {
			r.logger.Warn().Err(err).Str("tool", name).Msg("Tool arguments do not match schema")
		}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	return tools.SafeExecute(ctx, tool, args, r.logger)
}
