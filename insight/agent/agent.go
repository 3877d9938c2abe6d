// Package agent plans tool calls for a natural-language request, runs them
// through the registry and synthesizes the final answer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
	"github.com/ZanzyTHEbar/insight-agent/insight/tools"
)

// DefaultMaxSteps bounds the number of plan steps executed per query.
const DefaultMaxSteps = 8

// ErrEmptyQuery is returned for blank requests.
var ErrEmptyQuery = errors.New("query is empty")

// Response is the outcome of one query.
type Response struct {
	Response    string             `json:"response"`
	StepResults []ports.StepResult `json:"step_results"`
	Images      []string           `json:"images"`
}

// Options tunes an Agent.
type Options struct {
	MaxSteps      int
	HistoryWindow int
	Schema        string                  // data schema shown to the planner
	Store         ports.ConversationStore // receives artifact records; optional
	Tracer        ports.Tracer            // optional
}

// Agent answers queries for one conversation. Queries are serialized.
type Agent struct {
	mu       sync.Mutex
	planner  *Planner
	registry *Registry
	conv     *Conversation
	opts     Options
	tracer   ports.Tracer
	logger   zerolog.Logger
}

// New creates an Agent.
func New(planner *Planner, registry *Registry, conv *Conversation, opts Options, logger zerolog.Logger) *Agent {
	if opts.MaxSteps < 1 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.HistoryWindow < 1 {
		opts.HistoryWindow = 10
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = &noOpTracer{}
	}
	return &Agent{
		planner:  planner,
		registry: registry,
		conv:     conv,
		opts:     opts,
		tracer:   tracer,
		logger:   logger.With().Str("component", "agent").Logger(),
	}
}

// ProcessQuery plans, executes and answers query.
func (a *Agent) ProcessQuery(ctx context.Context, query string) (resp *Response, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	queryID := uuid.NewString()
	log := a.logger.With().Str("query_id", queryID).Logger()
	ctx, finish := a.tracer.StartSpan(ctx, "agent.query", map[string]any{"query_id": queryID})
	defer func() { finish(err) }()

	log.Info().Str("query", query).Msg("New query")

	a.conv.Append(ctx, RoleUser, query, nil)
	history := a.conv.FormattedHistory(a.opts.HistoryWindow)

	plan, err := a.plan(ctx, query, history)
	if err != nil {
		return nil, fmt.Errorf("plan tools: %w", err)
	}
	log.Info().Interface("plan", plan).Msg("Plan ready")

	if IsGeneralChat(plan) {
		answer, err := a.planner.GeneralChat(ctx, query)
		if err != nil {
			return nil, err
		}
		a.conv.Append(ctx, RoleAssistant, answer, map[string]any{"type": "general"})
		return &Response{Response: answer, StepResults: []ports.StepResult{}, Images: []string{}}, nil
	}

	results, images := a.execute(ctx, log, query, history, plan)

	var answer string
	if len(results) > 0 {
		answer, err = a.synthesize(ctx, query, results, history)
	} else {
		answer, err = a.planner.GeneralChat(ctx, query)
	}
	if err != nil {
		return nil, err
	}

	used := make([]string, len(results))
	for i, r := range results {
		used[i] = r.Tool
	}
	a.conv.Append(ctx, RoleAssistant, answer, map[string]any{
		"type":       "analysis",
		"tools_used": used,
		"images":     images,
	})

	log.Info().Int("steps", len(results)).Int("images", len(images)).Msg("Query answered")
	return &Response{Response: answer, StepResults: results, Images: images}, nil
}

func (a *Agent) plan(ctx context.Context, query, history string) (plan []PlanStep, err error) {
	ctx, finish := a.tracer.StartSpan(ctx, "agent.plan", nil)
	defer func() { finish(err) }()
	return a.planner.PlanTools(ctx, query, a.registry.ListDescriptions(), history, a.opts.Schema)
}

func (a *Agent) synthesize(ctx context.Context, query string, results []ports.StepResult, history string) (answer string, err error) {
	ctx, finish := a.tracer.StartSpan(ctx, "agent.synthesize", map[string]any{"steps": len(results)})
	defer func() { finish(err) }()
	return a.planner.Synthesize(ctx, query, results, history)
}

// execute runs up to MaxSteps plan steps in order, feeding a digest of
// earlier results to the report generator.
func (a *Agent) execute(ctx context.Context, log zerolog.Logger, query, history string, plan []PlanStep) ([]ports.StepResult, []string) {
	if len(plan) > a.opts.MaxSteps {
		log.Warn().Int("planned", len(plan)).Int("max_steps", a.opts.MaxSteps).Msg("Plan truncated")
		plan = plan[:a.opts.MaxSteps]
	}

	results := []ports.StepResult{}
	images := []string{}
	var digest strings.Builder

	for i, step := range plan {
		if step.Tool == GeneralChat {
			continue
		}

		args := make(map[string]any, len(step.Args)+2)
		for k, v := range step.Args {
			args[k] = v
		}
		if step.Tool == tools.NameReportGenerator && digest.Len() > 0 {
			setDefault(args, "analysis_results", digest.String())
			setDefault(args, "question", query)
		}
		setDefault(args, "context", history)

		log.Info().Int("step", i+1).Str("tool", step.Tool).Str("reason", step.Reason).Msg("Executing step")

		stepCtx, finish := a.tracer.StartSpan(ctx, "agent.step", map[string]any{"step": i + 1, "tool": step.Tool})
		res := a.registry.Execute(stepCtx, step.Tool, args)
		var stepErr error
		if !res.Success {
			stepErr = errors.New(res.Result)
		}
		finish(stepErr)

		res.Tool = step.Tool
		res.Reason = step.Reason
		results = append(results, res)

		if res.ArtifactPath != "" {
			images = append(images, res.ArtifactPath)
			a.recordArtifact(ctx, step.Tool, res.ArtifactPath)
		}
		if path, ok := res.Data["report_path"].(string); ok && path != "" {
			a.recordArtifact(ctx, step.Tool, path)
		}

		fmt.Fprintf(&digest, "\n\n### %s (%s)\n%s", step.Tool, step.Reason, res.Result)
	}
	return results, images
}

func (a *Agent) recordArtifact(ctx context.Context, tool, path string) {
	if a.opts.Store == nil {
		return
	}
	sessionID := a.conv.Info().SessionID
	if err := a.opts.Store.AppendToolArtifact(ctx, sessionID, tool, []byte(path)); err != nil {
		a.logger.Warn().Err(err).Str("tool", tool).Msg("Failed to record artifact")
	}
}

func setDefault(m map[string]any, key string, v any) {
	if _, ok := m[key]; !ok {
		m[key] = v
	}
}

// ClearContext forgets the conversation and ends the session.
func (a *Agent) ClearContext(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conv.Clear(ctx)
}

// Restore continues a persisted session.
func (a *Agent) Restore(ctx context.Context, sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conv.Restore(ctx, sessionID)
}

// SessionInfo reports on the active session.
func (a *Agent) SessionInfo() SessionInfo {
	return a.conv.Info()
}

// AvailableTools lists the tool catalogue.
func (a *Agent) AvailableTools() []ports.ToolSpec {
	return a.registry.ListDescriptions()
}

// History returns the retained turns, oldest first.
func (a *Agent) History() []ports.Turn {
	return a.conv.Turns()
}
