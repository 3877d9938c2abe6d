package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
	"github.com/ZanzyTHEbar/insight-agent/insight/llm"
)

// ChatModel is the slice of llm.Client the planner needs.
type ChatModel interface {
	Chat(ctx context.Context, messages []ports.PromptMessage) (string, error)
}

// Planner turns requests into tool plans and tool results into answers.
type Planner struct {
	llm    ChatModel
	logger zerolog.Logger
}

// NewPlanner creates a planner over llm.
func NewPlanner(llm ChatModel, logger zerolog.Logger) *Planner {
	return &Planner{llm: llm, logger: logger.With().Str("component", "planner").Logger()}
}

func (p *Planner) ask(ctx context.Context, prompt string) (string, error) {
	return p.llm.Chat(ctx, []ports.PromptMessage{{Role: RoleUser, Content: prompt}})
}

// PlanTools asks the model for an ordered tool plan. Only a failed model
// call is an error; empty or unreadable output degrades to a general_chat plan.
func (p *Planner) PlanTools(ctx context.Context, query string, specs []ports.ToolSpec, history, schema string) ([]PlanStep, error) {
	raw, err := p.ask(ctx, buildPlanPrompt(query, specs, history, schema))
	if errors.Is(err, llm.ErrEmptyCompletion) {
		raw, err = "", nil
	}
	if err != nil {
		return nil, err
	}

	plan := ExtractPlan(raw)
	if len(plan) == 1 && plan[0].Reason == planParseFailed {
		p.logger.Warn().Str("raw", truncate(raw, 300)).Msg("Failed to parse tool plan")
	}
	return plan, nil
}

// Synthesize writes the final answer from the executed steps.
func (p *Planner) Synthesize(ctx context.Context, query string, results []ports.StepResult, history string) (string, error) {
	answer, err := p.ask(ctx, buildSynthesizePrompt(query, results, history))
	if err != nil {
		return "", fmt.Errorf("synthesize: %w", err)
	}
	return answer, nil
}

// GeneralChat answers a request that needs no tools.
func (p *Planner) GeneralChat(ctx context.Context, question string) (string, error) {
	answer, err := p.ask(ctx, buildGeneralChatPrompt(question))
	if err != nil {
		return "", fmt.Errorf("general chat: %w", err)
	}
	return answer, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
