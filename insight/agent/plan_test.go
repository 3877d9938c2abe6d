package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
)

// TestExtractPlan tests every extraction tier.
func TestExtractPlan(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		tools []string
	}{
		{
			name:  "fenced json",
			raw:   "```json\n[{\"tool\": \"sql_query\", \"args\": {\"question\": \"total\"}, \"reason\": \"sum\"}]\n```",
			tools: []string{"sql_query"},
		},
		{
			name:  "bare array",
			raw:   `[{"tool": "data_inspector", "args": {}, "reason": "look"}, {"tool": "data_profiling", "reason": "profile"}]`,
			tools: []string{"data_inspector", "data_profiling"},
		},
		{
			name:  "single object",
			raw:   `{"tool": "statistical_analysis", "args": {"analysis_type": "trend"}, "reason": "trend"}`,
			tools: []string{"statistical_analysis"},
		},
		{
			name:  "array inside prose",
			raw:   "Here is my plan:\n[{\"tool\": \"sql_query\", \"args\": {}, \"reason\": \"x\"}]\nHope that helps.",
			tools: []string{"sql_query"},
		},
		{
			name:  "repairable",
			raw:   "Plan: [{tool: 'data_visualization', args: {chart_type: 'bar'}, reason: 'chart',},]",
			tools: []string{"data_visualization"},
		},
		{
			name:  "empty names dropped",
			raw:   `[{"tool": "", "reason": "nothing"}, {"reason": "no tool"}, "junk", {"tool": "sql_query"}]`,
			tools: []string{"sql_query"},
		},
		{
			name:  "empty plan",
			raw:   `[]`,
			tools: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := ExtractPlan(tt.raw)
			names := make([]string, 0, len(plan))
			for _, s := range plan {
				names = append(names, s.Tool)
				assert.NotNil(t, s.Args)
			}
			assert.Equal(t, tt.tools, names)
		})
	}
}

// TestFixJSON tests that repairs stay outside string values.
func TestFixJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "unquoted keys and trailing commas",
			in:   `[{tool: "sql_query", args: {limit: 5,},},]`,
			want: `[{"tool": "sql_query", "args": {"limit": 5}}]`,
		},
		{
			name: "colon words inside values",
			in:   `[{tool: "sql_query", args: {question: "sales, region: north"},}]`,
			want: `[{"tool": "sql_query", "args": {"question": "sales, region: north"}}]`,
		},
		{
			name: "apostrophes inside double quotes",
			in:   `[{"tool": "sql_query", "reason": "the user's totals",}]`,
			want: `[{"tool": "sql_query", "reason": "the user's totals"}]`,
		},
		{
			name: "single quoted strings",
			in:   `[{'tool': 'data_visualization', 'reason': 'say "hi"'}]`,
			want: `[{"tool": "data_visualization", "reason": "say \"hi\""}]`,
		},
		{
			name: "bare literals untouched",
			in:   `[{tool: "x", args: {flag: true, tags: [null, false,]}}]`,
			want: `[{"tool": "x", "args": {"flag": true, "tags": [null, false]}}]`,
		},
		{
			name: "unterminated string",
			in:   `[{"tool": "x`,
			want: `[{"tool": "x"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fixJSON(tt.in))
		})
	}
}

// TestExtractPlan_RepairKeepsValues tests that a repaired plan keeps its argument text.
func TestExtractPlan_RepairKeepsValues(t *testing.T) {
	plan := ExtractPlan(`[{tool: "sql_query", args: {question: "orders by status: shipped"}, reason: "count",}]`)

	require.Len(t, plan, 1)
	assert.Equal(t, "sql_query", plan[0].Tool)
	assert.Equal(t, "orders by status: shipped", plan[0].Args["question"])
}

// TestExtractPlan_Fallback tests the general_chat fallback.
func TestExtractPlan_Fallback(t *testing.T) {
	raw := "I am not sure what you mean."
	plan := ExtractPlan(raw)

	require.Len(t, plan, 1)
	assert.True(t, IsGeneralChat(plan))
	assert.Equal(t, raw, plan[0].Args["message"])
	assert.Equal(t, "plan could not be parsed", plan[0].Reason)
}

// TestExtractPlan_ArgsKept tests argument decoding.
func TestExtractPlan_ArgsKept(t *testing.T) {
	plan := ExtractPlan(`[{"tool": "data_visualization", "args": {"chart_type": "pie", "top": 5}, "reason": "share"}]`)

	require.Len(t, plan, 1)
	assert.Equal(t, "pie", plan[0].Args["chart_type"])
	assert.Equal(t, float64(5), plan[0].Args["top"])
	assert.Equal(t, "share", plan[0].Reason)
	assert.False(t, IsGeneralChat(plan))
}

// TestPlanner_PlanTools tests the planning prompt and error propagation.
func TestPlanner_PlanTools(t *testing.T) {
	chat := routedChat(`[{"tool": "sql_query", "args": {}, "reason": "count"}]`, "", "")
	p := NewPlanner(chat, zerolog.Nop())

	specs := []ports.ToolSpec{{Name: "sql_query", Description: "Run SQL", Parameters: `{"question": "..."}`}}
	plan, err := p.PlanTools(context.Background(), "how many orders?", specs, "", "CREATE TABLE orders (id INTEGER)")
	require.NoError(t, err)
	require.Len(t, plan, 1)

	prompt := chat.Prompts[0]
	assert.Contains(t, prompt, `- **sql_query**: Run SQL  params: {"question": "..."}`)
	assert.Contains(t, prompt, "CREATE TABLE orders")
	assert.Contains(t, prompt, "## Conversation history\nNone")
	assert.Contains(t, prompt, "how many orders?")
	assert.Contains(t, prompt, "general_chat")

	boom := errors.New("connection refused")
	p = NewPlanner(&StubChat{ChatFunc: func(ctx context.Context, prompt string) (string, error) {
		return "", boom
	}}, zerolog.Nop())
	_, err = p.PlanTools(context.Background(), "q", specs, "", "")
	assert.ErrorIs(t, err, boom)
}

// TestPlanner_SynthesizePrompt tests that step results reach the prompt.
func TestPlanner_SynthesizePrompt(t *testing.T) {
	chat := routedChat("", "final", "")
	p := NewPlanner(chat, zerolog.Nop())

	answer, err := p.Synthesize(context.Background(), "sales by region", []ports.StepResult{
		{Tool: "sql_query", Reason: "aggregate", Result: "north 10"},
		{Tool: "data_visualization", Reason: "chart", Result: "Generated a bar chart.", ArtifactPath: "output/charts/a.png"},
	}, "User: hi")
	require.NoError(t, err)
	assert.Equal(t, "final", answer)

	prompt := chat.Prompts[0]
	assert.Contains(t, prompt, "### Step 1: sql_query")
	assert.Contains(t, prompt, "**Reason**: aggregate")
	assert.Contains(t, prompt, "**Result**: north 10")
	assert.Contains(t, prompt, "**Chart**: generated output/charts/a.png")
	assert.Contains(t, prompt, "User: hi")
}
