package agent

import (
	"fmt"
	"strings"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
)

const planPrompt = `You are a professional data-analysis agent. Based on the user's request, decide which tools to call to complete the analysis.

## Available tools
%s

## Database schema
%s

## Conversation history
%s

## User request
%s

## Requirements
1. Work out the user's intent and choose suitable tools.
2. If several steps are needed, list every tool call in order.
3. Give the reason and the arguments for each tool call.
4. For a greeting or small talk, use general_chat as described below.
5. Prefer a thorough analysis that combines several tools.

Reply in **strict** JSON with no other text, in this format:
` + "```json" + `
[
  {"tool": "tool name", "args": {"argument": "value"}, "reason": "why this call"}
]
` + "```" + `

If the message is ordinary conversation rather than an analysis request, reply with:
` + "```json" + `
[{"tool": "general_chat", "args": {"message": "the user's message"}, "reason": "ordinary conversation"}]
` + "```"

const synthesizePrompt = `You are Insight, a data-analysis assistant.
Write a professional, easy-to-read analysis for the user based on the results below.

## Conversation history
%s

## User request
%s

## Analysis steps and results
%s

## Requirements
1. Answer in clear, professional language.
2. Highlight the key data insights.
3. When there are several steps, combine all results into one complete answer.
4. When charts were generated, mention what they show.
5. Suggest business actions or directions for further analysis where appropriate.
6. Use headings and lists for a clear layout.`

const generalChatPrompt = `You are Insight, a data-analysis assistant for sales and operations data.

Areas of expertise:
- Analysing sales and order data
- Sales trends, market performance and category analysis
- Presenting insights clearly with charts and reports

User question: "%s"

Requirements:
- Answer in a professional, friendly tone.
- If the user asks what you can do, describe the analysis and visualization capabilities with examples.
- Suggest deeper analyses where useful.`

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}

func buildPlanPrompt(query string, specs []ports.ToolSpec, history, schema string) string {
	lines := make([]string, len(specs))
	for i, s := range specs {
		params := s.Parameters
		if params == "" {
			params = "none"
		}
		lines[i] = fmt.Sprintf("- **%s**: %s  params: %s", s.Name, s.Description, params)
	}
	return fmt.Sprintf(planPrompt, strings.Join(lines, "\n"), orNone(schema), orNone(history), query)
}

func buildSynthesizePrompt(query string, results []ports.StepResult, history string) string {
	var b strings.Builder
	for i, r := range results {
		tool := r.Tool
		if tool == "" {
			tool = "unknown"
		}
		fmt.Fprintf(&b, "\n### Step %d: %s\n", i+1, tool)
		fmt.Fprintf(&b, "**Reason**: %s\n", r.Reason)
		fmt.Fprintf(&b, "**Result**: %s\n", r.Result)
		if r.ArtifactPath != "" {
			fmt.Fprintf(&b, "**Chart**: generated %s\n", r.ArtifactPath)
		}
	}
	return fmt.Sprintf(synthesizePrompt, orNone(history), query, b.String())
}

func buildGeneralChatPrompt(question string) string {
	return fmt.Sprintf(generalChatPrompt, question)
}
