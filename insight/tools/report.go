package tools

import (
	"context"
	"fmt"
	"strings"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
)

// ReportGeneratorSchema defines the JSON schema for report_generator arguments.
const ReportGeneratorSchema = `{
  "type": "object",
  "properties": {
    "question": {"type": "string"},
    "analysis_results": {"type": "string", "minLength": 1},
    "report_type": {"type": "string", "enum": ["summary", "detailed", "executive"], "default": "summary"}
  },
  "required": ["analysis_results"]
}`

var reportInstructions = map[string]string{
	"summary":   "Write a concise summary report that highlights the key findings and conclusions.",
	"detailed":  "Write a detailed analysis report with a complete reading of the data from several angles.",
	"executive": "Write an executive brief focused on business insight and decision recommendations.",
}

const reportPrompt = `You are a senior data analyst. Write a professional report based on the analysis results below.

## Request
%s

## Analysis results
%s

## Report requirements
%s

## Format requirements
1. Use a clear heading hierarchy.
2. Put key figures in bold.
3. Give concrete business insights.
4. Provide actionable recommendations.
5. Where relevant, point out data limitations and directions for further analysis.`

// ReportGenerator writes a structured report from earlier step results.
type ReportGenerator struct {
	llm  LanguageModel
	sink ReportSink
}

func NewReportGenerator(llm LanguageModel, sink ReportSink) *ReportGenerator {
	return &ReportGenerator{llm: llm, sink: sink}
}

func (t *ReportGenerator) Describe() ports.ToolSpec {
	return ports.ToolSpec{
		Name:        NameReportGenerator,
		Description: "Generate a structured analysis report from completed analysis results, combining several steps into insights and recommendations.",
		Parameters:  `{"question": "original analysis request", "analysis_results": "results of earlier steps", "report_type": "summary/detailed/executive"}`,
		JSONSchema:  []byte(ReportGeneratorSchema),
	}
}

func (t *ReportGenerator) Execute(ctx context.Context, raw map[string]any) (ports.StepResult, error) {
	args := Args(raw)
	results := args.String("analysis_results", "")
	if results == "" {
		return ports.Failed("no analysis results available for the report"), nil
	}
	question := args.String("question", "")
	reportType := args.String("report_type", "summary")

	instructions, ok := reportInstructions[reportType]
	if !ok {
		instructions = reportInstructions["summary"]
	}

	report, err := t.llm.Complete(ctx, fmt.Sprintf(reportPrompt, question, results, instructions))
	if err != nil {
		return ports.StepResult{}, fmt.Errorf("write report: %w", err)
	}
	report = strings.TrimSpace(report)

	path, err := t.sink.Save(ctx, reportType, question, report)
	if err != nil {
		return ports.StepResult{}, fmt.Errorf("save report: %w", err)
	}

	return ports.StepResult{
		Success: true,
		Result:  report,
		Data:    map[string]any{"report_path": path, "report_type": reportType},
	}, nil
}

var _ ports.Tool = (*ReportGenerator)(nil)
