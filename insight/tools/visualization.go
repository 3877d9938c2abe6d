package tools

import (
	"context"
	"fmt"
	"strings"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
	"github.com/ZanzyTHEbar/insight-agent/insight/dataframe"
)

// Chart kinds understood by the chart sink.
const (
	ChartLine      = "line"
	ChartBar       = "bar"
	ChartPie       = "pie"
	ChartScatter   = "scatter"
	ChartHistogram = "histogram"
	ChartHeatmap   = "heatmap"
)

// VisualizationSchema defines the JSON schema for data_visualization arguments.
const VisualizationSchema = `{
  "type": "object",
  "properties": {
    "question": {"type": "string"},
    "chart_type": {"type": "string", "enum": ["line", "bar", "pie", "scatter", "histogram", "heatmap"]},
    "sql": {"type": "string"},
    "title": {"type": "string"}
  },
  "anyOf": [{"required": ["question"]}, {"required": ["sql"]}]
}`

const vizSQLPrompt = `You are a SQL expert. Write a SQLite query for the following visualization request.

Schema:
%s

Visualization request: %s

Requirements:
1. The first result column is the X axis (usually a date or category field).
2. The remaining columns are numeric Y values.
3. Order by the X axis.
4. Return only the SQL statement, nothing else.
5. Use GROUP BY correctly with aggregate functions.`

// chartKeywords is checked in order; the first matching kind wins.
var chartKeywords = []struct {
	kind     string
	keywords []string
}{
	{ChartPie, []string{"饼图", "占比", "比例", "构成", "pie", "share", "proportion", "composition", "breakdown"}},
	{ChartScatter, []string{"散点", "相关性", "scatter", "关系", "correlation", "relationship"}},
	{ChartHistogram, []string{"直方图", "分布", "频率", "histogram", "distribution", "frequency"}},
	{ChartHeatmap, []string{"热力图", "heatmap", "相关矩阵", "heat map"}},
	{ChartLine, []string{"趋势", "变化", "走势", "trend", "折线", "line", "over time"}},
	{ChartBar, []string{"柱状", "对比", "排名", "bar", "top", "compare", "ranking"}},
}

var chartNames = map[string]string{
	ChartLine:      "line chart",
	ChartBar:       "bar chart",
	ChartPie:       "pie chart",
	ChartScatter:   "scatter plot",
	ChartHistogram: "histogram",
	ChartHeatmap:   "heatmap",
}

// Visualization queries data and renders it through a ChartSink.
type Visualization struct {
	src   querySource
	store DataStore
	sink  ChartSink
}

func NewVisualization(store DataStore, llm LanguageModel, sink ChartSink) *Visualization {
	return &Visualization{src: querySource{store: store, llm: llm}, store: store, sink: sink}
}

func (t *Visualization) Describe() ports.ToolSpec {
	return ports.ToolSpec{
		Name:        NameVisualization,
		Description: "Generate a chart (line, bar, pie, scatter, histogram, heatmap) from data. Picks a chart type from the description when none is given.",
		Parameters:  `{"question": "what to visualize", "chart_type": "(optional) line/bar/pie/scatter/histogram/heatmap", "sql": "(optional) SQL to run as-is", "title": "(optional) chart title"}`,
		JSONSchema:  []byte(VisualizationSchema),
	}
}

func (t *Visualization) Execute(ctx context.Context, raw map[string]any) (ports.StepResult, error) {
	args := Args(raw)
	question := args.String("question", "")
	sqlText := args.String("sql", "")
	if question == "" && sqlText == "" {
		return ports.Failed("a visualization description or SQL is required"), nil
	}

	var prompt string
	if sqlText == "" {
		schema, err := t.store.DescribeSchema(ctx)
		if err != nil {
			return ports.StepResult{}, fmt.Errorf("describe schema: %w", err)
		}
		prompt = fmt.Sprintf(vizSQLPrompt, schema, question)
	}

	query, tbl, failure, err := t.src.load(ctx, sqlText, prompt)
	if failure != nil || err != nil {
		return deref(failure), err
	}

	frame := dataframe.New(tbl.Columns, tbl.Rows)
	kind := args.String("chart_type", "")
	if kind == "" {
		kind = InferChartType(frame, question)
	}
	title := args.String("title", "")
	if title == "" {
		title = ChartTitle(question, kind)
	}

	path, err := t.sink.Render(ctx, frame, kind, title)
	if err != nil || path == "" {
		f := ports.Failed("chart rendering failed: %v", err)
		f.Data = map[string]any{"sql": query}
		return f, nil
	}

	return ports.StepResult{
		Success:      true,
		Result:       fmt.Sprintf("Generated a %s.\n%s", chartName(kind), SummarizeFrame(frame)),
		ArtifactPath: path,
		Data: map[string]any{
			"sql":        query,
			"chart_type": kind,
			"rows":       frame.Len(),
		},
	}, nil
}

// InferChartType picks a chart kind from question keywords, then from the
// shape of the data.
func InferChartType(f *dataframe.Frame, question string) string {
	q := strings.ToLower(question)
	for _, entry := range chartKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(q, kw) {
				return entry.kind
			}
		}
	}

	if f.Width() > 0 && f.Columns[0].Kind == dataframe.KindTime {
		return ChartLine
	}
	if f.Len() <= 15 {
		return ChartBar
	}
	return ChartLine
}

// ChartTitle uses the first 50 runes of the question, or a generic title.
func ChartTitle(question, kind string) string {
	if r := []rune(strings.TrimSpace(question)); len(r) > 0 {
		if len(r) > 50 {
			r = r[:50]
		}
		return string(r)
	}
	return "Data " + chartName(kind)
}

// SummarizeFrame describes row/column counts and per-column aggregates.
func SummarizeFrame(f *dataframe.Frame) string {
	parts := []string{fmt.Sprintf("Data has %d rows, %d columns.", f.Len(), f.Width())}
	for _, c := range f.Columns {
		switch c.Kind {
		case dataframe.KindNumeric:
			xs := c.Floats()
			if len(xs) == 0 {
				continue
			}
			s := dataframe.Describe(xs)
			parts = append(parts, fmt.Sprintf("- %s: sum=%s, mean=%s, max=%s, min=%s", c.Name, num(s.Sum), num(s.Mean), num(s.Max), num(s.Min)))
		case dataframe.KindTime:
			ts := c.Times()
			if len(ts) == 0 {
				continue
			}
			lo, hi := ts[0], ts[0]
			for _, t := range ts[1:] {
				if t.Before(lo) {
					lo = t
				}
				if t.After(hi) {
					hi = t
				}
			}
			parts = append(parts, fmt.Sprintf("- %s: range %s ~ %s", c.Name, lo.Format("2006-01-02 15:04:05"), hi.Format("2006-01-02 15:04:05")))
		}
	}
	return strings.Join(parts, "\n")
}

func chartName(kind string) string {
	if n, ok := chartNames[kind]; ok {
		return n
	}
	return "chart"
}

var _ ports.Tool = (*Visualization)(nil)
