package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
	"github.com/ZanzyTHEbar/insight-agent/insight/dataframe"
	"github.com/ZanzyTHEbar/insight-agent/insight/datastore"
)

// StatisticsSchema defines the JSON schema for statistical_analysis arguments.
const StatisticsSchema = `{
  "type": "object",
  "properties": {
    "question": {"type": "string"},
    "analysis_type": {"type": "string", "enum": ["descriptive", "group_by", "correlation", "trend", "top_n", "comparison"], "default": "descriptive"},
    "sql": {"type": "string"}
  },
  "anyOf": [{"required": ["question"]}, {"required": ["sql"]}]
}`

const statsSQLPrompt = `You are a SQL expert. Write a SQLite query for the following statistical analysis request.

Schema:
%s

Analysis request: %s
Analysis type: %s

Return only the SQL, with no explanation.`

// Statistics computes descriptive, correlation, trend and comparison views.
type Statistics struct {
	src   querySource
	store DataStore
}

func NewStatistics(store DataStore, llm LanguageModel) *Statistics {
	return &Statistics{src: querySource{store: store, llm: llm}, store: store}
}

func (t *Statistics) Describe() ports.ToolSpec {
	return ports.ToolSpec{
		Name:        NameStatistics,
		Description: "Statistical analysis of query results: descriptive statistics, grouping, correlation, trends, top-N and comparisons.",
		Parameters:  `{"question": "analysis request", "analysis_type": "descriptive/group_by/correlation/trend/top_n/comparison", "sql": "(optional) SQL to run as-is"}`,
		JSONSchema:  []byte(StatisticsSchema),
	}
}

func (t *Statistics) Execute(ctx context.Context, raw map[string]any) (ports.StepResult, error) {
	args := Args(raw)
	question := args.String("question", "")
	analysis := args.String("analysis_type", "descriptive")
	sqlText := args.String("sql", "")
	if question == "" && sqlText == "" {
		return ports.Failed("an analysis request is required"), nil
	}

	var prompt string
	if sqlText == "" {
		schema, err := t.store.DescribeSchema(ctx)
		if err != nil {
			return ports.StepResult{}, fmt.Errorf("describe schema: %w", err)
		}
		prompt = fmt.Sprintf(statsSQLPrompt, schema, question, analysis)
	}

	query, tbl, failure, err := t.src.load(ctx, sqlText, prompt)
	if failure != nil || err != nil {
		return deref(failure), err
	}
	frame := dataframe.New(tbl.Columns, tbl.Rows)

	var res ports.StepResult
	switch analysis {
	case "correlation":
		res = correlation(frame)
	case "trend":
		res = trend(frame)
	case "top_n":
		res = ports.StepResult{Success: true, Result: "## Top-N analysis\n\n" + frameMarkdown(frame, -1)}
	case "comparison":
		res = comparison(frame)
	default:
		res = descriptive(frame)
	}

	if res.Data == nil {
		res.Data = map[string]any{}
	}
	res.Data["sql"] = query
	res.Data["analysis_type"] = analysis
	return res, nil
}

func descriptive(f *dataframe.Frame) ports.StepResult {
	numeric := f.ByKind(dataframe.KindNumeric)
	if len(numeric) == 0 {
		return ports.StepResult{
			Success: true,
			Result:  fmt.Sprintf("Query result (%d rows x %d columns):\n%s", f.Len(), f.Width(), frameMarkdown(f, 20)),
		}
	}

	table, stats, summaries := describeTable(numeric)

	var b strings.Builder
	fmt.Fprintf(&b, "## Descriptive statistics\n\n%s\n", table)
	fmt.Fprintf(&b, "Data has %d rows, %d columns.\n", f.Len(), f.Width())
	for i, c := range numeric {
		skew := summaries[i].Skew
		if math.IsNaN(skew) {
			skew = 0
		}
		fmt.Fprintf(&b, "- **%s** skew=%.2f (%s)\n", c.Name, skew, dataframe.SkewLabel(skew))
	}

	return ports.StepResult{Success: true, Result: b.String(), Data: map[string]any{"stats": stats}}
}

// describeTable renders count, mean, std, min, quartiles and max per column.
func describeTable(cols []*dataframe.Column) (string, map[string]map[string]float64, []dataframe.Summary) {
	header := []string{""}
	summaries := make([]dataframe.Summary, len(cols))
	for i, c := range cols {
		header = append(header, c.Name)
		summaries[i] = dataframe.Describe(c.Floats())
	}

	stats := make(map[string]map[string]float64, len(cols))
	labels := []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}
	rows := make([][]string, len(labels))
	for r, label := range labels {
		rows[r] = []string{label}
		for i, s := range summaries {
			v := [...]float64{float64(s.Count), s.Mean, s.Std, s.Min, s.Q1, s.Median, s.Q3, s.Max}[r]
			rows[r] = append(rows[r], round(v, 2))
			if stats[cols[i].Name] == nil {
				stats[cols[i].Name] = map[string]float64{}
			}
			stats[cols[i].Name][label] = v
		}
	}
	return markdown(header, rows), stats, summaries
}

func correlation(f *dataframe.Frame) ports.StepResult {
	numeric := f.ByKind(dataframe.KindNumeric)
	if len(numeric) < 2 {
		return ports.Failed("fewer than 2 numeric columns, correlation analysis is not possible")
	}

	m := dataframe.CorrelationMatrix(numeric)
	header := []string{""}
	for _, c := range numeric {
		header = append(header, c.Name)
	}
	rows := make([][]string, len(numeric))
	matrix := map[string]map[string]float64{}
	for i, c := range numeric {
		rows[i] = []string{c.Name}
		matrix[c.Name] = map[string]float64{}
		for j := range numeric {
			rows[i] = append(rows[i], round(m[i][j], 3))
			matrix[c.Name][numeric[j].Name] = m[i][j]
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Correlation analysis\n\n%s\n", markdown(header, rows))
	var strong []string
	for i := range numeric {
		for j := i + 1; j < len(numeric); j++ {
			if math.Abs(m[i][j]) > 0.7 {
				strong = append(strong, fmt.Sprintf("- %s <-> %s: %.3f", numeric[i].Name, numeric[j].Name, m[i][j]))
			}
		}
	}
	if len(strong) > 0 {
		b.WriteString("### Strongly correlated pairs\n")
		b.WriteString(strings.Join(strong, "\n"))
		b.WriteString("\n")
	}

	return ports.StepResult{Success: true, Result: b.String(), Data: map[string]any{"correlation": matrix}}
}

func trend(f *dataframe.Frame) ports.StepResult {
	var b strings.Builder
	fmt.Fprintf(&b, "## Trend analysis\n\nData has %d points.\n", f.Len())
	for _, c := range f.ByKind(dataframe.KindNumeric) {
		xs := c.Floats()
		if len(xs) < 2 {
			continue
		}
		first, last := xs[0], xs[len(xs)-1]
		change := 0.0
		if first != 0 {
			change = (last - first) / first * 100
		}
		fmt.Fprintf(&b, "- **%s**: start=%s, end=%s, change=%+.1f%%\n", c.Name, num(first), num(last), change)
	}
	fmt.Fprintf(&b, "\n### Preview\n%s\n", frameMarkdown(f, 10))
	return ports.StepResult{Success: true, Result: b.String()}
}

func comparison(f *dataframe.Frame) ports.StepResult {
	var b strings.Builder
	fmt.Fprintf(&b, "## Comparison\n\n%s\n", frameMarkdown(f, -1))
	for _, c := range f.ByKind(dataframe.KindNumeric) {
		best := -1
		for i, v := range c.Values {
			x, ok := v.(float64)
			if !ok {
				continue
			}
			if best < 0 || x > c.Values[best].(float64) {
				best = i
			}
		}
		if best < 0 {
			continue
		}
		fmt.Fprintf(&b, "- **%s** max row: %s\n", c.Name, describeRow(f, best))
	}
	return ports.StepResult{Success: true, Result: b.String()}
}

func describeRow(f *dataframe.Frame, i int) string {
	row := f.Row(i)
	parts := make([]string, len(row))
	for j, c := range f.Columns {
		parts[j] = fmt.Sprintf("%s: %s", c.Name, datastore.FormatValue(row[j]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func round(x float64, places int) string {
	if math.IsNaN(x) {
		return "NaN"
	}
	return strconv.FormatFloat(x, 'f', places, 64)
}

var _ ports.Tool = (*Statistics)(nil)
