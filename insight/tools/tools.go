// Package tools holds the analysis tools the planner can call, and the
// fault-isolation boundary every call goes through.
package tools

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
	"github.com/ZanzyTHEbar/insight-agent/insight/dataframe"
	"github.com/ZanzyTHEbar/insight-agent/insight/datastore"
)

// Tool names, as the planner refers to them.
const (
	NameDataInspector   = "data_inspector"
	NameSQLQuery        = "sql_query"
	NameVisualization   = "data_visualization"
	NameStatistics      = "statistical_analysis"
	NameProfiling       = "data_profiling"
	NameReportGenerator = "report_generator"
)

// DataStore is the read side of the analysis database.
type DataStore interface {
	ListTables(ctx context.Context) ([]string, error)
	DescribeSchema(ctx context.Context, tables ...string) (string, error)
	ColumnInfo(ctx context.Context, table string) ([]datastore.ColumnInfo, error)
	NumericColumns(ctx context.Context, table string) ([]string, error)
	DateColumns(ctx context.Context, table string) ([]string, error)
	SampleRows(ctx context.Context, table string, limit int) (*datastore.Table, error)
	RandomRows(ctx context.Context, table string, limit int) (*datastore.Table, error)
	RowCount(ctx context.Context, table string) (int, error)
	DistinctValues(ctx context.Context, table, column string, limit int) ([]any, error)
	RunQuery(ctx context.Context, query string) (*datastore.Table, error)
}

// LanguageModel answers single prompts.
type LanguageModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ChartSink renders a frame and returns the artifact path.
type ChartSink interface {
	Render(ctx context.Context, frame *dataframe.Frame, kind, title string) (string, error)
}

// ReportSink persists a generated report and returns its path.
type ReportSink interface {
	Save(ctx context.Context, reportType, question, body string) (string, error)
}

// SafeExecute runs tool and converts errors and panics into a failed
// StepResult. It never panics and never returns an error.
func SafeExecute(ctx context.Context, tool ports.Tool, args map[string]any, logger zerolog.Logger) (result ports.StepResult) {
	name := tool.Describe().Name
	log := logger.With().Str("tool", name).Logger()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Tool panicked")
			result = ports.Failed("tool %s failed: %v", name, r)
		}
		result.Tool = name
	}()

	log.Info().Interface("args", args).Msg("Executing tool")

	res, err := tool.Execute(ctx, args)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Tool failed")
		return ports.Failed("tool %s failed: %v", name, err)
	}

	log.Info().Bool("success", res.Success).Dur("elapsed", time.Since(start)).Msg("Tool completed")
	return res
}

// Args wraps loosely typed tool arguments.
type Args map[string]any

// String returns key as a trimmed string, or def when absent or empty.
func (a Args) String(key, def string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return def
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	default:
		s = fmt.Sprint(x)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

// Int returns key as an int, or def when absent or not a number.
func (a Args) Int(key string, def int) int {
	switch x := a[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			return n
		}
	}
	return def
}

// Bool returns key as a bool, or def when absent or unparseable.
func (a Args) Bool(key string, def bool) bool {
	switch x := a[key].(type) {
	case bool:
		return x
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
			return b
		}
	}
	return def
}

// Has reports whether key is present with a non-empty value.
func (a Args) Has(key string) bool {
	return a.String(key, "") != ""
}

// markdown renders string cells through the datastore table writer.
func markdown(header []string, rows [][]string) string {
	t := &datastore.Table{Columns: header, Rows: make([][]any, len(rows))}
	for i, r := range rows {
		cells := make([]any, len(r))
		for j, c := range r {
			cells[j] = c
		}
		t.Rows[i] = cells
	}
	return t.Markdown()
}

// frameMarkdown renders the first n rows of a frame (all when n < 0).
func frameMarkdown(f *dataframe.Frame, n int) string {
	return (&datastore.Table{Columns: f.Names(), Rows: f.Rows(n)}).Markdown()
}

// num formats a float with thousands separators and two decimals.
func num(x float64) string {
	s := strconv.FormatFloat(x, 'f', 2, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}

// All builds the standard tool set in catalogue order.
func All(store DataStore, llm LanguageModel, charts ChartSink, reports ReportSink) []ports.Tool {
	return []ports.Tool{
		NewDataInspector(store),
		NewSQLQuery(store, llm),
		NewVisualization(store, llm, charts),
		NewStatistics(store, llm),
		NewProfiling(store),
		NewReportGenerator(llm, reports),
	}
}
