package tools

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/sourcegraph/conc/iter"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
	"github.com/ZanzyTHEbar/insight-agent/insight/dataframe"
	"github.com/ZanzyTHEbar/insight-agent/insight/datastore"
)

// ProfilingSchema defines the JSON schema for data_profiling arguments.
const ProfilingSchema = `{
  "type": "object",
  "properties": {
    "table_name": {"type": "string"},
    "profile_type": {"type": "string", "enum": ["full", "missing", "distribution", "outliers", "unique"], "default": "full"},
    "column_name": {"type": "string"}
  }
}`

// profileSampleSize caps the rows pulled for profiling.
const profileSampleSize = 5000

// Profiling reports data quality: missing values, distributions, outliers
// and cardinality.
type Profiling struct {
	store DataStore
}

func NewProfiling(store DataStore) *Profiling {
	return &Profiling{store: store}
}

func (t *Profiling) Describe() ports.ToolSpec {
	return ports.ToolSpec{
		Name:        NameProfiling,
		Description: "Data profiling and quality checks: missing values, outliers, distributions and unique value counts.",
		Parameters:  `{"table_name": "(optional) table", "profile_type": "full/missing/distribution/outliers/unique", "column_name": "(optional) column"}`,
		JSONSchema:  []byte(ProfilingSchema),
	}
}

func (t *Profiling) Execute(ctx context.Context, raw map[string]any) (ports.StepResult, error) {
	args := Args(raw)

	table, failure, err := resolveTable(ctx, t.store, args.String("table_name", ""))
	if failure != nil || err != nil {
		return deref(failure), err
	}

	total, err := t.store.RowCount(ctx, table)
	if err != nil {
		return ports.StepResult{}, err
	}
	sample, err := t.store.RandomRows(ctx, table, min(total, profileSampleSize))
	if err != nil {
		return ports.StepResult{}, err
	}
	if sample.Empty() {
		return ports.Failed("table %s has no rows to profile", table), nil
	}

	frame := dataframe.New(sample.Columns, sample.Rows)
	profiles := ProfileColumns(frame)

	var res ports.StepResult
	switch args.String("profile_type", "full") {
	case "missing":
		res = missingReport(table, frame, profiles)
	case "distribution":
		res = distributionReport(table, frame, args.String("column_name", ""))
	case "outliers":
		res = outlierReport(table, profiles)
	case "unique":
		res = uniqueReport(table, frame, profiles)
	default:
		res = fullReport(table, total, frame, profiles)
	}
	if res.Data == nil {
		res.Data = map[string]any{}
	}
	res.Data["table_name"] = table
	res.Data["sample_size"] = frame.Len()
	return res, nil
}

// ColumnProfile is the per-column result of a profiling pass.
type ColumnProfile struct {
	Column   *dataframe.Column
	Missing  *roaring.Bitmap
	Distinct int
	Top      []ValueCount

	Summary  dataframe.Summary
	Outliers []float64
	Lower    float64
	Upper    float64
}

// ValueCount is one entry of a frequency table.
type ValueCount struct {
	Value string
	Count int
}

// MissingRatio is the share of missing cells, in percent.
func (p ColumnProfile) MissingRatio() float64 {
	if p.Column.Len() == 0 {
		return 0
	}
	return float64(p.Missing.GetCardinality()) / float64(p.Column.Len()) * 100
}

// ProfileColumns profiles every column concurrently. Output order matches
// the frame's column order.
func ProfileColumns(f *dataframe.Frame) []ColumnProfile {
	return iter.Map(f.Columns, func(c **dataframe.Column) ColumnProfile {
		return profileColumn(*c)
	})
}

func profileColumn(c *dataframe.Column) ColumnProfile {
	p := ColumnProfile{Column: c, Missing: roaring.New()}

	counts := map[string]int{}
	var order []string
	for i, v := range c.Values {
		if v == nil {
			p.Missing.Add(uint32(i))
			continue
		}
		key := datastore.FormatValue(v)
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}
	p.Distinct = len(counts)

	p.Top = make([]ValueCount, len(order))
	for i, k := range order {
		p.Top[i] = ValueCount{Value: k, Count: counts[k]}
	}
	sort.SliceStable(p.Top, func(i, j int) bool { return p.Top[i].Count > p.Top[j].Count })
	if len(p.Top) > 5 {
		p.Top = p.Top[:5]
	}

	if xs := c.Floats(); len(xs) > 0 {
		p.Summary = dataframe.Describe(xs)
		p.Outliers, p.Lower, p.Upper = dataframe.Outliers(xs)
	}
	return p
}

// RowsWithMissing counts rows that have at least one missing cell.
func RowsWithMissing(profiles []ColumnProfile) uint64 {
	bitmaps := make([]*roaring.Bitmap, len(profiles))
	for i, p := range profiles {
		bitmaps[i] = p.Missing
	}
	return roaring.FastOr(bitmaps...).GetCardinality()
}

func missingAdvice(pct float64) string {
	switch {
	case pct > 50:
		return "consider dropping the column"
	case pct > 20:
		return "needs imputation"
	case pct > 0:
		return "minor gaps, can be filled"
	default:
		return "complete"
	}
}

func missingReport(table string, f *dataframe.Frame, profiles []ColumnProfile) ports.StepResult {
	rows := make([][]string, len(profiles))
	var totalMissing uint64
	missing := map[string]uint64{}
	for i, p := range profiles {
		n := p.Missing.GetCardinality()
		totalMissing += n
		missing[p.Column.Name] = n
		pct := p.MissingRatio()
		rows[i] = []string{p.Column.Name, fmt.Sprint(n), fmt.Sprintf("%.2f%%", pct), missingAdvice(pct)}
	}
	cells := f.Len() * f.Width()

	var b strings.Builder
	fmt.Fprintf(&b, "## Missing values: `%s`\n\n%s\n", table, markdown([]string{"column", "missing", "ratio", "advice"}, rows))
	fmt.Fprintf(&b, "Overall missing: %d/%d (%.2f%%)\n", totalMissing, cells, float64(totalMissing)/float64(cells)*100)
	fmt.Fprintf(&b, "Rows with any missing value: %d\n", RowsWithMissing(profiles))

	return ports.StepResult{Success: true, Result: b.String(), Data: map[string]any{"missing": missing}}
}

func distributionReport(table string, f *dataframe.Frame, column string) ports.StepResult {
	var cols []*dataframe.Column
	if c, ok := f.Column(column); ok && column != "" {
		cols = []*dataframe.Column{c}
	} else {
		cols = f.ByKind(dataframe.KindNumeric)
		if len(cols) > 5 {
			cols = cols[:5]
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Distribution: `%s`\n\n", table)
	for _, c := range cols {
		xs := c.Floats()
		if len(xs) == 0 {
			continue
		}
		s := dataframe.Describe(xs)
		out, _, _ := dataframe.Outliers(xs)
		fmt.Fprintf(&b, "### %s\n", c.Name)
		fmt.Fprintf(&b, "- mean: %s\n", num(s.Mean))
		fmt.Fprintf(&b, "- median: %s\n", num(s.Median))
		fmt.Fprintf(&b, "- std: %s\n", num(nanZero(s.Std)))
		fmt.Fprintf(&b, "- skew: %.2f\n", nanZero(s.Skew))
		fmt.Fprintf(&b, "- kurtosis: %.2f\n", nanZero(s.Kurtosis))
		fmt.Fprintf(&b, "- outliers (IQR): %d\n\n", len(out))
	}
	return ports.StepResult{Success: true, Result: b.String()}
}

func outlierReport(table string, profiles []ColumnProfile) ports.StepResult {
	var b strings.Builder
	fmt.Fprintf(&b, "## Outliers: `%s`\n\n", table)
	found := map[string]int{}
	for _, p := range profiles {
		if p.Column.Kind != dataframe.KindNumeric || len(p.Outliers) == 0 {
			continue
		}
		lo, hi := p.Outliers[0], p.Outliers[0]
		for _, x := range p.Outliers {
			lo, hi = math.Min(lo, x), math.Max(hi, x)
		}
		found[p.Column.Name] = len(p.Outliers)
		fmt.Fprintf(&b, "### %s\n", p.Column.Name)
		fmt.Fprintf(&b, "- normal range: [%s, %s]\n", num(p.Lower), num(p.Upper))
		fmt.Fprintf(&b, "- outliers: %d (%.1f%%)\n", len(p.Outliers), float64(len(p.Outliers))/float64(p.Summary.Count)*100)
		fmt.Fprintf(&b, "- outlier range: [%s, %s]\n\n", num(lo), num(hi))
	}
	if len(found) == 0 {
		b.WriteString("No significant outliers detected.\n")
	}
	return ports.StepResult{Success: true, Result: b.String(), Data: map[string]any{"outliers": found}}
}

func uniqueReport(table string, f *dataframe.Frame, profiles []ColumnProfile) ports.StepResult {
	rows := make([][]string, len(profiles))
	for i, p := range profiles {
		ratio := float64(p.Distinct) / float64(f.Len()) * 100
		rows[i] = []string{p.Column.Name, fmt.Sprint(p.Distinct), fmt.Sprintf("%.1f%%", ratio), p.Column.Kind.String()}
	}
	text := fmt.Sprintf("## Unique values: `%s`\n\n%s", table, markdown([]string{"column", "distinct", "ratio", "kind"}, rows))
	return ports.StepResult{Success: true, Result: text}
}

func fullReport(table string, total int, f *dataframe.Frame, profiles []ColumnProfile) ports.StepResult {
	var b strings.Builder
	fmt.Fprintf(&b, "## Profile: `%s`\n\n", table)
	fmt.Fprintf(&b, "- total rows: %s\n", thousands(total))
	fmt.Fprintf(&b, "- sampled rows: %s\n", thousands(f.Len()))
	fmt.Fprintf(&b, "- columns: %d\n\n", f.Width())

	var missingRows [][]string
	for _, p := range profiles {
		if n := p.Missing.GetCardinality(); n > 0 {
			missingRows = append(missingRows, []string{p.Column.Name, fmt.Sprint(n), fmt.Sprintf("%.1f%%", p.MissingRatio())})
		}
	}
	if len(missingRows) == 0 {
		missingRows = [][]string{{"(all columns)", "0", "0%"}}
	}
	fmt.Fprintf(&b, "### Missing values\n\n%s\n", markdown([]string{"column", "missing", "ratio"}, missingRows))

	b.WriteString("### Numeric columns\n\n")
	if numeric := f.ByKind(dataframe.KindNumeric); len(numeric) > 0 {
		desc, _, _ := describeTable(numeric)
		b.WriteString(desc)
		b.WriteString("\n")
	}

	b.WriteString("### Categorical columns\n\n")
	shown := 0
	for _, p := range profiles {
		if p.Column.Kind != dataframe.KindText || shown == 10 {
			continue
		}
		shown++
		fmt.Fprintf(&b, "**%s** (%d distinct)\n", p.Column.Name, p.Distinct)
		for _, vc := range p.Top {
			fmt.Fprintf(&b, "  - %s: %d (%.1f%%)\n", vc.Value, vc.Count, float64(vc.Count)/float64(f.Len())*100)
		}
	}

	return ports.StepResult{Success: true, Result: b.String(), Data: map[string]any{"total_rows": total}}
}

func nanZero(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return x
}

var _ ports.Tool = (*Profiling)(nil)
