package tools

import (
	"context"
	"fmt"
	"strings"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
	"github.com/ZanzyTHEbar/insight-agent/insight/datastore"
)

// DataInspectorSchema defines the JSON schema for data_inspector arguments.
const DataInspectorSchema = `{
  "type": "object",
  "properties": {
    "table_name": {"type": "string"},
    "inspect_type": {"type": "string", "enum": ["schema", "sample", "overview", "column_detail"], "default": "overview"},
    "column_name": {"type": "string"}
  }
}`

// DataInspector reports table structure, samples and column values.
type DataInspector struct {
	store DataStore
}

func NewDataInspector(store DataStore) *DataInspector {
	return &DataInspector{store: store}
}

func (t *DataInspector) Describe() ports.ToolSpec {
	return ports.ToolSpec{
		Name:        NameDataInspector,
		Description: "Inspect table structure, field types, sample rows and basic counts. Use it first to understand a dataset.",
		Parameters:  `{"table_name": "(optional) table", "inspect_type": "schema/sample/overview/column_detail", "column_name": "(optional) column for column_detail"}`,
		JSONSchema:  []byte(DataInspectorSchema),
	}
}

func (t *DataInspector) Execute(ctx context.Context, raw map[string]any) (ports.StepResult, error) {
	args := Args(raw)

	table, failure, err := resolveTable(ctx, t.store, args.String("table_name", ""))
	if failure != nil || err != nil {
		return deref(failure), err
	}

	switch args.String("inspect_type", "overview") {
	case "schema":
		return t.schema(ctx, table)
	case "sample":
		return t.sample(ctx, table)
	case "column_detail":
		return t.columnDetail(ctx, table, args.String("column_name", ""))
	default:
		return t.overview(ctx, table)
	}
}

func (t *DataInspector) schema(ctx context.Context, table string) (ports.StepResult, error) {
	cols, err := t.store.ColumnInfo(ctx, table)
	if err != nil {
		return ports.StepResult{}, err
	}

	rows := make([][]string, len(cols))
	for i, c := range cols {
		rows[i] = []string{fmt.Sprint(c.Position), c.Name, c.Type, yesNo(c.NotNull), yesNo(c.PrimaryKey)}
	}

	text := fmt.Sprintf("## Table `%s` schema\n\n%s", table, markdown([]string{"cid", "name", "type", "not null", "pk"}, rows))
	return ports.StepResult{
		Success: true,
		Result:  text,
		Data:    map[string]any{"table_name": table, "columns": cols},
	}, nil
}

func (t *DataInspector) sample(ctx context.Context, table string) (ports.StepResult, error) {
	tbl, err := t.store.SampleRows(ctx, table, 5)
	if err != nil {
		return ports.StepResult{}, err
	}
	return ports.StepResult{
		Success: true,
		Result:  fmt.Sprintf("## Table `%s` sample (first 5 rows)\n\n%s", table, tbl.Markdown()),
		Data:    map[string]any{"table_name": table, "sample": tbl.Records()},
	}, nil
}

func (t *DataInspector) columnDetail(ctx context.Context, table, column string) (ports.StepResult, error) {
	cols, err := t.store.ColumnInfo(ctx, table)
	if err != nil {
		return ports.StepResult{}, err
	}
	if column != "" {
		var picked []datastore.ColumnInfo
		for _, c := range cols {
			if c.Name == column {
				picked = append(picked, c)
			}
		}
		if len(picked) == 0 {
			return ports.Failed("column not found: %s", column), nil
		}
		cols = picked
	}

	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		values, err := t.store.DistinctValues(ctx, table, c.Name, 10)
		if err != nil {
			return ports.StepResult{}, err
		}
		shown := make([]string, len(values))
		for i, v := range values {
			shown[i] = datastore.FormatValue(v)
		}
		parts = append(parts, fmt.Sprintf("### Column `%s`\n- type: %s\n- example values: [%s]\n", c.Name, c.Type, strings.Join(shown, ", ")))
	}

	return ports.StepResult{
		Success: true,
		Result:  strings.Join(parts, "\n"),
		Data:    map[string]any{"table_name": table},
	}, nil
}

func (t *DataInspector) overview(ctx context.Context, table string) (ports.StepResult, error) {
	rowCount, err := t.store.RowCount(ctx, table)
	if err != nil {
		return ports.StepResult{}, err
	}
	cols, err := t.store.ColumnInfo(ctx, table)
	if err != nil {
		return ports.StepResult{}, err
	}
	numeric, err := t.store.NumericColumns(ctx, table)
	if err != nil {
		return ports.StepResult{}, err
	}
	dates, err := t.store.DateColumns(ctx, table)
	if err != nil {
		return ports.StepResult{}, err
	}
	sample, err := t.store.SampleRows(ctx, table, 3)
	if err != nil {
		return ports.StepResult{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Overview: `%s`\n\n", table)
	fmt.Fprintf(&b, "- **Rows**: %s\n", thousands(rowCount))
	fmt.Fprintf(&b, "- **Columns**: %d\n", len(cols))
	fmt.Fprintf(&b, "- **Numeric columns** (%d): %s\n", len(numeric), strings.Join(numeric, ", "))
	fmt.Fprintf(&b, "- **Date columns** (%d): %s\n\n", len(dates), strings.Join(dates, ", "))
	b.WriteString("### Fields\n")
	for _, c := range cols {
		fmt.Fprintf(&b, "- `%s` (%s)\n", c.Name, c.Type)
	}
	fmt.Fprintf(&b, "\n### Sample (first 3 rows)\n%s\n", sample.Markdown())

	return ports.StepResult{
		Success: true,
		Result:  b.String(),
		Data: map[string]any{
			"table_name":      table,
			"row_count":       rowCount,
			"column_count":    len(cols),
			"numeric_columns": numeric,
			"date_columns":    dates,
		},
	}, nil
}

// resolveTable returns the named table or the first table in the store.
func resolveTable(ctx context.Context, store DataStore, name string) (string, *ports.StepResult, error) {
	if name != "" {
		return name, nil, nil
	}
	tables, err := store.ListTables(ctx)
	if err != nil {
		return "", nil, err
	}
	if len(tables) == 0 {
		f := ports.Failed("no tables available in the database")
		return "", &f, nil
	}
	return tables[0], nil, nil
}

func deref(r *ports.StepResult) ports.StepResult {
	if r == nil {
		return ports.StepResult{}
	}
	return *r
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func thousands(n int) string {
	s := num(float64(n))
	return strings.TrimSuffix(s, ".00")
}

var _ ports.Tool = (*DataInspector)(nil)
