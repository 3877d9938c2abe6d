// Package dataframe types raw query results with a lossy, heuristic coercion:
// columns become numeric when every non-null cell is a number, then
// datetime when more than half of all rows parse as a date.
package dataframe

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Kind is the coerced type of a column.
type Kind int

const (
	KindText Kind = iota
	KindNumeric
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindTime:
		return "datetime"
	default:
		return "text"
	}
}

// Column holds coerced values. A nil entry is a missing value; otherwise the
// entry is float64 for numeric, time.Time for datetime and the original value
// for text columns.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.Values) }

// IsNull reports whether cell i is missing.
func (c *Column) IsNull(i int) bool { return c.Values[i] == nil }

// NullCount counts missing cells.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if v == nil {
			n++
		}
	}
	return n
}

// Floats returns the non-null numeric values in row order.
func (c *Column) Floats() []float64 {
	if c.Kind != KindNumeric {
		return nil
	}
	out := make([]float64, 0, len(c.Values))
	for _, v := range c.Values {
		if f, ok := v.(float64); ok {
			out = append(out, f)
		}
	}
	return out
}

// Times returns the non-null datetime values in row order.
func (c *Column) Times() []time.Time {
	if c.Kind != KindTime {
		return nil
	}
	out := make([]time.Time, 0, len(c.Values))
	for _, v := range c.Values {
		if t, ok := v.(time.Time); ok {
			out = append(out, t)
		}
	}
	return out
}

// Strings renders every cell as text; missing cells become "".
func (c *Column) Strings() []string {
	out := make([]string, len(c.Values))
	for i, v := range c.Values {
		out[i] = formatCell(v)
	}
	return out
}

// Frame is a column-oriented, typed view of a result set.
type Frame struct {
	Columns []*Column
	rows    int
}

// New coerces raw rows into a Frame.
func New(columns []string, rows [][]any) *Frame {
	f := &Frame{rows: len(rows)}
	for j, name := range columns {
		raw := make([]any, len(rows))
		for i, row := range rows {
			if j < len(row) {
				raw[i] = row[j]
			}
		}
		f.Columns = append(f.Columns, coerce(name, raw))
	}
	return f
}

// Len returns the row count.
func (f *Frame) Len() int { return f.rows }

// Width returns the column count.
func (f *Frame) Width() int { return len(f.Columns) }

// Names returns the column names.
func (f *Frame) Names() []string {
	names := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks a column up by name.
func (f *Frame) Column(name string) (*Column, bool) {
	for _, c := range f.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ByKind returns the columns of one kind, in order.
func (f *Frame) ByKind(kind Kind) []*Column {
	var out []*Column
	for _, c := range f.Columns {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Row returns the coerced values of row i.
func (f *Frame) Row(i int) []any {
	row := make([]any, len(f.Columns))
	for j, c := range f.Columns {
		row[j] = c.Values[i]
	}
	return row
}

// Rows returns the first n rows, or all when n < 0.
func (f *Frame) Rows(n int) [][]any {
	if n < 0 || n > f.rows {
		n = f.rows
	}
	out := make([][]any, n)
	for i := 0; i < n; i++ {
		out[i] = f.Row(i)
	}
	return out
}

func coerce(name string, raw []any) *Column {
	if values, ok := asNumeric(raw); ok {
		return &Column{Name: name, Kind: KindNumeric, Values: values}
	}
	if values, ok := asTime(raw); ok {
		return &Column{Name: name, Kind: KindTime, Values: values}
	}
	return &Column{Name: name, Kind: KindText, Values: raw}
}

// asNumeric succeeds only when every non-null cell parses and at least one exists.
func asNumeric(raw []any) ([]any, bool) {
	out := make([]any, len(raw))
	seen := false
	for i, v := range raw {
		if v == nil {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, false
		}
		if math.IsNaN(f) {
			continue
		}
		out[i] = f
		seen = true
	}
	return out, seen
}

// asTime succeeds when more than half of all rows, nulls included, parse.
func asTime(raw []any) ([]any, bool) {
	out := make([]any, len(raw))
	parsed := 0
	for i, v := range raw {
		switch x := v.(type) {
		case time.Time:
			out[i] = x
			parsed++
		case string:
			s := strings.TrimSpace(x)
			if s == "" {
				continue
			}
			if t, err := dateparse.ParseAny(s); err == nil {
				out[i] = t
				parsed++
			}
		}
	}
	if len(raw) == 0 || float64(parsed) <= float64(len(raw))*0.5 {
		return nil, false
	}
	return out, true
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(x)
	}
}
