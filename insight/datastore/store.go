// Package datastore exposes read access to the analysed SQL data source.
package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ErrNoTables is returned when the data source holds no user tables.
var ErrNoTables = errors.New("no tables available in the database")

// Tables that belong to the state store or tooling, never offered for analysis.
var internalTables = map[string]bool{
	"goose_db_version":   true,
	"conversation_turns": true,
	"tool_artifacts":     true,
}

var (
	numericTypeMarkers = []string{"INT", "REAL", "FLOAT", "DOUBLE", "DECIMAL", "NUMERIC"}
	dateTypeMarkers    = []string{"DATE", "TIME"}
)

// ColumnInfo mirrors one row of PRAGMA table_info.
type ColumnInfo struct {
	Position   int    `json:"cid"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"notnull"`
	Default    any    `json:"default"`
	PrimaryKey bool   `json:"pk"`
}

// Store runs introspection and queries against a SQLite-family database.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// New wraps an open database handle.
func New(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{db: db, logger: logger.With().Str("component", "datastore").Logger()}
}

// ListTables returns user tables in name order.
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		if !internalTables[name] {
			tables = append(tables, name)
		}
	}
	return tables, rows.Err()
}

// DefaultTable returns the first table, or ErrNoTables.
func (s *Store) DefaultTable(ctx context.Context) (string, error) {
	tables, err := s.ListTables(ctx)
	if err != nil {
		return "", err
	}
	if len(tables) == 0 {
		return "", ErrNoTables
	}
	return tables[0], nil
}

// DescribeSchema renders CREATE statements plus three sample rows per table.
// With no names given every table is described.
func (s *Store) DescribeSchema(ctx context.Context, tables ...string) (string, error) {
	if len(tables) == 0 {
		all, err := s.ListTables(ctx)
		if err != nil {
			return "", err
		}
		tables = all
	}

	parts := make([]string, 0, len(tables))
	for _, table := range tables {
		var ddl string
		err := s.db.QueryRowContext(ctx,
			`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&ddl)
		if err != nil {
			return "", fmt.Errorf("failed to read schema of %s: %w", table, err)
		}

		sample, err := s.SampleRows(ctx, table, 3)
		if err != nil {
			return "", err
		}

		var b strings.Builder
		b.WriteString(strings.TrimSpace(ddl))
		fmt.Fprintf(&b, "\n\n/*\n%d rows from %s table:\n", sample.Len(), table)
		b.WriteString(strings.Join(sample.Columns, "\t"))
		for _, row := range sample.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = FormatValue(v)
			}
			b.WriteString("\n" + strings.Join(cells, "\t"))
		}
		b.WriteString("\n*/")
		parts = append(parts, b.String())
	}

	return strings.Join(parts, "\n\n"), nil
}

// ColumnInfo lists the columns of a table.
func (s *Store) ColumnInfo(ctx context.Context, table string) ([]ColumnInfo, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", QuoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var (
			c           ColumnInfo
			notNull, pk int
			dflt        any
		)
		if err := rows.Scan(&c.Position, &c.Name, &c.Type, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column info: %w", err)
		}
		c.NotNull = notNull != 0
		c.PrimaryKey = pk != 0
		c.Default = normalise(dflt)
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}
	return cols, nil
}

// NumericColumns returns columns whose declared type is numeric.
func (s *Store) NumericColumns(ctx context.Context, table string) ([]string, error) {
	return s.columnsByType(ctx, table, numericTypeMarkers)
}

// DateColumns returns columns whose declared type is a date or timestamp.
func (s *Store) DateColumns(ctx context.Context, table string) ([]string, error) {
	return s.columnsByType(ctx, table, dateTypeMarkers)
}

func (s *Store) columnsByType(ctx context.Context, table string, markers []string) ([]string, error) {
	cols, err := s.ColumnInfo(ctx, table)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, c := range cols {
		upper := strings.ToUpper(c.Type)
		for _, m := range markers {
			if strings.Contains(upper, m) {
				names = append(names, c.Name)
				break
			}
		}
	}
	return names, nil
}

// SampleRows returns the first limit rows of a table.
func (s *Store) SampleRows(ctx context.Context, table string, limit int) (*Table, error) {
	return s.RunQuery(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", QuoteIdent(table), limit))
}

// RandomRows returns up to limit rows in random order.
func (s *Store) RandomRows(ctx context.Context, table string, limit int) (*Table, error) {
	return s.RunQuery(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY RANDOM() LIMIT %d", QuoteIdent(table), limit))
}

// RowCount counts the rows of a table.
func (s *Store) RowCount(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", QuoteIdent(table))).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", table, err)
	}
	return n, nil
}

// DistinctValues returns up to limit distinct values of a column.
func (s *Store) DistinctValues(ctx context.Context, table, column string, limit int) ([]any, error) {
	t, err := s.RunQuery(ctx, fmt.Sprintf("SELECT DISTINCT %s FROM %s LIMIT %d", QuoteIdent(column), QuoteIdent(table), limit))
	if err != nil {
		return nil, err
	}
	values := make([]any, 0, t.Len())
	for _, row := range t.Rows {
		values = append(values, row[0])
	}
	return values, nil
}

// RunQuery executes a query and materialises the result.
func (s *Store) RunQuery(ctx context.Context, query string) (*Table, error) {
	s.logger.Debug().Str("sql", query).Msg("Running query")

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	t := &Table{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i := range values {
			values[i] = normalise(values[i])
		}
		t.Rows = append(t.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return t, nil
}

// RunQueryRaw executes a query and renders the rows as tuples.
func (s *Store) RunQueryRaw(ctx context.Context, query string) (string, error) {
	t, err := s.RunQuery(ctx, query)
	if err != nil {
		return "", err
	}
	return t.Tuples(), nil
}

// QuoteIdent quotes a SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func normalise(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int32:
		return int64(x)
	default:
		return v
	}
}
