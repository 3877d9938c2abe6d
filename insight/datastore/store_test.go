package datastore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// createTestStore builds a small orders database.
func createTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			region TEXT NOT NULL,
			amount REAL,
			order_date DATE
		);
		INSERT INTO orders (region, amount, order_date) VALUES
			('north', 120.5, '2024-01-01'),
			('south', 80, '2024-01-02'),
			('north', NULL, '2024-01-03'),
			('east', 42.25, '2024-01-04');
		CREATE TABLE conversation_turns (id INTEGER PRIMARY KEY, conversation_id TEXT);
	`)
	require.NoError(t, err)

	return New(db, zerolog.Nop())
}

// TestListTables tests ordering and hiding of internal tables.
func TestListTables(t *testing.T) {
	s := createTestStore(t)

	tables, err := s.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, tables)

	first, err := s.DefaultTable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "orders", first)
}

// TestDefaultTable_Empty tests the no-table sentinel.
func TestDefaultTable_Empty(t *testing.T) {
	db, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = New(db, zerolog.Nop()).DefaultTable(context.Background())
	assert.ErrorIs(t, err, ErrNoTables)
}

// TestColumnInfo tests PRAGMA table_info decoding and type classification.
func TestColumnInfo(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	cols, err := s.ColumnInfo(ctx, "orders")
	require.NoError(t, err)
	require.Len(t, cols, 4)
	assert.Equal(t, "id", cols[0].Name)
	assert.True(t, cols[0].PrimaryKey)
	assert.True(t, cols[1].NotNull)
	assert.Equal(t, "REAL", cols[2].Type)

	numeric, err := s.NumericColumns(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "amount"}, numeric)

	dates, err := s.DateColumns(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"order_date"}, dates)

	_, err = s.ColumnInfo(ctx, "missing")
	assert.Error(t, err)
}

// TestDescribeSchema tests DDL plus sample rows.
func TestDescribeSchema(t *testing.T) {
	s := createTestStore(t)

	schema, err := s.DescribeSchema(context.Background())
	require.NoError(t, err)
	assert.Contains(t, schema, "CREATE TABLE orders")
	assert.Contains(t, schema, "3 rows from orders table:")
	assert.Contains(t, schema, "id\tregion\tamount\torder_date")
	assert.NotContains(t, schema, "conversation_turns")
}

// TestRunQuery tests materialisation, counts and distinct values.
func TestRunQuery(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tbl, err := s.RunQuery(ctx, "SELECT region, SUM(amount) AS total FROM orders GROUP BY region ORDER BY region")
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "total"}, tbl.Columns)
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, "east", tbl.Rows[0][0])

	n, err := s.RowCount(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	regions, err := s.DistinctValues(ctx, "orders", "region", 10)
	require.NoError(t, err)
	assert.Len(t, regions, 3)

	sample, err := s.SampleRows(ctx, "orders", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, sample.Len())

	random, err := s.RandomRows(ctx, "orders", 10)
	require.NoError(t, err)
	assert.Equal(t, 4, random.Len())

	_, err = s.RunQuery(ctx, "SELECT * FROM nope")
	assert.Error(t, err)
}

// TestRunQueryRaw tests the tuple rendering of results.
func TestRunQueryRaw(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	raw, err := s.RunQueryRaw(ctx, "SELECT COUNT(*) FROM orders")
	require.NoError(t, err)
	assert.Equal(t, "[(4,)]", raw)

	raw, err = s.RunQueryRaw(ctx, "SELECT region FROM orders WHERE region = 'west'")
	require.NoError(t, err)
	assert.Empty(t, raw)
}

// TestTableMarkdown tests markdown rendering.
func TestTableMarkdown(t *testing.T) {
	tbl := &Table{
		Columns: []string{"region", "total"},
		Rows:    [][]any{{"north", 120.5}, {"south", nil}},
	}

	md := tbl.Markdown()
	assert.Contains(t, md, "region")
	assert.Contains(t, md, "120.5")
	assert.Contains(t, md, "|")
	assert.Equal(t, 1, tbl.Head(1).Len())

	recs := tbl.Records()
	assert.Equal(t, "north", recs[0]["region"])
}
