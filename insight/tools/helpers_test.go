package tools

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/ZanzyTHEbar/insight-agent/insight/dataframe"
	"github.com/ZanzyTHEbar/insight-agent/insight/datastore"
)

// createOrdersStore builds a small orders table with gaps and one outlier.
func createOrdersStore(t *testing.T) *datastore.Store {
	t.Helper()

	db, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE orders (
			region TEXT NOT NULL,
			amount REAL,
			quantity INTEGER,
			order_date DATE
		);
		INSERT INTO orders VALUES
			('north', 100, 1, '2024-01-01'),
			('south', 200, 2, '2024-01-02'),
			('north', NULL, 3, '2024-01-03'),
			('east', 150, NULL, '2024-01-04'),
			('west', 120, 5, '2024-01-05'),
			('south', 5000, 6, '2024-01-06');
	`)
	require.NoError(t, err)

	return datastore.New(db, zerolog.Nop())
}

func emptyStore(t *testing.T) *datastore.Store {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return datastore.New(db, zerolog.Nop())
}

// StubLLM implements LanguageModel for testing.
type StubLLM struct {
	CompleteFunc func(ctx context.Context, prompt string) (string, error)
	Prompts      []string
}

func (s *StubLLM) Complete(ctx context.Context, prompt string) (string, error) {
	s.Prompts = append(s.Prompts, prompt)
	if s.CompleteFunc != nil {
		return s.CompleteFunc(ctx, prompt)
	}
	return "", nil
}

// scriptedLLM answers prompts in order.
func scriptedLLM(responses ...string) *StubLLM {
	i := 0
	return &StubLLM{CompleteFunc: func(ctx context.Context, prompt string) (string, error) {
		if i >= len(responses) {
			return "", nil
		}
		r := responses[i]
		i++
		return r, nil
	}}
}

// MockChartSink for testing
type MockChartSink struct {
	mock.Mock
}

func (m *MockChartSink) Render(ctx context.Context, frame *dataframe.Frame, kind, title string) (string, error) {
	args := m.Called(ctx, frame, kind, title)
	return args.String(0), args.Error(1)
}

// MockReportSink for testing
type MockReportSink struct {
	mock.Mock
}

func (m *MockReportSink) Save(ctx context.Context, reportType, question, body string) (string, error) {
	args := m.Called(ctx, reportType, question, body)
	return args.String(0), args.Error(1)
}
