package agent

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
	"github.com/ZanzyTHEbar/insight-agent/insight/config"
	"github.com/ZanzyTHEbar/insight-agent/insight/datastore"
	"github.com/ZanzyTHEbar/insight-agent/insight/db"
)

// StubProvider implements Provider for testing.
type StubProvider struct {
	completionFunc func(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error)
}

func (p *StubProvider) Name() string { return "stub" }

func (p *StubProvider) Complete(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
	if p.completionFunc != nil {
		return p.completionFunc(ctx, in, opts)
	}
	return ports.Completion{Text: "stub completion"}, nil
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		App: config.AppConfig{OutputDir: t.TempDir()},
		LLM: config.LLMConfig{Model: "test-model", Temperature: 0.1, MaxNewTokens: 256},
		Agent: config.AgentConfig{
			MaxSteps:             8,
			HistoryWindow:        10,
			MaxHistory:           50,
			ToolTimeout:          5 * time.Second,
			PersistConversations: true,
		},
		State: config.StateConfig{Enabled: true},
		Harness: config.HarnessConfig{
			CacheEnabled:     true,
			CacheCapacity:    16,
			CacheTTLSeconds:  60,
			ValidateToolArgs: true,
		},
	}
}

func ordersData(t *testing.T) *datastore.Store {
	t.Helper()
	conn, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = conn.Exec(`
		CREATE TABLE orders (region TEXT, amount REAL, order_date DATE);
		INSERT INTO orders VALUES ('north', 100, '2024-01-01'), ('south', 250, '2024-01-02');
	`)
	require.NoError(t, err)
	return datastore.New(conn, zerolog.Nop())
}

// TestFactory_CreatePolicy tests clamping of orchestration limits.
func TestFactory_CreatePolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Agent.MaxSteps = 0
	cfg.Agent.HistoryWindow = 500
	cfg.Agent.MaxHistory = 0
	cfg.Agent.ToolTimeout = 0

	policy := NewFactory(cfg, nil, zerolog.Nop()).CreatePolicy()
	assert.Equal(t, 1, policy.MaxSteps)
	assert.Equal(t, DefaultMaxHistory, policy.MaxHistory)
	assert.Equal(t, DefaultMaxHistory, policy.HistoryWindow)
	assert.Equal(t, 60*time.Second, policy.ToolTimeout)

	cfg.Agent.MaxSteps = 99
	assert.Equal(t, 20, NewFactory(cfg, nil, zerolog.Nop()).CreatePolicy().MaxSteps)
}

// TestFactory_CreateRuntime tests wiring against a real data store.
func TestFactory_CreateRuntime(t *testing.T) {
	f := NewFactory(testConfig(t), nil, zerolog.Nop())

	_, err := f.CreateRuntime(context.Background(), nil, ordersData(t))
	assert.Error(t, err)

	rt, err := f.CreateRuntime(context.Background(), &StubProvider{}, ordersData(t))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"data_inspector",
		"sql_query",
		"data_visualization",
		"statistical_analysis",
		"data_profiling",
		"report_generator",
	}, rt.Registry.Names())
	assert.Contains(t, rt.Schema, "CREATE TABLE orders")
	assert.False(t, rt.persist)
	assert.IsType(t, &noOpStore{}, rt.Store)
	assert.IsType(t, &noOpTracer{}, rt.Tracer)
}

// TestRuntime_ProcessQuery tests an end-to-end query through the wired runtime.
func TestRuntime_ProcessQuery(t *testing.T) {
	provider := &StubProvider{completionFunc: func(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
		prompt := in.Messages[len(in.Messages)-1].Content
		if strings.Contains(prompt, "## Available tools") {
			return ports.Completion{Text: `[{"tool": "data_inspector", "args": {"inspect_type": "overview"}, "reason": "look at the data"}]`}, nil
		}
		return ports.Completion{Text: "There are two orders."}, nil
	}}

	rt, err := NewFactory(testConfig(t), nil, zerolog.Nop()).CreateRuntime(context.Background(), provider, ordersData(t))
	require.NoError(t, err)

	a := rt.NewAgent()
	resp, err := a.ProcessQuery(context.Background(), "what data do we have?")
	require.NoError(t, err)

	assert.Equal(t, "There are two orders.", resp.Response)
	require.Len(t, resp.StepResults, 1)
	assert.True(t, resp.StepResults[0].Success)
	assert.Equal(t, "data_inspector", resp.StepResults[0].Tool)
	assert.Contains(t, resp.StepResults[0].Result, "orders")
	assert.Empty(t, resp.Images)
	assert.Empty(t, resp.StepResults[0].ArtifactPath)

	sessions := rt.NewSessions()
	assert.NotSame(t, sessions.Get("a"), sessions.Get("b"))
}

// TestRuntime_Persistence tests that turns reach the state database.
func TestRuntime_Persistence(t *testing.T) {
	ctx := context.Background()
	state, err := db.Open(ctx, db.Options{Driver: db.DriverSQLite, Path: filepath.Join(t.TempDir(), "state.db"), Create: true}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { state.Close() })
	require.NoError(t, db.Migrate(ctx, state, db.DriverSQLite, zerolog.Nop()))

	provider := &StubProvider{completionFunc: func(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
		return ports.Completion{Text: `[{"tool": "general_chat", "args": {}, "reason": "chat"}]`}, nil
	}}
	rt, err := NewFactory(testConfig(t), state, zerolog.Nop()).CreateRuntime(ctx, provider, ordersData(t))
	require.NoError(t, err)
	assert.True(t, rt.persist)

	a := rt.NewAgent()
	_, err = a.ProcessQuery(ctx, "hello")
	require.NoError(t, err)
	id := a.SessionInfo().SessionID

	restored := rt.NewAgent()
	require.NoError(t, restored.Restore(ctx, id))
	history := restored.History()
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, id, restored.SessionInfo().SessionID)
}

// TestRuntime_VisualizationFailureStillAnswers tests that a chart step whose
// SQL cannot be generated is reported and the answer is still synthesized.
func TestRuntime_VisualizationFailureStillAnswers(t *testing.T) {
	var synthesisPrompt string
	provider := &StubProvider{completionFunc: func(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
		prompt := in.Messages[len(in.Messages)-1].Content
		switch {
		case strings.Contains(prompt, "## Analysis steps and results"):
			synthesisPrompt = prompt
			return ports.Completion{Text: "The orders table has two rows; the chart could not be drawn."}, nil
		case strings.Contains(prompt, "## Available tools"):
			return ports.Completion{Text: `[
				{"tool": "data_inspector", "args": {"inspect_type": "overview"}, "reason": "look at the data"},
				{"tool": "data_visualization", "args": {"question": "chart amount by region"}, "reason": "draw it"}
			]`}, nil
		case strings.Contains(prompt, "Visualization request:"):
			return ports.Completion{Text: "Sorry, I cannot help with that request."}, nil
		}
		return ports.Completion{Text: "unexpected prompt"}, nil
	}}

	cfg := testConfig(t)
	rt, err := NewFactory(cfg, nil, zerolog.Nop()).CreateRuntime(context.Background(), provider, ordersData(t))
	require.NoError(t, err)

	resp, err := rt.NewAgent().ProcessQuery(context.Background(), "chart amount by region")
	require.NoError(t, err)

	assert.Equal(t, "The orders table has two rows; the chart could not be drawn.", resp.Response)
	require.Len(t, resp.StepResults, 2)
	assert.True(t, resp.StepResults[0].Success)

	viz := resp.StepResults[1]
	assert.Equal(t, "data_visualization", viz.Tool)
	assert.False(t, viz.Success)
	assert.Contains(t, viz.Result, "could not generate SQL")
	assert.Empty(t, viz.ArtifactPath)
	assert.Empty(t, resp.Images)

	assert.Contains(t, synthesisPrompt, "could not generate SQL")
	assert.Contains(t, synthesisPrompt, "data_inspector")

	charts, _ := os.ReadDir(filepath.Join(cfg.App.OutputDir, "charts"))
	assert.Empty(t, charts)
}
