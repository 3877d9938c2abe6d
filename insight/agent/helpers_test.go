package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
)

// StubTool implements Tool for testing.
type StubTool struct {
	spec        ports.ToolSpec
	ExecuteFunc func(ctx context.Context, args map[string]any) (ports.StepResult, error)

	mu    sync.Mutex
	calls []map[string]any
}

func newStubTool(name, result string) *StubTool {
	return &StubTool{
		spec: ports.ToolSpec{Name: name, Description: name + " tool"},
		ExecuteFunc: func(ctx context.Context, args map[string]any) (ports.StepResult, error) {
			return ports.StepResult{Success: true, Result: result}, nil
		},
	}
}

func (t *StubTool) Describe() ports.ToolSpec { return t.spec }

func (t *StubTool) Execute(ctx context.Context, args map[string]any) (ports.StepResult, error) {
	t.mu.Lock()
	t.calls = append(t.calls, args)
	t.mu.Unlock()
	return t.ExecuteFunc(ctx, args)
}

func (t *StubTool) Calls() []map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]map[string]any(nil), t.calls...)
}

// StubChat implements ChatModel for testing.
type StubChat struct {
	ChatFunc func(ctx context.Context, prompt string) (string, error)
	Prompts  []string
}

func (s *StubChat) Chat(ctx context.Context, messages []ports.PromptMessage) (string, error) {
	prompt := messages[len(messages)-1].Content
	s.Prompts = append(s.Prompts, prompt)
	return s.ChatFunc(ctx, prompt)
}

// routedChat answers plan, synthesis and chat prompts with fixed replies.
func routedChat(plan, synthesis, chat string) *StubChat {
	return &StubChat{ChatFunc: func(ctx context.Context, prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "## Available tools"):
			return plan, nil
		case strings.Contains(prompt, "## Analysis steps and results"):
			return synthesis, nil
		default:
			return chat, nil
		}
	}}
}

// MockStore for testing
type MockStore struct {
	mock.Mock
}

func (m *MockStore) SaveTurn(ctx context.Context, conversationID string, turn ports.Turn) error {
	args := m.Called(ctx, conversationID, turn)
	return args.Error(0)
}

func (m *MockStore) LoadTurns(ctx context.Context, conversationID string, k int) ([]ports.Turn, error) {
	args := m.Called(ctx, conversationID, k)
	turns, _ := args.Get(0).([]ports.Turn)
	return turns, args.Error(1)
}

func (m *MockStore) AppendToolArtifact(ctx context.Context, conversationID, name string, payload []byte) error {
	args := m.Called(ctx, conversationID, name, payload)
	return args.Error(0)
}

// recordingTracer keeps span names and errors.
type recordingTracer struct {
	mu    sync.Mutex
	spans []string
	errs  []error
}

func (r *recordingTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	r.mu.Lock()
	r.spans = append(r.spans, name)
	r.mu.Unlock()
	return ctx, func(err error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if err != nil {
			r.errs = append(r.errs, err)
		}
	}
}

func (r *recordingTracer) Event(ctx context.Context, name string, attrs map[string]any) {}

var (
	_ ports.Tool              = (*StubTool)(nil)
	_ ports.ConversationStore = (*MockStore)(nil)
	_ ports.Tracer            = (*recordingTracer)(nil)
)
