package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sodove/aios-agent/internal/audit"
	"github.com/sodove/aios-agent/internal/ipc"
	"github.com/sodove/aios-agent/internal/kernel"
	"github.com/sodove/aios-agent/internal/llm"
	"github.com/sodove/aios-agent/internal/tool"
)

var errProviderDown = errors.New("provider unreachable")

// scriptedProvider returns each entry in responses in order, then repeats
// the last one, so a test can script a fixed number of tool-call rounds
// before the model answers with text.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []llm.Response
	calls     int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.calls
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	p.calls++
	return p.responses[idx], nil
}

func textResponse(text string) llm.Response {
	return llm.Response{
		Message: ipc.ChatMessage{
			ID:        uuid.New(),
			Role:      ipc.RoleAssistant,
			Content:   ipc.TextContent(text),
			Timestamp: time.Now(),
		},
	}
}

func toolCallResponse(toolName string) llm.Response {
	call := ipc.ToolCall{ID: uuid.New(), Name: toolName, Arguments: json.RawMessage(`{}`)}
	return llm.Response{
		Message: ipc.ChatMessage{
			ID:        uuid.New(),
			Role:      ipc.RoleAssistant,
			Content:   ipc.ToolUseContent([]ipc.ToolCall{call}),
			Timestamp: time.Now(),
		},
		HasToolCalls: true,
	}
}

type noopTool struct{ name string }

func (t noopTool) Name() string                           { return t.name }
func (t noopTool) Description() string                    { return "test tool" }
func (t noopTool) Schema() json.RawMessage                { return json.RawMessage(`{"type":"object"}`) }
func (t noopTool) TrustRequirement() ipc.TrustRequirement { return ipc.TrustRequireNone }
func (t noopTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	return tool.Result{Output: "done"}, nil
}

func newTestKernelAndExecutor(t *testing.T) (*kernel.Kernel, *tool.Executor, *tool.Registry) {
	reg := tool.NewRegistry()
	reg.Register(noopTool{name: "noop"})

	rl := kernel.NewRateLimiter(1000)
	sink := audit.Open(t.TempDir()+"/audit.log", zap.NewNop())
	k := kernel.New(nil, rl, sink)

	executor := tool.NewExecutor(reg, rl, k, sink, zap.NewNop())
	return k, executor, reg
}

func TestLoopEchoModeWithNoProvider(t *testing.T) {
	k, executor, reg := newTestKernelAndExecutor(t)
	loop := New(k, nil, executor, reg, zap.NewNop())

	result, err := loop.Run(context.Background(), uuid.New(), "hello")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Content.Text != "Echo: hello" {
		t.Fatalf("expected echo response, got %q", result.Content.Text)
	}
}

func TestLoopRunsToolThenReturnsFinalText(t *testing.T) {
	k, executor, reg := newTestKernelAndExecutor(t)
	provider := &scriptedProvider{responses: []llm.Response{
		toolCallResponse("noop"),
		textResponse("all done"),
	}}
	loop := New(k, provider, executor, reg, zap.NewNop())

	result, err := loop.Run(context.Background(), uuid.New(), "do the thing")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Content.Text != "all done" {
		t.Fatalf("expected final text response, got %q", result.Content.Text)
	}
}

func TestLoopEnforcesIterationCap(t *testing.T) {
	k, executor, reg := newTestKernelAndExecutor(t)
	provider := &scriptedProvider{responses: []llm.Response{toolCallResponse("noop")}}
	loop := New(k, provider, executor, reg, zap.NewNop())

	convID := uuid.New()
	_, err := loop.Run(context.Background(), convID, "loop forever")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// maxToolIterations calls to callLLM for the loop body, plus one
	// forced final call with an empty tool catalogue.
	if provider.calls != maxToolIterations+1 {
		t.Fatalf("expected %d provider calls, got %d", maxToolIterations+1, provider.calls)
	}
}

type erroringProvider struct{ err error }

func (p erroringProvider) Name() string { return "erroring" }
func (p erroringProvider) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	return llm.Response{}, p.err
}

func TestLoopConvertsProviderErrorToAssistantMessage(t *testing.T) {
	k, executor, reg := newTestKernelAndExecutor(t)
	provider := erroringProvider{err: errProviderDown}
	loop := New(k, provider, executor, reg, zap.NewNop())

	convID := uuid.New()
	result, err := loop.Run(context.Background(), convID, "hi")
	if err != nil {
		t.Fatalf("Run should never surface a Go error, got %v", err)
	}
	if want := "Sorry, I encountered an error: " + errProviderDown.Error(); result.Content.Text != want {
		t.Fatalf("expected error-shaped text %q, got %q", want, result.Content.Text)
	}

	history := k.History(convID)
	if len(history) != 2 || history[1].Content.Text != result.Content.Text {
		t.Fatalf("expected the error message appended to history, got %v", history)
	}
}

func TestLoopAppendsMessagesToHistory(t *testing.T) {
	k, executor, reg := newTestKernelAndExecutor(t)
	loop := New(k, nil, executor, reg, zap.NewNop())

	convID := uuid.New()
	if _, err := loop.Run(context.Background(), convID, "hi"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	history := k.History(convID)
	if len(history) != 2 {
		t.Fatalf("expected user + assistant messages in history, got %d", len(history))
	}
	if history[0].Role != ipc.RoleUser || history[1].Role != ipc.RoleAssistant {
		t.Fatalf("unexpected history roles: %v, %v", history[0].Role, history[1].Role)
	}
}
