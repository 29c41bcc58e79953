package tool

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sodove/aios-agent/internal/audit"
	"github.com/sodove/aios-agent/internal/ipc"
)

// stubRateLimiter always admits or always denies, set via allow.
type stubRateLimiter struct{ allow bool }

func (s stubRateLimiter) CheckAndRecord(time.Time) bool { return s.allow }

// stubPending is an in-memory PendingConfirms for tests: it never resolves
// a registered confirm; it only controls whether a confirm client is found
// and what that client's Send returns.
type stubPending struct {
	hasClient bool
	sendErr   error
	resolveAs *bool // not consulted by RegisterPendingConfirm
	lastSent  ipc.Envelope
}

func (s *stubPending) RegisterPendingConfirm(actionID uuid.UUID) chan bool {
	return make(chan bool, 1)
}
func (s *stubPending) ForgetPendingConfirm(actionID uuid.UUID) {}
func (s *stubPending) FindConfirmClient() ConfirmClient {
	if !s.hasClient {
		return nil
	}
	return &stubConfirmClient{s}
}

type stubConfirmClient struct{ p *stubPending }

func (c *stubConfirmClient) Send(env ipc.Envelope) error {
	c.p.lastSent = env
	return c.p.sendErr
}

// autoApprovePending resolves every confirm immediately via the channel it
// itself returned, since the real Kernel registers the channel before
// sending and a test double can emulate that by handing back an
// already-filled buffered channel.
type autoApprovePending struct {
	approved bool
}

func (a *autoApprovePending) RegisterPendingConfirm(actionID uuid.UUID) chan bool {
	ch := make(chan bool, 1)
	ch <- a.approved
	return ch
}
func (a *autoApprovePending) ForgetPendingConfirm(actionID uuid.UUID) {}
func (a *autoApprovePending) FindConfirmClient() ConfirmClient {
	return &noopConfirmClient{}
}

type noopConfirmClient struct{}

func (noopConfirmClient) Send(ipc.Envelope) error { return nil }

type echoTool struct {
	name       string
	requirement ipc.TrustRequirement
}

func (t echoTool) Name() string                           { return t.name }
func (t echoTool) Description() string                    { return "echoes its input" }
func (t echoTool) Schema() json.RawMessage                { return json.RawMessage(`{"type":"object"}`) }
func (t echoTool) TrustRequirement() ipc.TrustRequirement { return t.requirement }
func (t echoTool) Execute(ctx context.Context, args json.RawMessage) (Result, error) {
	return Result{Output: string(args)}, nil
}

func newTestExecutor(t *testing.T, registry *Registry, rl stubRateLimiter, pending PendingConfirms) *Executor {
	dir := t.TempDir() + "/audit.log"
	sink := audit.Open(dir, zap.NewNop())
	return NewExecutor(registry, rl, pending, sink, zap.NewNop())
}

func TestExecuteNonDestructiveToolNeedsNoConfirmation(t *testing.T) {
	reg := NewRegistry()
	reg.Register(echoTool{name: "read_file", requirement: ipc.TrustRequireNone})

	exec := newTestExecutor(t, reg, stubRateLimiter{allow: true}, &stubPending{hasClient: false})

	call := ipc.ToolCall{ID: uuid.New(), Name: "read_file", Arguments: json.RawMessage(`{}`)}
	result := exec.Execute(context.Background(), call)

	if result.IsError {
		t.Fatalf("expected success, got error result: %+v", result)
	}
}

func TestExecuteUnknownToolReturnsErrorResult(t *testing.T) {
	reg := NewRegistry()
	exec := newTestExecutor(t, reg, stubRateLimiter{allow: true}, &stubPending{})

	call := ipc.ToolCall{ID: uuid.New(), Name: "does_not_exist", Arguments: json.RawMessage(`{}`)}
	result := exec.Execute(context.Background(), call)

	if !result.IsError {
		t.Fatal("expected error result for unknown tool")
	}
}

func TestExecuteDestructiveToolDeniedByRateLimiter(t *testing.T) {
	reg := NewRegistry()
	reg.Register(echoTool{name: "shell_exec", requirement: ipc.TrustRequireDoubleConfirm})

	exec := newTestExecutor(t, reg, stubRateLimiter{allow: false}, &stubPending{hasClient: true})

	call := ipc.ToolCall{ID: uuid.New(), Name: "shell_exec", Arguments: json.RawMessage(`{}`)}
	result := exec.Execute(context.Background(), call)

	if !result.IsError {
		t.Fatal("expected rate-limited call to return an error result")
	}
}

func TestExecuteConfirmedToolRuns(t *testing.T) {
	reg := NewRegistry()
	reg.Register(echoTool{name: "write_file", requirement: ipc.TrustRequireConfirm})

	exec := newTestExecutor(t, reg, stubRateLimiter{allow: true}, &autoApprovePending{approved: true})

	call := ipc.ToolCall{ID: uuid.New(), Name: "write_file", Arguments: json.RawMessage(`{"path":"a"}`)}
	result := exec.Execute(context.Background(), call)

	if result.IsError {
		t.Fatalf("expected approved call to succeed, got %+v", result)
	}
}

func TestExecuteRejectedConfirmationReturnsError(t *testing.T) {
	reg := NewRegistry()
	reg.Register(echoTool{name: "write_file", requirement: ipc.TrustRequireConfirm})

	exec := newTestExecutor(t, reg, stubRateLimiter{allow: true}, &autoApprovePending{approved: false})

	call := ipc.ToolCall{ID: uuid.New(), Name: "write_file", Arguments: json.RawMessage(`{"path":"a"}`)}
	result := exec.Execute(context.Background(), call)

	if !result.IsError {
		t.Fatal("expected rejected confirmation to return an error result")
	}
}

func TestExecuteNoConfirmClientConnected(t *testing.T) {
	reg := NewRegistry()
	reg.Register(echoTool{name: "write_file", requirement: ipc.TrustRequireConfirm})

	exec := newTestExecutor(t, reg, stubRateLimiter{allow: true}, &stubPending{hasClient: false})

	call := ipc.ToolCall{ID: uuid.New(), Name: "write_file", Arguments: json.RawMessage(`{"path":"a"}`)}
	result := exec.Execute(context.Background(), call)

	if !result.IsError {
		t.Fatal("expected missing confirm client to return an error result")
	}
}

func TestExecuteInvalidArgumentsRejected(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`)
	reg := NewRegistry()
	reg.Register(&schemaTool{name: "read_file", schema: schema})

	exec := newTestExecutor(t, reg, stubRateLimiter{allow: true}, &stubPending{})

	call := ipc.ToolCall{ID: uuid.New(), Name: "read_file", Arguments: json.RawMessage(`{}`)}
	result := exec.Execute(context.Background(), call)

	if !result.IsError {
		t.Fatal("expected schema validation failure to return an error result")
	}
}

type schemaTool struct {
	name   string
	schema json.RawMessage
}

func (t *schemaTool) Name() string                           { return t.name }
func (t *schemaTool) Description() string                    { return "test tool" }
func (t *schemaTool) Schema() json.RawMessage                { return t.schema }
func (t *schemaTool) TrustRequirement() ipc.TrustRequirement { return ipc.TrustRequireNone }
func (t *schemaTool) Execute(ctx context.Context, args json.RawMessage) (Result, error) {
	return Result{Output: "ok"}, nil
}
