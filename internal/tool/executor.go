package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sodove/aios-agent/internal/audit"
	"github.com/sodove/aios-agent/internal/ipc"
)

// confirmTimeout bounds how long the executor waits for a ConfirmResponse
// before treating the request as abandoned.
const confirmTimeout = 60 * time.Second

// ConfirmClient is the minimal surface the executor needs to deliver a
// ConfirmRequest: anything that can send one envelope.
type ConfirmClient interface {
	Send(ipc.Envelope) error
}

// PendingConfirms is the subset of kernel.Kernel the executor needs to run
// the confirmation rendezvous, kept narrow so this package doesn't import
// kernel (kernel imports tool instead, to implement this interface).
type PendingConfirms interface {
	RegisterPendingConfirm(actionID uuid.UUID) chan bool
	ForgetPendingConfirm(actionID uuid.UUID)
	FindConfirmClient() ConfirmClient
}

// confirmOutcome classifies how a confirmation rendezvous concluded.
type confirmOutcome int

const (
	outcomeApproved confirmOutcome = iota
	outcomeRejected
	outcomeTimeout
	outcomeNoClient
	outcomeSendFailed
)

// Executor runs the full tool-call pipeline: lookup, trust gating, rate
// limiting, confirmation, execution, and audit logging.
type Executor struct {
	registry    *Registry
	rateLimiter interface {
		CheckAndRecord(now time.Time) bool
	}
	pending PendingConfirms
	sink    *audit.Sink
	logger  *zap.Logger
}

// NewExecutor builds an Executor over registry, wired to rateLimiter for
// destructive-action throttling, pending for the confirmation table, and
// sink for the audit trail.
func NewExecutor(registry *Registry, rateLimiter interface {
	CheckAndRecord(now time.Time) bool
}, pending PendingConfirms, sink *audit.Sink, logger *zap.Logger) *Executor {
	return &Executor{registry: registry, rateLimiter: rateLimiter, pending: pending, sink: sink, logger: logger}
}

// Execute runs call through the full pipeline and returns a ToolResult
// correlated to call.ID, never an error from the pipeline itself — failures
// at every stage (unknown tool, invalid args, denied confirmation, rate
// limit, execution error) are reported as an error ToolResult so the
// agentic loop can feed them back to the LLM as a tool_result message.
func (e *Executor) Execute(ctx context.Context, call ipc.ToolCall) ipc.ToolResult {
	t, ok := e.registry.Get(call.Name)
	if !ok {
		return e.errResult(call.ID, "unknown tool: "+call.Name)
	}

	requirement := t.TrustRequirement()

	if requirement == ipc.TrustRequireDoubleConfirm {
		if !e.rateLimiter.CheckAndRecord(time.Now()) {
			e.sink.LogRateLimited(call.Name, call.Arguments, call.TrustLevel)
			return e.errResult(call.ID, "rate limit exceeded for "+call.Name)
		}
	}

	if requirement != ipc.TrustRequireNone {
		outcome := e.requestConfirmation(call, t)
		switch outcome {
		case outcomeApproved:
			// fall through to execution
		case outcomeRejected:
			e.sink.LogRejected(call.Name, call.Arguments, call.TrustLevel, "user declined")
			return e.errResult(call.ID, "action rejected by user")
		case outcomeTimeout:
			e.sink.LogTimeout(call.Name, call.Arguments, call.TrustLevel)
			return e.errResult(call.ID, "confirmation timed out")
		case outcomeNoClient:
			e.sink.LogRejected(call.Name, call.Arguments, call.TrustLevel, "no confirmation client connected")
			return e.errResult(call.ID, "no confirmation client connected")
		case outcomeSendFailed:
			e.sink.LogError(call.Name, call.Arguments, call.TrustLevel, "failed to deliver confirmation request")
			return e.errResult(call.ID, "failed to deliver confirmation request")
		}
	}

	if err := ValidateArgs(t, call.Arguments); err != nil {
		e.sink.LogError(call.Name, call.Arguments, call.TrustLevel, err.Error())
		return e.errResult(call.ID, err.Error())
	}

	result, err := t.Execute(ctx, call.Arguments)
	if err != nil {
		e.sink.LogError(call.Name, call.Arguments, call.TrustLevel, err.Error())
		return e.errResult(call.ID, err.Error())
	}
	if result.IsError {
		e.sink.LogError(call.Name, call.Arguments, call.TrustLevel, result.Output)
		return ipc.ToolResult{CallID: call.ID, Output: result.Output, IsError: true}
	}

	e.sink.LogSuccess(call.Name, call.Arguments, call.TrustLevel, requirement != ipc.TrustRequireNone, result.Output)
	return ipc.ToolResult{CallID: call.ID, Output: result.Output, IsError: false}
}

func (e *Executor) errResult(callID uuid.UUID, msg string) ipc.ToolResult {
	return ipc.ToolResult{CallID: callID, Output: msg, IsError: true}
}

// prettyArgs indent-formats a tool call's arguments for display in a
// ConfirmRequest's command field, falling back to the raw bytes if they
// don't parse as JSON.
func prettyArgs(args json.RawMessage) string {
	var indented bytes.Buffer
	if err := json.Indent(&indented, args, "", "  "); err != nil {
		return string(args)
	}
	return indented.String()
}

// requestConfirmation implements the confirm rendezvous: the pending
// channel is registered BEFORE the ConfirmRequest is sent, so an
// approval racing the send can never arrive with nobody listening.
func (e *Executor) requestConfirmation(call ipc.ToolCall, t Tool) confirmOutcome {
	actionID := uuid.New()
	ch := e.pending.RegisterPendingConfirm(actionID)

	client := e.pending.FindConfirmClient()
	if client == nil {
		e.pending.ForgetPendingConfirm(actionID)
		return outcomeNoClient
	}

	req := ipc.NewEnvelope(ipc.TypeConfirmReq)
	req.ActionID = actionID
	req.ActionType = call.Name
	req.Description = t.Description()
	req.Command = prettyArgs(call.Arguments)
	req.TrustLevel = call.TrustLevel

	if err := client.Send(req); err != nil {
		e.pending.ForgetPendingConfirm(actionID)
		e.logger.Warn("failed to send confirm request", zap.Error(err), zap.String("action_id", actionID.String()))
		return outcomeSendFailed
	}

	select {
	case approved, ok := <-ch:
		if !ok {
			return outcomeRejected
		}
		if approved {
			return outcomeApproved
		}
		return outcomeRejected
	case <-time.After(confirmTimeout):
		e.pending.ForgetPendingConfirm(actionID)
		return outcomeTimeout
	}
}
