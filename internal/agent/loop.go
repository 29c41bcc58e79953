// Package agent drives the iterative LLM-call / tool-call cycle for a
// single conversation turn.
package agent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sodove/aios-agent/internal/ipc"
	"github.com/sodove/aios-agent/internal/llm"
	"github.com/sodove/aios-agent/internal/tool"
)

// maxToolIterations bounds how many LLM-call/tool-call round trips a
// single turn can take before the loop forces a final text-only answer.
const maxToolIterations = 10

// History is the narrow slice of kernel.Kernel the loop needs: reading and
// appending to one conversation's message log.
type History interface {
	History(conversationID uuid.UUID) []ipc.ChatMessage
	AppendMessage(conversationID uuid.UUID, msg ipc.ChatMessage)
}

// Loop runs the agentic loop for one conversation turn: it calls the LLM,
// executes any tool calls it requests, feeds the results back, and repeats
// until the model answers with plain text or the iteration cap is hit.
type Loop struct {
	history  History
	provider llm.Provider
	executor *tool.Executor
	registry *tool.Registry
	logger   *zap.Logger
}

// New builds a Loop. provider may be nil, in which case Run falls back to
// llm.NewEcho().
func New(history History, provider llm.Provider, executor *tool.Executor, registry *tool.Registry, logger *zap.Logger) *Loop {
	if provider == nil {
		provider = llm.NewEcho()
	}
	return &Loop{history: history, provider: provider, executor: executor, registry: registry, logger: logger}
}

// Run appends userMessage to the conversation, then drives the agentic
// loop until it produces a final assistant text message, which it also
// appends and returns.
func (l *Loop) Run(ctx context.Context, conversationID uuid.UUID, userMessage string) (ipc.ChatMessage, error) {
	userMsg := ipc.ChatMessage{
		ID:         uuid.New(),
		Role:       ipc.RoleUser,
		Content:    ipc.TextContent(userMessage),
		TrustLevel: ipc.TrustUser,
		Timestamp:  time.Now(),
	}
	l.history.AppendMessage(conversationID, userMsg)

	for iteration := 0; iteration < maxToolIterations; iteration++ {
		resp, err := l.callLLM(ctx, conversationID, l.registry.Definitions())
		if err != nil {
			return l.errorResponse(conversationID, err), nil
		}

		l.history.AppendMessage(conversationID, resp.Message)

		if !resp.HasToolCalls {
			return resp.Message, nil
		}

		results := make([]ipc.ToolResult, 0, len(resp.Message.Content.ToolCalls))
		for _, call := range resp.Message.Content.ToolCalls {
			results = append(results, l.executor.Execute(ctx, call))
		}

		l.history.AppendMessage(conversationID, ipc.ChatMessage{
			ID:         uuid.New(),
			Role:       ipc.RoleTool,
			Content:    ipc.ToolResultContent(results),
			TrustLevel: ipc.TrustSystem,
			Timestamp:  time.Now(),
		})
	}

	l.logger.Warn("agentic loop hit iteration cap, forcing a final text response",
		zap.String("conversation_id", conversationID.String()),
		zap.Int("max_iterations", maxToolIterations),
	)
	return l.forceTextResponse(ctx, conversationID)
}

// callLLM snapshots the conversation history and issues one completion
// request against tools.
func (l *Loop) callLLM(ctx context.Context, conversationID uuid.UUID, tools []ipc.ToolDefinition) (llm.Response, error) {
	req := llm.Request{
		Messages:     l.history.History(conversationID),
		Tools:        tools,
		SystemPrompt: llm.DefaultSystemPrompt,
		MaxTokens:    llm.DefaultMaxTokens,
		Temperature:  llm.DefaultTemperature,
	}
	return l.provider.Complete(ctx, req)
}

// forceTextResponse re-calls the provider with an empty tool catalogue so
// it cannot request another tool call, guaranteeing the loop terminates.
func (l *Loop) forceTextResponse(ctx context.Context, conversationID uuid.UUID) (ipc.ChatMessage, error) {
	resp, err := l.callLLM(ctx, conversationID, nil)
	if err != nil {
		return l.errorResponse(conversationID, err), nil
	}
	l.history.AppendMessage(conversationID, resp.Message)
	return resp.Message, nil
}

// errorResponse converts a provider failure into a terminal assistant text
// message instead of propagating a Go error: a ChatRequest always produces
// exactly one ChatResponse, never an IPC-level error envelope, so the user
// sees what went wrong and the connection stays usable for the next turn.
func (l *Loop) errorResponse(conversationID uuid.UUID, err error) ipc.ChatMessage {
	msg := ipc.ChatMessage{
		ID:         uuid.New(),
		Role:       ipc.RoleAssistant,
		Content:    ipc.TextContent("Sorry, I encountered an error: " + err.Error()),
		TrustLevel: ipc.TrustSystem,
		Timestamp:  time.Now(),
	}
	l.history.AppendMessage(conversationID, msg)
	return msg
}
