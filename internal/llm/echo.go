package llm

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sodove/aios-agent/internal/ipc"
)

// EchoProvider is the zero-configuration fallback used when no API key is
// configured: it never calls a real model and never requests tool calls,
// so the daemon stays usable (if not useful) with nothing provisioned.
type EchoProvider struct{}

// NewEcho builds an EchoProvider.
func NewEcho() *EchoProvider { return &EchoProvider{} }

// Name implements Provider.
func (e *EchoProvider) Name() string { return "echo" }

// Complete implements Provider by echoing the most recent user message
// back as assistant text.
func (e *EchoProvider) Complete(ctx context.Context, req Request) (Response, error) {
	var lastUserText string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == ipc.RoleUser {
			lastUserText = req.Messages[i].Content.Text
			break
		}
	}

	return Response{
		Message: ipc.ChatMessage{
			ID:         uuid.New(),
			Role:       ipc.RoleAssistant,
			Content:    ipc.TextContent("Echo: " + lastUserText),
			TrustLevel: ipc.TrustSystem,
			Timestamp:  time.Now(),
		},
		HasToolCalls: false,
	}, nil
}
