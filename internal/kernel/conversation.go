package kernel

import (
	"github.com/google/uuid"
	"github.com/sodove/aios-agent/internal/ipc"
)

// Conversation is a single chat history: an ordered, append-only list of
// messages shared between the agentic loop and the clients observing it.
type Conversation struct {
	ID       uuid.UUID
	Messages []ipc.ChatMessage
}

// Append adds msg to the conversation's history.
func (c *Conversation) Append(msg ipc.ChatMessage) {
	c.Messages = append(c.Messages, msg)
}
