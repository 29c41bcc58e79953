package kernel

import (
	"github.com/google/uuid"
	"github.com/sodove/aios-agent/internal/ipc"
)

// ConnectedClient is one registered GUI connection: its declared role and
// the write half of its split transport. The writer is already
// mutex-serialized by ipc.Writer, so any number of goroutines (the client
// handler, a confirmation sender, Kernel.Broadcast) may call Send on it
// concurrently.
type ConnectedClient struct {
	ID         uuid.UUID
	ClientType ipc.ClientType
	Writer     *ipc.Writer
}

// Send is a convenience wrapper delegating to the client's writer.
func (c *ConnectedClient) Send(env ipc.Envelope) error {
	return c.Writer.Send(env)
}
