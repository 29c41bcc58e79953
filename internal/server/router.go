package server

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sodove/aios-agent/internal/agent"
	"github.com/sodove/aios-agent/internal/ipc"
	"github.com/sodove/aios-agent/internal/kernel"
)

// Router dispatches an accepted client's envelopes to the right kernel
// operation and returns the envelope (if any) to send back in reply.
type Router struct {
	kernel *kernel.Kernel
	loop   *agent.Loop
	logger *zap.Logger
}

// NewRouter builds a Router driving loop against k.
func NewRouter(k *kernel.Kernel, loop *agent.Loop, logger *zap.Logger) *Router {
	return &Router{kernel: k, loop: loop, logger: logger}
}

// Route handles one envelope from client and returns the reply to send, if
// any. The second return value is false when no reply is warranted (for
// example, a ConfirmResponse is consumed by the pending-confirm table, not
// answered).
func (r *Router) Route(client *kernel.ConnectedClient, env ipc.Envelope) (ipc.Envelope, bool) {
	switch env.Type {
	case ipc.TypeChatRequest:
		return r.handleChatRequest(env)
	case ipc.TypeConfirmResp:
		r.handleConfirmResponse(env)
		return ipc.Envelope{}, false
	case ipc.TypePing:
		return ipc.NewEnvelope(ipc.TypePong), true
	default:
		r.logger.Debug("unhandled envelope type", zap.String("type", string(env.Type)), zap.String("client_id", client.ID.String()))
		return ipc.Envelope{}, false
	}
}

func (r *Router) handleChatRequest(env ipc.Envelope) (ipc.Envelope, bool) {
	convID := env.ConversationID
	if convID == uuid.Nil {
		convID = uuid.New()
	}

	reply, err := r.loop.Run(context.Background(), convID, env.Message)
	if err != nil {
		r.logger.Error("agentic loop failed", zap.Error(err), zap.String("conversation_id", convID.String()))
		errEnv := ipc.NewEnvelope(ipc.TypeError)
		errEnv.Message = err.Error()
		return errEnv, true
	}

	resp := ipc.NewEnvelope(ipc.TypeChatResponse)
	resp.ConversationID = convID
	resp.ChatMessage = &reply
	return resp, true
}

func (r *Router) handleConfirmResponse(env ipc.Envelope) {
	if !r.kernel.ResolvePendingConfirm(env.ActionID, env.Approved) {
		r.logger.Debug("confirm response for unknown or expired action",
			zap.String("action_id", env.ActionID.String()))
	}
}
