// Package server accepts client connections on the agent daemon's Unix
// socket and dispatches their envelopes into the kernel.
package server

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sodove/aios-agent/internal/ipc"
	"github.com/sodove/aios-agent/internal/kernel"
	"github.com/sodove/aios-agent/pkg/safego"
)

// Server owns the listening socket and spawns one handler goroutine per
// accepted connection.
type Server struct {
	listener *ipc.Listener
	kernel   *kernel.Kernel
	router   *Router
	logger   *zap.Logger
}

// New builds a Server bound to listener, dispatching through router against
// k.
func New(listener *ipc.Listener, k *kernel.Kernel, router *Router, logger *zap.Logger) *Server {
	return &Server{listener: listener, kernel: k, router: router, logger: logger}
}

// Run accepts connections until the listener is closed, spawning a
// panic-safe handler goroutine per connection.
func (s *Server) Run() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		safego.Go(s.logger, "client-handler", func() {
			s.handleClient(conn)
		})
	}
}

// handleClient implements the per-connection lifecycle: split the
// transport, require the first message to be a Register envelope, register
// the client in the kernel, dispatch every subsequent envelope through the
// router, and clean up the kernel entry on disconnect.
func (s *Server) handleClient(conn *ipc.Conn) {
	reader, writer := conn.Split()
	defer reader.Close()

	first, err := reader.Recv()
	if err != nil {
		s.logger.Debug("connection closed before registering", zap.Error(err))
		return
	}
	if first.Type != ipc.TypeRegister {
		s.logger.Warn("first message was not a register envelope, disconnecting", zap.String("type", string(first.Type)))
		return
	}

	clientID := uuid.New()
	client := &kernel.ConnectedClient{ID: clientID, ClientType: first.ClientType, Writer: writer}
	s.kernel.RegisterClient(client)
	defer s.kernel.RemoveClient(clientID)

	ack := ipc.NewEnvelope(ipc.TypeRegisterAck)
	success := true
	ack.Success = &success
	if err := writer.Send(ack); err != nil {
		s.logger.Warn("failed to send register ack", zap.Error(err))
		return
	}

	s.logger.Info("client registered", zap.String("client_id", clientID.String()), zap.String("client_type", string(first.ClientType)))

	for {
		env, err := reader.Recv()
		if err != nil {
			s.logger.Debug("client disconnected", zap.String("client_id", clientID.String()), zap.Error(err))
			return
		}

		resp, ok := s.router.Route(client, env)
		if ok {
			if err := writer.Send(resp); err != nil {
				s.logger.Warn("failed to send response", zap.Error(err))
				return
			}
		}
	}
}
