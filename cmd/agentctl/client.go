package main

import (
	"github.com/google/uuid"

	"github.com/sodove/aios-agent/internal/ipc"
)

// ipcClient owns two connections to the agent daemon, one registered as
// "chat" (so it can send chat_request / receive chat_response) and one as
// "confirm" (so it receives confirm_request and answers with
// confirm_response). The daemon's ConnectedClient registry holds one entry
// per connection, each with a single client_type, so a single process wanting both
// roles genuinely needs two sockets, not one multiplexed connection.
type ipcClient struct {
	conversationID uuid.UUID

	chatConn    *ipc.Conn
	confirmConn *ipc.Conn

	chatResponses chan ipc.Envelope
	confirmReqs   chan ipc.Envelope
	errs          chan error
}

func newIPCClient(socketPath string) (*ipcClient, error) {
	chatConn, err := ipc.Dial(socketPath)
	if err != nil {
		return nil, err
	}
	if err := registerAs(chatConn, ipc.ClientChat); err != nil {
		chatConn.Close()
		return nil, err
	}

	confirmConn, err := ipc.Dial(socketPath)
	if err != nil {
		chatConn.Close()
		return nil, err
	}
	if err := registerAs(confirmConn, ipc.ClientConfirm); err != nil {
		chatConn.Close()
		confirmConn.Close()
		return nil, err
	}

	c := &ipcClient{
		conversationID: uuid.New(),
		chatConn:       chatConn,
		confirmConn:    confirmConn,
		chatResponses:  make(chan ipc.Envelope, 8),
		confirmReqs:    make(chan ipc.Envelope, 8),
		errs:           make(chan error, 2),
	}

	go c.readLoop(chatConn, c.chatResponses)
	go c.readLoop(confirmConn, c.confirmReqs)

	return c, nil
}

func registerAs(conn *ipc.Conn, clientType ipc.ClientType) error {
	reg := ipc.NewEnvelope(ipc.TypeRegister)
	reg.ClientType = clientType
	if err := conn.Send(reg); err != nil {
		return err
	}
	ack, err := conn.Recv()
	if err != nil {
		return err
	}
	if ack.Type != ipc.TypeRegisterAck {
		return &unexpectedEnvelopeError{want: ipc.TypeRegisterAck, got: ack.Type}
	}
	return nil
}

type unexpectedEnvelopeError struct {
	want, got ipc.PayloadType
}

func (e *unexpectedEnvelopeError) Error() string {
	return "expected " + string(e.want) + " envelope, got " + string(e.got)
}

// readLoop forwards every envelope received on conn to out until the
// connection errors or closes, at which point it reports the error and
// returns.
func (c *ipcClient) readLoop(conn *ipc.Conn, out chan<- ipc.Envelope) {
	for {
		env, err := conn.Recv()
		if err != nil {
			c.errs <- err
			return
		}
		out <- env
	}
}

// SendChat submits a chat_request on the chat connection.
func (c *ipcClient) SendChat(message string) error {
	req := ipc.NewEnvelope(ipc.TypeChatRequest)
	req.Message = message
	req.ConversationID = c.conversationID
	return c.chatConn.Send(req)
}

// RespondConfirm answers a pending confirm_request on the confirm
// connection.
func (c *ipcClient) RespondConfirm(actionID uuid.UUID, approved bool) error {
	resp := ipc.NewEnvelope(ipc.TypeConfirmResp)
	resp.ActionID = actionID
	resp.Approved = approved
	return c.confirmConn.Send(resp)
}

// Close tears down both connections.
func (c *ipcClient) Close() {
	c.chatConn.Close()
	c.confirmConn.Close()
}
