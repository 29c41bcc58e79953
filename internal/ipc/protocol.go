// Package ipc implements the agent kernel's wire protocol: a length-prefixed
// JSON envelope codec plus a Unix-domain-socket transport with independent
// reader/writer halves.
package ipc

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ClientType identifies the kind of UI a connecting client presents as.
type ClientType string

const (
	ClientChat    ClientType = "chat"
	ClientDock    ClientType = "dock"
	ClientConfirm ClientType = "confirm"
)

// TrustLevel tags the provenance of data flowing through the kernel.
type TrustLevel string

const (
	TrustUser       TrustLevel = "user"
	TrustSystem     TrustLevel = "system"
	TrustWebContent TrustLevel = "web_content"
	TrustMemory     TrustLevel = "memory"
)

// TrustRequirement is the tool-side policy governing confirmation and rate
// limiting.
type TrustRequirement string

const (
	TrustRequireNone          TrustRequirement = "none"
	TrustRequireConfirm       TrustRequirement = "confirm"
	TrustRequireDoubleConfirm TrustRequirement = "double_confirm"
)

// Role identifies the author of a ChatMessage.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ToolCall is a single tool invocation requested by the LLM.
type ToolCall struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Arguments  json.RawMessage `json:"arguments"`
	TrustLevel TrustLevel      `json:"trust_level"`
}

// ToolResult is the outcome of executing a ToolCall.
type ToolResult struct {
	CallID  uuid.UUID `json:"call_id"`
	Output  string    `json:"output"`
	IsError bool      `json:"is_error"`
}

// ToolDefinition is what gets forwarded to the LLM as part of its tool
// catalogue.
type ToolDefinition struct {
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Parameters       json.RawMessage `json:"parameters"`
	TrustRequirement TrustRequirement `json:"trust_requirement"`
}

// MessageContent is a tagged union: exactly one of Text, ToolCalls, or
// Results is meaningful, discriminated by Type.
type MessageContent struct {
	Type      string       `json:"type"` // "text" | "tool_use" | "tool_result"
	Text      string       `json:"text,omitempty"`
	ToolCalls []ToolCall   `json:"tool_calls,omitempty"`
	Results   []ToolResult `json:"results,omitempty"`
}

// TextContent builds a MessageContent of type "text".
func TextContent(text string) MessageContent {
	return MessageContent{Type: "text", Text: text}
}

// ToolUseContent builds a MessageContent of type "tool_use".
func ToolUseContent(calls []ToolCall) MessageContent {
	return MessageContent{Type: "tool_use", ToolCalls: calls}
}

// ToolResultContent builds a MessageContent of type "tool_result".
func ToolResultContent(results []ToolResult) MessageContent {
	return MessageContent{Type: "tool_result", Results: results}
}

// ChatMessage is one entry in a Conversation's append-only history.
type ChatMessage struct {
	ID         uuid.UUID      `json:"id"`
	Role       Role           `json:"role"`
	Content    MessageContent `json:"content"`
	TrustLevel TrustLevel     `json:"trust_level"`
	Timestamp  time.Time      `json:"timestamp"`
}

// PayloadType discriminates Envelope.Payload via the wire's "type" field.
type PayloadType string

const (
	TypeRegister      PayloadType = "register"
	TypeRegisterAck   PayloadType = "register_ack"
	TypeChatRequest   PayloadType = "chat_request"
	TypeChatResponse  PayloadType = "chat_response"
	TypeStreamChunk   PayloadType = "stream_chunk"
	TypeConfirmReq    PayloadType = "confirm_request"
	TypeConfirmResp   PayloadType = "confirm_response"
	TypeSystemInfo    PayloadType = "system_info"
	TypeError         PayloadType = "error"
	TypePing          PayloadType = "ping"
	TypePong          PayloadType = "pong"
)

// Envelope is the one message shape that crosses the wire: an id, a type
// discriminator, and whatever fields that type carries. Unused string,
// bool, pointer and raw-JSON fields are omitted on encode via `omitempty`;
// the uuid.UUID fields are fixed-size arrays, which `omitempty` never
// drops, so an unset one encodes as the all-zero UUID.
//
// The wire's "message" key is polymorphic, matching the original protocol:
// a plain string for chat_request/error, a full ChatMessage object for
// chat_response. Message and ChatMessage both marshal/unmarshal onto that
// one "message" key via Envelope's custom (Un)MarshalJSON below, so at most
// one of them is populated after a successful decode (neither, when the
// key is absent).
type Envelope struct {
	ID              uuid.UUID       `json:"id"`
	Type            PayloadType     `json:"type"`
	ClientType      ClientType      `json:"client_type,omitempty"`
	Success         *bool           `json:"success,omitempty"`
	Message         string          `json:"-"`
	ConversationID  uuid.UUID       `json:"conversation_id,omitempty"`
	ChatMessage     *ChatMessage    `json:"-"`
	RequestID       uuid.UUID       `json:"request_id,omitempty"`
	Delta           string          `json:"delta,omitempty"`
	Done            bool            `json:"done,omitempty"`
	ActionID        uuid.UUID       `json:"action_id,omitempty"`
	ActionType      string          `json:"action_type,omitempty"`
	Description     string          `json:"description,omitempty"`
	Command         string          `json:"command,omitempty"`
	TrustLevel      TrustLevel      `json:"trust_level,omitempty"`
	Approved        bool            `json:"approved,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	Info            json.RawMessage `json:"info,omitempty"`
	Code            string          `json:"code,omitempty"`
}

// NewEnvelope allocates a fresh envelope id for an outbound message.
func NewEnvelope(t PayloadType) Envelope {
	return Envelope{ID: uuid.New(), Type: t}
}

// envelopeAlias lets MarshalJSON/UnmarshalJSON embed Envelope's other
// fields without recursing back into these same methods.
type envelopeAlias Envelope

// MarshalJSON encodes the envelope, placing ChatMessage (if set) or Message
// (otherwise) onto the wire's single "message" key.
func (e Envelope) MarshalJSON() ([]byte, error) {
	var msg json.RawMessage
	switch {
	case e.ChatMessage != nil:
		raw, err := json.Marshal(e.ChatMessage)
		if err != nil {
			return nil, err
		}
		msg = raw
	case e.Message != "":
		raw, err := json.Marshal(e.Message)
		if err != nil {
			return nil, err
		}
		msg = raw
	}

	return json.Marshal(struct {
		envelopeAlias
		Message json.RawMessage `json:"message,omitempty"`
	}{envelopeAlias(e), msg})
}

// UnmarshalJSON decodes the wire's "message" key into ChatMessage when it's
// a JSON object, or into Message when it's a JSON string.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	aux := struct {
		*envelopeAlias
		Message json.RawMessage `json:"message,omitempty"`
	}{envelopeAlias: (*envelopeAlias)(e)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Message) == 0 {
		return nil
	}

	if aux.Message[0] == '"' {
		return json.Unmarshal(aux.Message, &e.Message)
	}

	var cm ChatMessage
	if err := json.Unmarshal(aux.Message, &cm); err != nil {
		return err
	}
	e.ChatMessage = &cm
	return nil
}
