// Package ollama implements llm.Provider against a local Ollama server's
// HTTP API. No example repo in the retrieved pack vendors an Ollama SDK, so
// this binding is a plain net/http client rather than a wrapped library —
// see DESIGN.md for that justification.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sodove/aios-agent/internal/ipc"
	"github.com/sodove/aios-agent/internal/llm"
	"github.com/sodove/aios-agent/pkg/apperror"
)

func init() {
	llm.RegisterFactory("ollama", newFromConfig)
}

// Config is the provider-specific config block for an ollama entry in
// provider config.
type Config struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

func newFromConfig(raw json.RawMessage) (llm.Provider, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, apperror.WrapConfig("parsing ollama provider config", err)
	}
	return New(cfg.BaseURL, cfg.Model), nil
}

// Provider talks to a local Ollama server's /api/chat endpoint.
type Provider struct {
	baseURL string
	model   string
	http    *http.Client
}

// New builds a Provider against baseURL (defaulting to the standard local
// Ollama port when empty).
func New(baseURL, model string) *Provider {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:11434"
	}
	return &Provider{baseURL: baseURL, model: model, http: &http.Client{Timeout: 2 * time.Minute}}
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return "ollama" }

type chatMessage struct {
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	ToolCalls []toolCallWire  `json:"tool_calls,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
}

type toolCallWire struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type toolWire struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []toolWire    `json:"tools,omitempty"`
	Stream   bool          `json:"stream"`
	Options  struct {
		Temperature float64 `json:"temperature,omitempty"`
	} `json:"options,omitempty"`
}

type chatResponse struct {
	Message struct {
		Role      string         `json:"role"`
		Content   string         `json:"content"`
		ToolCalls []toolCallWire `json:"tool_calls"`
	} `json:"message"`
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, toOllamaMessage(m))
	}

	tools := make([]toolWire, 0, len(req.Tools))
	for _, d := range req.Tools {
		var tw toolWire
		tw.Type = "function"
		tw.Function.Name = d.Name
		tw.Function.Description = d.Description
		tw.Function.Parameters = d.Parameters
		tools = append(tools, tw)
	}

	wireReq := chatRequest{Model: p.model, Messages: messages, Tools: tools, Stream: false}
	wireReq.Options.Temperature = req.Temperature

	body, err := json.Marshal(wireReq)
	if err != nil {
		return llm.Response{}, apperror.WrapJSON(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return llm.Response{}, apperror.WrapProvider("building ollama request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return llm.Response{}, apperror.WrapProvider("calling ollama", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Response{}, apperror.WrapIO(err)
	}
	if resp.StatusCode != http.StatusOK {
		return llm.Response{}, apperror.NewProvider("ollama returned status " + resp.Status + ": " + string(raw))
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return llm.Response{}, apperror.WrapJSON(err)
	}

	return toResponse(cr), nil
}

func toOllamaMessage(m ipc.ChatMessage) chatMessage {
	switch m.Role {
	case ipc.RoleTool:
		if len(m.Content.Results) == 0 {
			return chatMessage{Role: "tool"}
		}
		r := m.Content.Results[0]
		return chatMessage{Role: "tool", Content: r.Output}
	case ipc.RoleAssistant:
		cm := chatMessage{Role: "assistant", Content: m.Content.Text}
		for _, tc := range m.Content.ToolCalls {
			var wire toolCallWire
			wire.Function.Name = tc.Name
			wire.Function.Arguments = tc.Arguments
			cm.ToolCalls = append(cm.ToolCalls, wire)
		}
		return cm
	default:
		return chatMessage{Role: "user", Content: m.Content.Text}
	}
}

func toResponse(cr chatResponse) llm.Response {
	var calls []ipc.ToolCall
	for _, tc := range cr.Message.ToolCalls {
		calls = append(calls, ipc.ToolCall{
			ID:         uuid.New(),
			Name:       tc.Function.Name,
			Arguments:  tc.Function.Arguments,
			TrustLevel: ipc.TrustSystem,
		})
	}

	content := ipc.TextContent(cr.Message.Content)
	if len(calls) > 0 {
		content = ipc.ToolUseContent(calls)
		content.Text = cr.Message.Content
	}

	return llm.Response{
		Message: ipc.ChatMessage{
			ID:         uuid.New(),
			Role:       ipc.RoleAssistant,
			Content:    content,
			TrustLevel: ipc.TrustSystem,
			Timestamp:  time.Now(),
		},
		HasToolCalls: len(calls) > 0,
	}
}
