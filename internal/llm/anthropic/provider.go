// Package anthropic adapts github.com/liushuangls/go-anthropic/v2 to the
// llm.Provider interface.
package anthropic

import (
	"context"
	"encoding/json"
	"time"

	sdk "github.com/liushuangls/go-anthropic/v2"

	"github.com/google/uuid"
	"github.com/sodove/aios-agent/internal/ipc"
	"github.com/sodove/aios-agent/internal/llm"
	"github.com/sodove/aios-agent/pkg/apperror"
)

func init() {
	llm.RegisterFactory("claude", newFromConfig)
}

// Config is the provider-specific config block for a claude entry in
// provider config.
type Config struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

func newFromConfig(raw json.RawMessage) (llm.Provider, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, apperror.WrapConfig("parsing claude provider config", err)
	}
	return New(cfg.APIKey, cfg.Model), nil
}

// Provider talks to Anthropic's Messages API.
type Provider struct {
	client *sdk.Client
	model  string
}

// New builds a Provider bound to model, authenticating with apiKey.
func New(apiKey, model string) *Provider {
	return &Provider{client: sdk.NewClient(apiKey), model: model}
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return "claude" }

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	msgs, err := toAnthropicMessages(req.Messages)
	if err != nil {
		return llm.Response{}, err
	}

	tools, err := toAnthropicTools(req.Tools)
	if err != nil {
		return llm.Response{}, err
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = llm.DefaultMaxTokens
	}
	temp := float32(req.Temperature)

	sreq := sdk.MessagesRequest{
		Model:       sdk.Model(p.model),
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: &temp,
	}
	if req.SystemPrompt != "" {
		sreq.System = req.SystemPrompt
	}
	if len(tools) > 0 {
		sreq.Tools = tools
	}

	resp, err := p.client.CreateMessages(ctx, sreq)
	if err != nil {
		return llm.Response{}, apperror.WrapProvider("anthropic completion failed", err)
	}

	return toResponse(resp), nil
}

func toAnthropicMessages(msgs []ipc.ChatMessage) ([]sdk.Message, error) {
	out := make([]sdk.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case ipc.RoleUser:
			out = append(out, sdk.Message{
				Role:    sdk.RoleUser,
				Content: []sdk.MessageContent{sdk.NewTextMessageContent(m.Content.Text)},
			})
		case ipc.RoleAssistant:
			var content []sdk.MessageContent
			if m.Content.Text != "" {
				content = append(content, sdk.NewTextMessageContent(m.Content.Text))
			}
			for _, tc := range m.Content.ToolCalls {
				content = append(content, sdk.NewToolUseMessageContent(tc.ID.String(), tc.Name, tc.Arguments))
			}
			out = append(out, sdk.Message{Role: sdk.RoleAssistant, Content: content})
		case ipc.RoleTool:
			var content []sdk.MessageContent
			for _, r := range m.Content.Results {
				content = append(content, sdk.NewToolResultMessageContent(r.CallID.String(), r.Output, r.IsError))
			}
			out = append(out, sdk.Message{Role: sdk.RoleUser, Content: content})
		}
	}
	return out, nil
}

func toAnthropicTools(defs []ipc.ToolDefinition) ([]sdk.ToolDefinition, error) {
	out := make([]sdk.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		var schema map[string]any
		if len(d.Parameters) > 0 {
			if err := json.Unmarshal(d.Parameters, &schema); err != nil {
				return nil, apperror.WrapJSON(err)
			}
		}
		out = append(out, sdk.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: schema,
		})
	}
	return out, nil
}

func toResponse(resp sdk.MessagesResponse) llm.Response {
	var text string
	var calls []ipc.ToolCall

	for _, block := range resp.Content {
		switch block.Type {
		case sdk.MessagesContentTypeText:
			if block.Text != nil {
				text += *block.Text
			}
		case "tool_use":
			if block.MessageContentToolUse != nil {
				id, err := uuid.Parse(block.ID)
				if err != nil {
					id = uuid.New()
				}
				calls = append(calls, ipc.ToolCall{
					ID:         id,
					Name:       block.Name,
					Arguments:  block.Input,
					TrustLevel: ipc.TrustSystem,
				})
			}
		}
	}

	var content ipc.MessageContent
	if len(calls) > 0 {
		content = ipc.ToolUseContent(calls)
		if text != "" {
			content.Type = "tool_use"
			content.Text = text
		}
	} else {
		content = ipc.TextContent(text)
	}

	msg := ipc.ChatMessage{
		ID:         uuid.New(),
		Role:       ipc.RoleAssistant,
		Content:    content,
		TrustLevel: ipc.TrustSystem,
		Timestamp:  time.Now(),
	}

	return llm.Response{Message: msg, HasToolCalls: len(calls) > 0}
}
