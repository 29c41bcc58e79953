// Package openai adapts github.com/meguminnnnnnnnn/go-openai to the
// llm.Provider interface.
package openai

import (
	"context"
	"encoding/json"
	"time"

	sdk "github.com/meguminnnnnnnnn/go-openai"

	"github.com/google/uuid"
	"github.com/sodove/aios-agent/internal/ipc"
	"github.com/sodove/aios-agent/internal/llm"
	"github.com/sodove/aios-agent/pkg/apperror"
)

func init() {
	llm.RegisterFactory("open_ai", newFromConfig)
}

// Config is the provider-specific config block for an open_ai entry in
// provider config.
type Config struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url"`
}

func newFromConfig(raw json.RawMessage) (llm.Provider, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, apperror.WrapConfig("parsing openai provider config", err)
	}
	return New(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
}

// Provider talks to OpenAI's chat completions API (or any compatible
// endpoint reached via BaseURL).
type Provider struct {
	client *sdk.Client
	model  string
}

// New builds a Provider bound to model. baseURL overrides the default
// OpenAI endpoint when non-empty, for OpenAI-compatible gateways.
func New(apiKey, model, baseURL string) *Provider {
	cfg := sdk.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Provider{client: sdk.NewClientWithConfig(cfg), model: model}
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return "openai" }

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	msgs := toOpenAIMessages(req.Messages)
	if req.SystemPrompt != "" {
		msgs = append([]sdk.ChatCompletionMessage{{
			Role:    sdk.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		}}, msgs...)
	}

	tools, err := toOpenAITools(req.Tools)
	if err != nil {
		return llm.Response{}, err
	}

	sreq := sdk.ChatCompletionRequest{
		Model:    p.model,
		Messages: msgs,
	}
	if req.MaxTokens > 0 {
		sreq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		sreq.Temperature = &temp
	}
	if len(tools) > 0 {
		sreq.Tools = tools
		sreq.ToolChoice = "auto"
	}

	resp, err := p.client.CreateChatCompletion(ctx, sreq)
	if err != nil {
		return llm.Response{}, apperror.WrapProvider("openai completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return llm.Response{}, apperror.NewProvider("openai returned no choices")
	}

	return toResponse(resp.Choices[0].Message), nil
}

func toOpenAIMessages(msgs []ipc.ChatMessage) []sdk.ChatCompletionMessage {
	out := make([]sdk.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case ipc.RoleUser:
			out = append(out, sdk.ChatCompletionMessage{Role: sdk.ChatMessageRoleUser, Content: m.Content.Text})
		case ipc.RoleAssistant:
			msg := sdk.ChatCompletionMessage{Role: sdk.ChatMessageRoleAssistant, Content: m.Content.Text}
			for _, tc := range m.Content.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, sdk.ToolCall{
					ID:   tc.ID.String(),
					Type: "function",
					Function: sdk.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			out = append(out, msg)
		case ipc.RoleTool:
			for _, r := range m.Content.Results {
				out = append(out, sdk.ChatCompletionMessage{
					Role:       sdk.ChatMessageRoleTool,
					ToolCallID: r.CallID.String(),
					Content:    r.Output,
				})
			}
		}
	}
	return out
}

func toOpenAITools(defs []ipc.ToolDefinition) ([]sdk.Tool, error) {
	out := make([]sdk.Tool, 0, len(defs))
	for _, d := range defs {
		var schema map[string]any
		if len(d.Parameters) > 0 {
			if err := json.Unmarshal(d.Parameters, &schema); err != nil {
				return nil, apperror.WrapJSON(err)
			}
		}
		out = append(out, sdk.Tool{
			Type: sdk.ToolTypeFunction,
			Function: &sdk.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  schema,
			},
		})
	}
	return out, nil
}

func toResponse(msg sdk.ChatCompletionMessage) llm.Response {
	var calls []ipc.ToolCall
	for _, tc := range msg.ToolCalls {
		id, err := uuid.Parse(tc.ID)
		if err != nil {
			id = uuid.New()
		}
		calls = append(calls, ipc.ToolCall{
			ID:         id,
			Name:       tc.Function.Name,
			Arguments:  json.RawMessage(tc.Function.Arguments),
			TrustLevel: ipc.TrustSystem,
		})
	}

	content := ipc.TextContent(msg.Content)
	if len(calls) > 0 {
		content = ipc.ToolUseContent(calls)
		content.Text = msg.Content
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
