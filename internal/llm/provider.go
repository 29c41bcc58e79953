// Package llm defines the capability interface every LLM backend
// implements, plus a factory registry so the daemon can construct whichever
// provider its config names without a compiled-in switch statement.
package llm

import (
	"context"
	"encoding/json"

	"github.com/sodove/aios-agent/internal/ipc"
)

// Request is one turn sent to a provider: the full message history, the
// tool catalogue currently available, an optional system prompt override,
// and sampling parameters.
type Request struct {
	Messages     []ipc.ChatMessage
	Tools        []ipc.ToolDefinition
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// Response is a provider's answer to one Request: either plain text, or one
// or more tool calls the agentic loop must execute before calling the
// provider again.
type Response struct {
	Message       ipc.ChatMessage
	HasToolCalls  bool
}

// Provider is the capability surface the agentic loop drives. Concrete
// bindings (OpenAI, Anthropic, Ollama) each implement it against their own
// SDK or HTTP client.
type Provider interface {
	// Complete sends req and returns the provider's reply. Implementations
	// must respect ctx cancellation.
	Complete(ctx context.Context, req Request) (Response, error)
	// Name identifies the provider for logging and the kernel's Stats
	// snapshot.
	Name() string
}

// DefaultMaxTokens and DefaultTemperature mirror the original agent's
// hardcoded request defaults, used whenever a caller doesn't override
// them.
const (
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.7
)

// DefaultSystemPrompt is the fixed instruction set every provider call
// carries unless a caller supplies its own.
const DefaultSystemPrompt = `You are the AIOS agent, a local assistant running as part of the user's
operating system. You have access to tools that can read, write, and
execute on the user's behalf. Tools that can cause damage require the
user's explicit confirmation before they run - always propose the
specific action and let the confirmation flow do its job rather than
narrating that you "would" do something. Keep responses concise and
grounded in what your tools actually returned.`

// Factory constructs a Provider from raw provider-specific config.
type Factory func(cfg json.RawMessage) (Provider, error)

var factories = make(map[string]Factory)

// RegisterFactory makes providerType available to CreateProvider. Intended
// to be called from each binding's package init().
func RegisterFactory(providerType string, f Factory) {
	factories[providerType] = f
}

// CreateProvider looks up providerType in the registry and constructs a
// Provider from cfg.
func CreateProvider(providerType string, cfg json.RawMessage) (Provider, error) {
	f, ok := factories[providerType]
	if !ok {
		return nil, &UnknownProviderError{ProviderType: providerType}
	}
	return f(cfg)
}

// UnknownProviderError is returned when CreateProvider is asked for a
// provider type with no registered factory.
type UnknownProviderError struct {
	ProviderType string
}

func (e *UnknownProviderError) Error() string {
	return "unknown llm provider type: " + e.ProviderType
}
