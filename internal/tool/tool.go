// Package tool defines the tool catalogue the agentic loop draws on: the
// Tool interface every built-in implements, the registry that looks tools
// up by name, and the execution pipeline that mediates every call through
// trust gating, rate limiting, and confirmation.
package tool

import (
	"context"
	"encoding/json"

	"github.com/sodove/aios-agent/internal/ipc"
)

// Result is what a Tool.Execute call returns to the pipeline.
type Result struct {
	Output  string
	IsError bool
}

// Tool is one callable capability exposed to the LLM.
type Tool interface {
	// Name is the stable identifier the LLM's tool_use refers to.
	Name() string
	// Description is shown to the LLM as part of its tool catalogue.
	Description() string
	// Schema is the JSON Schema (as raw bytes) describing valid arguments.
	Schema() json.RawMessage
	// TrustRequirement governs whether executing this tool needs user
	// confirmation and whether it's subject to the rate limiter.
	TrustRequirement() ipc.TrustRequirement
	// Execute runs the tool with validated arguments.
	Execute(ctx context.Context, args json.RawMessage) (Result, error)
}

// Definition converts a Tool into the wire-level ToolDefinition sent to
// the LLM provider.
func Definition(t Tool) ipc.ToolDefinition {
	return ipc.ToolDefinition{
		Name:             t.Name(),
		Description:      t.Description(),
		Parameters:       t.Schema(),
		TrustRequirement: t.TrustRequirement(),
	}
}

// Registry looks tools up by name and lists the full catalogue for the
// LLM.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t to the registry, keyed by its Name.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns the wire-level ToolDefinition for every registered
// tool. Order is not stable across calls; callers needing deterministic
// ordering should sort by Name.
func (r *Registry) Definitions() []ipc.ToolDefinition {
	defs := make([]ipc.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, Definition(t))
	}
	return defs
}

// List returns every registered Tool.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}
