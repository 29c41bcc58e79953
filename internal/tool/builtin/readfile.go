// Package builtin provides the reference tool catalogue every daemon ships
// with: filesystem and shell access sandboxed to a configured workspace
// root.
package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sodove/aios-agent/internal/ipc"
	"github.com/sodove/aios-agent/internal/tool"
)

// Workspace resolves tool-relative paths against a single root directory
// and rejects anything that would escape it, so a confused or malicious
// LLM can't be tricked into touching files outside the sandbox.
type Workspace struct {
	Root string
}

// Resolve joins rel onto the workspace root and verifies the result stays
// within it.
func (w Workspace) Resolve(rel string) (string, error) {
	abs := filepath.Join(w.Root, rel)
	cleanRoot := filepath.Clean(w.Root)

	relToRoot, err := filepath.Rel(cleanRoot, abs)
	if err != nil || relToRoot == ".." || strings.HasPrefix(relToRoot, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes workspace root", rel)
	}
	return abs, nil
}

const readFileSchema = `{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "path relative to the workspace root"}
  },
  "required": ["path"]
}`

// ReadFile reads a file's contents. It requires no confirmation: reads are
// non-destructive.
type ReadFile struct {
	Workspace Workspace
}

func (t *ReadFile) Name() string        { return "read_file" }
func (t *ReadFile) Description() string { return "Read the contents of a file within the workspace." }
func (t *ReadFile) Schema() json.RawMessage { return json.RawMessage(readFileSchema) }
func (t *ReadFile) TrustRequirement() ipc.TrustRequirement { return ipc.TrustRequireNone }

func (t *ReadFile) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	var params struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return tool.Result{}, err
	}

	path, err := t.Workspace.Resolve(params.Path)
	if err != nil {
		return tool.Result{Output: err.Error(), IsError: true}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return tool.Result{Output: err.Error(), IsError: true}, nil
	}
	return tool.Result{Output: string(data)}, nil
}
