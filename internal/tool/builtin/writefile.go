package builtin

import (
	"context"
	"encoding/json"
	"os"

	"github.com/sodove/aios-agent/internal/ipc"
	"github.com/sodove/aios-agent/internal/tool"
)

const writeFileSchema = `{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "path relative to the workspace root"},
    "content": {"type": "string"}
  },
  "required": ["path", "content"]
}`

// WriteFile overwrites or creates a file within the workspace. Mutating the
// filesystem requires a single confirmation but is not rate-limited the
// way a shell command is.
type WriteFile struct {
	Workspace Workspace
}

func (t *WriteFile) Name() string        { return "write_file" }
func (t *WriteFile) Description() string { return "Write content to a file within the workspace, creating or overwriting it." }
func (t *WriteFile) Schema() json.RawMessage { return json.RawMessage(writeFileSchema) }
func (t *WriteFile) TrustRequirement() ipc.TrustRequirement { return ipc.TrustRequireConfirm }

func (t *WriteFile) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	var params struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return tool.Result{}, err
	}

	path, err := t.Workspace.Resolve(params.Path)
	if err != nil {
		return tool.Result{Output: err.Error(), IsError: true}, nil
	}

	if err := os.WriteFile(path, []byte(params.Content), 0o644); err != nil {
		return tool.Result{Output: err.Error(), IsError: true}, nil
	}
	return tool.Result{Output: "wrote " + path}, nil
}
