package builtin

import (
	"context"
	"encoding/json"
	"os/exec"

	"github.com/sodove/aios-agent/internal/ipc"
	"github.com/sodove/aios-agent/internal/tool"
)

const shellExecSchema = `{
  "type": "object",
  "properties": {
    "command": {"type": "string", "description": "shell command to run, interpreted by /bin/sh"}
  },
  "required": ["command"]
}`

// ShellExec runs an arbitrary shell command in the workspace directory.
// This is the spec's canonical destructive action: it requires double
// confirmation and is subject to the per-minute rate limiter.
type ShellExec struct {
	Workspace Workspace
}

func (t *ShellExec) Name() string        { return "shell_exec" }
func (t *ShellExec) Description() string { return "Execute a shell command in the workspace directory." }
func (t *ShellExec) Schema() json.RawMessage { return json.RawMessage(shellExecSchema) }
func (t *ShellExec) TrustRequirement() ipc.TrustRequirement { return ipc.TrustRequireDoubleConfirm }

func (t *ShellExec) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	var params struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return tool.Result{}, err
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", params.Command)
	cmd.Dir = t.Workspace.Root

	out, err := cmd.CombinedOutput()
	if err != nil {
		return tool.Result{Output: string(out) + "\n" + err.Error(), IsError: true}, nil
	}
	return tool.Result{Output: string(out)}, nil
}
