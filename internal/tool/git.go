package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/agentforge/core/internal/security"
	"github.com/agentforge/core/pkg/types"
)

const gitDescription = `Runs a git sub-operation against the working directory's repository.

Usage:
- operation must be one of: checkout, branch, commit, push, pull, merge, rebase, reset
- commit requires message
- args carries any additional positional arguments (branch names, refs, paths)
- commit is always checked against the git_commit security policy before running`

// GitTool implements the spec's git tool, shelling out to the git binary
// the same way internal/project resolves repository identity.
type GitTool struct {
	workDir string
	gateway *security.Gateway
}

// GitInput represents the input for the git tool.
type GitInput struct {
	Operation string   `json:"operation"`
	Message   string   `json:"message,omitempty"`
	Args      []string `json:"args,omitempty"`
}

// NewGitTool creates a new git tool.
func NewGitTool(workDir string, gateway *security.Gateway) *GitTool {
	return &GitTool{workDir: workDir, gateway: gateway}
}

func (t *GitTool) ID() string          { return "git" }
func (t *GitTool) Description() string { return gitDescription }

func (t *GitTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"operation": {
				"type": "string",
				"enum": ["checkout", "branch", "commit", "push", "pull", "merge", "rebase", "reset"],
				"description": "The git sub-operation to run"
			},
			"message": {
				"type": "string",
				"description": "Commit message (commit only)"
			},
			"args": {
				"type": "array",
				"items": {"type": "string"},
				"description": "Additional positional arguments"
			}
		},
		"required": ["operation"]
	}`)
}

func (t *GitTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params GitInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	op := types.GitOp(params.Operation)
	switch op {
	case types.GitCheckout, types.GitBranch, types.GitCommit, types.GitPush,
		types.GitPull, types.GitMerge, types.GitRebase, types.GitReset:
	default:
		return nil, fmt.Errorf("unknown git operation: %s", params.Operation)
	}

	if op == types.GitCommit {
		if params.Message == "" {
			return nil, fmt.Errorf("message is required for commit")
		}
		if t.gateway != nil {
			if err := t.gateway.CheckGitCommit(overridesFromContext(toolCtx)); err != nil {
				return nil, err
			}
		}
	}

	workDir := t.workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		workDir = toolCtx.WorkDir
	}

	args := buildGitArgs(op, params.Message, params.Args)

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = workDir
	output, err := cmd.CombinedOutput()

	result := string(output)
	if err != nil {
		return &Result{
			Title:  fmt.Sprintf("git %s failed", params.Operation),
			Output: result,
			Error:  err,
			Metadata: map[string]any{
				"operation": params.Operation,
				"exit_err":  err.Error(),
			},
		}, nil
	}

	return &Result{
		Title:  fmt.Sprintf("git %s", params.Operation),
		Output: result,
		Metadata: map[string]any{
			"operation": params.Operation,
			"args":      args,
		},
	}, nil
}

func buildGitArgs(op types.GitOp, message string, extra []string) []string {
	var args []string
	switch op {
	case types.GitCommit:
		args = append([]string{"commit", "-m", message}, extra...)
	default:
		args = append([]string{string(op)}, extra...)
	}
	return args
}

func (t *GitTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
