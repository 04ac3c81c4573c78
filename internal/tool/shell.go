package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"syscall"
	"time"

	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/agentforge/core/internal/security"
)

const (
	DefaultShellTimeout = 120 * time.Second
	MaxShellTimeout     = 10 * time.Minute
	MaxOutputLength     = 30000
	SigkillTimeout      = 200 * time.Millisecond
)

const shellDescription = `Executes a shell command in a fresh subprocess.

Usage:
- command is required; args is an optional list appended after it
- Optional working_dir overrides the session's default working directory
- Optional timeout in milliseconds (max 600000)
- Output is captured from stdout and stderr combined
- Every command is classified by risk (low/medium/high/critical) and
  checked against the Security Gateway's shell_high_risk /
  shell_medium_risk policy before it runs; critical commands are always
  denied`

// ShellTool implements shell command execution, gated by the Security
// Gateway's danger-level classification instead of a static permission
// pattern table.
type ShellTool struct {
	workDir string
	shell   string
	gateway *security.Gateway
}

// ShellInput represents the input for the shell tool.
type ShellInput struct {
	Command    string   `json:"command"`
	Args       []string `json:"args,omitempty"`
	WorkingDir string   `json:"working_dir,omitempty"`
	Timeout    int      `json:"timeout,omitempty"` // milliseconds
}

// NewShellTool creates a new shell tool.
func NewShellTool(workDir string, gateway *security.Gateway) *ShellTool {
	return &ShellTool{
		workDir: workDir,
		shell:   detectShell(),
		gateway: gateway,
	}
}

func detectShell() string {
	if s := os.Getenv("SHELL"); s != "" {
		if s != "/bin/fish" && s != "/usr/bin/fish" && s != "/bin/nu" && s != "/usr/bin/nu" {
			return s
		}
	}
	if runtime.GOOS == "darwin" {
		return "/bin/zsh"
	}
	if runtime.GOOS == "windows" {
		if comspec := os.Getenv("COMSPEC"); comspec != "" {
			return comspec
		}
		return "cmd.exe"
	}
	if bash, err := exec.LookPath("bash"); err == nil {
		return bash
	}
	return "/bin/sh"
}

func (t *ShellTool) ID() string          { return "shell" }
func (t *ShellTool) Description() string { return shellDescription }

func (t *ShellTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {
				"type": "string",
				"description": "The command to execute"
			},
			"args": {
				"type": "array",
				"items": {"type": "string"},
				"description": "Arguments appended after command"
			},
			"working_dir": {
				"type": "string",
				"description": "Absolute directory to run the command in"
			},
			"timeout": {
				"type": "integer",
				"description": "Optional timeout in milliseconds (max 600000)"
			}
		},
		"required": ["command"]
	}`)
}

func (t *ShellTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params ShellInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	fullCommand := params.Command
	if len(params.Args) > 0 {
		fullCommand = strings.TrimSpace(params.Command + " " + strings.Join(params.Args, " "))
	}

	if t.gateway != nil {
		if _, err := t.gateway.CheckShell(fullCommand, overridesFromContext(toolCtx)); err != nil {
			return nil, err
		}
	}

	timeout := DefaultShellTimeout
	if params.Timeout > 0 {
		timeout = time.Duration(params.Timeout) * time.Millisecond
		if timeout > MaxShellTimeout {
			timeout = MaxShellTimeout
		}
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(cmdCtx, t.shell, "/c", fullCommand)
	} else {
		cmd = exec.CommandContext(cmdCtx, t.shell, "-c", fullCommand)
	}

	cmd.Dir = t.workDir
	if params.WorkingDir != "" {
		cmd.Dir = params.WorkingDir
	} else if toolCtx != nil && toolCtx.WorkDir != "" {
		cmd.Dir = toolCtx.WorkDir
	}

	cmd.Env = os.Environ()
	if runtime.GOOS != "windows" {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	if toolCtx != nil {
		toolCtx.SetMetadata(fullCommand, map[string]any{"output": ""})
	}

	go func() {
		<-cmdCtx.Done()
		if cmdCtx.Err() == context.DeadlineExceeded {
			t.killProcess(cmd)
		}
	}()

	output, err := cmd.CombinedOutput()
	timedOut := cmdCtx.Err() == context.DeadlineExceeded

	result := string(output)
	if len(result) > MaxOutputLength {
		result = result[:MaxOutputLength] + "\n\n(Output truncated)"
	}
	if timedOut {
		result += fmt.Sprintf("\n\n(Command timed out after %v)", timeout)
	}

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil && !timedOut {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			result += fmt.Sprintf("\n\nError: %v", err)
		}
	}

	return &Result{
		Title:  fullCommand,
		Output: result,
		Metadata: map[string]any{
			"output": result,
			"exit":   exitCode,
		},
	}, nil
}

func (t *ShellTool) killProcess(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid

	if runtime.GOOS == "windows" {
		exec.Command("taskkill", "/pid", fmt.Sprint(pid), "/f", "/t").Run()
		return
	}

	syscall.Kill(-pid, syscall.SIGTERM)
	time.Sleep(SigkillTimeout)
	if cmd.ProcessState == nil {
		syscall.Kill(-pid, syscall.SIGKILL)
	}
}

func (t *ShellTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
