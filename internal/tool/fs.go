package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/agentforge/core/internal/event"
	"github.com/agentforge/core/internal/security"
)

const fsDescription = `Reads, writes, creates, deletes, or lists filesystem entries.

Usage:
- operation must be one of: read, write, create, delete, list
- path must be absolute
- write/create require content; write fails if the file doesn't already exist, create fails if it does
- every operation is checked against the external_directory security policy before it runs`

// FsTool implements the spec's unified fs tool: one entry point over the
// read/write/create/delete/list operations, each gated by the Security
// Gateway's external_directory enforcement point before touching disk.
type FsTool struct {
	workDir string
	gateway *security.Gateway
}

// FsInput is the fs tool's parameter payload.
type FsInput struct {
	Operation string   `json:"operation"`
	Path      string   `json:"path"`
	Content   string   `json:"content,omitempty"`
	Overrides []string `json:"overrides,omitempty"`
}

// NewFsTool creates the unified fs tool, enforcing gateway against workDir
// as the project root.
func NewFsTool(workDir string, gateway *security.Gateway) *FsTool {
	return &FsTool{workDir: workDir, gateway: gateway}
}

func (t *FsTool) ID() string          { return "fs" }
func (t *FsTool) Description() string { return fsDescription }

func (t *FsTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"operation": {
				"type": "string",
				"enum": ["read", "write", "create", "delete", "list"],
				"description": "The filesystem operation to perform"
			},
			"path": {
				"type": "string",
				"description": "Absolute path to operate on"
			},
			"content": {
				"type": "string",
				"description": "Content to write (write/create only)"
			}
		},
		"required": ["operation", "path"]
	}`)
}

func (t *FsTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params FsInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if !filepath.IsAbs(params.Path) {
		return nil, fmt.Errorf("path must be absolute: %s", params.Path)
	}

	workDir := t.workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		workDir = toolCtx.WorkDir
	}

	if t.gateway != nil {
		if err := t.gateway.CheckPath(params.Path, workDir, overridesFromContext(toolCtx)); err != nil {
			return nil, err
		}
	}

	switch params.Operation {
	case "read":
		return t.read(params.Path)
	case "write":
		return t.write(ctx, params, toolCtx, false)
	case "create":
		return t.write(ctx, params, toolCtx, true)
	case "delete":
		return t.delete(params.Path)
	case "list":
		return t.list(params.Path)
	default:
		return nil, fmt.Errorf("unknown fs operation: %s", params.Operation)
	}
}

func (t *FsTool) read(path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	return &Result{
		Title:  fmt.Sprintf("Read %s", filepath.Base(path)),
		Output: strings.Join(lines, "\n"),
		Metadata: map[string]any{
			"file":             path,
			"files_read":       1,
			"bytes_processed":  info.Size(),
		},
	}, nil
}

func (t *FsTool) write(ctx context.Context, params FsInput, toolCtx *Context, create bool) (*Result, error) {
	_, err := os.Stat(params.Path)
	exists := err == nil

	if create && exists {
		return nil, fmt.Errorf("file already exists: %s", params.Path)
	}
	if !create && !exists {
		return nil, fmt.Errorf("file does not exist, use operation=create: %s", params.Path)
	}

	if err := os.MkdirAll(filepath.Dir(params.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(params.Path, []byte(params.Content), 0644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	if toolCtx != nil && toolCtx.SessionID != "" {
		event.Publish(event.Event{Type: event.FileEdited, Data: event.FileEditedData{File: params.Path}})
	}

	verb := "Wrote"
	if create {
		verb = "Created"
	}
	return &Result{
		Title:  fmt.Sprintf("%s %s", verb, filepath.Base(params.Path)),
		Output: fmt.Sprintf("%s %d bytes to %s", verb, len(params.Content), params.Path),
		Metadata: map[string]any{
			"file":            params.Path,
			"files_written":   1,
			"bytes_processed": len(params.Content),
		},
	}, nil
}

func (t *FsTool) delete(path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	if err := os.Remove(path); err != nil {
		return nil, fmt.Errorf("failed to delete: %w", err)
	}

	return &Result{
		Title:  fmt.Sprintf("Deleted %s", filepath.Base(path)),
		Output: fmt.Sprintf("Deleted %s", path),
		Metadata: map[string]any{
			"file":             path,
			"bytes_processed":  info.Size(),
		},
	}, nil
}

func (t *FsTool) list(path string) (*Result, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var sb strings.Builder
	for _, e := range entries {
		kind := "file"
		if e.IsDir() {
			kind = "dir"
		}
		sb.WriteString(fmt.Sprintf("[%s] %s\n", kind, e.Name()))
	}

	return &Result{
		Title:  fmt.Sprintf("Listed %d items", len(entries)),
		Output: sb.String(),
		Metadata: map[string]any{
			"path":  path,
			"count": len(entries),
		},
	}, nil
}

func (t *FsTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}

// overridesFromContext pulls a per-call permission override set out of
// toolCtx.Extra, if the caller populated one under the "permission_overrides"
// key (set by the orchestrator after a human confirms an ask-gated action).
func overridesFromContext(toolCtx *Context) map[security.PermissionName]bool {
	if toolCtx == nil || toolCtx.Extra == nil {
		return nil
	}
	raw, ok := toolCtx.Extra["permission_overrides"]
	if !ok {
		return nil
	}
	names, ok := raw.([]string)
	if !ok {
		return nil
	}
	out := make(map[security.PermissionName]bool, len(names))
	for _, n := range names {
		out[security.PermissionName(n)] = true
	}
	return out
}
