// Package executor provides task execution implementations.
package executor

import (
	"context"
	"fmt"

	"github.com/agentforge/core/internal/agent"
	"github.com/agentforge/core/internal/orchestrator"
	"github.com/agentforge/core/internal/storage"
	"github.com/agentforge/core/internal/tool"
	"github.com/agentforge/core/pkg/types"
)

// SubagentExecutor implements tool.TaskExecutor by running the subtask as
// one bounded Agent Orchestrator turn in a fresh child session. A subagent
// invocation is structurally the same tool-calling loop a top-level
// request goes through, just scoped to one agent persona and with no task
// binding or further subagents of its own to dispatch.
type SubagentExecutor struct {
	orc           *orchestrator.Orchestrator
	sessions      *storage.SessionStore
	agentRegistry *agent.Registry
	workDir       string
	defaultModel  string
}

// SubagentExecutorConfig holds the dependencies for a SubagentExecutor.
type SubagentExecutorConfig struct {
	Orchestrator  *orchestrator.Orchestrator
	Sessions      *storage.SessionStore
	AgentRegistry *agent.Registry
	WorkDir       string
	DefaultModel  string
}

// NewSubagentExecutor creates a new SubagentExecutor.
func NewSubagentExecutor(cfg SubagentExecutorConfig) *SubagentExecutor {
	return &SubagentExecutor{
		orc:           cfg.Orchestrator,
		sessions:      cfg.Sessions,
		agentRegistry: cfg.AgentRegistry,
		workDir:       cfg.WorkDir,
		defaultModel:  cfg.DefaultModel,
	}
}

// ExecuteSubtask implements tool.TaskExecutor.
func (e *SubagentExecutor) ExecuteSubtask(
	ctx context.Context,
	parentSessionID string,
	agentName string,
	prompt string,
	opts tool.TaskOptions,
) (*tool.TaskResult, error) {
	agentConfig, err := e.resolveAgent(agentName)
	if err != nil {
		return nil, err
	}
	if !agentConfig.IsSubagent() {
		return nil, fmt.Errorf("agent %s cannot be used as subagent (mode: %s)", agentName, agentConfig.Mode)
	}

	req := orchestrator.Request{
		WorkingDir: e.parentWorkingDir(ctx, parentSessionID),
		UserInput:  prompt,
		Role:       roleForAgent(agentName),
		Agent:      agentConfig,
		ModelID:    resolveModelAlias(opts.Model, e.defaultModel),
	}

	resp, err := e.orc.Process(ctx, req)
	if err != nil {
		return &tool.TaskResult{
			Output: fmt.Sprintf("error executing subtask: %s", err.Error()),
			Error:  err.Error(),
			Metadata: map[string]any{
				"parentSessionID": parentSessionID,
				"description":     opts.Description,
			},
		}, nil
	}

	return &tool.TaskResult{
		Output:    resp.Content,
		SessionID: resp.SessionID,
		AgentID:   agentName,
		Metadata: map[string]any{
			"parentSessionID":    parentSessionID,
			"verificationResult": resp.VerificationResult,
			"description":        opts.Description,
		},
	}, nil
}

// resolveAgent looks up a custom agent from the registry first, falling
// back to the built-in profiles so "build"/"plan"/"general"/"explore"
// work even when the caller never registered anything.
func (e *SubagentExecutor) resolveAgent(name string) (*agent.Agent, error) {
	if e.agentRegistry != nil {
		if a, err := e.agentRegistry.Get(name); err == nil {
			return a, nil
		}
	}
	if a, ok := agent.BuiltInAgents()[name]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("agent not found: %s", name)
}

// parentWorkingDir inherits the parent session's project root so a
// subagent inspects the same working tree the requesting turn did,
// falling back to the executor's configured work directory when the
// parent session can't be found (a root-level task, or one issued before
// the parent session was persisted).
func (e *SubagentExecutor) parentWorkingDir(ctx context.Context, parentSessionID string) string {
	if parentSessionID != "" && e.sessions != nil {
		if parent, err := e.sessions.Get(ctx, parentSessionID); err == nil && parent.Project.WorkingDir != "" {
			return parent.Project.WorkingDir
		}
	}
	return e.workDir
}

// roleForAgent maps a subagent persona to the privilege Role the Decision
// Engine evaluates its tool calls under. Custom agent names default to
// Implementer, the least-privileged role that can still edit files.
func roleForAgent(name string) types.Role {
	switch name {
	case "plan":
		return types.RolePlanner
	case "explore":
		return types.RoleHistorian
	default:
		return types.RoleImplementer
	}
}

// resolveModelAlias maps the Task tool's short model aliases (matching
// what TaskInput/taskDescription document) to concrete model ids.
// Anything else, including an empty alias, falls through to fallback.
func resolveModelAlias(alias, fallback string) string {
	switch alias {
	case "sonnet":
		return "claude-sonnet-4-20250514"
	case "opus":
		return "claude-opus-4-20250514"
	case "haiku":
		return "claude-haiku-3-20240307"
	case "":
		return fallback
	default:
		return alias
	}
}
