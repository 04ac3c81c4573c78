package security

import (
	"fmt"

	"github.com/agentforge/core/internal/apperr"
	"github.com/agentforge/core/pkg/types"
)

// Gateway is the pre-tool enforcement layer for path, shell, and git
// policy (spec §4.4 "Security Gateway"). It is stateless aside from its
// configured Policy; callers invoke it immediately before executing a
// tool action.
type Gateway struct {
	policy      Policy
	projectRoot string
}

// NewGateway builds a Gateway enforcing policy for actions resolved
// against projectRoot.
func NewGateway(policy Policy, projectRoot string) *Gateway {
	return &Gateway{policy: policy, projectRoot: projectRoot}
}

// CheckPath enforces the external_directory boundary: the canonicalized,
// ".."-normalized absolute path must resolve under the project root, or
// the configured policy for external_directory must allow it.
func (g *Gateway) CheckPath(path, workingDir string, overrides map[PermissionName]bool) error {
	if !g.policy.Enabled {
		return nil
	}

	canon := Canonicalize(path, workingDir)
	if IsWithinRoot(canon, g.projectRoot) {
		return nil
	}

	action := g.policy.resolve(PermExternalDirectory, g.policy.ExternalDirectory)
	if overrides[PermExternalDirectory] && action == PolicyAsk {
		action = PolicyAllow
	}

	switch action {
	case PolicyAllow:
		return nil
	case PolicyDeny:
		return &apperr.PermissionDenied{Message: fmt.Sprintf(
			"permission=external_directory risk=high path %q resolves outside project root %q", canon, g.projectRoot)}
	default: // PolicyAsk
		return &apperr.PermissionDenied{Message: fmt.Sprintf(
			"requires_confirmation permission=external_directory risk=high path %q resolves outside project root %q", canon, g.projectRoot)}
	}
}

// CheckShell enforces the shell_high_risk / shell_medium_risk gates for a
// command string. Critical is always denied, no matter the policy or
// overrides. High always requires confirmation (never auto-allowed by
// policy, only by a per-call override). Medium follows the configured
// medium-risk policy.
func (g *Gateway) CheckShell(command string, overrides map[PermissionName]bool) (DangerLevel, error) {
	level, err := DangerLevelOf(command)
	if err != nil && level < DangerHigh {
		level = DangerHigh
	}

	switch level {
	case DangerCritical:
		return level, &apperr.PermissionDenied{Message: fmt.Sprintf(
			"permission=shell_high_risk risk=critical command denied (risk=critical): %q", command)}
	case DangerHigh:
		if overrides[PermShellHighRisk] {
			return level, nil
		}
		return level, &apperr.PermissionDenied{Message: fmt.Sprintf(
			"requires_confirmation permission=shell_high_risk risk=high command %q requires confirmation", command)}
	case DangerMedium:
		action := g.policy.resolve(PermShellMediumRisk, g.policy.MediumRisk)
		if overrides[PermShellMediumRisk] && action == PolicyAsk {
			action = PolicyAllow
		}
		switch action {
		case PolicyAllow:
			return level, nil
		case PolicyDeny:
			return level, &apperr.PermissionDenied{Message: fmt.Sprintf(
				"permission=shell_medium_risk risk=medium command denied by policy: %q", command)}
		default:
			return level, &apperr.PermissionDenied{Message: fmt.Sprintf(
				"requires_confirmation permission=shell_medium_risk risk=medium command %q requires confirmation", command)}
		}
	default:
		return level, nil
	}
}

// CheckGitCommit enforces the git_commit gate, which defaults to ask
// regardless of the command's bash danger level since a commit is a
// durable side effect on the repository's history.
func (g *Gateway) CheckGitCommit(overrides map[PermissionName]bool) error {
	action := g.policy.resolve(PermGitCommit, g.policy.GitCommit)
	if overrides[PermGitCommit] && action == PolicyAsk {
		action = PolicyAllow
	}

	switch action {
	case PolicyAllow:
		return nil
	case PolicyDeny:
		return &apperr.PermissionDenied{Message: "permission=git_commit risk=medium commit denied by policy"}
	default:
		return &apperr.PermissionDenied{Message: "requires_confirmation permission=git_commit risk=medium commit requires confirmation"}
	}
}

// CheckAction routes an Action to the appropriate gateway checks based on
// its concrete type, returning nil when no enforcement point applies
// (e.g. ReadFile within the project root).
func (g *Gateway) CheckAction(action types.Action, workingDir string, overrides map[PermissionName]bool) error {
	switch a := action.(type) {
	case *types.ReadFileAction:
		return g.CheckPath(a.Path, workingDir, overrides)
	case *types.WriteFileAction:
		return g.CheckPath(a.Path, workingDir, overrides)
	case *types.CreateFileAction:
		return g.CheckPath(a.Path, workingDir, overrides)
	case *types.DeleteFileAction:
		return g.CheckPath(a.Path, workingDir, overrides)
	case *types.RunCommandAction:
		full := a.Cmd
		for _, arg := range a.Args {
			full += " " + arg
		}
		_, err := g.CheckShell(full, overrides)
		return err
	case *types.GitAction:
		if a.Op == types.GitCommit {
			return g.CheckGitCommit(overrides)
		}
		return nil
	default:
		return nil
	}
}
