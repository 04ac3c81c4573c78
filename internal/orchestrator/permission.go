package orchestrator

import (
	"strings"

	"github.com/agentforge/core/internal/agent"
	"github.com/agentforge/core/internal/permission"
	"github.com/agentforge/core/pkg/types"
)

// agentPermissionVerdict resolves the active agent's own permission policy
// for a tool call, independently of the Decision Engine's privilege
// check — an agent profile can still refuse an action the Decision
// Engine would otherwise allow, e.g. a reviewer agent configured to never
// run "rm *" regardless of its role's privilege level. executeToolCalls
// stops a call only on a Deny verdict; an Ask verdict lets the call
// proceed without confirmation. A shell call is split into its component commands
// (a pipeline or "&&" chain is checked command-by-command) and the
// strictest of the per-command verdicts wins.
func (o *Orchestrator) agentPermissionVerdict(callName string, args map[string]any) permission.PermissionAction {
	a := o.defaultAgent
	if a == nil {
		return permission.ActionAllow
	}

	switch callName {
	case "shell":
		return o.bashPermissionVerdict(a, stringArg(args, "command"))
	case "edit", "write":
		return a.GetPermission(permission.PermEdit)
	case "webfetch":
		return a.GetPermission(permission.PermWebFetch)
	default:
		return permission.ActionAllow
	}
}

func (o *Orchestrator) bashPermissionVerdict(a *agent.Agent, command string) permission.PermissionAction {
	if command == "" {
		return permission.ActionAllow
	}
	commands, err := permission.ParseBashCommand(command)
	if err != nil || len(commands) == 0 {
		return a.CheckBashPermission(command)
	}

	verdict := permission.ActionAllow
	for _, c := range commands {
		action := a.CheckBashPermission(strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " ")))
		verdict = strictestAction(verdict, action)
		if verdict == permission.ActionDeny {
			return permission.ActionDeny
		}
	}
	return verdict
}

// strictestAction orders Allow < Ask < Deny and returns whichever of the
// two verdicts is stricter, so a multi-command bash chain is only as
// permissive as its most restricted component.
func strictestAction(a, b permission.PermissionAction) permission.PermissionAction {
	rank := map[permission.PermissionAction]int{
		permission.ActionAllow: 0,
		permission.ActionAsk:   1,
		permission.ActionDeny:  2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// doomLoopVerdict flags a tool call that repeats the same name and
// arguments three times in a row for this session, per
// permission.DoomLoopThreshold.
func (o *Orchestrator) doomLoopVerdict(sessionID string, call types.ToolCall, args map[string]any) bool {
	if o.doomLoop == nil {
		return false
	}
	return o.doomLoop.Check(sessionID, call.Name, args)
}
