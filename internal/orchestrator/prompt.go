package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentforge/core/internal/agent"
	"github.com/agentforge/core/internal/memory"
	"github.com/agentforge/core/internal/tool"
	"github.com/agentforge/core/pkg/types"
)

// buildSystemPrompt renders the system prompt: role, the enabled tool
// schemas, the active task id (if any), applicable Gold Memory
// invariants, and a Working Memory summary, per the spec's description
// of what the Agent Orchestrator's system prompt must carry.
func (o *Orchestrator) buildSystemPrompt(role types.Role, activeTaskID string, taskDescription string, wm types.WorkingMemory) string {
	var b strings.Builder

	if o.config.SystemPromptTemplate != "" {
		b.WriteString(o.config.SystemPromptTemplate)
		b.WriteString("\n\n")
	} else {
		b.WriteString("You are an autonomous coding agent. Propose actions as tool calls; every proposal is adjudicated before it runs.\n\n")
	}

	fmt.Fprintf(&b, "Role: %s\n", role)
	if activeTaskID != "" {
		fmt.Fprintf(&b, "Active task: %s\n", activeTaskID)
	}

	b.WriteString("\nAvailable tools:\n")
	for _, t := range o.enabledTools() {
		fmt.Fprintf(&b, "- %s: %s\n", t.ID(), firstLine(t.Description()))
	}

	if o.gold != nil {
		invariants := o.gold.FindApplicable(types.InvariantContext{TaskDescription: taskDescription})
		if len(invariants) > 0 {
			b.WriteString("\nHard invariants (must never be violated):\n")
			for _, inv := range invariants {
				fmt.Fprintf(&b, "- %s\n", inv.RuleText)
			}
		}
	}

	concise := memory.ConciseContextForLLM(wm)
	if concise.History != "" || concise.Invariants != "" || concise.CurrentFiles != "" {
		b.WriteString("\nWorking memory:\n")
		if concise.History != "" {
			fmt.Fprintf(&b, "- history: %s\n", concise.History)
		}
		if concise.CurrentFiles != "" {
			fmt.Fprintf(&b, "- active files: %s\n", concise.CurrentFiles)
		}
		if concise.APIs != "" {
			fmt.Fprintf(&b, "- api surface: %s\n", concise.APIs)
		}
		if concise.Invariants != "" {
			fmt.Fprintf(&b, "- must: %s\n", concise.Invariants)
		}
	}

	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// enabledTools returns the registry's tools filtered by the active
// agent's permission table.
func (o *Orchestrator) enabledTools() []tool.Tool {
	a := o.defaultAgent
	all := o.tools.List()
	if a == nil {
		return all
	}
	var enabled []tool.Tool
	for _, t := range all {
		if a.ToolEnabled(t.ID()) {
			enabled = append(enabled, t)
		}
	}
	return enabled
}

// withAgent returns a shallow-copied Orchestrator that uses a different
// agent profile for tool enablement/model selection for the duration of
// one Process call, without mutating the shared Orchestrator.
func (o *Orchestrator) withAgent(a *agent.Agent) *Orchestrator {
	if a == nil {
		return o
	}
	clone := *o
	clone.defaultAgent = a
	return &clone
}

// buildPromptMessages assembles [system_prompt] ++ last HistoryWindow
// history messages for the provider call. The caller's new user message
// is expected to already be the tail of history (Process appends it to
// the session before the loop starts), per the spec's fixed prompt
// shape: [system_prompt] ++ last<=20 history ++ [user_message].
func (o *Orchestrator) buildPromptMessages(systemPrompt string, history []types.Message) []types.Message {
	window := o.config.HistoryWindow
	if window <= 0 {
		window = 20
	}
	trimmed := history
	if len(trimmed) > window {
		trimmed = trimmed[len(trimmed)-window:]
	}

	messages := make([]types.Message, 0, len(trimmed)+1)
	messages = append(messages, types.Message{Role: types.RoleSystem, Content: systemPrompt})
	messages = append(messages, trimmed...)
	return messages
}

// reconcileHistory applies the history pairing rule: any Tool message
// missing a ToolCallID is paired, in order, against the unclaimed entries
// of the nearest preceding Assistant message's ToolCalls (recovering
// legacy transcripts saved before pairing was tracked explicitly); then
// every tool_use id with no matching tool_result, and every tool_result
// id with no matching tool_use, is stripped from both sides so the
// provider never sees an orphaned pairing.
func reconcileHistory(history []types.Message) []types.Message {
	out := make([]types.Message, len(history))
	copy(out, history)

	var pendingCalls []types.ToolCall
	for i := range out {
		switch out[i].Role {
		case types.RoleAssistant:
			pendingCalls = append([]types.ToolCall{}, out[i].ToolCalls...)
		case types.RoleTool:
			if out[i].ToolCallID == "" && len(pendingCalls) > 0 {
				out[i].ToolCallID = pendingCalls[0].ID
				pendingCalls = pendingCalls[1:]
			}
		}
	}

	toolUseIDs := make(map[string]bool)
	for _, m := range out {
		if m.Role == types.RoleAssistant {
			for _, tc := range m.ToolCalls {
				toolUseIDs[tc.ID] = true
			}
		}
	}
	toolResultIDs := make(map[string]bool)
	for _, m := range out {
		if m.Role == types.RoleTool && m.ToolCallID != "" {
			toolResultIDs[m.ToolCallID] = true
		}
	}

	result := make([]types.Message, 0, len(out))
	for _, m := range out {
		switch m.Role {
		case types.RoleAssistant:
			if len(m.ToolCalls) > 0 {
				var kept []types.ToolCall
				for _, tc := range m.ToolCalls {
					if toolResultIDs[tc.ID] {
						kept = append(kept, tc)
					}
				}
				m.ToolCalls = kept
			}
			result = append(result, m)
		case types.RoleTool:
			if m.ToolCallID != "" && !toolUseIDs[m.ToolCallID] {
				continue
			}
			result = append(result, m)
		default:
			result = append(result, m)
		}
	}
	return result
}

// synthesizeWorkingMemory builds a WorkingMemory for the turn when the
// caller didn't supply one explicitly: failure signals are the up-to-5
// most recent assistant messages whose content looks like an error
// report, and the raw layer carries a task-scoped summary when an active
// task is bound to the turn.
func synthesizeWorkingMemory(history []types.Message, activeTask *types.Task) types.WorkingMemory {
	var failures []types.FailurePattern
	for i := len(history) - 1; i >= 0 && len(failures) < 5; i-- {
		m := history[i]
		if m.Role != types.RoleAssistant {
			continue
		}
		if looksLikeFailure(m.Content) {
			failures = append(failures, types.FailurePattern{
				ErrorKind: "assistant_reported",
				Message:   m.Content,
				Timestamp: m.CreatedAt,
			})
		}
	}

	stepContext := ""
	if activeTask != nil {
		stepContext = activeTask.Description
	}

	prior := types.AbstractHistory{Failures: failures, AttemptCount: len(failures)}
	return memory.NewWorkingMemory("session", &prior, types.RawCurrent{StepContext: stepContext}, nil)
}

func looksLikeFailure(content string) bool {
	lower := strings.ToLower(content)
	return strings.Contains(lower, "error") || strings.Contains(lower, "failed") || strings.Contains(lower, "panic")
}

// decodeToolArguments decodes a tool call's raw JSON arguments into a
// generic map for Action construction. Malformed JSON yields an empty
// map rather than an error, since argument validation is the tool's job
// (Execute will fail the call with a clear message).
func decodeToolArguments(raw string) map[string]any {
	var m map[string]any
	if raw == "" {
		return m
	}
	_ = json.Unmarshal([]byte(raw), &m)
	return m
}
