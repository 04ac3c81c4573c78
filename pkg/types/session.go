package types

import "time"

// SessionState is the current activity state of an AgentSession.
type SessionState string

const (
	SessionIdle                 SessionState = "idle"
	SessionThinking             SessionState = "thinking"
	SessionWaitingForPermission SessionState = "waiting_for_permission"
	SessionExecuting            SessionState = "executing"
	SessionVerifying            SessionState = "verifying"
	SessionCompleted            SessionState = "completed"
	SessionError                SessionState = "error"
)

// MessageRole is the role of a Message in an AgentSession transcript.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// ToolCall is a single tool invocation requested by the LLM inside an
// Assistant message. Arguments are carried as the raw JSON string the
// provider returned, decoded lazily by the tool executor.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry of an AgentSession's append-only transcript.
// ToolCalls is populated on Assistant messages that invoked tools;
// ToolCallID pairs a Tool message back to the tool_calls entry it answers.
// The pairing invariant (no orphan in either direction) is enforced by the
// orchestrator's history-reconstruction pass before every LLM call, not by
// this type itself.
type Message struct {
	ID         string      `json:"id"`
	Role       MessageRole `json:"role"`
	Content    string      `json:"content"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	IsError    bool        `json:"is_error,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// ProjectIdentity deterministically names a repository workspace.
// ProjectID is the lexicographically smallest root-commit hash for a git
// workspace, or sha256(canonical_absolute_path) otherwise; it is stable
// across sessions against the same unchanged repository.
type ProjectIdentity struct {
	ProjectID   string `json:"project_id"`
	ProjectRoot string `json:"project_root"`
	WorkingDir  string `json:"working_dir"`
	Worktree    string `json:"worktree"`
}

// AgentSession is the append-only message log bound to a project identity.
// Mutations to History and Events are exclusive to the orchestrator loop
// that owns the session id; a concurrent orchestrator call for the same
// session id waits for the earlier call to finish and is not rejected
// (see internal/orchestrator).
type AgentSession struct {
	ID             string          `json:"id"`
	Project        ProjectIdentity `json:"project"`
	StartedAt      time.Time       `json:"started_at"`
	History        []Message       `json:"history"`
	ActiveTaskIDs  []string        `json:"active_task_ids,omitempty"`
	ToolCallCounts map[string]int  `json:"tool_call_counts,omitempty"`
	Events         []SessionEvent  `json:"events,omitempty"`
	State          SessionState    `json:"state"`
	ProjectRoot    string          `json:"project_root"`
	Worktree       string          `json:"worktree,omitempty"`
	Summary        SessionSummary  `json:"summary"`
}

// SessionEvent is an observability record of something the orchestrator
// loop did (a tool call, a verdict, a state transition) kept alongside the
// message history for post-hoc inspection.
type SessionEvent struct {
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionSummary aggregates the code-change footprint of a session, used
// for the human-readable completion summary.
type SessionSummary struct {
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
	Files     int        `json:"files"`
	Diffs     []FileDiff `json:"diffs,omitempty"`
}

// FileDiff is a single file's change within a SessionSummary.
type FileDiff struct {
	Path      string `json:"path"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// NewSession constructs an Idle AgentSession with a fresh sortable id.
func NewSession(project ProjectIdentity) AgentSession {
	return AgentSession{
		ID:             NewID(),
		Project:        project,
		StartedAt:      time.Now(),
		History:        []Message{},
		ToolCallCounts: map[string]int{},
		State:          SessionIdle,
		ProjectRoot:    project.ProjectRoot,
		Worktree:       project.Worktree,
	}
}
