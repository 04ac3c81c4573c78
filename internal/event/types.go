package event

import "github.com/agentforge/core/pkg/types"

// SessionCreatedData is the data for session.created events.
type SessionCreatedData struct {
	Session *types.AgentSession `json:"session"`
}

// SessionStateChangedData is the data for session.state_changed events.
type SessionStateChangedData struct {
	SessionID string             `json:"session_id"`
	State     types.SessionState `json:"state"`
}

// MessageAppendedData is the data for message.appended events.
type MessageAppendedData struct {
	SessionID string        `json:"session_id"`
	Message   *types.Message `json:"message"`
}

// IntentEvaluatedData is the data for intent.evaluated events, published
// by the Decision Engine after every evaluate() call.
type IntentEvaluatedData struct {
	Intent  types.Intent  `json:"intent"`
	Verdict types.Verdict `json:"verdict"`
}

// TaskStateChangedData is the data for task.state_changed events,
// published by the workflow state machine after a successful transition.
type TaskStateChangedData struct {
	TaskID string          `json:"task_id"`
	From   types.TaskState `json:"from"`
	To     types.TaskState `json:"to"`
}

// TaskBlockedData is the data for task.blocked events, used to trigger the
// human-notification side effect of entering the Blocked state.
type TaskBlockedData struct {
	TaskID string `json:"task_id"`
	Reason string `json:"reason"`
}

// FileEditedData is the data for file.edited events.
type FileEditedData struct {
	File string `json:"file"`
}

// PermissionRequiredData is the data for permission.required events.
type PermissionRequiredData struct {
	ID             string   `json:"id"`
	SessionID      string   `json:"session_id"`
	PermissionType string   `json:"permission_type"` // external_directory | shell_high_risk | shell_medium_risk | git_commit
	Pattern        []string `json:"pattern,omitempty"`
	Title          string   `json:"title"`
}

// PermissionResolvedData is the data for permission.resolved events.
type PermissionResolvedData struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Granted   bool   `json:"granted"`
}

// GoldInvariantViolatedData is the data for memory.invariant_violated
// events, published by GoldMemory.MarkViolated each time it records a
// violation.
type GoldInvariantViolatedData struct {
	InvariantID string `json:"invariant_id"`
	TaskID      string `json:"task_id,omitempty"`
}

// DoomLoopDetectedData is the data for security.doom_loop_detected events.
type DoomLoopDetectedData struct {
	SessionID string `json:"session_id"`
	ToolName  string `json:"tool_name"`
}

// DiscoveryCompletedData is the data for discovery.completed events,
// published when a pre-execution Impact Report scan finishes.
type DiscoveryCompletedData struct {
	TaskID         string `json:"task_id"`
	FilesScanned   int    `json:"files_scanned"`
	HighVolatility int    `json:"high_volatility_modules"`
}

// QualityGateEvaluatedData is the data for quality.gate_evaluated events,
// published whenever the Quality Gate Runner finishes evaluating a task's
// checklist, whether it passed or not.
type QualityGateEvaluatedData struct {
	TaskID       string   `json:"task_id"`
	GateName     string   `json:"gate_name"`
	Passed       bool     `json:"passed"`
	FailedChecks []string `json:"failed_checks,omitempty"`
}

// VcsBranchChangedData is the data for vcs.branch_changed events,
// published by the VCS watcher when HEAD moves to a different branch.
type VcsBranchChangedData struct {
	Branch string `json:"branch"`
}

// SnapshotCapturedData is the data for vcs.snapshot_captured events,
// published whenever a worktree snapshot is captured for a task.
type SnapshotCapturedData struct {
	TaskID     string `json:"task_id"`
	SnapshotID string `json:"snapshot_id"`
	CommitHash string `json:"commit_hash"`
}
