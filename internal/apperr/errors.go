// Package apperr defines the orchestrator's error taxonomy as concrete Go
// types, so callers can type-switch or errors.As instead of parsing
// messages.
package apperr

import "fmt"

// InvalidRequest signals malformed caller input, e.g. a session already
// running or a missing required parameter. Surfaced directly, never
// retried.
type InvalidRequest struct {
	Message string
}

func (e *InvalidRequest) Error() string { return "invalid request: " + e.Message }

// InvalidStateTransition is returned by the workflow state machine for a
// (from, to) pair outside the allowed edge set.
type InvalidStateTransition struct {
	From, To string
}

func (e *InvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}

// InsufficientPrivilege is returned by the decision engine when the
// granted privilege falls below the action's required privilege.
type InsufficientPrivilege struct {
	Required, Granted string
}

func (e *InsufficientPrivilege) Error() string {
	return fmt.Sprintf("insufficient privilege: required=%s granted=%s", e.Required, e.Granted)
}

// PermissionDenied is returned by the Security Gateway. A message
// prefixed with "requires_confirmation" is recoverable by the caller
// supplying a one-shot override and retrying; any other message is a
// fatal denial for that intent.
type PermissionDenied struct {
	Message string
}

func (e *PermissionDenied) Error() string { return e.Message }

// Recoverable reports whether the denial can be resolved by a caller
// confirmation-and-retry, per the "requires_confirmation" prefix contract.
func (e *PermissionDenied) Recoverable() bool {
	return len(e.Message) >= len("requires_confirmation") && e.Message[:len("requires_confirmation")] == "requires_confirmation"
}

// ToolError is a generic tool execution failure, surfaced into the LLM
// transcript as a Tool message with IsError set.
type ToolError struct {
	Message string
}

func (e *ToolError) Error() string { return e.Message }

// LlmError is an LLM provider failure. The transport layer retries it up
// to max_retries with exponential backoff before it reaches the caller.
type LlmError struct {
	Message string
}

func (e *LlmError) Error() string { return e.Message }

// Timeout signals the orchestrator's outer deadline fired. Terminal.
type Timeout struct {
	Secs int
}

func (e *Timeout) Error() string { return fmt.Sprintf("timeout after %ds", e.Secs) }

// QualityCheckFailed is returned by the quality gate runner. Terminal for
// the current attempt; the state machine may move the task to Blocked or
// Failed depending on its rules.
type QualityCheckFailed struct {
	Message string
}

func (e *QualityCheckFailed) Error() string { return e.Message }

// RollbackFailed is returned by rollback_task. Never retried implicitly.
type RollbackFailed struct {
	Message string
}

func (e *RollbackFailed) Error() string { return e.Message }

// NotFound is a generic lookup miss (task, session, invariant, snapshot).
type NotFound struct {
	Kind string
	ID   string
}

func (e *NotFound) Error() string { return fmt.Sprintf("%s not found: %s", e.Kind, e.ID) }

// SnapshotNotFound is rollback_task's failure kind for a snapshot id not
// present on the task (including an empty snapshot list).
type SnapshotNotFound struct {
	TaskID, SnapshotID string
}

func (e *SnapshotNotFound) Error() string {
	return fmt.Sprintf("snapshot not found: task=%s snapshot=%s", e.TaskID, e.SnapshotID)
}

// WorktreeDirty is rollback_task's failure kind when the worktree has
// uncommitted changes that would be lost by restoring to the snapshot.
type WorktreeDirty struct {
	TaskID string
}

func (e *WorktreeDirty) Error() string { return "worktree dirty for task " + e.TaskID }

// EditNoMatch is the edit tool's failure when none of the four matching
// strategies locate oldString in the target file.
type EditNoMatch struct {
	Path string
}

func (e *EditNoMatch) Error() string {
	return fmt.Sprintf("old_string not found in %s", e.Path)
}

// EditAmbiguousMatch is the edit tool's failure when a strategy locates
// more than one candidate and replaceAll was not requested.
type EditAmbiguousMatch struct {
	Path  string
	Count int
}

func (e *EditAmbiguousMatch) Error() string {
	return fmt.Sprintf("old_string matches %d locations in %s, use replaceAll or add more context", e.Count, e.Path)
}
