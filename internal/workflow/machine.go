package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/agentforge/core/internal/apperr"
	"github.com/agentforge/core/internal/event"
	"github.com/agentforge/core/pkg/types"
)

// QualityGateRunner evaluates a Task's declared quality gate, called as
// the post-action for entering AwaitingVerification. Implemented by
// internal/quality; declared here to avoid an import cycle.
type QualityGateRunner interface {
	Run(ctx context.Context, task *types.Task) error
}

// SnapshotCapturer captures a worktree/git snapshot, called as the
// post-action for entering Preparing. Implemented by internal/vcs.
type SnapshotCapturer interface {
	Capture(ctx context.Context, task *types.Task, description string) (types.WorktreeSnapshot, error)
	Restore(ctx context.Context, task *types.Task, snapshot types.WorktreeSnapshot) error
}

// Machine drives Task state transitions per the allowed edge set,
// recording WorkRecords and running post-actions. One Machine instance is
// shared process-wide; callers pass the Task they're mutating. Access to
// a given task's state is serialized by the caller (the orchestrator owns
// exclusive access to a task while it's driving it), mirroring the
// per-session-id locking policy used for sessions.
type Machine struct {
	mu        sync.Mutex
	snapshots SnapshotCapturer
	quality   QualityGateRunner
}

// NewMachine builds a Machine. Either collaborator may be nil; the
// corresponding post-action is then a no-op (useful in tests).
func NewMachine(snapshots SnapshotCapturer, quality QualityGateRunner) *Machine {
	return &Machine{snapshots: snapshots, quality: quality}
}

// Transition attempts to move task from its current state to `to`,
// issued by role. It validates the edge is in the allowed set, the role
// may invoke it, and its preconditions hold; runs post-actions; and
// records a WorkRecord. On failure the task is left unchanged.
func (m *Machine) Transition(ctx context.Context, task *types.Task, to types.TaskState, role types.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := task.State
	rule := findRule(from, to)
	if rule == nil {
		return &apperr.InvalidStateTransition{From: from.String(), To: to.String()}
	}
	if !roleAllowed(rule, role) {
		return &apperr.InvalidStateTransition{From: from.String(), To: to.String()}
	}
	if !m.checkPreconditions(rule.Preconditions, task) {
		return &apperr.InvalidStateTransition{From: from.String(), To: to.String()}
	}

	task.State = to
	task.Metadata.WorkRecords = append(task.Metadata.WorkRecords, types.WorkRecord{
		Kind:      "transitioned",
		Detail:    from.String() + " -> " + to.String(),
		Timestamp: time.Now(),
	})

	m.runPostActions(ctx, task, rule.PostActions)

	event.Publish(event.Event{
		Type: event.TaskStateChanged,
		Data: event.TaskStateChangedData{TaskID: task.ID, From: from, To: to},
	})
	if to == types.TaskBlocked {
		event.Publish(event.Event{
			Type: event.TaskBlocked,
			Data: event.TaskBlockedData{TaskID: task.ID, Reason: "transitioned to blocked, awaiting human approval"},
		})
	}

	return nil
}

// AllowedTransitions returns the states task may currently move to,
// filtering the rule set by from-state and precondition satisfaction
// (ignoring role, since the caller may be checking on behalf of several
// roles at once).
func (m *Machine) AllowedTransitions(task *types.Task) []types.TaskState {
	var out []types.TaskState
	for i := range Rules {
		rule := &Rules[i]
		if rule.From != task.State {
			continue
		}
		if !m.checkPreconditions(rule.Preconditions, task) {
			continue
		}
		out = append(out, rule.To)
	}
	return out
}

func (m *Machine) checkPreconditions(preconditions []Precondition, task *types.Task) bool {
	for _, p := range preconditions {
		switch p {
		case PreconditionDependenciesComplete:
			// No cross-task dependency graph is modeled yet; treated as
			// always satisfied until the discovery pass tracks it.
		case PreconditionArtifactsPresent:
			if len(task.Metadata.WorkRecords) == 0 {
				return false
			}
		case PreconditionAllTestsPassed:
			if !hasPassingQualityRecord(task) {
				return false
			}
		case PreconditionHumanApproved:
			if !hasHumanApproval(task) {
				return false
			}
		case PreconditionCustom:
		}
	}
	return true
}

func hasPassingQualityRecord(task *types.Task) bool {
	for _, r := range task.Metadata.WorkRecords {
		if r.Kind == "quality_check_passed" {
			return true
		}
	}
	return false
}

func hasHumanApproval(task *types.Task) bool {
	for _, r := range task.Metadata.WorkRecords {
		if r.Kind == "human_approved" {
			return true
		}
	}
	return false
}

func (m *Machine) runPostActions(ctx context.Context, task *types.Task, actions []PostActionKind) {
	for _, action := range actions {
		switch action {
		case PostActionCaptureSnapshot:
			if m.snapshots == nil {
				continue
			}
			snapshot, err := m.snapshots.Capture(ctx, task, "entering "+task.State.String())
			if err == nil {
				task.Snapshots = append(task.Snapshots, snapshot)
			}
		case PostActionRunQualityCheck:
			if m.quality == nil || task.QualityGate == nil {
				continue
			}
			kind := "quality_check_passed"
			if err := m.quality.Run(ctx, task); err != nil {
				kind = "quality_check_failed"
			}
			task.Metadata.WorkRecords = append(task.Metadata.WorkRecords, types.WorkRecord{
				Kind:      kind,
				Timestamp: time.Now(),
			})
		case PostActionNotify, PostActionTriggerAutomation:
			// Notification/automation hooks are external-collaborator
			// concerns; the event published in Transition already carries
			// everything a subscriber needs to act on them.
		}
	}
}
