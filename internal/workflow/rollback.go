package workflow

import (
	"context"
	"time"

	"github.com/agentforge/core/internal/apperr"
	"github.com/agentforge/core/pkg/types"
)

// Rollback restores task's worktree to the state recorded by snapshotID,
// deletes any snapshots recorded after it, and appends a WorkRecord. The
// task's lifecycle state is left to the caller to adjust afterward (a
// rollback doesn't itself imply a state transition).
func (m *Machine) Rollback(ctx context.Context, task *types.Task, snapshotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i, s := range task.Snapshots {
		if s.ID == snapshotID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return &apperr.SnapshotNotFound{TaskID: task.ID, SnapshotID: snapshotID}
	}

	if m.snapshots == nil {
		return &apperr.RollbackFailed{Message: "no snapshot collaborator configured"}
	}

	target := task.Snapshots[idx]
	if err := m.snapshots.Restore(ctx, task, target); err != nil {
		return &apperr.RollbackFailed{Message: err.Error()}
	}

	task.Snapshots = task.Snapshots[:idx+1]
	task.Metadata.WorkRecords = append(task.Metadata.WorkRecords, types.WorkRecord{
		Kind:      "rolled_back",
		Detail:    "restored to snapshot " + snapshotID,
		Timestamp: time.Now(),
	})

	return nil
}
