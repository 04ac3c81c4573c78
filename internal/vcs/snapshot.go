package vcs

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agentforge/core/internal/apperr"
	"github.com/agentforge/core/internal/event"
	"github.com/agentforge/core/pkg/types"
)

// SnapshotCapturer implements workflow.SnapshotCapturer by shelling out to
// git, in the same style findGitDir/getCurrentBranch use: short-lived
// exec.Command calls rooted at the task's working directory, with no
// persistent process or library dependency.
type SnapshotCapturer struct {
	workDir string
}

// NewSnapshotCapturer builds a SnapshotCapturer rooted at workDir.
func NewSnapshotCapturer(workDir string) *SnapshotCapturer {
	return &SnapshotCapturer{workDir: workDir}
}

// Capture commits any pending changes to a throwaway checkpoint commit (so
// HEAD always names a restorable state) and records it as a
// WorktreeSnapshot. The checkpoint commit is left in history rather than
// squashed or amended, so Restore can move HEAD back to it.
func (c *SnapshotCapturer) Capture(ctx context.Context, task *types.Task, description string) (types.WorktreeSnapshot, error) {
	branch := getCurrentBranch(c.workDir)

	if dirty, err := c.hasUncommittedChanges(ctx); err == nil && dirty {
		if err := c.run(ctx, "add", "-A"); err != nil {
			return types.WorktreeSnapshot{}, &apperr.RollbackFailed{Message: "snapshot stage failed: " + err.Error()}
		}
		if err := c.run(ctx, "commit", "--no-verify", "-m", "checkpoint: "+description); err != nil {
			return types.WorktreeSnapshot{}, &apperr.RollbackFailed{Message: "snapshot commit failed: " + err.Error()}
		}
	}

	hash, err := c.currentCommitHash(ctx)
	if err != nil {
		return types.WorktreeSnapshot{}, &apperr.RollbackFailed{Message: "snapshot rev-parse failed: " + err.Error()}
	}

	files, _ := c.changedFilesSince(ctx, hash)

	snapshot := types.WorktreeSnapshot{
		ID:            types.NewID(),
		CreatedAt:     time.Now(),
		WorktreePath:  c.workDir,
		CommitHash:    hash,
		Branch:        branch,
		AffectedFiles: files,
		Description:   description,
	}

	event.Publish(event.Event{Type: event.SnapshotCaptured, Data: event.SnapshotCapturedData{
		TaskID: task.ID, SnapshotID: snapshot.ID, CommitHash: snapshot.CommitHash,
	}})

	return snapshot, nil
}

// Restore resets the worktree hard to the snapshot's commit. This
// discards any commits made after the snapshot, matching the rollback
// semantics a failed quality gate or a rejected task needs.
func (c *SnapshotCapturer) Restore(ctx context.Context, task *types.Task, snapshot types.WorktreeSnapshot) error {
	if snapshot.CommitHash == "" {
		return &apperr.SnapshotNotFound{TaskID: task.ID, SnapshotID: snapshot.ID}
	}
	if err := c.run(ctx, "reset", "--hard", snapshot.CommitHash); err != nil {
		return &apperr.RollbackFailed{Message: "restore to " + snapshot.CommitHash + " failed: " + err.Error()}
	}
	log.Info().Str("task", task.ID).Str("snapshot", snapshot.ID).Str("commit", snapshot.CommitHash).Msg("worktree restored")
	return nil
}

func (c *SnapshotCapturer) hasUncommittedChanges(ctx context.Context) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "status", "--porcelain")
	cmd.Dir = c.workDir
	out, err := cmd.Output()
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out)) != "", nil
}

func (c *SnapshotCapturer) currentCommitHash(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	cmd.Dir = c.workDir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *SnapshotCapturer) changedFilesSince(ctx context.Context, commitHash string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "show", "--name-only", "--pretty=format:", commitHash)
	cmd.Dir = c.workDir
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

func (c *SnapshotCapturer) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.workDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &apperr.RollbackFailed{Message: strings.TrimSpace(string(out))}
	}
	return nil
}
