package orchestrator

import (
	"context"
	"time"

	"github.com/agentforge/core/internal/storage"
	"github.com/agentforge/core/pkg/types"
)

// finalize handles a turn that ended with no further tool calls: when
// auto-verify is configured and the turn is bound to a task, it drives
// the task into AwaitingVerification (which runs the quality gate as a
// Workflow State Machine post-action) and reports the outcome back to
// the model as feedback rather than ending the turn, so the loop can
// react to a failing gate instead of silently reporting success.
// continueLoop is true when the caller should run another iteration.
func (o *Orchestrator) finalize(ctx context.Context, session *types.AgentSession, content string, req Request) (resp *Response, continueLoop bool, err error) {
	if !o.config.AutoVerify || req.ActiveTaskID == "" || o.tasks == nil || o.workflow == nil {
		return &Response{SessionID: session.ID, Content: content, IsComplete: true}, false, nil
	}

	task, err := o.tasks.GetTask(ctx, req.ActiveTaskID)
	if err != nil {
		if err == storage.ErrNotFound {
			return &Response{SessionID: session.ID, Content: content, IsComplete: true}, false, nil
		}
		return nil, false, err
	}

	if err := o.setState(ctx, session, types.SessionVerifying); err != nil {
		return nil, false, err
	}

	transitionErr := o.workflow.Transition(ctx, task, types.TaskAwaitingVerification, req.Role)
	if transitionErr != nil {
		// The task isn't in a state this turn can verify from (e.g. it
		// never left Pending); treat the turn as complete without a gate
		// result rather than failing the whole request.
		if err := o.tasks.SaveTask(ctx, task); err != nil {
			return nil, false, err
		}
		return &Response{SessionID: session.ID, Content: content, IsComplete: true}, false, nil
	}

	if err := o.tasks.SaveTask(ctx, task); err != nil {
		return nil, false, err
	}

	passed := lastQualityRecordPassed(task)
	if passed == nil {
		// No quality gate declared, or the runner wasn't wired — nothing
		// to react to.
		return &Response{SessionID: session.ID, Content: content, IsComplete: true, VerificationResult: "skipped"}, false, nil
	}

	if !*passed {
		feedback := types.Message{
			ID:        types.NewID(),
			Role:      types.RoleUser,
			Content:   "The quality gate failed for this task. Review the failing checks and continue fixing the implementation before reporting completion.",
			CreatedAt: time.Now(),
		}
		if err := o.appendMessage(ctx, session, feedback); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	}

	if err := o.workflow.Transition(ctx, task, types.TaskCompleted, req.Role); err == nil {
		_ = o.tasks.SaveTask(ctx, task)
	}

	return &Response{SessionID: session.ID, Content: content, IsComplete: true, VerificationResult: "passed"}, false, nil
}

// lastQualityRecordPassed reports the outcome of the most recent
// quality_check_{passed,failed} WorkRecord appended by the Workflow State
// Machine's RunQualityCheck post-action, or nil when none was recorded.
func lastQualityRecordPassed(task *types.Task) *bool {
	for i := len(task.Metadata.WorkRecords) - 1; i >= 0; i-- {
		switch task.Metadata.WorkRecords[i].Kind {
		case "quality_check_passed":
			v := true
			return &v
		case "quality_check_failed":
			v := false
			return &v
		}
	}
	return nil
}
