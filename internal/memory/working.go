// Package memory implements Working Memory (per-subtask execution
// context) and Gold Memory (the process-wide invariant store) from spec
// §4.5.
package memory

import (
	"fmt"

	"github.com/agentforge/core/pkg/types"
)

// NewWorkingMemory builds a WorkingMemory for scope, seeding its abstract
// history layer from prior if given (nil starts a fresh Progressing
// trajectory at zero attempts).
func NewWorkingMemory(scope string, prior *types.AbstractHistory, raw types.RawCurrent, hardInvariants []types.GoldInvariant) types.WorkingMemory {
	abstractHistory := types.AbstractHistory{
		Trajectory: types.TrajectoryState{Kind: types.TrajectoryProgressing},
	}
	if prior != nil {
		abstractHistory = *prior
	}

	return types.WorkingMemory{
		Scope:          scope,
		Abstract:       abstractHistory,
		Raw:            raw,
		HardInvariants: hardInvariants,
	}
}

// ConciseContextForLLM renders wm into a bounded-size struct suitable for
// prompt embedding.
func ConciseContextForLLM(wm types.WorkingMemory) types.ConciseContext {
	history := fmt.Sprintf("attempts=%d trajectory=%s", wm.Abstract.AttemptCount, wm.Abstract.Trajectory.Kind)
	if wm.Abstract.RootCauseSummary != "" {
		history += " root_cause=" + wm.Abstract.RootCauseSummary
	}

	var files string
	for i, f := range wm.Raw.ActiveFiles {
		if i > 0 {
			files += ", "
		}
		files += f
	}

	var apis string
	for i, a := range wm.Raw.APISurface {
		if i > 0 {
			apis += "; "
		}
		apis += fmt.Sprintf("%s %s (%s:%d)", a.Kind, a.Name, a.File, a.Line)
	}

	var invariants string
	for i, inv := range wm.HardInvariants {
		if i > 0 {
			invariants += "; "
		}
		invariants += "MUST: " + inv.RuleText
	}

	return types.ConciseContext{
		History:      history,
		CurrentFiles: files,
		APIs:         apis,
		Invariants:   invariants,
	}
}

// RecordFailure appends pattern to wm's abstract history, incrementing
// the attempt count and updating the trajectory: more than 3 attempts
// moves the trajectory to Cycling, otherwise to Stuck with the pattern's
// message recorded.
func RecordFailure(wm *types.WorkingMemory, pattern types.FailurePattern) {
	wm.Abstract.AttemptCount++
	wm.Abstract.Failures = append(wm.Abstract.Failures, pattern)

	if wm.Abstract.AttemptCount > 3 {
		wm.Abstract.Trajectory = types.TrajectoryState{
			Kind:    types.TrajectoryCycling,
			Pattern: rootCauseOf(pattern),
		}
	} else {
		wm.Abstract.Trajectory = types.TrajectoryState{
			Kind:      types.TrajectoryStuck,
			LastError: pattern.Message,
		}
	}
}

// RecordSuccess moves wm's trajectory to Progressing, carrying the
// current attempt count forward as steps-since-last-failure.
func RecordSuccess(wm *types.WorkingMemory) {
	wm.Abstract.Trajectory = types.TrajectoryState{
		Kind:           types.TrajectoryProgressing,
		StepsSinceFail: wm.Abstract.AttemptCount,
	}
}

// IsCycling reports whether wm's trajectory is currently Cycling.
func IsCycling(wm types.WorkingMemory) bool {
	return wm.Abstract.Trajectory.Kind == types.TrajectoryCycling
}

// IsStuck reports whether wm's trajectory is currently Stuck.
func IsStuck(wm types.WorkingMemory) bool {
	return wm.Abstract.Trajectory.Kind == types.TrajectoryStuck
}

// DetectCycle reports whether wm's failure history shows a cycle: more
// than 3 attempts, and some 3-wide sliding window of failure patterns
// shares the same root cause (error kind + message).
func DetectCycle(wm types.WorkingMemory) bool {
	if wm.Abstract.AttemptCount <= 3 {
		return false
	}
	failures := wm.Abstract.Failures
	for i := 0; i+2 < len(failures); i++ {
		a, b, c := failures[i], failures[i+1], failures[i+2]
		if sameRootCause(a, b) && sameRootCause(b, c) {
			return true
		}
	}
	return false
}

func sameRootCause(a, b types.FailurePattern) bool {
	return a.ErrorKind == b.ErrorKind && a.Message == b.Message
}

func rootCauseOf(p types.FailurePattern) string {
	return p.ErrorKind + ": " + p.Message
}
