package security

import (
	"github.com/agentforge/core/pkg/types"
)

// GatewayValidator wraps a Gateway as a Decision Engine validator so path,
// shell, and git-commit enforcement run as part of the ordinary validator
// chain instead of a separate pass. The shell and git-commit checks are
// pure string analysis; the path check reads the filesystem to resolve
// symlinks (see Canonicalize).
type GatewayValidator struct {
	gateway    *Gateway
	workingDir string
	priority   int
}

// NewGatewayValidator builds a validator that enforces gateway at the
// given priority (lower runs earlier).
func NewGatewayValidator(gateway *Gateway, workingDir string, priority int) *GatewayValidator {
	return &GatewayValidator{gateway: gateway, workingDir: workingDir, priority: priority}
}

func (v *GatewayValidator) Name() string  { return "security_gateway" }
func (v *GatewayValidator) Priority() int { return v.priority }

func (v *GatewayValidator) Validate(intent types.Intent, _ PolicyState) ValidatorResult {
	if err := v.gateway.CheckAction(intent.Action, v.workingDir, nil); err != nil {
		return ValidatorResult{
			Kind:      types.VerdictDeny,
			ErrorCode: types.ErrCodePermissionDenied,
			Reason:    err.Error(),
		}
	}
	return Allowed()
}

// DoomLoopValidator flags an intent whose action (kind and content, not
// the agent) is the same in the last DoomLoopThreshold calls within a
// session, steering the
// orchestrator toward RequireHuman instead of looping silently.
type DoomLoopValidator struct {
	detector  *DoomLoopDetector
	sessionID string
	priority  int
}

// NewDoomLoopValidator builds a validator bound to one session's call
// history.
func NewDoomLoopValidator(detector *DoomLoopDetector, sessionID string, priority int) *DoomLoopValidator {
	return &DoomLoopValidator{detector: detector, sessionID: sessionID, priority: priority}
}

func (v *DoomLoopValidator) Name() string  { return "doom_loop" }
func (v *DoomLoopValidator) Priority() int { return v.priority }

func (v *DoomLoopValidator) Validate(intent types.Intent, _ PolicyState) ValidatorResult {
	if v.detector.Check(v.sessionID, intent.Action.ActionKind(), intent.Action) {
		return ValidatorResult{
			Kind:     types.VerdictRequireHuman,
			Question: "the same action has repeated " + "several times in a row; how should I proceed?",
			Context:  map[string]any{"action_kind": intent.Action.ActionKind()},
		}
	}
	return Allowed()
}
