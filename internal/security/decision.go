package security

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/agentforge/core/internal/event"
	"github.com/agentforge/core/pkg/types"
)

// configFilePatterns names files whose WriteFile mutation needs High
// privilege instead of the WriteFile default; CreateFile is not affected.
var configFilePatterns = []string{"Cargo.toml", "package.json", "go.mod", "go.sum", ".env"}

func isConfigFile(path string) bool {
	base := filepath.Base(path)
	for _, p := range configFilePatterns {
		if strings.HasPrefix(p, ".") && strings.HasPrefix(base, p) {
			return true
		}
		if base == p {
			return true
		}
	}
	return false
}

var buildCommands = map[string]bool{
	"build": true, "make": true,
}

func isBuildCommand(cmd string, args []string) bool {
	if buildCommands[cmd] {
		return true
	}
	for _, a := range args {
		if a == "build" {
			return true
		}
	}
	return false
}

// RequiredPrivilege derives the minimum Privilege an action demands, per
// the rules in spec §4.2 step 1.
func RequiredPrivilege(action types.Action) types.Privilege {
	switch a := action.(type) {
	case *types.ReadFileAction, *types.SearchKnowledgeAction, *types.CreateTaskAction, *types.RunTestsAction:
		return types.PrivilegeNormal
	case *types.WriteFileAction:
		if isConfigFile(a.Path) {
			return types.PrivilegeHigh
		}
		return types.PrivilegeElevated
	case *types.CreateFileAction:
		return types.PrivilegeElevated
	case *types.SaveKnowledgeAction:
		return types.PrivilegeElevated
	case *types.DeleteFileAction:
		return types.PrivilegeHigh
	case *types.RunCommandAction:
		level, _ := DangerLevelOf(strings.TrimSpace(a.Cmd + " " + strings.Join(a.Args, " ")))
		switch {
		case level == DangerCritical:
			return types.PrivilegeCritical
		case level == DangerHigh, isBuildCommand(a.Cmd, a.Args):
			return types.PrivilegeHigh
		default:
			return types.PrivilegeElevated
		}
	case *types.GitAction:
		if a.Op == types.GitCommit {
			return types.PrivilegeHigh
		}
		return types.PrivilegeElevated
	case *types.RunQualityCheckAction:
		return types.PrivilegeElevated
	default:
		return types.PrivilegeNormal
	}
}

// ValidatorResult is what a Validator returns for a single intent.
type ValidatorResult struct {
	Kind types.VerdictKind // Allow, Deny, RequireHuman, Modify, Defer

	Reason    string
	ErrorCode types.ErrorCode

	Question string
	Context  map[string]any

	NewAction types.Action
	Warnings  []string

	RequiredInfo []string
}

// Allowed is a convenience constructor for the common "no objection" case.
func Allowed() ValidatorResult { return ValidatorResult{Kind: types.VerdictAllow} }

// Validator is a pure function over (intent, policy state); it must not
// perform I/O. Validators are polymorphic over this capability set, not
// an inheritance hierarchy.
type Validator interface {
	Name() string
	Priority() int
	Validate(intent types.Intent, policy PolicyState) ValidatorResult
}

// PolicyState is the read-only snapshot of engine configuration a
// validator may consult.
type PolicyState struct {
	StrictMode             bool
	AllowDangerous         bool
	MaxFileModifications   int
	RequireHumanForHighRisk bool
	Counters               map[string]int
}

// Engine is the Decision Engine: it converts Intents into Verdicts by
// running ordered validators, then falling back to default policy.
type Engine struct {
	mu         sync.RWMutex
	validators []Validator
	policy     PolicyState
	counters   map[string]*int64
}

// NewEngine builds an Engine with the given initial policy state.
func NewEngine(policy PolicyState) *Engine {
	return &Engine{policy: policy, counters: make(map[string]*int64)}
}

// RegisterValidator appends v to the validator chain, then re-sorts by
// ascending declared priority. Equal priorities preserve registration
// order (sort.SliceStable).
func (e *Engine) RegisterValidator(v Validator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.validators = append(e.validators, v)
	sort.SliceStable(e.validators, func(i, j int) bool {
		return e.validators[i].Priority() < e.validators[j].Priority()
	})
}

// PolicyState returns the engine's current policy snapshot, including
// mutable counters.
func (e *Engine) PolicyState() PolicyState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	snapshot := e.policy
	snapshot.Counters = make(map[string]int, len(e.counters))
	for k, v := range e.counters {
		snapshot.Counters[k] = int(atomic.LoadInt64(v))
	}
	return snapshot
}

func (e *Engine) bumpCounter(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.counters[name] == nil {
		var z int64
		e.counters[name] = &z
	}
	atomic.AddInt64(e.counters[name], 1)
}

// Evaluate converts an Intent into a Verdict per spec §4.2's algorithm:
// privilege check, then ordered validators (first non-Allow wins), then
// default-allow with conditions attached.
func (e *Engine) Evaluate(intent types.Intent) types.Verdict {
	required := RequiredPrivilege(intent.Action)
	granted := types.GrantedPrivilege(intent.AgentRole)

	if granted < required {
		e.bumpCounter("insufficient_privilege")
		verdict := types.DenyVerdict(intent.Action, types.ErrCodeInsufficientPrivilege,
			"role "+string(intent.AgentRole)+" lacks privilege for this action")
		event.Publish(event.Event{Type: event.IntentEvaluated, Data: event.IntentEvaluatedData{Intent: intent, Verdict: verdict}})
		return verdict
	}

	e.mu.RLock()
	validators := make([]Validator, len(e.validators))
	copy(validators, e.validators)
	e.mu.RUnlock()

	policy := e.PolicyState()

	for _, v := range validators {
		result := v.Validate(intent, policy)
		switch result.Kind {
		case types.VerdictAllow:
			continue
		case types.VerdictDeny:
			e.bumpCounter("denied")
			verdict := types.DenyVerdict(intent.Action, result.ErrorCode, result.Reason)
			event.Publish(event.Event{Type: event.IntentEvaluated, Data: event.IntentEvaluatedData{Intent: intent, Verdict: verdict}})
			return verdict
		case types.VerdictRequireHuman:
			e.bumpCounter("require_human")
			verdict := types.RequireHumanVerdict(intent.Action, result.Question, result.Context, nil)
			event.Publish(event.Event{Type: event.IntentEvaluated, Data: event.IntentEvaluatedData{Intent: intent, Verdict: verdict}})
			return verdict
		case types.VerdictModify:
			verdict := types.ModifyVerdict(result.NewAction, result.Reason, result.Warnings...)
			event.Publish(event.Event{Type: event.IntentEvaluated, Data: event.IntentEvaluatedData{Intent: intent, Verdict: verdict}})
			return verdict
		case types.VerdictDefer:
			verdict := types.DeferVerdict(result.RequiredInfo, nil)
			event.Publish(event.Event{Type: event.IntentEvaluated, Data: event.IntentEvaluatedData{Intent: intent, Verdict: verdict}})
			return verdict
		}
	}

	conditions := conditionsFor(intent.Action)
	verdict := types.AllowVerdict(intent.Action, granted, conditions...)
	event.Publish(event.Event{Type: event.IntentEvaluated, Data: event.IntentEvaluatedData{Intent: intent, Verdict: verdict}})
	return verdict
}

// EvaluateBatch evaluates each intent independently, preserving input
// order. Validators are pure, so this could parallelize; it runs
// sequentially here since the engine's counters are shared mutable state
// and ordering of counter increments should match input order.
func (e *Engine) EvaluateBatch(intents []types.Intent) []types.Verdict {
	verdicts := make([]types.Verdict, len(intents))
	for i, intent := range intents {
		verdicts[i] = e.Evaluate(intent)
	}
	return verdicts
}

func conditionsFor(action types.Action) []types.Condition {
	switch a := action.(type) {
	case *types.WriteFileAction, *types.CreateFileAction:
		_ = a
		return []types.Condition{types.ConditionMustPassTests}
	case *types.GitAction:
		if a.Op == types.GitCommit {
			return []types.Condition{types.ConditionMustReview}
		}
	}
	return nil
}
