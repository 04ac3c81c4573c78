package workflow

import "github.com/agentforge/core/pkg/types"

// Precondition names a guard a transition rule requires before it fires.
type Precondition string

const (
	PreconditionDependenciesComplete Precondition = "dependencies_complete"
	PreconditionArtifactsPresent     Precondition = "artifacts_present"
	PreconditionAllTestsPassed       Precondition = "all_tests_passed"
	PreconditionHumanApproved        Precondition = "human_approved"
	PreconditionCustom               Precondition = "custom"
)

// PostActionKind names a side effect a rule triggers after it fires.
type PostActionKind string

const (
	PostActionCaptureSnapshot   PostActionKind = "capture_snapshot"
	PostActionNotify            PostActionKind = "notify"
	PostActionRunQualityCheck   PostActionKind = "run_quality_check"
	PostActionTriggerAutomation PostActionKind = "trigger_automation"
)

// Rule describes one allowed (from, to) edge in the task state machine,
// along with its guards, permitted issuing roles, and side effects.
type Rule struct {
	From            types.TaskState
	To              types.TaskState
	Preconditions   []Precondition
	AllowedRoles    []types.Role
	AutoTransition  bool
	PostActions     []PostActionKind
}

// Rules is the design table from spec §4.3, in registration order. Equal
// (from, to) pairs never repeat; lookups are a linear scan since the set
// is small and fixed at startup.
var Rules = []Rule{
	{
		From:           types.TaskPending,
		To:             types.TaskPreparing,
		AllowedRoles:   []types.Role{types.RolePlanner, types.RoleHistorian, types.RoleAdmin},
		AutoTransition: true,
		PostActions:    []PostActionKind{PostActionCaptureSnapshot},
	},
	{
		From:         types.TaskPending,
		To:           types.TaskCancelled,
		AllowedRoles: []types.Role{types.RoleAdmin, types.RoleHistorian},
	},
	{
		From:           types.TaskPreparing,
		To:             types.TaskInProgress,
		AllowedRoles:   []types.Role{types.RoleImplementer, types.RolePlanner},
		AutoTransition: true,
	},
	{
		From:         types.TaskPreparing,
		To:           types.TaskBlocked,
		AllowedRoles: []types.Role{types.RoleImplementer, types.RoleReviewer, types.RoleHistorian},
		PostActions:  []PostActionKind{PostActionNotify},
	},
	{
		From:         types.TaskPreparing,
		To:           types.TaskFailed,
		AllowedRoles: []types.Role{types.RoleImplementer, types.RoleAdmin},
	},
	{
		From:         types.TaskPreparing,
		To:           types.TaskCancelled,
		AllowedRoles: []types.Role{types.RoleAdmin, types.RoleHistorian},
	},
	{
		From:           types.TaskInProgress,
		To:             types.TaskAwaitingVerification,
		Preconditions:  []Precondition{PreconditionArtifactsPresent},
		AllowedRoles:   []types.Role{types.RoleImplementer, types.RoleTester},
		AutoTransition: true,
		PostActions:    []PostActionKind{PostActionRunQualityCheck},
	},
	{
		From:         types.TaskInProgress,
		To:           types.TaskBlocked,
		AllowedRoles: []types.Role{types.RoleImplementer, types.RoleReviewer, types.RoleHistorian},
		PostActions:  []PostActionKind{PostActionNotify},
	},
	{
		From:         types.TaskInProgress,
		To:           types.TaskFailed,
		AllowedRoles: []types.Role{types.RoleImplementer, types.RoleAdmin},
	},
	{
		From:         types.TaskInProgress,
		To:           types.TaskCancelled,
		AllowedRoles: []types.Role{types.RoleAdmin, types.RoleHistorian},
	},
	{
		From:           types.TaskAwaitingVerification,
		To:             types.TaskInProgress,
		AllowedRoles:   []types.Role{types.RoleReviewer, types.RoleTester},
		AutoTransition: false,
	},
	{
		From:         types.TaskAwaitingVerification,
		To:           types.TaskBlocked,
		AllowedRoles: []types.Role{types.RoleReviewer, types.RoleHistorian},
		PostActions:  []PostActionKind{PostActionNotify},
	},
	{
		From:           types.TaskAwaitingVerification,
		To:             types.TaskCompleted,
		Preconditions:  []Precondition{PreconditionAllTestsPassed},
		AllowedRoles:   []types.Role{types.RoleReviewer, types.RoleAdmin},
		AutoTransition: true,
		PostActions:    []PostActionKind{PostActionTriggerAutomation},
	},
	{
		From:         types.TaskAwaitingVerification,
		To:           types.TaskFailed,
		AllowedRoles: []types.Role{types.RoleReviewer, types.RoleHistorian},
	},
	{
		From:         types.TaskAwaitingVerification,
		To:           types.TaskCancelled,
		AllowedRoles: []types.Role{types.RoleAdmin, types.RoleHistorian},
	},
	{
		From:         types.TaskBlocked,
		To:           types.TaskInProgress,
		Preconditions: []Precondition{PreconditionHumanApproved},
		AllowedRoles:  []types.Role{types.RoleAdmin, types.RoleHistorian},
	},
	{
		From:         types.TaskBlocked,
		To:           types.TaskFailed,
		AllowedRoles: []types.Role{types.RoleAdmin},
	},
	{
		From:         types.TaskBlocked,
		To:           types.TaskCancelled,
		AllowedRoles: []types.Role{types.RoleAdmin, types.RoleHistorian},
	},
	{
		From:         types.TaskCompleted,
		To:           types.TaskPending,
		AllowedRoles: []types.Role{types.RoleAdmin, types.RoleHistorian},
	},
	{
		From:         types.TaskFailed,
		To:           types.TaskPending,
		AllowedRoles: []types.Role{types.RoleAdmin, types.RoleHistorian},
	},
}

// findRule returns the registered rule for (from, to), or nil if the edge
// isn't in the allowed set.
func findRule(from, to types.TaskState) *Rule {
	for i := range Rules {
		if Rules[i].From == from && Rules[i].To == to {
			return &Rules[i]
		}
	}
	return nil
}

func roleAllowed(rule *Rule, role types.Role) bool {
	for _, r := range rule.AllowedRoles {
		if r == role {
			return true
		}
	}
	return false
}
