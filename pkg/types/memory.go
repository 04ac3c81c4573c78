package types

import "time"

// TrajectoryKind discriminates the Working Memory trajectory state.
type TrajectoryKind string

const (
	TrajectoryProgressing TrajectoryKind = "progressing"
	TrajectoryCycling     TrajectoryKind = "cycling"
	TrajectoryStuck       TrajectoryKind = "stuck"
)

// TrajectoryState is a tagged variant: StepsSinceFail is meaningful only
// for Progressing, Pattern only for Cycling, LastError only for Stuck.
type TrajectoryState struct {
	Kind           TrajectoryKind `json:"kind"`
	StepsSinceFail int            `json:"steps_since_fail,omitempty"`
	Pattern        string         `json:"pattern,omitempty"`
	LastError      string         `json:"last_error,omitempty"`
}

// FailurePattern is one recorded failure in a subtask's abstract history.
type FailurePattern struct {
	ErrorKind string    `json:"error_kind"`
	Message   string    `json:"message"`
	File      string    `json:"file,omitempty"`
	Line      int       `json:"line,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AbstractHistory is the Working Memory's failure-history layer.
type AbstractHistory struct {
	Failures          []FailurePattern `json:"failures,omitempty"`
	RootCauseSummary  string           `json:"root_cause_summary,omitempty"`
	AttemptCount      int              `json:"attempt_count"`
	Trajectory        TrajectoryState  `json:"trajectory"`
}

// APIKind enumerates the kinds of API surface entries tracked by Working Memory.
type APIKind string

const (
	APIFunction APIKind = "function"
	APIStruct   APIKind = "struct"
	APIEnum     APIKind = "enum"
	APITrait    APIKind = "trait"
	APIType     APIKind = "type"
	APIConstant APIKind = "constant"
)

// APISurfaceEntry names one function/type/constant relevant to the subtask.
type APISurfaceEntry struct {
	Name string  `json:"name"`
	Kind APIKind `json:"kind"`
	File string  `json:"file"`
	Line int     `json:"line"`
}

// RawCurrent is the Working Memory's live-state layer.
type RawCurrent struct {
	ActiveFiles   []string          `json:"active_files,omitempty"`
	APISurface    []APISurfaceEntry `json:"api_surface,omitempty"`
	StepContext   string            `json:"step_context,omitempty"`
}

// WorkingMemory is the per-subtask three-layer execution context: abstract
// failure history, raw current working set, and hard invariants pulled
// from Gold Memory. It is not shared across concurrent subtasks.
type WorkingMemory struct {
	Scope           string            `json:"scope"`
	Abstract        AbstractHistory   `json:"abstract"`
	Raw             RawCurrent        `json:"raw"`
	HardInvariants  []GoldInvariant   `json:"hard_invariants,omitempty"`
}

// ConciseContext is the bounded-size rendering of a WorkingMemory suitable
// for embedding in an LLM prompt.
type ConciseContext struct {
	History      string `json:"history"`
	CurrentFiles string `json:"current_files"`
	APIs         string `json:"apis"`
	Invariants   string `json:"invariants"`
}

// InvariantSource records where a Gold Invariant originated.
type InvariantSource string

const (
	SourceHumanCorrection  InvariantSource = "human_correction"
	SourceAutomatedTest    InvariantSource = "automated_test"
	SourceSystemInference  InvariantSource = "system_inference"
	SourceLineageTransfer  InvariantSource = "lineage_transfer"
)

// ScopeType narrows where a Gold Invariant applies.
type ScopeType string

const (
	ScopeGlobal      ScopeType = "global"
	ScopeTaskPattern ScopeType = "task_pattern"
	ScopeFilePattern ScopeType = "file_pattern"
	ScopeModule      ScopeType = "module"
	ScopeAPIPattern  ScopeType = "api_pattern"
)

// InvariantScope names the portion of the codebase/task space an
// invariant's rule applies to.
type InvariantScope struct {
	Type    ScopeType `json:"type"`
	Pattern string    `json:"pattern,omitempty"`
}

// InvariantPriority is the escalation level of a Gold Invariant.
type InvariantPriority string

const (
	PriorityLow      InvariantPriority = "low"
	PriorityMedium   InvariantPriority = "medium"
	PriorityHigh     InvariantPriority = "high"
	PriorityCritical InvariantPriority = "critical"
)

// GoldInvariant is a durable rule in the process-wide Gold Memory store.
// Once added, an invariant is never silently dropped; deactivation is
// explicit and timestamped via IsActive/DeactivatedAt.
type GoldInvariant struct {
	ID               string            `json:"id"`
	RuleText         string            `json:"rule_text"`
	Description      string            `json:"description,omitempty"`
	Source           InvariantSource   `json:"source"`
	Scope            InvariantScope    `json:"scope"`
	Priority         InvariantPriority `json:"priority"`
	VersionConstraints []string        `json:"version_constraints,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	ValidationCount  int               `json:"validation_count"`
	ViolationCount   int               `json:"violation_count"`
	LastValidated    *time.Time        `json:"last_validated,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	IsActive         bool              `json:"is_active"`
	DeactivatedAt    *time.Time        `json:"deactivated_at,omitempty"`
}

// MemoryQuery filters Gold Memory lookups.
type MemoryQuery struct {
	OnlyActive         bool              `json:"only_active,omitempty"`
	Priority           InvariantPriority `json:"priority,omitempty"`
	ScopeType          ScopeType         `json:"scope_type,omitempty"`
	Tags               []string          `json:"tags,omitempty"`
	MinValidationCount int               `json:"min_validation_count,omitempty"`
	Limit              int               `json:"limit,omitempty"`
}

// InvariantContext describes the applicability query used by find_applicable.
type InvariantContext struct {
	TaskDescription string   `json:"task_description"`
	Files           []string `json:"files,omitempty"`
	Modules         []string `json:"modules,omitempty"`
	APICalls        []string `json:"api_calls,omitempty"`
	MinPriority     InvariantPriority `json:"min_priority,omitempty"`
}

// ValidationOutcome is the result of validate_action against applicable invariants.
type ValidationOutcome struct {
	Passed          bool            `json:"passed"`
	Violations      []GoldInvariant `json:"violations,omitempty"`
	ApplicableCount int             `json:"applicable_count"`
}
