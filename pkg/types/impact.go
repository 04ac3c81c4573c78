package types

// CouplingWarning flags a module whose change footprint tends to ripple.
type CouplingWarning struct {
	Module  string `json:"module"`
	Reason  string `json:"reason"`
}

// VolatileModule is a module the discovery pass flagged as requiring extra
// test coverage before a task touching it can pass the quality gate.
type VolatileModule struct {
	Module           string  `json:"module"`
	RequiredCoverage float64 `json:"required_coverage"`
}

// ImpactReport is the output of the pre-execution discovery pass: what a
// task is expected to touch, and what it must satisfy to be considered
// safe. Consumed by the orchestrator (as invariants in the prompt) and by
// the quality gate runner (as mandatory checks).
type ImpactReport struct {
	FilesToRead       []string          `json:"files_to_read,omitempty"`
	FilesToModify     []string          `json:"files_to_modify,omitempty"`
	FilesToCreate     []string          `json:"files_to_create,omitempty"`
	FilesToDelete     []string          `json:"files_to_delete,omitempty"`
	PublicAPIChanges  []string          `json:"public_api_changes,omitempty"`
	GitOperations     []string          `json:"git_operations,omitempty"`
	RequiredTests     []string          `json:"required_tests,omitempty"`
	VolatileModules   []VolatileModule  `json:"volatile_modules,omitempty"`
	CouplingWarnings  []CouplingWarning `json:"coupling_warnings,omitempty"`
	HardConstraints   []string          `json:"hard_constraints,omitempty"`
}
