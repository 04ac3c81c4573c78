package types

import "time"

// TaskState is the workflow lifecycle state of a Task.
type TaskState int

const (
	TaskPending TaskState = iota
	TaskPreparing
	TaskInProgress
	TaskAwaitingVerification
	TaskBlocked
	TaskCompleted
	TaskFailed
	TaskCancelled
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskPreparing:
		return "preparing"
	case TaskInProgress:
		return "in_progress"
	case TaskAwaitingVerification:
		return "awaiting_verification"
	case TaskBlocked:
		return "blocked"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	case TaskCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// StepStatus is the execution status of a single ExecutionStep.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
	StepSkipped    StepStatus = "skipped"
)

// ExecutionStep records one step of a Task's execution. Append-only within
// a Task; StepID is monotonic within that task.
type ExecutionStep struct {
	StepID     int            `json:"step_id"`
	Action     Action         `json:"-"`
	RawAction  []byte         `json:"action"`
	Status     StepStatus     `json:"status"`
	Result     *string        `json:"result,omitempty"`
	ExecutedAt *time.Time     `json:"executed_at,omitempty"`
}

// NewExecutionStep builds an ExecutionStep, encoding Action into RawAction.
func NewExecutionStep(stepID int, action Action) (ExecutionStep, error) {
	raw, err := MarshalAction(action)
	if err != nil {
		return ExecutionStep{}, err
	}
	return ExecutionStep{StepID: stepID, Action: action, RawAction: raw, Status: StepPending}, nil
}

// WorktreeSnapshot records filesystem/git state at a task checkpoint,
// usable for rollback. Snapshots are append-only and monotonic in time.
type WorktreeSnapshot struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	WorktreePath  string    `json:"worktree_path"`
	CommitHash    string    `json:"commit_hash"`
	Branch        string    `json:"branch"`
	AffectedFiles []string  `json:"affected_files,omitempty"`
	Description   string    `json:"description,omitempty"`
}

// QualityGateSpec names the checklist the Quality Gate Runner evaluates
// when a Task transitions into AwaitingVerification.
type QualityGateSpec struct {
	Name               string   `json:"name"`
	RequiredChecks     []string `json:"required_checks,omitempty"`
	MinCoveragePercent float64  `json:"min_coverage_percent,omitempty"`
}

// TaskMetadata carries free-form tags and a work-record log (e.g. rollback
// events) that don't belong in the strict execution history.
type TaskMetadata struct {
	Tags        []string     `json:"tags,omitempty"`
	WorkRecords []WorkRecord `json:"work_records,omitempty"`
}

// WorkRecord is an audit entry appended for notable task lifecycle events
// (rollback, blocking, human escalation).
type WorkRecord struct {
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Task is the unit of work driven through the workflow state machine.
// State transitions must follow the allowed edges of the state machine;
// Steps and Snapshots are append-only.
type Task struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	State       TaskState         `json:"state"`
	Priority    int               `json:"priority"`
	CreatedBy   Role              `json:"created_by"`
	CreatedAt   time.Time         `json:"created_at"`
	Intent      *Intent           `json:"intent,omitempty"`
	Steps       []ExecutionStep   `json:"steps"`
	Snapshots   []WorktreeSnapshot `json:"snapshots"`
	QualityGate *QualityGateSpec  `json:"quality_gate,omitempty"`
	Metadata    TaskMetadata      `json:"metadata"`
}

// NewTask constructs a Pending Task with a fresh sortable id.
func NewTask(title, description string, createdBy Role) Task {
	return Task{
		ID:          NewID(),
		Title:       title,
		Description: description,
		State:       TaskPending,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now(),
		Steps:       []ExecutionStep{},
		Snapshots:   []WorktreeSnapshot{},
	}
}

// NextStepID returns the monotonic id the next appended ExecutionStep
// should use.
func (t *Task) NextStepID() int {
	return len(t.Steps) + 1
}
