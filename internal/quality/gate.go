// Package quality implements the Quality Gate Runner: a named,
// declarative checklist of commands (tests, lint, vet, coverage) that the
// workflow state machine invokes on the post-action for entering
// AwaitingVerification, satisfying workflow.QualityGateRunner.
package quality

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agentforge/core/internal/apperr"
	"github.com/agentforge/core/internal/event"
	"github.com/agentforge/core/pkg/types"
)

// DefaultTimeout bounds a single check's run so a hung test suite can't
// stall a task transition forever. It is longer than the shell tool's
// default timeout (DefaultShellTimeout, 120s).
const DefaultTimeout = 5 * time.Minute

// CheckCommand is one named, runnable entry in the checklist.
type CheckCommand struct {
	Name string
	Path string
	Args []string
}

// Runner evaluates a Task's QualityGateSpec by shelling out to the
// commands registered under each required check's name. Unregistered
// check names and non-zero exits both count as failures; the runner
// collects every failure before reporting rather than stopping at the
// first one, so a caller sees the whole picture in one pass.
type Runner struct {
	workDir  string
	timeout  time.Duration
	commands map[string]CheckCommand
}

// NewRunner builds a Runner rooted at workDir with the default checklist
// (go test, go vet, golangci-lint). Callers needing a different toolchain
// (non-Go projects, CI wrappers) should register their own commands with
// RegisterCheck instead of relying on the defaults.
func NewRunner(workDir string) *Runner {
	r := &Runner{
		workDir:  workDir,
		timeout:  DefaultTimeout,
		commands: make(map[string]CheckCommand),
	}
	r.RegisterCheck("tests", "go", "test", "./...")
	r.RegisterCheck("vet", "go", "vet", "./...")
	r.RegisterCheck("lint", "golangci-lint", "run", "./...")
	r.RegisterCheck("coverage", "go", "test", "-cover", "./...")
	return r
}

// RegisterCheck adds or replaces the command run for a named check.
func (r *Runner) RegisterCheck(name, path string, args ...string) {
	r.commands[name] = CheckCommand{Name: name, Path: path, Args: args}
}

// SetTimeout overrides the per-check timeout.
func (r *Runner) SetTimeout(d time.Duration) {
	r.timeout = d
}

// Run evaluates task.QualityGate, satisfying workflow.QualityGateRunner.
// A nil QualityGate passes trivially — tasks that don't declare one have
// nothing to enforce. Returns apperr.QualityCheckFailed naming every
// failed check when any required check fails or the coverage threshold
// isn't met.
func (r *Runner) Run(ctx context.Context, task *types.Task) error {
	if task.QualityGate == nil {
		return nil
	}
	gate := task.QualityGate

	var failed []string
	outputs := make(map[string]string)

	for _, name := range gate.RequiredChecks {
		cmd, ok := r.commands[name]
		if !ok {
			failed = append(failed, name+" (unregistered)")
			continue
		}
		out, err := r.runCommand(ctx, cmd)
		outputs[name] = out
		if err != nil {
			failed = append(failed, name)
		}
	}

	if gate.MinCoveragePercent > 0 {
		pct, ok := r.measureCoverage(ctx)
		if !ok || pct < gate.MinCoveragePercent {
			failed = append(failed, fmt.Sprintf("coverage (%.1f%% < %.1f%%)", pct, gate.MinCoveragePercent))
		}
	}

	passed := len(failed) == 0

	event.Publish(event.Event{
		Type: event.QualityGateEvaluated,
		Data: event.QualityGateEvaluatedData{
			TaskID:       task.ID,
			GateName:     gate.Name,
			Passed:       passed,
			FailedChecks: failed,
		},
	})

	log.Debug().
		Str("task_id", task.ID).
		Str("gate", gate.Name).
		Bool("passed", passed).
		Msg("quality gate evaluated")

	if !passed {
		return &apperr.QualityCheckFailed{
			Message: fmt.Sprintf("quality gate %q failed: %s", gate.Name, strings.Join(failed, ", ")),
		}
	}
	return nil
}

func (r *Runner) runCommand(ctx context.Context, check CheckCommand) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, check.Path, check.Args...)
	cmd.Dir = r.workDir

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	return buf.String(), err
}

// coveragePattern matches `go test -cover`'s per-package summary line,
// e.g. "ok  	pkg/types	0.012s	coverage: 87.5% of statements".
var coveragePattern = regexp.MustCompile(`coverage:\s*(\d+(?:\.\d+)?)%`)

// measureCoverage runs the registered "coverage" check and averages the
// per-package percentages `go test -cover` prints, since it reports one
// line per package rather than a single module-wide figure.
func (r *Runner) measureCoverage(ctx context.Context) (float64, bool) {
	check, ok := r.commands["coverage"]
	if !ok {
		return 0, false
	}
	out, err := r.runCommand(ctx, check)
	if err != nil {
		return 0, false
	}

	matches := coveragePattern.FindAllStringSubmatch(out, -1)
	if len(matches) == 0 {
		return 0, false
	}

	var total float64
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		total += v
	}
	return total / float64(len(matches)), true
}
