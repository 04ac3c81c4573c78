package headless

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/agentforge/core/internal/agent"
	"github.com/agentforge/core/internal/config"
	"github.com/agentforge/core/internal/executor"
	"github.com/agentforge/core/internal/memory"
	"github.com/agentforge/core/internal/orchestrator"
	"github.com/agentforge/core/internal/provider"
	"github.com/agentforge/core/internal/quality"
	"github.com/agentforge/core/internal/security"
	"github.com/agentforge/core/internal/storage"
	"github.com/agentforge/core/internal/tool"
	"github.com/agentforge/core/internal/vcs"
	"github.com/agentforge/core/internal/workflow"
	"github.com/agentforge/core/pkg/types"
)

// Runner executes prompts in headless mode by driving one Agent
// Orchestrator turn to completion and reporting the result.
type Runner struct {
	config    *Config
	appConfig *types.Config
	printer   *Printer
	storage   *storage.Storage
	sessions  *storage.SessionStore

	orc *orchestrator.Orchestrator

	defaultProviderID string
	defaultModelID    string
}

// NewRunner creates a new headless runner.
func NewRunner(cfg *Config) *Runner {
	return &Runner{
		config: cfg,
	}
}

// Run executes the headless session and returns the result.
func (r *Runner) Run(ctx context.Context, writer io.Writer) (*Result, error) {
	r.printer = NewPrinter(writer, r.config.OutputFormat, r.config.Quiet, r.config.Verbose)
	r.printer.Subscribe()
	defer r.printer.Unsubscribe()

	if err := r.initialize(ctx); err != nil {
		r.printer.SetResult("error", ExitError, "", err)
		return r.printer.GetResult(), err
	}

	prompt, err := r.getPrompt()
	if err != nil {
		r.printer.SetResult("error", ExitInvalidInput, "", err)
		return r.printer.GetResult(), err
	}
	if prompt == "" {
		err := errors.New("prompt is required")
		r.printer.SetResult("error", ExitInvalidInput, "", err)
		return r.printer.GetResult(), err
	}

	sessionID, err := r.resolveSessionID(ctx)
	if err != nil {
		r.printer.SetResult("error", ExitSessionNotFound, "", err)
		return r.printer.GetResult(), err
	}

	r.printer.SetModel(fmt.Sprintf("%s/%s", r.defaultProviderID, r.defaultModelID))

	runCtx := ctx
	var cancel context.CancelFunc
	if r.config.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	req := orchestrator.Request{
		SessionID:  sessionID,
		WorkingDir: r.config.WorkDir,
		UserInput:  prompt,
		Role:       types.RoleImplementer,
		AgentID:    r.config.Agent,
		ProviderID: r.defaultProviderID,
		ModelID:    r.defaultModelID,
	}

	resp, err := r.orc.Process(runCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			r.printer.SetResult("timeout", ExitTimeout, "", err)
			return r.printer.GetResult(), err
		}
		r.printer.SetResult("error", ExitError, "", err)
		return r.printer.GetResult(), err
	}

	r.printer.SetSessionID(resp.SessionID)

	if resp.NeedsInput {
		r.printer.SetResult("permission_denied", ExitPermissionDenied, resp.Content, nil)
		r.printer.PrintFinalResult()
		return r.printer.GetResult(), nil
	}

	r.printer.SetResult("success", ExitSuccess, resp.Content, nil)
	r.printer.PrintFinalResult()

	return r.printer.GetResult(), nil
}

// initialize sets up all required components: storage, providers, tools,
// the Decision Engine and Security Gateway, the Workflow State Machine,
// and the Orchestrator that ties them together.
func (r *Runner) initialize(ctx context.Context) error {
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return fmt.Errorf("failed to ensure paths: %w", err)
	}

	appConfig, err := config.Load(r.config.WorkDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	r.appConfig = appConfig

	if r.config.Model != "" {
		r.appConfig.Model = r.config.Model
	}
	r.parseModel()

	if r.config.NoSave {
		tempDir, err := os.MkdirTemp("", "agentforge-headless-*")
		if err != nil {
			return fmt.Errorf("failed to create temp storage: %w", err)
		}
		r.storage = storage.New(tempDir)
	} else {
		r.storage = storage.New(paths.StoragePath())
	}
	r.sessions = storage.NewSessionStore(r.storage)
	tasks := storage.NewTaskStore(r.storage)
	invariants := storage.NewInvariantStore(r.storage)
	gold := memory.NewGoldMemory(invariants)

	providerReg, err := provider.InitializeProviders(ctx, r.appConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize providers: %w", err)
	}

	policy := security.PolicyFromEnv()
	if r.config.AutoApprove {
		policy.ExternalDirectory = security.PolicyAllow
		policy.MediumRisk = security.PolicyAllow
	}
	gateway := security.NewGateway(policy, r.config.WorkDir)

	decision := security.NewEngine(security.PolicyState{
		AllowDangerous:          r.config.AutoApprove,
		RequireHumanForHighRisk: !r.config.AutoApprove,
		Counters:                make(map[string]int),
	})

	toolReg := tool.DefaultRegistry(r.config.WorkDir, gateway, gold)
	agentReg := agent.NewRegistry()
	toolReg.RegisterTaskTool(agentReg)

	qualityRunner := quality.NewRunner(r.config.WorkDir)
	snapshots := vcs.NewSnapshotCapturer(r.config.WorkDir)
	machine := workflow.NewMachine(snapshots, qualityRunner)

	cfg := orchestrator.DefaultConfig()
	if r.config.MaxSteps > 0 {
		cfg.MaxToolCalls = r.config.MaxSteps
	}
	if r.config.Timeout > 0 {
		cfg.TimeoutSecs = int(r.config.Timeout.Seconds())
	}
	cfg.RequirePermissionForDangerous = !r.config.AutoApprove
	if r.config.SystemPrompt != "" {
		data, err := os.ReadFile(r.config.SystemPrompt)
		if err == nil {
			cfg.SystemPromptTemplate = string(data)
		}
	}

	r.orc = orchestrator.New(
		cfg,
		r.sessions,
		tasks,
		providerReg,
		toolReg,
		decision,
		gateway,
		machine,
		qualityRunner,
		gold,
		nil,
	)

	subagentExecutor := executor.NewSubagentExecutor(executor.SubagentExecutorConfig{
		Orchestrator:  r.orc,
		Sessions:      r.sessions,
		AgentRegistry: agentReg,
		WorkDir:       r.config.WorkDir,
		DefaultModel:  r.defaultModelID,
	})
	toolReg.SetTaskExecutor(subagentExecutor)

	return nil
}

// parseModel parses the model string into provider and model IDs.
func (r *Runner) parseModel() {
	model := r.appConfig.Model
	if model == "" {
		r.defaultProviderID = "anthropic"
		r.defaultModelID = "claude-sonnet-4-20250514"
		return
	}

	parts := strings.SplitN(model, "/", 2)
	if len(parts) == 2 {
		r.defaultProviderID = parts[0]
		r.defaultModelID = parts[1]
	} else {
		r.defaultProviderID = "anthropic"
		r.defaultModelID = model
	}
}

// getPrompt retrieves the prompt from various sources.
func (r *Runner) getPrompt() (string, error) {
	var prompt string

	if r.config.ReadStdin {
		scanner := bufio.NewScanner(os.Stdin)
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		prompt = strings.Join(lines, "\n")
	}

	if r.config.Prompt != "" {
		if prompt != "" {
			prompt = r.config.Prompt + "\n\n" + prompt
		} else {
			prompt = r.config.Prompt
		}
	}

	if len(r.config.Files) > 0 {
		var fileContent strings.Builder
		for _, file := range r.config.Files {
			content, err := os.ReadFile(file)
			if err != nil {
				return "", fmt.Errorf("failed to read file %s: %w", file, err)
			}
			fileContent.WriteString(fmt.Sprintf("\n\n--- File: %s ---\n%s", file, string(content)))
		}
		prompt = prompt + fileContent.String()
	}

	return strings.TrimSpace(prompt), nil
}

// resolveSessionID picks the session id the orchestrator should resolve
// or create: an explicit --session id, the most recent session when
// --continue is set, or empty (orchestrator creates a new one).
func (r *Runner) resolveSessionID(ctx context.Context) (string, error) {
	if r.config.SessionID != "" {
		if _, err := r.sessions.Get(ctx, r.config.SessionID); err != nil {
			return "", fmt.Errorf("session not found: %s", r.config.SessionID)
		}
		return r.config.SessionID, nil
	}

	if r.config.ContinueLast {
		ids, err := r.sessions.List(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to list sessions: %w", err)
		}
		if len(ids) > 0 {
			return ids[len(ids)-1], nil
		}
	}

	return "", nil
}
