// Package orchestrator implements the Agent Orchestrator: the component
// that turns a user message into a bounded tool-calling conversation with
// an LLM, submitting every proposed side effect to the Decision Engine
// and Security Gateway before it runs, and reconciling the outcome with
// the Workflow State Machine when the turn is bound to a Task.
//
// A Process call resolves or creates an AgentSession, builds a prompt
// from the session's trimmed history plus Working/Gold Memory context,
// and drives the tool-calling loop up to Config.MaxToolCalls iterations.
// Each provider reply is read as a stream and assembled into one message
// before it is acted on; Process returns once the turn ends.
package orchestrator

import (
	"time"

	"github.com/agentforge/core/internal/agent"
	"github.com/agentforge/core/internal/memory"
	"github.com/agentforge/core/internal/permission"
	"github.com/agentforge/core/internal/provider"
	"github.com/agentforge/core/internal/security"
	"github.com/agentforge/core/internal/storage"
	"github.com/agentforge/core/internal/tool"
	"github.com/agentforge/core/internal/workflow"
)

// Config mirrors the orchestrator's tunables from the spec's Agent
// Orchestrator contract.
type Config struct {
	MaxToolCalls                int
	MaxRetries                  int
	EnableStreaming              bool
	TimeoutSecs                  int
	AutoVerify                   bool
	RequirePermissionForDangerous bool
	SystemPromptTemplate          string

	// Temperature and MaxTokens parameterize every LLM call the loop
	// makes; the spec fixes these at 0.1 / 4096 and this is the default.
	Temperature float64
	MaxTokens   int

	// HistoryWindow bounds how many prior messages are included in the
	// prompt alongside the system prompt and the new user message.
	HistoryWindow int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxToolCalls:                  50,
		MaxRetries:                    3,
		EnableStreaming:               true,
		TimeoutSecs:                   300,
		AutoVerify:                    true,
		RequirePermissionForDangerous: true,
		Temperature:                   0.1,
		MaxTokens:                     4096,
		HistoryWindow:                 20,
	}
}

// Orchestrator is the Agent Orchestrator. One instance is shared across
// sessions; per-session exclusivity is enforced by sessionLocks.
type Orchestrator struct {
	config Config

	sessions *storage.SessionStore
	tasks    *storage.TaskStore

	providers *provider.Registry
	tools     *tool.Registry

	decision *security.Engine
	gateway  *security.Gateway

	workflow *workflow.Machine
	quality  QualityGateRunner

	gold *memory.GoldMemory

	defaultAgent *agent.Agent

	doomLoop *permission.DoomLoopDetector

	locks sessionLocks
}

// QualityGateRunner is the narrow slice of internal/quality.Runner the
// orchestrator needs for its auto-verify step; an alias of
// workflow.QualityGateRunner, so this package doesn't have to import
// internal/quality just to accept it.
type QualityGateRunner = workflow.QualityGateRunner

// New builds an Orchestrator. providers, tools, decision, gateway,
// workflowMachine and sessions are required; quality and gold may be nil
// (auto-verify and invariant injection are then skipped).
func New(
	cfg Config,
	sessions *storage.SessionStore,
	tasks *storage.TaskStore,
	providers *provider.Registry,
	tools *tool.Registry,
	decision *security.Engine,
	gateway *security.Gateway,
	workflowMachine *workflow.Machine,
	quality QualityGateRunner,
	gold *memory.GoldMemory,
	defaultAgent *agent.Agent,
) *Orchestrator {
	if defaultAgent == nil {
		defaultAgent = agent.BuiltInAgents()["build"]
	}
	return &Orchestrator{
		config:       cfg,
		sessions:     sessions,
		tasks:        tasks,
		providers:    providers,
		tools:        tools,
		decision:     decision,
		gateway:      gateway,
		workflow:     workflowMachine,
		quality:      quality,
		gold:         gold,
		defaultAgent: defaultAgent,
		doomLoop:     permission.NewDoomLoopDetector(),
		locks:        newSessionLocks(),
	}
}

// timeout returns the configured loop deadline as a time.Duration.
func (o *Orchestrator) timeout() time.Duration {
	if o.config.TimeoutSecs <= 0 {
		return 300 * time.Second
	}
	return time.Duration(o.config.TimeoutSecs) * time.Second
}
