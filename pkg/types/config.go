package types

// Config is the merged global + project-local configuration for the
// orchestrator process.
type Config struct {
	Schema string `json:"$schema,omitempty"`

	// Model selection.
	Model      string `json:"model,omitempty"`
	SmallModel string `json:"small_model,omitempty"`

	// Global tool enable/disable and instruction files.
	Tools        map[string]bool `json:"tools,omitempty"`
	Instructions []string        `json:"instructions,omitempty"`

	// Provider configs, keyed by provider id ("anthropic", "openai", ...).
	Provider map[string]ProviderConfig `json:"provider,omitempty"`

	// Agent configs, keyed by role name.
	Agent map[string]AgentConfig `json:"agent,omitempty"`

	// Custom slash commands.
	Command map[string]CommandConfig `json:"command,omitempty"`

	// Global permission settings for the Security Gateway.
	Permission *PermissionConfig `json:"permission,omitempty"`

	// Orchestrator loop tunables (§4.1 configuration).
	Orchestrator OrchestratorConfig `json:"orchestrator,omitempty"`

	// Quality gate checklists by name.
	QualityGates map[string]QualityGateSpec `json:"quality_gates,omitempty"`

	// Formatter settings, used by the quality gate runner's lint/format checks.
	Formatter map[string]FormatterConfig `json:"formatter,omitempty"`

	// File watcher, used by the worktree dirtiness watcher.
	Watcher *WatcherConfig `json:"watcher,omitempty"`
}

// OrchestratorConfig mirrors spec §4.1's named tunables.
type OrchestratorConfig struct {
	MaxToolCalls                 int    `json:"max_tool_calls,omitempty"`
	MaxRetries                   int    `json:"max_retries,omitempty"`
	EnableStreaming               bool   `json:"enable_streaming,omitempty"`
	TimeoutSecs                  int    `json:"timeout_secs,omitempty"`
	AutoVerify                    bool   `json:"auto_verify,omitempty"`
	RequirePermissionForDangerous bool   `json:"require_permission_for_dangerous,omitempty"`
	SystemPromptTemplate          string `json:"system_prompt_template,omitempty"`
}

// DefaultOrchestratorConfig returns the defaults named in spec §4.1.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxToolCalls:                  50,
		MaxRetries:                    3,
		EnableStreaming:               true,
		TimeoutSecs:                   300,
		AutoVerify:                    true,
		RequirePermissionForDangerous: true,
	}
}

// ProviderConfig holds configuration for a specific LLM provider.
type ProviderConfig struct {
	APIKey    string           `json:"apiKey,omitempty"`
	BaseURL   string           `json:"baseURL,omitempty"`
	Npm       string           `json:"npm,omitempty"`
	Model     string           `json:"model,omitempty"`
	Options   *ProviderOptions `json:"options,omitempty"`
	Whitelist []string         `json:"whitelist,omitempty"`
	Blacklist []string         `json:"blacklist,omitempty"`
	Disable   bool             `json:"disable,omitempty"`
}

// ProviderOptions holds nested provider options.
type ProviderOptions struct {
	APIKey        string `json:"apiKey,omitempty"`
	BaseURL       string `json:"baseURL,omitempty"`
	EnterpriseURL string `json:"enterpriseUrl,omitempty"`
	Timeout       *int   `json:"timeout,omitempty"`
}

// AgentConfig holds per-role configuration overrides.
type AgentConfig struct {
	Model       string            `json:"model,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	TopP        *float64          `json:"top_p,omitempty"`
	Prompt      string            `json:"prompt,omitempty"`
	Tools       map[string]bool   `json:"tools,omitempty"`
	Permission  *PermissionConfig `json:"permission,omitempty"`
	Description string            `json:"description,omitempty"`
	Mode        string            `json:"mode,omitempty"`
	Disable     bool              `json:"disable,omitempty"`
}

// PermissionConfig holds Security Gateway policy settings: each field is
// one of "allow"|"deny"|"ask" unless noted otherwise.
type PermissionConfig struct {
	Edit              string      `json:"edit,omitempty"`
	Bash              interface{} `json:"bash,omitempty"` // string or map[pattern]action
	WebFetch          string      `json:"webfetch,omitempty"`
	ExternalDirectory string      `json:"external_directory,omitempty"`
	ShellHighRisk     string      `json:"shell_high_risk,omitempty"`
	ShellMediumRisk   string      `json:"shell_medium_risk,omitempty"`
	GitCommit         string      `json:"git_commit,omitempty"`
	DoomLoop          string      `json:"doom_loop,omitempty"`
}

// CommandConfig holds custom slash-command configuration.
type CommandConfig struct {
	Template    string `json:"template"`
	Description string `json:"description,omitempty"`
	Agent       string `json:"agent,omitempty"`
	Model       string `json:"model,omitempty"`
	Subtask     bool   `json:"subtask,omitempty"`
}

// FormatterConfig holds a code formatter/linter invocation for the quality gate.
type FormatterConfig struct {
	Disabled    bool              `json:"disabled,omitempty"`
	Command     []string          `json:"command,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Extensions  []string          `json:"extensions,omitempty"`
}

// WatcherConfig configures the worktree dirtiness watcher.
type WatcherConfig struct {
	Ignore []string `json:"ignore,omitempty"`
}

// Model describes an LLM model available from a provider.
type Model struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	ProviderID      string       `json:"providerID"`
	ContextLength   int          `json:"contextLength"`
	MaxOutputTokens int          `json:"maxOutputTokens,omitempty"`
	SupportsTools   bool         `json:"supportsTools"`
	SupportsVision    bool       `json:"supportsVision,omitempty"`
	SupportsReasoning bool       `json:"supportsReasoning,omitempty"`
	InputPrice        float64    `json:"inputPrice,omitempty"`
	OutputPrice       float64    `json:"outputPrice,omitempty"`
	Options         ModelOptions `json:"options,omitempty"`
}

// ModelOptions contains model-specific generation options.
type ModelOptions struct {
	Temperature    *float64 `json:"temperature,omitempty"`
	TopP           *float64 `json:"topP,omitempty"`
	PromptCaching  bool     `json:"promptCaching,omitempty"`
	ExtendedOutput bool     `json:"extendedOutput,omitempty"`
}
