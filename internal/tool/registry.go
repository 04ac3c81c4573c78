package tool

import (
	"encoding/json"
	"fmt"
	"sync"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/agentforge/core/internal/agent"
	"github.com/agentforge/core/internal/memory"
	"github.com/agentforge/core/internal/security"
)

// Registry manages tool registration and lookup.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	workDir string

	schemaMu sync.Mutex
	schemas  map[string]*jsonschema.Schema
}

// NewRegistry creates a new tool registry.
func NewRegistry(workDir string) *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		workDir: workDir,
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.ID()] = tool
}

// Validate checks input against the tool's own JSON Schema (its Parameters())
// before the call reaches Execute, compiling and caching the schema on first
// use per tool ID. A tool whose Parameters() doesn't compile as a schema is
// let through uncaught — that's a bug in the tool's own declaration, not in
// the caller's input.
func (r *Registry) Validate(id string, input json.RawMessage) error {
	t, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("unknown tool %s", id)
	}

	sch, err := r.compiledSchema(id, t)
	if err != nil {
		return nil
	}

	var doc any
	if err := json.Unmarshal(input, &doc); err != nil {
		return fmt.Errorf("invalid input for %s: %w", id, err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("invalid parameters for %s: %w", id, err)
	}
	return nil
}

func (r *Registry) compiledSchema(id string, t Tool) (*jsonschema.Schema, error) {
	r.schemaMu.Lock()
	defer r.schemaMu.Unlock()

	if sch, ok := r.schemas[id]; ok {
		return sch, nil
	}

	var schemaDoc any
	if err := json.Unmarshal(t.Parameters(), &schemaDoc); err != nil {
		return nil, err
	}

	resourceURL := "mem://tool/" + id
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceURL, schemaDoc); err != nil {
		return nil, err
	}
	sch, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, err
	}
	r.schemas[id] = sch
	return sch, nil
}

// Get retrieves a tool by ID.
func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[id]
	return tool, ok
}

// List returns all registered tools.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	return tools
}

// IDs returns all tool IDs.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	return ids
}

// EinoTools returns Eino-compatible tools.
func (r *Registry) EinoTools() []einotool.BaseTool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]einotool.BaseTool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t.EinoTool())
	}
	return tools
}

// ToolInfos returns Eino tool infos for all tools.
func (r *Registry) ToolInfos() ([]*schema.ToolInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]*schema.ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		params := parseJSONSchemaToParams(t.Parameters())
		infos = append(infos, &schema.ToolInfo{
			Name:        t.ID(),
			Desc:        t.Description(),
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		})
	}
	return infos, nil
}

// DefaultRegistry creates a registry with all built-in tools, gating
// filesystem/shell/git operations through gateway and wiring memory_query
// against gold. gateway and gold may be nil (tools degrade to running
// unchecked / memory_query becomes unavailable), matching how the
// teacher's registry tolerated a nil storage handle.
func DefaultRegistry(workDir string, gateway *security.Gateway, gold *memory.GoldMemory) *Registry {
	r := NewRegistry(workDir)

	r.Register(NewReadTool(workDir, gateway))
	r.Register(NewWriteTool(workDir, gateway))
	r.Register(NewEditTool(workDir, gateway))
	r.Register(NewShellTool(workDir, gateway))
	r.Register(NewGitTool(workDir, gateway))
	r.Register(NewFsTool(workDir, gateway))
	r.Register(NewGlobTool(workDir, gateway))
	r.Register(NewGrepTool(workDir, gateway))
	r.Register(NewListTool(workDir, gateway))
	r.Register(NewWebFetchTool(workDir))

	if gold != nil {
		r.Register(NewMemoryQueryTool(gold))
	}

	// Register batch tool for parallel execution
	r.Register(NewBatchTool(workDir, r))

	// Note: TaskTool requires agent registry, register separately using RegisterTaskTool

	return r
}

// RegisterTaskTool registers the task tool with the given agent registry.
// This must be called separately after the agent registry is available.
func (r *Registry) RegisterTaskTool(agentReg *agent.Registry) {
	taskTool := NewTaskTool(r.workDir, agentReg)
	r.Register(taskTool)
}

// SetTaskExecutor sets the executor for the task tool.
// This enables actual subagent execution instead of placeholder responses.
func (r *Registry) SetTaskExecutor(executor TaskExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tool, ok := r.tools["task"]; ok {
		if taskTool, ok := tool.(*TaskTool); ok {
			taskTool.SetExecutor(executor)
		}
	}
}
