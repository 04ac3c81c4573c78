package tool

import (
	"context"
	"encoding/json"
	"fmt"

	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/agentforge/core/internal/memory"
	"github.com/agentforge/core/pkg/types"
)

const maxMemoryQueryLimit = 100

const memoryQueryDescription = `Queries Gold Memory invariants by priority, source, tags, and validation count.

Usage:
- All filters are optional; an empty filter set returns every invariant,
  deactivated ones included unless only_active is set
- limit is capped at 100`

// MemoryQueryTool implements the spec's memory_query tool over Gold Memory.
type MemoryQueryTool struct {
	gold *memory.GoldMemory
}

// MemoryQueryInput represents the input for the memory_query tool.
type MemoryQueryInput struct {
	Priority           string   `json:"priority,omitempty"`
	Source             string   `json:"source,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	OnlyActive         bool     `json:"only_active,omitempty"`
	MinValidationCount int      `json:"min_validation_count,omitempty"`
	Limit              int      `json:"limit,omitempty"`
}

// NewMemoryQueryTool creates a new memory_query tool.
func NewMemoryQueryTool(gold *memory.GoldMemory) *MemoryQueryTool {
	return &MemoryQueryTool{gold: gold}
}

func (t *MemoryQueryTool) ID() string          { return "memory_query" }
func (t *MemoryQueryTool) Description() string { return memoryQueryDescription }

func (t *MemoryQueryTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"priority": {
				"type": "string",
				"enum": ["low", "medium", "high", "critical"],
				"description": "Filter to invariants at exactly this priority"
			},
			"source": {
				"type": "string",
				"description": "Filter to invariants originating from this source"
			},
			"tags": {
				"type": "array",
				"items": {"type": "string"},
				"description": "Filter to invariants with at least one matching tag"
			},
			"only_active": {
				"type": "boolean",
				"description": "Exclude deactivated invariants"
			},
			"min_validation_count": {
				"type": "integer",
				"description": "Minimum number of times the invariant has been validated"
			},
			"limit": {
				"type": "integer",
				"description": "Maximum number of results (capped at 100)"
			}
		}
	}`)
}

func (t *MemoryQueryTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params MemoryQueryInput
	if len(input) > 0 {
		if err := json.Unmarshal(input, &params); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
	}

	limit := params.Limit
	if limit <= 0 || limit > maxMemoryQueryLimit {
		limit = maxMemoryQueryLimit
	}

	queryLimit := limit
	if params.Source != "" {
		queryLimit = 0
	}
	q := types.MemoryQuery{
		OnlyActive:         params.OnlyActive,
		Priority:           types.InvariantPriority(params.Priority),
		Tags:               params.Tags,
		MinValidationCount: params.MinValidationCount,
		Limit:              queryLimit,
	}

	results := t.gold.Query(q)
	if params.Source != "" {
		filtered := results[:0]
		for _, inv := range results {
			if string(inv.Source) == params.Source {
				filtered = append(filtered, inv)
			}
		}
		results = filtered
		if len(results) > limit {
			results = results[:limit]
		}
	}

	data, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal results: %w", err)
	}

	return &Result{
		Title:  fmt.Sprintf("Found %d invariant(s)", len(results)),
		Output: string(data),
		Metadata: map[string]any{
			"count": len(results),
		},
	}, nil
}

func (t *MemoryQueryTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
