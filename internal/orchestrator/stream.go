package orchestrator

import (
	"io"
	"strings"
	"time"

	"github.com/agentforge/core/internal/provider"
	"github.com/agentforge/core/pkg/types"
)

// pendingToolCall accumulates one tool call's streamed fragments. Eino
// identifies a call by Index on most chunks (the ID/Name arrive on the
// first chunk, Arguments arrive incrementally on subsequent chunks keyed
// by the same index), falling back to ID when a provider never sets
// Index.
type pendingToolCall struct {
	id        string
	name      string
	arguments strings.Builder
}

// drainStream reads every chunk off stream until EOF, accumulating
// streamed text and tool-call fragments into one final assistant
// types.Message. For this provider's streaming shape, text content may
// arrive either as the full accumulated string so far (a
// prefix of the previous chunk) or as a bare delta, and tool call
// arguments always arrive as deltas to be concatenated in order.
func drainStream(stream *provider.CompletionStream) (*types.Message, error) {
	var content string
	order := make([]int, 0, 4)
	calls := make(map[int]*pendingToolCall)
	noIndexOrder := make([]string, 0)
	noIndexCalls := make(map[string]*pendingToolCall)

	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if msg.Content != "" {
			if strings.HasPrefix(msg.Content, content) {
				content = msg.Content
			} else {
				content += msg.Content
			}
		}

		for _, tc := range msg.ToolCalls {
			if tc.Index != nil {
				idx := *tc.Index
				pc, ok := calls[idx]
				if !ok {
					pc = &pendingToolCall{}
					calls[idx] = pc
					order = append(order, idx)
				}
				if tc.ID != "" {
					pc.id = tc.ID
				}
				if tc.Function.Name != "" {
					pc.name = tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					pc.arguments.WriteString(tc.Function.Arguments)
				}
				continue
			}

			key := tc.ID
			pc, ok := noIndexCalls[key]
			if !ok {
				pc = &pendingToolCall{id: tc.ID}
				noIndexCalls[key] = pc
				noIndexOrder = append(noIndexOrder, key)
			}
			if tc.Function.Name != "" {
				pc.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				pc.arguments.WriteString(tc.Function.Arguments)
			}
		}
	}

	toolCalls := make([]types.ToolCall, 0, len(order)+len(noIndexOrder))
	for _, idx := range order {
		pc := calls[idx]
		toolCalls = append(toolCalls, types.ToolCall{ID: pc.id, Name: pc.name, Arguments: normalizeArguments(pc.arguments.String())})
	}
	for _, key := range noIndexOrder {
		pc := noIndexCalls[key]
		toolCalls = append(toolCalls, types.ToolCall{ID: pc.id, Name: pc.name, Arguments: normalizeArguments(pc.arguments.String())})
	}

	return &types.Message{
		ID:        types.NewID(),
		Role:      types.RoleAssistant,
		Content:   content,
		ToolCalls: toolCalls,
		CreatedAt: time.Now(),
	}, nil
}

// normalizeArguments defaults an empty accumulated argument string to
// "{}" so downstream json.Unmarshal in decodeToolArguments never fails
// on a tool call with no parameters.
func normalizeArguments(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "{}"
	}
	return raw
}
