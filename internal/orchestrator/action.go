package orchestrator

import "github.com/agentforge/core/pkg/types"

// actionForToolCall derives the Intent's Action from a tool call, so the
// Decision Engine can classify the call's required privilege before the
// tool layer's own gateway checks run. Search/listing tools and tools
// with no dedicated case fall back to ReadFileAction (the subagent Task
// tool maps to CreateTaskAction), which the Decision Engine treats as
// PrivilegeNormal —
// the correct default for operations that only read or describe state.
func actionForToolCall(name string, args map[string]any) types.Action {
	switch name {
	case "read", "glob", "grep", "list", "webfetch":
		return &types.ReadFileAction{Path: stringArg(args, "filePath", "path", "url")}
	case "write":
		return &types.WriteFileAction{Path: stringArg(args, "filePath"), Content: stringArg(args, "content")}
	case "edit":
		return &types.WriteFileAction{Path: stringArg(args, "filePath")}
	case "shell":
		return &types.RunCommandAction{
			Cmd:        stringArg(args, "command"),
			Args:       stringSliceArg(args, "args"),
			WorkingDir: stringArg(args, "working_dir"),
		}
	case "git":
		return &types.GitAction{
			Op:      types.GitOp(stringArg(args, "operation")),
			Message: stringArg(args, "message"),
			Args:    stringSliceArg(args, "args"),
		}
	case "memory_query":
		return &types.SearchKnowledgeAction{Query: stringArg(args, "source"), Tags: stringSliceArg(args, "tags")}
	case "Task":
		return &types.CreateTaskAction{
			Title:       stringArg(args, "description"),
			Description: stringArg(args, "prompt"),
		}
	default:
		return &types.ReadFileAction{}
	}
}

func stringArg(args map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := args[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func stringSliceArg(args map[string]any, key string) []string {
	v, ok := args[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
