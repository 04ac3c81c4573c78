// Package permission provides the permission vocabulary and bash-command
// analysis the Agent Orchestrator consults for each tool call: the
// Allow/Deny/Ask action enum and permission-type constants an
// internal/agent.Agent profile is configured against, plus the bash
// parsing, pattern matching, and doom-loop detection used to resolve
// that policy for a specific call.
//
// # Permission vocabulary
//
// PermissionAction (Allow/Deny/Ask) and PermissionType (Bash/Edit/
// WebFetch/ExternalDir/DoomLoop) are the values an agent's
// AgentPermission table is built from; internal/orchestrator resolves
// them per call via Agent.CheckBashPermission / Agent.GetPermission.
//
// # Bash command parsing
//
// ParseBashCommand splits a shell command (including pipelines and
// "&&"/"||"/";" chains) into its component commands, each carrying a
// name, subcommand, and argument list:
//
//	commands, err := ParseBashCommand("git add . && git commit -m fix")
//
// # Pattern matching
//
// MatchBashPermission and MatchPattern resolve a parsed BashCommand
// against a pattern table with hierarchical specificity:
//   - "git commit *" - matches git commit with any arguments
//   - "git *"        - matches any git subcommand
//   - "git"          - matches git with no arguments
//   - "*"            - matches anything
//
// MatchBashPermission also applies a bare "git" entry to a git command
// with arguments when no more specific entry matches.
//
// # Doom loop detection
//
// DoomLoopDetector flags a tool call repeated with identical arguments
// DoomLoopThreshold times in a row for the same session, so the
// orchestrator can stop and ask a human instead of looping silently.
package permission
