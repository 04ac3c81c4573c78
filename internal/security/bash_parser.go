package security

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// CommandType discriminates the shape of a parsed shell command line.
type CommandType string

const (
	CommandSimple      CommandType = "simple"
	CommandPiped       CommandType = "piped"
	CommandCompound    CommandType = "compound"
	CommandRedirect    CommandType = "redirect"
	CommandControlFlow CommandType = "control_flow"
)

// FileOpType classifies what a file-looking argument is used for, derived
// from the command-name table in classifyFileOp.
type FileOpType string

const (
	FileOpRead    FileOpType = "read"
	FileOpWrite   FileOpType = "write"
	FileOpDelete  FileOpType = "delete"
	FileOpExecute FileOpType = "execute"
	FileOpMove    FileOpType = "move"
	FileOpChmod   FileOpType = "chmod"
	FileOpCreate  FileOpType = "create"
)

// FileOperation is a single path-shaped argument extracted from a command,
// tagged with the operation the owning command performs on it.
type FileOperation struct {
	OpType    FileOpType
	Path      string
	IsPattern bool
}

// BashCommand is one simple command extracted from a parsed shell line.
type BashCommand struct {
	Name       string
	Subcommand string
	Args       []string
}

// ParsedCommand is the full bash-parser output for a command string.
type ParsedCommand struct {
	CommandType   CommandType
	Commands      []BashCommand
	Arguments     []string
	FileOps       []FileOperation
	DangerLevel   DangerLevel
	WorkingDir    string
}

// readOpCommands, writeOpCommands, etc. classify command names by the kind
// of file operation they perform on their path-shaped arguments.
var (
	readOpCommands    = map[string]bool{"cat": true, "less": true, "more": true, "head": true, "tail": true, "grep": true, "find": true}
	writeOpCommands   = map[string]bool{"tee": true, "echo": true, "sed": true}
	deleteOpCommands  = map[string]bool{"rm": true, "rmdir": true, "unlink": true}
	executeOpCommands = map[string]bool{"bash": true, "sh": true, "python": true, "python3": true, "node": true, "./": true}
	moveOpCommands    = map[string]bool{"mv": true, "cp": true}
	chmodOpCommands   = map[string]bool{"chmod": true, "chown": true}
	createOpCommands  = map[string]bool{"mkdir": true, "touch": true}
)

func classifyFileOp(cmdName string) (FileOpType, bool) {
	switch {
	case readOpCommands[cmdName]:
		return FileOpRead, true
	case writeOpCommands[cmdName]:
		return FileOpWrite, true
	case deleteOpCommands[cmdName]:
		return FileOpDelete, true
	case executeOpCommands[cmdName]:
		return FileOpExecute, true
	case moveOpCommands[cmdName]:
		return FileOpMove, true
	case chmodOpCommands[cmdName]:
		return FileOpChmod, true
	case createOpCommands[cmdName]:
		return FileOpCreate, true
	default:
		return "", false
	}
}

// looksLikePath reports whether arg resembles a filesystem path: absolute,
// explicitly relative, carrying a dot extension, or containing glob
// characters.
func looksLikePath(arg string) bool {
	if arg == "" || strings.HasPrefix(arg, "-") {
		return false
	}
	if strings.HasPrefix(arg, "/") || strings.HasPrefix(arg, "./") || strings.HasPrefix(arg, "../") {
		return true
	}
	if strings.ContainsAny(arg, "*?[]") {
		return true
	}
	if idx := strings.LastIndex(arg, "."); idx > 0 && idx < len(arg)-1 {
		return true
	}
	return false
}

// ParseBash tokenizes a command string into a ParsedCommand, classifying
// its shape, extracting file operations, and computing its danger level.
func ParseBash(command string) (*ParsedCommand, error) {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash), syntax.KeepComments(false))

	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, fmt.Errorf("parse command: %w", err)
	}

	var commands []BashCommand
	var pipeCount, redirectCount, controlFlowCount int

	syntax.Walk(file, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.CallExpr:
			if cmd := extractCommand(n); cmd != nil {
				commands = append(commands, *cmd)
			}
		case *syntax.BinaryCmd:
			if n.Op == syntax.Pipe || n.Op == syntax.PipeAll {
				pipeCount++
			}
		case *syntax.Redirect:
			redirectCount++
		case *syntax.WhileClause, *syntax.ForClause, *syntax.IfClause, *syntax.CaseClause:
			controlFlowCount++
		}
		return true
	})

	commandType := CommandSimple
	switch {
	case controlFlowCount > 0:
		commandType = CommandControlFlow
	case pipeCount > 0:
		commandType = CommandPiped
	case len(commands) > 1:
		commandType = CommandCompound
	case redirectCount > 0:
		commandType = CommandRedirect
	}

	var fileOps []FileOperation
	var allArgs []string
	maxDanger := DangerSafe

	for _, cmd := range commands {
		allArgs = append(allArgs, cmd.Args...)
		opType, known := classifyFileOp(cmd.Name)
		for _, arg := range cmd.Args {
			if !looksLikePath(arg) {
				continue
			}
			if known {
				fileOps = append(fileOps, FileOperation{
					OpType:    opType,
					Path:      arg,
					IsPattern: strings.ContainsAny(arg, "*?[]"),
				})
			}
		}
		if level := ClassifyCommand(cmd, command); level > maxDanger {
			maxDanger = level
		}
	}

	return &ParsedCommand{
		CommandType: commandType,
		Commands:    commands,
		Arguments:   allArgs,
		FileOps:     fileOps,
		DangerLevel: maxDanger,
	}, nil
}

func extractCommand(call *syntax.CallExpr) *BashCommand {
	if len(call.Args) == 0 {
		return nil
	}

	cmd := &BashCommand{Name: wordToString(call.Args[0])}
	if cmd.Name == "" {
		return nil
	}

	for _, arg := range call.Args[1:] {
		argStr := wordToString(arg)
		cmd.Args = append(cmd.Args, argStr)
		if cmd.Subcommand == "" && !strings.HasPrefix(argStr, "-") {
			cmd.Subcommand = argStr
		}
	}
	return cmd
}

func wordToString(word *syntax.Word) string {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, qp := range p.Parts {
				if lit, ok := qp.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
				}
			}
		case *syntax.ParamExp:
			sb.WriteString("$" + p.Param.Value)
		case *syntax.CmdSubst:
			sb.WriteString("$()")
		}
	}
	return sb.String()
}
