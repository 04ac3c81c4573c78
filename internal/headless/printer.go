package headless

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/agentforge/core/internal/event"
	"github.com/agentforge/core/pkg/types"
)

// Printer handles event output in various formats for headless mode.
type Printer struct {
	mu          sync.Mutex
	writer      io.Writer
	format      OutputFormat
	quiet       bool
	verbose     bool
	unsubscribe func()
	sessionID   string
	startTime   time.Time
	result      *Result
	toolCalls   []ToolCall
	pending     map[string]*ToolCall
	editedFiles map[string]bool
}

// NewPrinter creates a new event printer.
func NewPrinter(writer io.Writer, format OutputFormat, quiet, verbose bool) *Printer {
	return &Printer{
		writer:    writer,
		format:    format,
		quiet:     quiet,
		verbose:   verbose,
		startTime: time.Now(),
		result: &Result{
			Status:   "running",
			ExitCode: ExitSuccess,
		},
		toolCalls:   make([]ToolCall, 0),
		pending:     make(map[string]*ToolCall),
		editedFiles: make(map[string]bool),
	}
}

// Subscribe starts listening to events.
func (p *Printer) Subscribe() {
	p.unsubscribe = event.SubscribeAll(p.handleEvent)
}

// Unsubscribe stops listening to events.
func (p *Printer) Unsubscribe() {
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
}

// SetSessionID sets the session ID for the printer.
func (p *Printer) SetSessionID(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessionID = sessionID
	p.result.SessionID = sessionID
}

// GetResult returns the current result.
func (p *Printer) GetResult() *Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.result.DurationMS = time.Since(p.startTime).Milliseconds()
	p.result.ToolCalls = p.toolCalls
	for file := range p.editedFiles {
		p.result.Diffs = append(p.result.Diffs, FileDiff{File: file})
	}

	return p.result
}

// SetResult updates the result with final values.
func (p *Printer) SetResult(status string, exitCode ExitCode, finalMessage string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.result.Status = status
	p.result.ExitCode = exitCode
	if finalMessage != "" {
		p.result.FinalMessage = finalMessage
	}
	if err != nil {
		p.result.Error = err.Error()
	}
	p.result.DurationMS = time.Since(p.startTime).Milliseconds()
}

// SetModel updates the model in the result.
func (p *Printer) SetModel(model string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result.Model = model
}

// IncrementSteps increments the step counter.
func (p *Printer) IncrementSteps() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result.Steps++
}

// PrintFinalResult prints the final JSON result (for json format).
func (p *Printer) PrintFinalResult() {
	if p.format != OutputJSON {
		return
	}

	result := p.GetResult()
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return
	}
	fmt.Fprintln(p.writer, string(data))
}

// handleEvent processes incoming events and outputs them according to format.
func (p *Printer) handleEvent(e event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.trackEvent(e)

	switch p.format {
	case OutputText:
		p.handleTextEvent(e)
	case OutputJSONL:
		p.handleJSONLEvent(e)
	case OutputJSON:
		// JSON format only prints the final result, tracked above.
	}
}

// handleTextEvent outputs events in human-readable text format.
func (p *Printer) handleTextEvent(e event.Event) {
	switch e.Type {
	case event.SessionCreated:
		if data, ok := e.Data.(event.SessionCreatedData); ok && data.Session != nil {
			if !p.quiet {
				fmt.Fprintf(p.writer, "[session:%s] Starting...\n", truncateID(data.Session.ID))
			}
		}

	case event.SessionStateChanged:
		if data, ok := e.Data.(event.SessionStateChangedData); ok {
			if data.State == types.SessionCompleted {
				if !p.quiet {
					fmt.Fprintf(p.writer, "\n[done] Session completed in %s\n", formatDuration(time.Since(p.startTime)))
				}
			} else if p.verbose {
				fmt.Fprintf(p.writer, "[session] %s\n", data.State)
			}
		}

	case event.MessageAppended:
		if data, ok := e.Data.(event.MessageAppendedData); ok && data.Message != nil {
			p.printMessage(data.Message)
		}

	case event.PermissionRequired:
		if data, ok := e.Data.(event.PermissionRequiredData); ok {
			fmt.Fprintf(p.writer, "\n[permission] %s: %s\n", data.PermissionType, data.Title)
		}

	case event.FileEdited:
		if data, ok := e.Data.(event.FileEditedData); ok && p.verbose {
			fmt.Fprintf(p.writer, "[file] Edited: %s\n", data.File)
		}

	case event.TaskStateChanged:
		if data, ok := e.Data.(event.TaskStateChangedData); ok && p.verbose {
			fmt.Fprintf(p.writer, "[task:%s] %s -> %s\n", truncateID(data.TaskID), data.From, data.To)
		}

	case event.QualityGateEvaluated:
		if data, ok := e.Data.(event.QualityGateEvaluatedData); ok {
			if data.Passed {
				fmt.Fprintf(p.writer, "[quality] %s passed\n", data.GateName)
			} else {
				fmt.Fprintf(p.writer, "[quality] %s failed: %s\n", data.GateName, strings.Join(data.FailedChecks, ", "))
			}
		}
	}
}

// printMessage renders one appended transcript message in text mode.
func (p *Printer) printMessage(msg *types.Message) {
	switch msg.Role {
	case types.RoleAssistant:
		if msg.Content != "" {
			fmt.Fprintln(p.writer, msg.Content)
		}
		if p.verbose {
			for _, tc := range msg.ToolCalls {
				fmt.Fprintf(p.writer, "\n[tool:%s] %s\n", tc.Name, formatToolInfo(tc.Name, tc.Arguments))
			}
		}
	case types.RoleTool:
		if p.verbose {
			if msg.IsError {
				fmt.Fprintf(p.writer, "[tool] refused: %s\n", msg.Content)
			} else {
				fmt.Fprintf(p.writer, "[tool] done\n")
			}
		}
	}
}

// handleJSONLEvent outputs events in JSONL format.
func (p *Printer) handleJSONLEvent(e event.Event) {
	if !p.verbose && !isImportantEvent(e.Type) {
		return
	}

	evt := &Event{
		Type:      string(e.Type),
		Timestamp: time.Now(),
		Data:      e.Data,
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	fmt.Fprintln(p.writer, string(data))
}

// trackEvent updates the accumulated result (final message, tool calls,
// edited files) regardless of output format, so json/jsonl modes report
// the same summary a text-mode run would print incrementally.
func (p *Printer) trackEvent(e event.Event) {
	switch e.Type {
	case event.MessageAppended:
		data, ok := e.Data.(event.MessageAppendedData)
		if !ok || data.Message == nil {
			return
		}
		msg := data.Message
		switch msg.Role {
		case types.RoleAssistant:
			if msg.Content != "" {
				p.result.FinalMessage = msg.Content
			}
			for _, tc := range msg.ToolCalls {
				call := &ToolCall{Tool: tc.Name, Input: tc.Arguments}
				p.pending[tc.ID] = call
				p.toolCalls = append(p.toolCalls, *call)
			}
		case types.RoleTool:
			if call, ok := p.pending[msg.ToolCallID]; ok {
				if msg.IsError {
					call.Error = msg.Content
				} else {
					call.Output = truncateOutput(msg.Content, 500)
				}
				p.syncToolCall(msg.ToolCallID, *call)
			}
		}

	case event.FileEdited:
		if data, ok := e.Data.(event.FileEditedData); ok {
			p.editedFiles[data.File] = true
		}
	}
}

// syncToolCall updates a recorded ToolCall in p.toolCalls once its result
// arrives, since the call was recorded before its output/error was known.
// p.toolCalls carries no call IDs, so callID is not used: the first
// recorded call of the same tool with no output and no error is updated.
func (p *Printer) syncToolCall(callID string, updated ToolCall) {
	for i := range p.toolCalls {
		if p.toolCalls[i].Tool == updated.Tool && p.toolCalls[i].Output == "" && p.toolCalls[i].Error == "" {
			p.toolCalls[i] = updated
			return
		}
	}
}

// Helper functions

func truncateID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func truncateOutput(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

// formatToolInfo renders a short human-readable description of a tool
// call from its raw JSON arguments, for verbose text-mode output.
func formatToolInfo(name, rawArgs string) string {
	var args map[string]any
	if rawArgs != "" {
		_ = json.Unmarshal([]byte(rawArgs), &args)
	}
	str := func(key string) (string, bool) {
		v, ok := args[key].(string)
		return v, ok
	}

	switch name {
	case "read":
		if path, ok := str("filePath"); ok {
			return fmt.Sprintf("Reading %s", path)
		}
	case "write":
		if path, ok := str("filePath"); ok {
			return fmt.Sprintf("Writing %s", path)
		}
	case "edit":
		if path, ok := str("filePath"); ok {
			return fmt.Sprintf("Editing %s", path)
		}
	case "shell":
		if cmd, ok := str("command"); ok {
			cmd = strings.Split(cmd, "\n")[0]
			if len(cmd) > 60 {
				cmd = cmd[:60] + "..."
			}
			return fmt.Sprintf("$ %s", cmd)
		}
	case "glob":
		if pattern, ok := str("pattern"); ok {
			return fmt.Sprintf("Searching: %s", pattern)
		}
	case "grep":
		if pattern, ok := str("pattern"); ok {
			return fmt.Sprintf("Grepping: %s", pattern)
		}
	case "webfetch":
		if url, ok := str("url"); ok {
			return fmt.Sprintf("Fetching: %s", url)
		}
	}

	return ""
}

func isImportantEvent(eventType event.EventType) bool {
	switch eventType {
	case event.SessionCreated,
		event.SessionStateChanged,
		event.MessageAppended,
		event.PermissionRequired,
		event.PermissionResolved,
		event.FileEdited,
		event.TaskStateChanged,
		event.QualityGateEvaluated:
		return true
	default:
		return false
	}
}
