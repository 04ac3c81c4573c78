package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/agentforge/core/internal/headless"
	"github.com/spf13/cobra"
)

var (
	runModel        string
	runAgent        string
	runContinue     bool
	runSession      string
	runFormat       string
	runFiles        []string
	runTitle        string
	runPrompt       string
	runPromptFile   string
	runPromptInline string
	runDir          string
)

var runCmd = &cobra.Command{
	Use:   "run [message...]",
	Short: "Start an Agent Forge session",
	Long: `Run Agent Forge with the specified message and print the result.

Examples:
  agentforge run "Fix the bug in main.go"
  agentforge run --model anthropic/claude-sonnet-4 "Explain this code"
  agentforge run --continue  # Continue last session
  agentforge run --file main.go "Review this file"`,
	RunE: runInteractive,
}

func init() {
	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "Model to use (provider/model format)")
	runCmd.Flags().StringVar(&runAgent, "agent", "", "Agent to use")
	runCmd.Flags().BoolVarP(&runContinue, "continue", "c", false, "Continue the last session")
	runCmd.Flags().StringVarP(&runSession, "session", "s", "", "Session ID to continue")
	runCmd.Flags().StringVar(&runFormat, "format", "default", "Output format (default|json)")
	runCmd.Flags().StringArrayVarP(&runFiles, "file", "f", nil, "File(s) to attach to message")
	runCmd.Flags().StringVar(&runTitle, "title", "", "Session title")
	runCmd.Flags().StringVar(&runPrompt, "prompt", "", "Custom prompt template")
	runCmd.Flags().StringVar(&runPromptFile, "prompt-file", "", "Custom prompt from file")
	runCmd.Flags().StringVar(&runPromptInline, "prompt-inline", "", "Custom prompt as inline text")
	runCmd.Flags().StringVar(&runDir, "directory", "", "Working directory")
}

// runInteractive drives one Agent Orchestrator turn through the same
// headless.Runner the "headless" command uses, just with this command's
// own flag surface (message-as-args instead of --prompt, a default text
// output format). A successful run returns normally; any other result
// exits the process with the result's exit code.
func runInteractive(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(runDir)
	if err != nil {
		return err
	}

	message := strings.Join(args, " ")
	if message == "" && !runContinue && runSession == "" {
		return fmt.Errorf("message required. Usage: agentforge run \"your message\"")
	}

	systemPrompt := ""
	switch {
	case runPromptFile != "":
		data, err := os.ReadFile(runPromptFile)
		if err != nil {
			return fmt.Errorf("failed to read prompt file: %w", err)
		}
		systemPrompt = string(data)
	case runPromptInline != "":
		systemPrompt = runPromptInline
	case runPrompt != "":
		if data, err := os.ReadFile(runPrompt); err == nil {
			systemPrompt = string(data)
		} else {
			systemPrompt = runPrompt
		}
	}

	var systemPromptFile string
	if systemPrompt != "" {
		f, err := os.CreateTemp("", "opencode-run-prompt-*.txt")
		if err != nil {
			return fmt.Errorf("failed to stage system prompt: %w", err)
		}
		defer os.Remove(f.Name())
		if _, err := f.WriteString(systemPrompt); err != nil {
			f.Close()
			return fmt.Errorf("failed to stage system prompt: %w", err)
		}
		f.Close()
		systemPromptFile = f.Name()
	}

	model := runModel
	if model == "" {
		model = GetGlobalModel()
	}

	outputFormat := headless.OutputText
	if strings.EqualFold(runFormat, "json") {
		outputFormat = headless.OutputJSON
	}

	cfg := &headless.Config{
		Prompt:       message,
		WorkDir:      workDir,
		OutputFormat: outputFormat,
		Timeout:      30 * time.Minute,
		MaxSteps:     50,
		SessionID:    runSession,
		ContinueLast: runContinue,
		Files:        runFiles,
		SystemPrompt: systemPromptFile,
		Model:        model,
		Agent:        runAgent,
		Title:        runTitle,
	}

	runner := headless.NewRunner(cfg)
	result, err := runner.Run(cmd.Context(), os.Stdout)
	if err != nil {
		return err
	}
	if result != nil && result.ExitCode != headless.ExitSuccess {
		os.Exit(int(result.ExitCode))
	}

	return nil
}
