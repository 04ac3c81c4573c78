package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentforge/core/internal/config"
	"github.com/agentforge/core/internal/memory"
	"github.com/agentforge/core/internal/storage"
)

var goldOutputPath string

var goldCmd = &cobra.Command{
	Use:   "gold",
	Short: "Manage Gold Memory invariants",
}

var goldExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export Gold Invariant bundle as YAML",
	Long: `Export every invariant in Gold Memory to a YAML bundle, for checking
into a repo or seeding another project.

Examples:
  agentforge gold export invariants.yaml
  agentforge gold export -o invariants.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGoldExport,
}

var goldImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a Gold Invariant YAML bundle",
	Long: `Import a YAML Gold Invariant bundle (as produced by "gold export")
into Gold Memory, adding every entry it contains.`,
	Args: cobra.ExactArgs(1),
	RunE: runGoldImport,
}

func init() {
	goldExportCmd.Flags().StringVarP(&goldOutputPath, "output", "o", "", "write the bundle here instead of stdout")
	goldCmd.AddCommand(goldExportCmd)
	goldCmd.AddCommand(goldImportCmd)
}

func openGoldMemory(workDir string) (*memory.GoldMemory, error) {
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return nil, err
	}
	store := storage.NewInvariantStore(storage.New(paths.StoragePath()))
	gold := memory.NewGoldMemory(store)
	if err := gold.Load(context.Background()); err != nil {
		return nil, fmt.Errorf("load gold memory: %w", err)
	}
	return gold, nil
}

func runGoldExport(cmd *cobra.Command, args []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	gold, err := openGoldMemory(workDir)
	if err != nil {
		return err
	}

	data, err := gold.ExportYAML()
	if err != nil {
		return fmt.Errorf("export gold invariants: %w", err)
	}

	target := goldOutputPath
	if len(args) > 0 {
		target = args[0]
	}
	if target == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(target, data, 0o644)
}

func runGoldImport(cmd *cobra.Command, args []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	gold, err := openGoldMemory(workDir)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	n, err := gold.ImportYAML(context.Background(), data)
	if err != nil {
		return fmt.Errorf("import gold invariants: %w", err)
	}
	fmt.Printf("imported %d invariant(s)\n", n)
	return nil
}
