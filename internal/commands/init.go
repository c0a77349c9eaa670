package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/recondesk-dev/recondesk/internal/actors"
	"github.com/recondesk-dev/recondesk/internal/config"
	"github.com/recondesk-dev/recondesk/internal/gitops"
	"github.com/recondesk-dev/recondesk/internal/store"
)

func newInitCommand() *cobra.Command {
	var name string
	var sheetID string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new recondesk workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(absDir, name, sheetID)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "workspace name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&sheetID, "sheet", "main", "reconciliation sheet id")

	return cmd
}

func runInit(dir, name, sheetID string) error {
	dirs := []string{
		"import",
		filepath.Join("import", "processed"),
		"exports",
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	// Write recondesk.yaml.
	cfg := config.Default(name)
	cfg.Workspace.SheetID = sheetID
	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Write the starter actor roster.
	roster := actors.NewService(actors.DefaultRoster())
	if err := roster.Save(dir); err != nil {
		return fmt.Errorf("writing actor roster: %w", err)
	}

	// Create the database so the schema exists before the first import.
	db, err := store.InitDB(filepath.Join(dir, cfg.Workspace.DBPath))
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}

	// Write .gitignore. The database and exports are derived artifacts.
	gitignore := cfg.Workspace.DBPath + "\n" + cfg.Workspace.DBPath + "-wal\n" +
		cfg.Workspace.DBPath + "-shm\nexports/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	// Write import/.gitkeep.
	if err := os.WriteFile(filepath.Join(dir, "import", ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	// Initialize git and create initial commit.
	if err := gitops.Init(dir); err != nil {
		return fmt.Errorf("git init: %w", err)
	}

	hash, err := gitops.CommitAll(dir, "init: "+name, cfg.Git.AuthorName, cfg.Git.AuthorEmail)
	if err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}

	fmt.Printf("Initialized recondesk workspace at %s (%s)\n", dir, hash)
	return nil
}
