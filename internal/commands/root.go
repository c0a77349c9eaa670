// Package commands wires the CLI. Each invocation opens the workspace,
// resumes the reconciliation session from storage, performs one operation,
// and exits; durability comes from the store, not from process lifetime.
package commands

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/recondesk-dev/recondesk/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var dir string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:     "recondesk",
		Short:   "Auditable bank reconciliation for finance teams",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&dir, "dir", "C", ".", "workspace directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newImportCommand(&dir))
	rootCmd.AddCommand(newMatchCommand(&dir))
	rootCmd.AddCommand(newUnmatchCommand(&dir))
	rootCmd.AddCommand(newCommentCommand(&dir))
	rootCmd.AddCommand(newApproveCommand(&dir))
	rootCmd.AddCommand(newTransitionCommand(&dir))
	rootCmd.AddCommand(newShellCommand(&dir))
	rootCmd.AddCommand(newSnapshotCommand(&dir))
	rootCmd.AddCommand(newVerifyCommand(&dir))
	rootCmd.AddCommand(newReportCommand(&dir))
	rootCmd.AddCommand(newAuditCommand(&dir))

	return rootCmd
}
