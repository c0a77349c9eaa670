package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/recondesk-dev/recondesk/internal/audit"
)

func newAuditCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect and export the audit trail",
	}

	cmd.AddCommand(newAuditShowCommand(dir))
	cmd.AddCommand(newAuditExportCommand(dir))

	return cmd
}

func newAuditShowCommand(dir *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print recent audit entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(*dir)
			if err != nil {
				return err
			}
			defer ws.Close()

			entries := ws.Session.AuditTrail()
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}
			for _, e := range entries {
				fmt.Printf("%4d  %s  %-10s %-24s %s\n",
					e.Seq, e.Timestamp.Format("2006-01-02 15:04:05"), e.ActorID, e.Action, e.Summary)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "show at most N entries (0 = all)")

	return cmd
}

func newAuditExportCommand(dir *string) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the full audit trail as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(*dir)
			if err != nil {
				return err
			}
			defer ws.Close()

			if outPath == "" {
				outPath = filepath.Join(ws.Root, "exports", "audit.csv")
			}
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return fmt.Errorf("creating export dir: %w", err)
			}

			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("creating %s: %w", outPath, err)
			}
			defer f.Close()

			entries := ws.Session.AuditTrail()
			if err := audit.WriteEntries(f, entries); err != nil {
				return err
			}

			fmt.Printf("Exported %d audit entries to %s\n", len(entries), outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default exports/audit.csv)")

	return cmd
}
