package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newReportCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Show reconciliation progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(*dir)
			if err != nil {
				return err
			}
			defer ws.Close()

			printReport(os.Stdout, ws)
			return nil
		},
	}
}

func printReport(out io.Writer, ws *workspace) {
	s := ws.Session
	stats := s.Stats()
	current, _ := s.WorkflowState()

	fmt.Fprintf(out, "Workspace:     %s\n", ws.Config.Workspace.Name)
	fmt.Fprintf(out, "Workflow:      %s\n", current)
	fmt.Fprintf(out, "Transactions:  %d (%d matched, %d open)\n",
		stats.TransactionCount, stats.MatchedCount, stats.TransactionCount-stats.MatchedCount)
	fmt.Fprintf(out, "Match groups:  %d\n", stats.MatchGroupCount)
	fmt.Fprintf(out, "Matched value: %s\n", stats.MatchedValue.StringFixed(2))

	pending := 0
	for _, g := range s.Matches() {
		if g.ApprovedBy == "" {
			pending++
		}
	}
	fmt.Fprintf(out, "Approvals:     %d pending\n", pending)

	if s.Suspended() {
		fmt.Fprintln(out, "SESSION SUSPENDED: audit chain verification failed")
	}
}
