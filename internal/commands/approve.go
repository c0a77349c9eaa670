package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newApproveCommand(dir *string) *cobra.Command {
	var actorID string

	cmd := &cobra.Command{
		Use:   "approve <match>...",
		Short: "Approve pending match groups",
		Long: `Approve marks match groups APPROVED. An approver who imported any
transaction inside a group is refused for conflict of interest unless they
hold the Admin role.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(*dir)
			if err != nil {
				return err
			}
			defer ws.Close()

			actor, err := ws.Actor(actorID)
			if err != nil {
				return err
			}

			ids := make([]string, 0, len(args))
			refs := make([]string, 0, len(args))
			for _, key := range args {
				g, err := ws.ResolveMatch(key)
				if err != nil {
					return err
				}
				ids = append(ids, g.ID)
				refs = append(refs, g.Ref)
			}

			if len(ids) == 1 {
				if err := ws.Session.ApproveMatch(ids[0], actor); err != nil {
					return err
				}
				ws.AutoCommit("approve: " + refs[0])
				fmt.Printf("Approved %s\n", refs[0])
				return nil
			}

			results, err := ws.Session.BatchApprove(ids, actor)
			if err != nil {
				return err
			}
			failed := 0
			for i, r := range results {
				if r.Err != nil {
					failed++
					fmt.Printf("  %s: %v\n", refs[i], r.Err)
				}
			}
			ws.AutoCommit(fmt.Sprintf("approve: %d groups", len(results)-failed))
			fmt.Printf("Approved %d of %d groups\n", len(results)-failed, len(results))
			return nil
		},
	}

	cmd.Flags().StringVar(&actorID, "actor", "", "acting user id (required)")
	_ = cmd.MarkFlagRequired("actor")

	return cmd
}
