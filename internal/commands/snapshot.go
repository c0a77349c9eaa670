package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recondesk-dev/recondesk/internal/model"
)

func newSnapshotCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage labeled state snapshots",
	}

	cmd.AddCommand(newSnapshotCreateCommand(dir))
	cmd.AddCommand(newSnapshotListCommand(dir))
	cmd.AddCommand(newSnapshotRestoreCommand(dir))

	return cmd
}

func newSnapshotCreateCommand(dir *string) *cobra.Command {
	var actorID string

	cmd := &cobra.Command{
		Use:   "create <label>",
		Short: "Capture a labeled snapshot of the full state",
		Args:  cobra.ExactArgs(1),
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

			snap, err := ws.Session.CreateSnapshot(args[0], model.SnapshotManual, actor)
			if err != nil {
				return err
			}

			ws.AutoCommit("snapshot: " + snap.Label)
			fmt.Printf("Snapshot %s (%d transactions, %d matches)\n",
				snap.ID, len(snap.Transactions), len(snap.Matches))
			return nil
		},
	}

	cmd.Flags().StringVar(&actorID, "actor", "", "acting user id (required)")
	_ = cmd.MarkFlagRequired("actor")

	return cmd
}

func newSnapshotListCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List retained snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(*dir)
			if err != nil {
				return err
			}
			defer ws.Close()

			snaps := ws.Session.Snapshots()
			if len(snaps) == 0 {
				fmt.Println("No snapshots")
				return nil
			}
			for _, snap := range snaps {
				fmt.Printf("%s  %-6s  %s  %3d txns  %2d matches  %q\n",
					snap.ID, snap.Type, snap.CreatedAt.Format("2006-01-02 15:04"),
					snap.Stats.TransactionCount, snap.Stats.MatchGroupCount, snap.Label)
			}
			return nil
		},
	}
}

func newSnapshotRestoreCommand(dir *string) *cobra.Command {
	var actorID string

	cmd := &cobra.Command{
		Use:   "restore <snapshot-id>",
		Short: "Restore a snapshot's state",
		Args:  cobra.ExactArgs(1),
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

			if err := ws.Session.RestoreSnapshot(args[0], actor); err != nil {
				return err
			}

			ws.AutoCommit("restore snapshot " + args[0])
			fmt.Println("Restored")
			return nil
		},
	}

	cmd.Flags().StringVar(&actorID, "actor", "", "acting user id (required)")
	_ = cmd.MarkFlagRequired("actor")

	return cmd
}
