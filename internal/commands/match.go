package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newMatchCommand(dir *string) *cobra.Command {
	var left, right []string
	var comment string
	var actorID string

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match transactions whose signed amounts sum to zero",
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

			g, err := ws.Session.ProposeMatch(left, right, actor, comment)
			if err != nil {
				return err
			}

			ws.AutoCommit("match: " + g.Ref)
			fmt.Printf("Matched %s: %d + %d transactions, difference %s\n",
				g.Ref, len(g.Left), len(g.Right), g.Difference.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&left, "left", nil, "left-side transaction serials")
	cmd.Flags().StringSliceVar(&right, "right", nil, "right-side transaction serials")
	cmd.Flags().StringVar(&comment, "comment", "", "match comment")
	cmd.Flags().StringVar(&actorID, "actor", "", "acting user id (required)")
	_ = cmd.MarkFlagRequired("actor")

	return cmd
}

func newUnmatchCommand(dir *string) *cobra.Command {
	var actorID string

	cmd := &cobra.Command{
		Use:   "unmatch <match>...",
		Short: "Dissolve match groups by id or reference",
		Args:  cobra.MinimumNArgs(1),
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
				if err := ws.Session.Unmatch(ids[0], actor); err != nil {
					return err
				}
				ws.AutoCommit("unmatch: " + refs[0])
				fmt.Printf("Unmatched %s\n", refs[0])
				return nil
			}

			results, err := ws.Session.BatchUnmatch(ids, actor)
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
			ws.AutoCommit("unmatch: " + strings.Join(refs, ", "))
			fmt.Printf("Unmatched %d of %d groups\n", len(results)-failed, len(results))
			return nil
		},
	}

	cmd.Flags().StringVar(&actorID, "actor", "", "acting user id (required)")
	_ = cmd.MarkFlagRequired("actor")

	return cmd
}

func newCommentCommand(dir *string) *cobra.Command {
	var actorID string

	cmd := &cobra.Command{
		Use:   "comment <match> <text>",
		Short: "Replace a match group's comment",
		Args:  cobra.ExactArgs(2),
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

			g, err := ws.ResolveMatch(args[0])
			if err != nil {
				return err
			}
			if err := ws.Session.UpdateMatchComment(g.ID, args[1], actor); err != nil {
				return err
			}

			ws.AutoCommit("comment: " + g.Ref)
			fmt.Printf("Updated comment on %s\n", g.Ref)
			return nil
		},
	}

	cmd.Flags().StringVar(&actorID, "actor", "", "acting user id (required)")
	_ = cmd.MarkFlagRequired("actor")

	return cmd
}
