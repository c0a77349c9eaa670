package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recondesk-dev/recondesk/internal/model"
	"github.com/recondesk-dev/recondesk/internal/workflow"
)

// newShellCommand runs an interactive reconciliation session. Undo and redo
// live here: the checkpoint stack belongs to one live session, so it is only
// reachable while that session is open.
func newShellCommand(dir *string) *cobra.Command {
	var actorID string

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive reconciliation session",
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

			return runShell(cmd.InOrStdin(), cmd.OutOrStdout(), ws, actor)
		},
	}

	cmd.Flags().StringVar(&actorID, "actor", "", "acting user id (required)")
	_ = cmd.MarkFlagRequired("actor")

	return cmd
}

func runShell(in io.Reader, out io.Writer, ws *workspace, actor model.Actor) error {
	fmt.Fprintf(out, "recondesk shell: %s acting as %s (%s)\n",
		ws.Config.Workspace.Name, actor.Name, actor.Role)
	fmt.Fprintln(out, `Type "help" for commands, "quit" to leave.`)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		if cmd == "quit" || cmd == "exit" {
			break
		}
		if err := dispatchShell(out, ws, actor, cmd, args); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
	ws.AutoCommit("shell session")
	return scanner.Err()
}

func dispatchShell(out io.Writer, ws *workspace, actor model.Actor, cmd string, args []string) error {
	s := ws.Session
	switch cmd {
	case "help":
		fmt.Fprintln(out, `commands:
  list [unmatched|matched]      show transactions
  matches                       show match groups
  match L1,L2 R1                match left serials against right serials
  unmatch <ref>...              dissolve match groups
  approve <ref>...              approve match groups
  comment <ref> <text>          replace a group's comment
  undo | redo                   step the checkpoint stack
  snapshot <label>              capture a labeled snapshot
  snapshots                     list snapshots
  restore <snapshot-id>         restore a snapshot (undoable)
  transition [state]            show or advance the workflow
  verify                        verify the audit chain
  report                        aggregate figures
  quit`)

	case "list":
		txns := s.Transactions()
		if len(args) > 0 {
			want := model.TransactionStatus(strings.ToUpper(args[0]))
			filtered := txns[:0]
			for _, t := range txns {
				if t.Status == want {
					filtered = append(filtered, t)
				}
			}
			txns = filtered
		}
		for _, t := range txns {
			fmt.Fprintf(out, "%-16s %s %-8s %10s  %s\n",
				t.Serial, t.Date.Format("2006-01-02"), t.ReconType, t.Amount.StringFixed(2), t.Description)
		}

	case "matches":
		for _, g := range s.Matches() {
			fmt.Fprintf(out, "%s  %-17s %d+%d txns  %s\n",
				g.Ref, g.Status, len(g.Left), len(g.Right), g.Comment)
		}

	case "match":
		if len(args) != 2 {
			return fmt.Errorf("usage: match L1,L2 R1")
		}
		g, err := s.ProposeMatch(strings.Split(args[0], ","), strings.Split(args[1], ","), actor, "")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "matched %s\n", g.Ref)

	case "unmatch":
		if len(args) == 0 {
			return fmt.Errorf("usage: unmatch <ref>...")
		}
		for _, key := range args {
			g, err := ws.ResolveMatch(key)
			if err != nil {
				return err
			}
			if err := s.Unmatch(g.ID, actor); err != nil {
				return err
			}
			fmt.Fprintf(out, "unmatched %s\n", g.Ref)
		}

	case "approve":
		if len(args) == 0 {
			return fmt.Errorf("usage: approve <ref>...")
		}
		for _, key := range args {
			g, err := ws.ResolveMatch(key)
			if err != nil {
				return err
			}
			if err := s.ApproveMatch(g.ID, actor); err != nil {
				return err
			}
			fmt.Fprintf(out, "approved %s\n", g.Ref)
		}

	case "comment":
		if len(args) < 2 {
			return fmt.Errorf("usage: comment <ref> <text>")
		}
		g, err := ws.ResolveMatch(args[0])
		if err != nil {
			return err
		}
		return s.UpdateMatchComment(g.ID, strings.Join(args[1:], " "), actor)

	case "undo":
		applied, err := s.Undo(actor)
		if err != nil {
			return err
		}
		if !applied {
			fmt.Fprintln(out, "nothing to undo")
		} else {
			fmt.Fprintln(out, "undone")
		}

	case "redo":
		applied, err := s.Redo(actor)
		if err != nil {
			return err
		}
		if !applied {
			fmt.Fprintln(out, "nothing to redo")
		} else {
			fmt.Fprintln(out, "redone")
		}

	case "snapshot":
		if len(args) == 0 {
			return fmt.Errorf("usage: snapshot <label>")
		}
		snap, err := s.CreateSnapshot(strings.Join(args, " "), model.SnapshotManual, actor)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "snapshot %s (%s)\n", snap.ID, snap.Label)

	case "snapshots":
		for _, snap := range s.Snapshots() {
			fmt.Fprintf(out, "%s  %-6s %s  %q\n",
				snap.ID, snap.Type, snap.CreatedAt.Format("2006-01-02 15:04"), snap.Label)
		}

	case "restore":
		if len(args) != 1 {
			return fmt.Errorf("usage: restore <snapshot-id>")
		}
		if err := s.RestoreSnapshot(args[0], actor); err != nil {
			return err
		}
		fmt.Fprintln(out, "restored")

	case "transition":
		current, next := s.WorkflowState()
		if len(args) == 0 {
			fmt.Fprintf(out, "state: %s  next: %s\n", current, joinStates(next))
			return nil
		}
		target := workflow.State(strings.ToUpper(args[0]))
		if err := s.TransitionWorkflow(target, actor, ""); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s -> %s\n", current, target)

	case "verify":
		if err := s.VerifyAuditChain(); err != nil {
			return err
		}
		fmt.Fprintf(out, "audit chain intact (%d entries)\n", len(s.AuditTrail()))

	case "report":
		printReport(out, ws)

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}
