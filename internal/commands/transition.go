package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recondesk-dev/recondesk/internal/workflow"
)

func newTransitionCommand(dir *string) *cobra.Command {
	var actorID string
	var justification string

	cmd := &cobra.Command{
		Use:   "transition <state>",
		Short: "Advance the sheet's workflow state",
		Long: "Transition moves the reconciliation sheet to one of its legal next " +
			"states. Run without arguments to see where the sheet can go.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(*dir)
			if err != nil {
				return err
			}
			defer ws.Close()

			current, next := ws.Session.WorkflowState()
			if len(args) == 0 {
				fmt.Printf("Current state: %s\n", current)
				if len(next) == 0 {
					fmt.Println("Terminal state; no transitions available")
					return nil
				}
				fmt.Printf("Next states: %s\n", joinStates(next))
				return nil
			}

			actor, err := ws.Actor(actorID)
			if err != nil {
				return err
			}

			target := workflow.State(strings.ToUpper(args[0]))
			if err := ws.Session.TransitionWorkflow(target, actor, justification); err != nil {
				return err
			}

			ws.AutoCommit(fmt.Sprintf("workflow: %s -> %s", current, target))
			fmt.Printf("Workflow: %s -> %s\n", current, target)
			return nil
		},
	}

	cmd.Flags().StringVar(&actorID, "actor", "", "acting user id")
	cmd.Flags().StringVar(&justification, "justification", "", "reason recorded on the audit trail")

	return cmd
}

func joinStates(states []workflow.State) string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return strings.Join(out, ", ")
}
