package commands

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newVerifyCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the audit chain's hash links",
		Long: `Verify recomputes every audit entry's hash against its stored fields and
its predecessor. On tampering the sheet is forced into FLAGGED_FOR_AUDIT and
the session refuses further mutation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(*dir)
			if err != nil {
				return err
			}
			defer ws.Close()

			if err := ws.Session.VerifyAuditChain(); err != nil {
				logrus.WithError(err).Error("audit chain verification failed")
				return err
			}

			fmt.Printf("Audit chain intact: %d entries\n", len(ws.Session.AuditTrail()))
			return nil
		},
	}
}
