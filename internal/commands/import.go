package commands

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/recondesk-dev/recondesk/internal/importer"
	"github.com/recondesk-dev/recondesk/internal/model"
)

func newImportCommand(dir *string) *cobra.Command {
	var format string
	var actorID string

	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Import transaction CSVs into the reconciliation sheet",
		Long: `Import parses CSV files into transactions and registers them with the
session. With no arguments every *.csv in the workspace import/ directory is
imported and moved to import/processed/.`,
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

			parser := importer.DefaultRegistry().Get(format)
			if parser == nil {
				return fmt.Errorf("unknown format %q (formats: %v)", format, importer.DefaultRegistry().Formats())
			}

			if len(args) > 0 {
				total := 0
				for _, path := range args {
					n, err := importFile(ws, parser, path, actor)
					if err != nil {
						return err
					}
					total += n
				}
				ws.AutoCommit(fmt.Sprintf("import: %d transactions", total))
				fmt.Printf("Imported %d transactions\n", total)
				return nil
			}

			files, err := importer.Scan(ws.Root)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Println("Nothing to import")
				return nil
			}

			total := 0
			for _, f := range files {
				n, err := importFile(ws, parser, f.Path, actor)
				if err != nil {
					return err
				}
				if err := importer.MarkProcessed(ws.Root, f.Name); err != nil {
					return err
				}
				total += n
			}
			ws.AutoCommit(fmt.Sprintf("import: %d transactions", total))
			fmt.Printf("Imported %d transactions from %d files\n", total, len(files))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "ledger", "CSV format (ledger, bank)")
	cmd.Flags().StringVar(&actorID, "actor", "", "acting user id (required)")
	_ = cmd.MarkFlagRequired("actor")

	return cmd
}

func importFile(ws *workspace, parser importer.Parser, path string, actor model.Actor) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	txns, err := parser.Parse(f)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(txns) == 0 {
		logrus.WithField("file", path).Warn("no rows parsed")
		return 0, nil
	}

	for i := range txns {
		txns[i].ImporterID = actor.ID
	}

	n, err := ws.Session.ImportTransactions(txns, actor)
	if err != nil {
		return 0, fmt.Errorf("importing %s: %w", path, err)
	}
	logrus.WithFields(logrus.Fields{"file": path, "rows": n}).Info("imported")
	return n, nil
}
