package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/banktx/internal/export"
	"github.com/cleared-dev/banktx/internal/logger"
)

func newExportCommand(configPath *string) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the formatted listing to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			txs, err := e.ledger.List(logger.WithContext(cmd.Context(), e.log))
			if err != nil {
				return err
			}
			rows := e.formatter.Format(txs)

			if err := export.WriteFile(out, rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d transactions to %s\n", len(rows), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "transactions.xlsx", "output .xlsx path")

	return cmd
}
