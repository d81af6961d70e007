package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/banktx/internal/logger"
)

func newListCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored transactions, newest first",
		Long:  "List stored transactions, newest first. The largest income is marked with *.",
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

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No transactions.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, " \tREFERENCE\tTIMESTAMP\tAMOUNT\tDESCRIPTION\t")
			for _, r := range rows {
				mark := " "
				if r.Highlight {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", mark, r.Reference, r.Timestamp, r.Amount, r.Description)
			}
			return tw.Flush()
		},
	}
}
