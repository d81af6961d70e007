package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/banktx/internal/importer"
	"github.com/cleared-dev/banktx/internal/importlog"
	"github.com/cleared-dev/banktx/internal/logger"
)

func newImportCommand(configPath *string) *cobra.Command {
	var inbox bool

	cmd := &cobra.Command{
		Use:   "import [file ...]",
		Short: "Import transactions from CSV files",
		Long: "Import transactions from CSV files. Each file is one batch: it is stored\n" +
			"completely or not at all. With --inbox every CSV in the import inbox is\n" +
			"imported and moved to processed/ on success.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !inbox && len(args) == 0 {
				return fmt.Errorf("no files given (use --inbox to import the inbox)")
			}

			e, err := openEnv(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := logger.WithContext(cmd.Context(), e.log)
			out := cmd.OutOrStdout()

			paths := args
			if inbox {
				files, err := importer.Scan(e.cfg.Import.Inbox)
				if err != nil {
					return err
				}
				if len(files) == 0 && len(args) == 0 {
					fmt.Fprintf(out, "No CSV files in %s\n", e.cfg.Import.Inbox)
					return nil
				}
				for _, f := range files {
					paths = append(paths, f.Path)
				}
			}

			failed := 0
			for _, p := range paths {
				entry := e.importFile(ctx, out, p)
				if err := importlog.Append(e.cfg.Import.LogFile, []importlog.Entry{entry}); err != nil {
					return err
				}
				if entry.Outcome != importlog.OutcomeImported {
					failed++
					continue
				}
				if inbox && filepath.Dir(p) == filepath.Clean(e.cfg.Import.Inbox) {
					if err := importer.MarkProcessed(e.cfg.Import.Inbox, filepath.Base(p)); err != nil {
						return err
					}
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d imports failed", failed, len(paths))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&inbox, "inbox", false, "import every CSV file in the import inbox")

	return cmd
}

// importFile imports one file, reports the outcome on out and returns the
// import log entry describing it.
func (e *env) importFile(ctx context.Context, out io.Writer, path string) importlog.Entry {
	entry := importlog.Entry{
		Timestamp: time.Now().UTC(),
		Source:    filepath.Base(path),
		Outcome:   importlog.OutcomeFailed,
	}

	f, err := os.Open(path)
	if err != nil {
		entry.Details = err.Error()
		fmt.Fprintf(out, "Failed to import %s: %v\n", path, err)
		return entry
	}
	defer f.Close()

	res, err := e.ledger.Import(ctx, f)
	if err != nil {
		if verr, ok := importer.AsValidationError(err); ok {
			entry.Outcome = importlog.OutcomeRejected
			entry.Details = verr.Error()
			fmt.Fprintf(out, "Rejected %s:\n", path)
			for _, d := range verr.Details {
				fmt.Fprintf(out, "  %s\n", d)
			}
			return entry
		}
		entry.Details = err.Error()
		fmt.Fprintf(out, "Failed to import %s: %v\n", path, err)
		return entry
	}

	entry.Outcome = importlog.OutcomeImported
	entry.BatchID = res.BatchID
	entry.Count = res.Count
	fmt.Fprintf(out, "Imported %d transactions from %s (%s)\n", res.Count, path, res.BatchID)
	return entry
}
