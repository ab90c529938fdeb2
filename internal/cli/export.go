package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sluicehq/sluice/internal/archive"
)

// formatErrorLine renders one numbered error sentence for text output.
func formatErrorLine(i int, msg string) string {
	return fmt.Sprintf("  %d. %s\n", i+1, msg)
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var archivePath, outPath string
	var filter archive.Filter

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export archived verdicts as CSV",
		Long: `Export the verdict archive written by "serve --archive" to CSV.
Writes to stdout unless --out is given. The --session, --flow and
--status flags narrow the export; combined filters are ANDed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(archivePath, outPath, filter, cmd)
		},
	}

	cmd.Flags().StringVar(&archivePath, "archive", "sluice.db", "sqlite archive path")
	cmd.Flags().StringVar(&outPath, "out", "", "output file (default stdout)")
	cmd.Flags().StringVar(&filter.SessionID, "session", "", "only records from this session")
	cmd.Flags().StringVar(&filter.FlowID, "flow", "", "only records from this flow")
	cmd.Flags().StringVar(&filter.Status, "status", "", "only records with this status (valid|invalid)")

	return cmd
}

func runExport(archivePath, outPath string, filter archive.Filter, cmd *cobra.Command) error {
	if _, err := os.Stat(archivePath); err != nil {
		return WrapExitError(ExitCommandError, "archive not found", err)
	}
	store, err := archive.Open(archivePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening archive", err)
	}
	defer store.Close()

	w := cmd.OutOrStdout()
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "creating output file", err)
		}
		defer f.Close()
		w = f
	}

	if err := store.ExportCSV(context.Background(), w, filter); err != nil {
		return WrapExitError(ExitCommandError, "exporting archive", err)
	}
	return nil
}
