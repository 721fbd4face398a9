package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kang022878/WheelCity-back-2025/internal/snapshot"
)

var exportCmd = &cobra.Command{
	Use:   "export <file.yaml>",
	Short: "Export venues and reports to a YAML snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var exportVenues []string

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringSliceVar(&exportVenues, "venue", nil, "Only export these venue IDs")
}

func runExport(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := snapshot.Export(cmd.Context(), rt.store, rt.store, &snapshot.ExportOptions{
		OutputPath: args[0],
		VenueIDs:   exportVenues,
	})
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d venues and %d reports to %s\n", res.VenueCount, res.ReportCount, res.OutputPath)
	return nil
}
