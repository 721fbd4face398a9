package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kang022878/WheelCity-back-2025/internal/snapshot"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Import venues and reports from a YAML snapshot",
	Long: `Import venues and reports from a YAML snapshot.

Labels in the file are applied through the same forced-label path as
POST /venues/{id}/label. Reports without a disagrees field are treated as
legacy reports and get the flag computed the first time they enter a
consensus window.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

var (
	seedDryRun   bool
	seedConflict string
)

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().BoolVar(&seedDryRun, "dry-run", false, "Validate and plan without writing")
	seedCmd.Flags().StringVar(&seedConflict, "conflict", string(snapshot.ConflictSkip), "Existing venue policy (skip, fail)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	report, err := snapshot.Import(cmd.Context(), rt.store, rt.store, rt.engine.Orchestrator, &snapshot.ImportOptions{
		InputPath:      args[0],
		DryRun:         seedDryRun,
		ConflictPolicy: snapshot.ConflictPolicy(seedConflict),
	})
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, v := range report.Venues {
		fmt.Fprintf(out, "%-10s %s reports=%d skipped=%d labeled=%t", v.Action, v.ID, v.ReportsImported, v.ReportsSkipped, v.Labeled)
		if v.Reason != "" {
			fmt.Fprintf(out, " (%s)", v.Reason)
		}
		fmt.Fprintln(out)
	}
	for _, w := range report.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	return nil
}
