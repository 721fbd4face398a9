package cmd

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
	"github.com/kang022878/WheelCity-back-2025/internal/service/reconcile"
)

var recheckCmd = &cobra.Command{
	Use:   "recheck [venue-id]",
	Short: "Run the consensus check for a venue",
	Long: `Run the consensus check for one venue, or for every venue with --all.

A check triggers a re-evaluation only when the venue's three most recent
reports all disagree with its label and none of them has been acted on yet,
so running it repeatedly is safe.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRecheck,
}

var (
	recheckAll      bool
	recheckParallel int
)

func init() {
	rootCmd.AddCommand(recheckCmd)
	recheckCmd.Flags().BoolVar(&recheckAll, "all", false, "Check every venue")
	recheckCmd.Flags().IntVar(&recheckParallel, "parallel", 4, "Venues checked concurrently with --all")
}

func runRecheck(cmd *cobra.Command, args []string) error {
	if recheckAll == (len(args) == 1) {
		return errors.New("specify exactly one of <venue-id> or --all")
	}

	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	if !recheckAll {
		id := core.VenueID(args[0])
		if err := core.ValidateID("venue_id", args[0]); err != nil {
			return err
		}
		res, err := rt.engine.Tracker.CheckAndMaybeTrigger(cmd.Context(), id)
		if err != nil {
			return err
		}
		printTrigger(out, id, res)
		return nil
	}

	results, err := rt.engine.RecheckAll(cmd.Context(), recheckParallel)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	for _, id := range ids {
		printTrigger(out, core.VenueID(id), results[core.VenueID(id)])
	}
	return nil
}

func printTrigger(w io.Writer, id core.VenueID, res reconcile.TriggerResult) {
	fmt.Fprintf(w, "%s decision=%s", id, res.Decision)
	if res.Result != nil {
		fmt.Fprintf(w, " outcome=%s tried=%d", res.Result.Outcome, len(res.Result.Tried))
		if res.Result.Label != nil {
			fmt.Fprintf(w, " ramp=%t curb=%t", res.Result.Label.Ramp, res.Result.Label.Curb)
		}
	}
	fmt.Fprintln(w)
}
