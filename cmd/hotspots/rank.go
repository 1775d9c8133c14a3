package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"crime-hotspots/internal/api"
	"crime-hotspots/internal/engine"
)

var rankReq engine.HotspotRequest

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Top-N hotspot units for a category over a lookback window",
	Example: `  hotspots rank --kind hex-250 --force "West Yorkshire" --category burglary --n 10
  hotspots rank --kind lsoa21 --category robbery --coverage 5 --lookback 3 --tiebreak density`,
	RunE: runRank,
}

func init() {
	f := rankCmd.Flags()
	f.StringVar(&rankReq.Month, "month", "", "Window end month YYYY-MM (default: latest)")
	f.IntVar(&rankReq.Lookback, "lookback", 1, "Window length in months (1-12)")
	f.IntVar(&rankReq.N, "n", 10, "Number of hotspots")
	f.Float64Var(&rankReq.Coverage, "coverage", 0, "Area coverage percent; overrides --n when set")
	f.StringVar(&rankReq.TieBreak, "tiebreak", "id", "Tie-break for equal counts (id, density)")
	f.BoolVar(&rankReq.IncludeZero, "include-zero", false, "Pad with zero-count units up to N")
	rootCmd.AddCommand(rankCmd)
}

func runRank(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rt, kind, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	req := rankReq
	req.Kind, req.Force, req.Category = kind, forceFlag, categoryFlag
	resp, err := rt.Engine.Hotspots(ctx, req)
	if err != nil {
		return err
	}
	out := api.FromHotspots(resp)
	return render(cmd.OutOrStdout(), out, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "# %s  %s  %s  n=%d  captured %.1f%% of %d\n",
			out.Cube, orAll(out.Region), monthsLabel(out.Months), out.N, out.CapturedPct, out.Total)
		fmt.Fprintln(tw, "RANK\tUNIT\tCOUNT\tPER KM²")
		for i, it := range out.Items {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%.2f\n", i+1, it.Unit, it.Count, it.Density)
		}
	})
}

func orAll(region string) string {
	if region == "" {
		return "all units"
	}
	return region
}
