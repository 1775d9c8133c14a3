package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"crime-hotspots/internal/api"
	"crime-hotspots/internal/engine"
)

var countsReq engine.CountsRequest

var countsCmd = &cobra.Command{
	Use:   "counts",
	Short: "Per-unit monthly counts for a category (units with a zero window total are omitted)",
	RunE:  runCounts,
}

func init() {
	f := countsCmd.Flags()
	f.StringVar(&countsReq.Month, "month", "", "Window end month YYYY-MM (default: latest)")
	f.IntVar(&countsReq.Lookback, "lookback", 3, "Window length in months (1-12)")
	rootCmd.AddCommand(countsCmd)
}

func runCounts(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rt, kind, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	req := countsReq
	req.Kind, req.Force, req.Category = kind, forceFlag, categoryFlag
	resp, err := rt.Engine.Counts(ctx, req)
	if err != nil {
		return err
	}
	out := api.FromCounts(resp)
	return render(cmd.OutOrStdout(), out, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "# %s  %s\n", out.Cube, orAll(out.Region))
		fmt.Fprintf(tw, "UNIT\t%s\tTOTAL\n", joinMonths(out.Months))
		for _, s := range out.Series {
			fmt.Fprint(tw, s.Unit)
			for _, n := range s.Counts {
				fmt.Fprintf(tw, "\t%d", n)
			}
			fmt.Fprintf(tw, "\t%d\n", s.Total)
		}
	})
}
