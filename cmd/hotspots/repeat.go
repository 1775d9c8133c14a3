package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"crime-hotspots/internal/analysis"
	"crime-hotspots/internal/api"
	"crime-hotspots/internal/engine"
)

var repeatReq engine.RepetitionRequest

var repeatCmd = &cobra.Command{
	Use:   "repeat",
	Short: "Hotspot repetition and prediction across rolling windows of the full timeline",
	Long: `repeat slides a lookback window over the whole history in steps, ranks the top-N
hotspots in each window, and reports how often each unit recurs, the share of crime the
hotspots capture, and the share they capture in the following prediction window.`,
	RunE: runRepeat,
}

func init() {
	f := repeatCmd.Flags()
	f.IntVar(&repeatReq.Lookback, "lookback", 1, "Window length in months (1-12)")
	f.IntVar(&repeatReq.Predict, "predict", 1, "Prediction window length in months (1-12)")
	f.IntVar(&repeatReq.Step, "step", 1, "Months between window starts (1-12)")
	f.IntVar(&repeatReq.N, "n", 10, "Hotspots per window")
	f.Float64Var(&repeatReq.Coverage, "coverage", 0, "Area coverage percent; overrides --n when set")
	f.StringVar(&repeatReq.TieBreak, "tiebreak", "id", "Tie-break for equal counts (id, density)")
	f.Float64Var(&repeatReq.Persistence, "persistence", analysis.DefaultPersistence, "RBO persistence between consecutive windows, in (0,1)")
	rootCmd.AddCommand(repeatCmd)
}

func runRepeat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rt, kind, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	req := repeatReq
	req.Kind, req.Force, req.Category = kind, forceFlag, categoryFlag
	resp, err := rt.Engine.Repetition(ctx, req)
	if err != nil {
		return err
	}
	out := api.FromRepetition(resp)
	return render(cmd.OutOrStdout(), out, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "# %s  %s  n=%d  windows=%d\n", out.Cube, orAll(out.Region), out.N, out.Observations)
		fmt.Fprintln(tw, "WINDOW\tCAPTURED %\tPREDICTED %\tRBO\tF1\tCOSINE\tGINI\tHOTSPOTS")
		for _, w := range out.Windows {
			pred := "-"
			if len(w.Prediction) > 0 {
				pred = fmt.Sprintf("%.1f", w.PredictedPct)
			}
			fmt.Fprintf(tw, "%s\t%.1f\t%s\t%.3f\t%.3f\t%.3f\t%.3f\t%s\n",
				monthsLabel(w.Months), w.CapturedPct, pred, w.RBO, w.F1, w.Cosine, w.Gini, strings.Join(w.Hotspots, " "))
		}
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "UNIT\tTIMES\tFREQUENCY %")
		for _, f := range out.Frequency {
			fmt.Fprintf(tw, "%s\t%d\t%.1f\n", f.Unit, f.Count, f.Pct)
		}
	})
}
