package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"crime-hotspots/internal/month"
)

var (
	windowsEnd     string
	windowsHistory int
	windowsSize    int
	windowsStep    int
)

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "List the rolling windows a repetition analysis would evaluate",
	Example: `  hotspots windows --end 2024-06 --history 12 --size 3 --step 3`,
	RunE: runWindows,
}

func init() {
	f := windowsCmd.Flags()
	f.StringVar(&windowsEnd, "end", "", "Latest month YYYY-MM (required)")
	f.IntVar(&windowsHistory, "history", 36, "Timeline length in months")
	f.IntVar(&windowsSize, "size", 1, "Window length in months")
	f.IntVar(&windowsStep, "step", 1, "Months between window starts")
	_ = windowsCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(windowsCmd)
}

type windowRow struct {
	Index  int           `json:"index"`
	Label  string        `json:"label"`
	Months []month.Month `json:"months"`
}

func runWindows(cmd *cobra.Command, args []string) error {
	end, err := month.Parse(windowsEnd)
	if err != nil {
		return err
	}
	timeline, err := month.Window(end, windowsHistory, true)
	if err != nil {
		return err
	}
	seq, err := month.Rolling(timeline, windowsSize, windowsStep)
	if err != nil {
		return err
	}
	rows := make([]windowRow, 0, month.NumWindows(len(timeline), windowsSize, windowsStep))
	for w := range seq {
		rows = append(rows, windowRow{Index: len(rows) + 1, Label: month.Label(w), Months: w})
	}
	return render(cmd.OutOrStdout(), rows, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "#\tWINDOW\tMONTHS")
		for _, r := range rows {
			fmt.Fprintf(tw, "%d\t%s\t%d\n", r.Index, r.Label, len(r.Months))
		}
	})
}
