package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"crime-hotspots/internal/month"
)

// render：json 输出完整结构；table 交给调用方逐行写入对齐表格
func render(w io.Writer, v any, table func(tw *tabwriter.Writer)) error {
	switch formatFlag {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}
	return fmt.Errorf("unsupported format: %s", formatFlag)
}

func monthsLabel(ms []month.Month) string {
	if len(ms) == 0 {
		return "-"
	}
	return month.Label(ms)
}

func joinMonths(ms []month.Month) string {
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = m.String()
	}
	return strings.Join(parts, "\t")
}
