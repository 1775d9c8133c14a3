package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"crime-hotspots/internal/catalog"
	"crime-hotspots/internal/config"
	"crime-hotspots/internal/month"
)

var (
	kindFlag     string
	forceFlag    string
	categoryFlag string
	latestFlag   string
	formatFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "hotspots",
	Short: "Crime hotspot queries over police.uk street data",
	Long: `hotspots builds (or loads from the configured cache layers) the crime count cube
for each configured geography and answers ranking, count and repetition queries against it.

Configuration is read from the environment and .env, the same way the server does.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&kindFlag, "kind", "", "Geography kind, e.g. hex-250, grid-400, lsoa21")
	pf.StringVar(&forceFlag, "force", "", "Police force area name (empty: every unit in the catalog)")
	pf.StringVar(&categoryFlag, "category", "", "Crime category, e.g. burglary or \"anti-social behaviour\"")
	pf.StringVar(&latestFlag, "latest", "", "Latest month YYYY-MM (default: from AVAILABILITY)")
	pf.StringVar(&formatFlag, "format", "table", "Output format (table, json)")
}

// openRuntime：装配引擎并以最新月份完成构建
func openRuntime(ctx context.Context) (*config.Runtime, catalog.Kind, error) {
	var kind catalog.Kind
	if kindFlag == "" {
		return nil, kind, fmt.Errorf("--kind is required")
	}
	kind, err := catalog.ParseKind(kindFlag)
	if err != nil {
		return nil, kind, err
	}
	if categoryFlag == "" {
		return nil, kind, fmt.Errorf("--category is required")
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, kind, err
	}
	rt, err := config.Open(ctx, cfg)
	if err != nil {
		return nil, kind, err
	}
	if latestFlag != "" {
		m, err := month.Parse(latestFlag)
		if err == nil {
			err = rt.Engine.BuildAll(ctx, m)
		}
		if err != nil {
			rt.Close()
			return nil, kind, err
		}
		return rt, kind, nil
	}
	if _, err := rt.Engine.Refresh(ctx); err != nil {
		rt.Close()
		return nil, kind, err
	}
	return rt, kind, nil
}
