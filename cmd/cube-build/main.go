package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"crime-hotspots/internal/config"
	"crime-hotspots/internal/logger"
	"crime-hotspots/internal/month"
)

// 文档注释：一次性构建全部目录类型的计数立方体并写入各缓存层
// 背景：用于发布新月份数据后预热缓存，服务进程启动时即可直接命中文件/Redis/Postgres 制品。
// 约束：BUILD_MONTH 为空时取可用月份来源的最新月份；已存在的制品不会被覆盖（不可变）。
func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	cfg, err := config.Load()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	ctx := context.Background()
	rt, err := config.Open(ctx, cfg)
	if err != nil {
		l.Error("startup_error", "err", err)
		os.Exit(1)
	}
	defer rt.Close()

	var latest month.Month
	if s := os.Getenv("BUILD_MONTH"); s != "" {
		if latest, err = month.Parse(s); err != nil {
			l.Error("build_month_invalid", "value", s, "err", err)
			os.Exit(1)
		}
	} else {
		src, err := cfg.AvailabilitySource()
		if err == nil {
			latest, err = src.LatestMonth(ctx)
		}
		if err != nil {
			l.Error("availability_error", "err", err)
			os.Exit(1)
		}
	}
	l.Info("cube_build_all_begin", "latest", latest.String(), "kinds", len(rt.Catalogs), "layers", rt.Cache.Len())

	if err := rt.Engine.BuildAll(ctx, latest); err != nil {
		l.Error("cube_build_all_error", "err", err)
		os.Exit(1)
	}
	for _, k := range rt.Engine.Kinds() {
		snap, err := rt.Engine.Snapshot(k)
		if err != nil {
			continue
		}
		l.Info("cube_ready",
			"key", snap.Key.String(),
			"entries", snap.Cube.Len(),
			"run_id", snap.Stats.RunID,
			"incidents", snap.Stats.Incidents,
			"unmatched", snap.Stats.Unmatched,
		)
	}
	l.Info("cube_build_all_done", "latest", latest.String())
}
