package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"crime-hotspots/internal/config"
	"crime-hotspots/internal/cube"
	"crime-hotspots/internal/logger"
)

// 文档注释：立方体制品保留窗口
// 背景：每个最新月份对应一组不可变制品；保留最近 CUBE_KEEP_N 个月份（默认 3），更早的从全部缓存层删除。
// 约束：只按目录类型 × 月份构造键删除，向前扫描 CUBE_SCAN_MONTHS 个月（默认 36）；删除不存在的制品不是错误。
func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	keepN := envInt("CUBE_KEEP_N", 3)
	scan := envInt("CUBE_SCAN_MONTHS", 36)
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

	src, err := cfg.AvailabilitySource()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	latest, err := src.LatestMonth(ctx)
	if err != nil {
		l.Error("availability_error", "err", err)
		os.Exit(1)
	}
	evicted := 0
	for _, k := range rt.Engine.Kinds() {
		for i := keepN; i < keepN+scan; i++ {
			key := cube.CacheKey{Kind: k, Latest: latest.Add(-i)}
			ok, err := rt.Cache.Exists(ctx, key)
			if err != nil {
				l.Error("cube_exists_error", "key", key.String(), "err", err)
				os.Exit(1)
			}
			if !ok {
				continue
			}
			if err := rt.Cache.Evict(ctx, key); err != nil {
				l.Error("cube_evict_error", "key", key.String(), "err", err)
				os.Exit(1)
			}
			l.Info("cube_evicted", "key", key.String())
			evicted++
		}
	}
	l.Info("cube_evict_done", "latest", latest.String(), "keep", keepN, "evicted", evicted)
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		var n int
		if _, err := fmt.Sscanf(s, "%d", &n); err == nil && n > 0 {
			return n
		}
	}
	return def
}
