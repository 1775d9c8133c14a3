// 数据导入工具：把街面犯罪 CSV 批量写入 PostgreSQL（_crime_records），供 INCIDENT_SOURCE=postgres 使用
package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"crime-hotspots/internal/config"
	"crime-hotspots/internal/incident"
	"crime-hotspots/internal/ingest"
	"crime-hotspots/internal/logger"
	"crime-hotspots/internal/migrate"
	"crime-hotspots/internal/month"
	"crime-hotspots/internal/utils"
)

// 文档注释：导入时间线内的全部街面犯罪文件
// 背景：按 DATA_DIR 下的月份目录发现文件，逐文件在事务内替换导入；命令行参数给出文件路径时只导入这些文件。
// 约束：时间线为可用月份来源的最新月份向前 HISTORY_MONTHS 个月；任一文件失败即退出（已提交的文件保留）。
func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	cfg, err := config.Load()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	ctx := context.Background()

	paths := os.Args[1:]
	if len(paths) == 0 {
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
		timeline, err := month.Window(latest, cfg.HistoryMonths, true)
		if err != nil {
			l.Error("timeline_error", "err", err)
			os.Exit(1)
		}
		if paths, err = incident.Discover(cfg.DataDir, timeline); err != nil {
			l.Error("discover_error", "dir", cfg.DataDir, "err", err)
			os.Exit(1)
		}
		l.Info("ingest_discovered", "files", len(paths), "from", timeline[0].String(), "to", latest.String())
	}

	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := migrate.EnsureSchema(ctx, db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}

	total := 0
	for _, p := range paths {
		res, err := ingest.ImportFile(ctx, db, p)
		if err != nil {
			l.Error("ingest_file_error", "file", filepath.Base(p), "err", err)
			os.Exit(1)
		}
		total += res.Rows
	}
	l.Info("ingest_done", "files", len(paths), "rows", total)
}
