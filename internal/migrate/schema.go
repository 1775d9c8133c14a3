// 包 migrate：Postgres 表结构（事件原始记录与立方体制品）
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"crime-hotspots/internal/logger"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS _crime_records (
        id BIGSERIAL PRIMARY KEY,
        crime_id TEXT,
        month TEXT NOT NULL,
        reported_by TEXT,
        falls_within TEXT,
        longitude DOUBLE PRECISION,
        latitude DOUBLE PRECISION,
        crime_type TEXT NOT NULL,
        source_file TEXT NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_crime_records_month_type ON _crime_records(month, crime_type)`,
	`CREATE INDEX IF NOT EXISTS idx_crime_records_source ON _crime_records(source_file)`,
	`CREATE TABLE IF NOT EXISTS _cube_artifacts (
        name TEXT PRIMARY KEY,
        payload BYTEA NOT NULL,
        bytes INT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
}

// EnsureSchema：首次运行建表建索引
// 约束：只用 IF NOT EXISTS，不修改既有结构
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, s := range statements {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
