// 包 ingest：把 police.uk 街面犯罪 CSV 批量导入 Postgres（_crime_records），作为离线数据通道
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"crime-hotspots/internal/incident"
	"crime-hotspots/internal/logger"
)

var copyColumns = []string{"month", "falls_within", "longitude", "latitude", "crime_type", "source_file"}

// Result：单个文件的导入结果
type Result struct {
	File     string
	Rows     int
	Replaced int64
}

// 文档注释：导入单个街面犯罪 CSV
// 背景：同一文件重复导入时先删除该文件之前的行，再以 COPY 写入，整个过程在一个事务内完成，读者看不到半成品。
// 约束：source_file 取文件名（不含目录），使不同解压位置的同一文件视为同一来源；坐标为空或无法解析时写 NULL，由读取端计为坏坐标。
func ImportFile(ctx context.Context, db *sql.DB, path string) (res Result, err error) {
	res.File = filepath.Base(path)
	recs, err := incident.ReadStreetCSVFile(ctx, path)
	if err != nil {
		return res, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	r, err := tx.ExecContext(ctx, `DELETE FROM _crime_records WHERE source_file = $1`, res.File)
	if err != nil {
		return res, fmt.Errorf("delete %s: %w", res.File, err)
	}
	res.Replaced, _ = r.RowsAffected()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("_crime_records", copyColumns...))
	if err != nil {
		return res, fmt.Errorf("copy %s: %w", res.File, err)
	}
	defer stmt.Close()
	for _, rec := range recs {
		if _, err = stmt.ExecContext(ctx, rec.Month, nullString(rec.Force), nullFloat(rec.Longitude), nullFloat(rec.Latitude), rec.Category, res.File); err != nil {
			return res, fmt.Errorf("copy %s: %w", res.File, err)
		}
		res.Rows++
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		return res, fmt.Errorf("copy flush %s: %w", res.File, err)
	}
	if err = tx.Commit(); err != nil {
		return res, err
	}
	logger.L().Info("ingest_file_done", "file", res.File, "rows", res.Rows, "replaced", res.Replaced)
	return res, nil
}

func nullString(s string) any {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return s
}

func nullFloat(s string) any {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return f
}
