package incident

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	"crime-hotspots/internal/month"
)

const pgUndefinedColumn = "42703"

// 文档注释：Postgres 原始事件来源（_crime_records）
// 背景：cmd/crime-ingest 以 COPY 批量导入 CSV 后，服务进程可直接从表中读取，避免每次启动重读数百个文件。
// 约束：月份与类别在 SQL 侧预过滤以减少传输，Load 仍会再次校验；坐标为 NULL 的行交付空字符串，由仓库计为坏坐标。
type PostgresSource struct {
	DB         *sql.DB
	Months     []month.Month
	Categories []Category
}

func (p PostgresSource) Scan(ctx context.Context, fn func(RawRecord) error) error {
	months := make([]string, len(p.Months))
	for i, m := range p.Months {
		months[i] = m.String()
	}
	cats := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		cats = append(cats, c.String())
	}
	rows, err := p.DB.QueryContext(ctx, `SELECT month, crime_type, longitude, latitude, falls_within
        FROM _crime_records
        WHERE (cardinality($1::text[]) = 0 OR month = ANY($1))
          AND (cardinality($2::text[]) = 0 OR crime_type = ANY($2))
        ORDER BY id`, pq.Array(months), pq.Array(cats))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUndefinedColumn {
			return fmt.Errorf("%w: _crime_records: %s", ErrIngestion, pqErr.Message)
		}
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			m, cat   string
			lon, lat sql.NullFloat64
			force    sql.NullString
		)
		if err := rows.Scan(&m, &cat, &lon, &lat, &force); err != nil {
			return err
		}
		r := RawRecord{Month: m, Category: cat, Force: force.String}
		if lon.Valid {
			r.Longitude = strconv.FormatFloat(lon.Float64, 'f', -1, 64)
		}
		if lat.Valid {
			r.Latitude = strconv.FormatFloat(lat.Float64, 'f', -1, 64)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Records：内存记录来源（测试与小规模导入）
type Records []RawRecord

func (rs Records) Scan(ctx context.Context, fn func(RawRecord) error) error {
	for _, r := range rs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}
