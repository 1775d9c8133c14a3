package incident

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"crime-hotspots/internal/month"
)

// police.uk 街面犯罪 CSV 列名
const (
	ColMonth       = "Month"
	ColFallsWithin = "Falls within"
	ColLongitude   = "Longitude"
	ColLatitude    = "Latitude"
	ColCrimeType   = "Crime type"
)

var requiredColumns = []string{ColMonth, ColLongitude, ColLatitude, ColCrimeType}

// 文档注释：police.uk 街面犯罪 CSV 文件集合
// 背景：月度归档按 “YYYY-MM/YYYY-MM-<force>-street.csv” 组织，单月数十个文件；文件并发解析，按路径顺序交付。
// 约束：任一文件缺失必需列即整体失败（ErrIngestion）；Concurrency<=0 时取 CPU 数。
type CSVFiles struct {
	Paths       []string
	Concurrency int
}

func (f CSVFiles) Scan(ctx context.Context, fn func(RawRecord) error) error {
	if len(f.Paths) == 0 {
		return fmt.Errorf("%w: no input files", ErrIngestion)
	}
	limit := f.Concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	parsed := make([][]RawRecord, len(f.Paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, p := range f.Paths {
		g.Go(func() error {
			recs, err := ReadStreetCSVFile(gctx, p)
			if err != nil {
				return err
			}
			parsed[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, recs := range parsed {
		for _, r := range recs {
			if err := fn(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadStreetCSVFile：按路径解析单个街面犯罪 CSV
func ReadStreetCSVFile(ctx context.Context, path string) ([]RawRecord, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return ReadStreetCSV(ctx, fh, path)
}

// 文档注释：解析单个街面犯罪 CSV
// 约束：name 仅用于错误信息；行内字段数不足的记录按空字段处理，由仓库计为坏记录。
func ReadStreetCSV(ctx context.Context, r io.Reader, name string) ([]RawRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s: empty file", ErrIngestion, name)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrIngestion, name, err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := col[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s: missing columns %s", ErrIngestion, name, strings.Join(missing, ", "))
	}
	force, hasForce := col[ColFallsWithin]
	field := func(rec []string, i int) string {
		if i < len(rec) {
			return rec[i]
		}
		return ""
	}

	var out []RawRecord
	for line := 0; ; line++ {
		if line&0xfff == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrIngestion, name, err)
		}
		rr := RawRecord{
			Month:     field(rec, col[ColMonth]),
			Category:  field(rec, col[ColCrimeType]),
			Longitude: field(rec, col[ColLongitude]),
			Latitude:  field(rec, col[ColLatitude]),
		}
		if hasForce {
			rr.Force = field(rec, force)
		}
		out = append(out, rr)
	}
	return out, nil
}

// 文档注释：按月份发现街面犯罪文件
// 背景：兼容解压后的两种布局：dir/YYYY-MM/*.csv 与 dir/YYYY-MM-*.csv。
// 约束：返回路径按月份、文件名排序；所有月份均无文件时返回 ErrIngestion。
func Discover(dir string, months []month.Month) ([]string, error) {
	var paths []string
	for _, m := range months {
		ms := m.String()
		var found []string
		for _, pattern := range []string{
			filepath.Join(dir, ms, ms+"-*-street.csv"),
			filepath.Join(dir, ms+"-*-street.csv"),
		} {
			hits, err := filepath.Glob(pattern)
			if err != nil {
				return nil, err
			}
			found = append(found, hits...)
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no street files under %s", ErrIngestion, dir)
	}
	return paths, nil
}
