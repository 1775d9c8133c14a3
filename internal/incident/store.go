package incident

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"crime-hotspots/internal/geom"
	"crime-hotspots/internal/logger"
	"crime-hotspots/internal/metrics"
	"crime-hotspots/internal/month"
)

var ErrIngestion = errors.New("ingestion error")

// Incident：单条已过滤、已投影的事件（只读）
type Incident struct {
	Month    month.Month
	Category Category
	Point    geom.Point
	Force    string
}

// RawRecord：原始事件记录，经纬度保持文本形式，解析失败由仓库计数
type RawRecord struct {
	Month     string
	Category  string
	Longitude string
	Latitude  string
	Force     string
}

// 文档注释：原始事件来源
// 背景：CSV 文件、Postgres 表等来源只负责逐条交付原始记录；过滤、解析与投影统一在 Load 中完成。
// 约束：缺失必需列时返回包装 ErrIngestion 的错误；fn 返回错误时应立即停止并原样返回。
type Source interface {
	Scan(ctx context.Context, fn func(RawRecord) error) error
}

// Options：事件仓加载选项
type Options struct {
	// 类别白名单；为空表示全部类别
	Categories []Category
	// 月份窗口；为空表示不按月份过滤
	Months []month.Month
	// 目标投影坐标系；为空时为英国国家格网
	CRS geom.CRS
}

// 文档注释：跳过计数
// 背景：单条记录解析失败不影响整体导入，但必须可观测；过滤掉的记录与坏记录分别计数。
type SkipStats struct {
	Read             int64
	Kept             int64
	BadPoint         int64
	BadMonth         int64
	UnknownCategory  int64
	FilteredCategory int64
	FilteredMonth    int64
}

// Skipped：坏记录总数（不含白名单与窗口过滤）
func (s SkipStats) Skipped() int64 { return s.BadPoint + s.BadMonth + s.UnknownCategory }

// Filtered：被白名单或窗口过滤的记录数
func (s SkipStats) Filtered() int64 { return s.FilteredCategory + s.FilteredMonth }

// 文档注释：事件仓（只读快照）
// 背景：导入涉及 I/O 与逐点投影，代价较高；每个进程/目录生命周期只加载一次，此后只读共享。
type Store struct {
	crs       geom.CRS
	incidents []Incident
	months    []month.Month
	stats     SkipStats
}

// 文档注释：加载事件仓
// 背景：按类别白名单与月份窗口过滤，经纬度一次性投影到目标坐标系。
// 约束：来源错误（含缺列）包装为 ErrIngestion 返回；坏坐标、坏月份、未知类别逐条跳过并计入 SkipStats。
func Load(ctx context.Context, src Source, opts Options) (*Store, error) {
	target := opts.CRS
	if target == "" {
		target = geom.BNG
	}
	tr, err := geom.NewTransformer(geom.WGS84, target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIngestion, err)
	}
	var allowCat [ViolenceSexualOffences + 1]bool
	for _, c := range opts.Categories {
		if c.Valid() {
			allowCat[c] = true
		}
	}
	anyCat := len(opts.Categories) == 0
	allowMonth := make(map[month.Month]struct{}, len(opts.Months))
	for _, m := range opts.Months {
		allowMonth[m] = struct{}{}
	}

	s := &Store{crs: target, months: append([]month.Month(nil), opts.Months...)}
	err = src.Scan(ctx, func(r RawRecord) error {
		s.stats.Read++
		cat, err := ParseCategory(r.Category)
		if err != nil {
			s.stats.UnknownCategory++
			return nil
		}
		if !anyCat && !allowCat[cat] {
			s.stats.FilteredCategory++
			return nil
		}
		m, err := month.Parse(strings.TrimSpace(r.Month))
		if err != nil {
			s.stats.BadMonth++
			return nil
		}
		if len(allowMonth) > 0 {
			if _, ok := allowMonth[m]; !ok {
				s.stats.FilteredMonth++
				return nil
			}
		}
		lon, lat, ok := parseLonLat(r.Longitude, r.Latitude)
		if !ok {
			s.stats.BadPoint++
			return nil
		}
		s.incidents = append(s.incidents, Incident{
			Month:    m,
			Category: cat,
			Point:    tr(geom.Point{X: lon, Y: lat}),
			Force:    strings.TrimSpace(r.Force),
		})
		s.stats.Kept++
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrIngestion) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrIngestion, err)
	}
	metrics.IncidentsSkipped.WithLabelValues("bad_point").Add(float64(s.stats.BadPoint))
	metrics.IncidentsSkipped.WithLabelValues("bad_month").Add(float64(s.stats.BadMonth))
	metrics.IncidentsSkipped.WithLabelValues("unknown_category").Add(float64(s.stats.UnknownCategory))
	metrics.IncidentsSkipped.WithLabelValues("filtered_category").Add(float64(s.stats.FilteredCategory))
	metrics.IncidentsSkipped.WithLabelValues("filtered_month").Add(float64(s.stats.FilteredMonth))
	logger.L().Info("incidents_loaded",
		"kept", s.stats.Kept,
		"read", s.stats.Read,
		"skipped", s.stats.Skipped(),
		"filtered", s.stats.Filtered(),
		"bad_point", s.stats.BadPoint,
		"bad_month", s.stats.BadMonth,
		"crs", string(target),
	)
	return s, nil
}

func parseLonLat(lonS, latS string) (float64, float64, bool) {
	lon, err1 := strconv.ParseFloat(strings.TrimSpace(lonS), 64)
	lat, err2 := strconv.ParseFloat(strings.TrimSpace(latS), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	if math.IsNaN(lon) || math.IsNaN(lat) || lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return 0, 0, false
	}
	return lon, lat, true
}

// NewStore：由已投影事件直接构建（缓存命中路径与测试使用）
func NewStore(crs geom.CRS, incidents []Incident) *Store {
	n := int64(len(incidents))
	return &Store{crs: crs, incidents: incidents, stats: SkipStats{Read: n, Kept: n}}
}

func (s *Store) CRS() geom.CRS      { return s.crs }
func (s *Store) Len() int           { return len(s.incidents) }
func (s *Store) Stats() SkipStats   { return s.stats }
func (s *Store) At(i int) *Incident { return &s.incidents[i] }

// Months：加载时的月份窗口（副本）
func (s *Store) Months() []month.Month { return append([]month.Month(nil), s.months...) }

// Incidents：只读视图，调用方不得修改
func (s *Store) Incidents() []Incident { return s.incidents }
