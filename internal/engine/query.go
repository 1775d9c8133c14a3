package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crime-hotspots/internal/analysis"
	"crime-hotspots/internal/catalog"
	"crime-hotspots/internal/cube"
	"crime-hotspots/internal/hotspot"
	"crime-hotspots/internal/incident"
	"crime-hotspots/internal/metrics"
	"crime-hotspots/internal/month"
)

// MaxLookback：回看窗口上限（月）
const MaxLookback = 12

// 文档注释：热点查询请求
// 背景：参数均为查询层传入的原始字符串/数值，由引擎统一校验；Force 为空表示全国范围。
// 约束：Month 为空取最新月份；Coverage > 0 时按辖区面积覆盖率换算 N，否则 N 必须 ≥ 1。
type HotspotRequest struct {
	Kind        catalog.Kind
	Force       string
	Category    string
	Month       string
	Lookback    int
	N           int
	Coverage    float64
	TieBreak    string
	IncludeZero bool
}

type HotspotResponse struct {
	Key    cube.CacheKey
	Region string
	Months []month.Month
	N      int
	hotspot.Result
}

type CountsRequest struct {
	Kind     catalog.Kind
	Force    string
	Category string
	Month    string
	Lookback int
}

type CountsResponse struct {
	Key    cube.CacheKey
	Region string
	Months []month.Month
	Series []cube.Series
}

// 文档注释：重复性分析请求
// 背景：在快照的完整时间线上滚动；Predict/Step 为 0 时取 1。
type RepetitionRequest struct {
	Kind     catalog.Kind
	Force    string
	Category string
	Lookback int
	Predict  int
	Step     int
	N        int
	Coverage float64
	TieBreak string
	// Persistence 为 RBO 衰减系数，0 取默认值
	Persistence float64
}

type RepetitionResponse struct {
	Key    cube.CacheKey
	Region string
	N      int
	analysis.Repetition
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func observe(query string, t0 time.Time, err error) {
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotReady):
		status = "not_ready"
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, hotspot.ErrInvalidN), errors.Is(err, catalog.ErrRegionNotFound):
		status = "invalid"
	default:
		status = "error"
	}
	metrics.QueriesTotal.WithLabelValues(query, status).Inc()
	metrics.QueryDurationMs.WithLabelValues(query).Observe(float64(time.Since(t0).Microseconds()) / 1000)
}

func parseCategory(s string) (incident.Category, error) {
	cat, err := incident.ParseCategory(s)
	if err != nil {
		return 0, invalid("category %q", s)
	}
	return cat, nil
}

func checkLookback(n int) error {
	if n < 1 || n > MaxLookback {
		return invalid("lookback %d not in [1,%d]", n, MaxLookback)
	}
	return nil
}

// window：以 end 结尾的回看月份；end 为空取快照最新月份，且不得晚于最新月份
func window(snap *Snapshot, end string, lookback int) ([]month.Month, error) {
	m := snap.Key.Latest
	if end != "" {
		var err error
		if m, err = month.Parse(end); err != nil {
			return nil, invalid("month %q", end)
		}
		if m.After(snap.Key.Latest) {
			return nil, invalid("month %s after latest available %s", m, snap.Key.Latest)
		}
	}
	return month.Window(m, lookback, true)
}

// 文档注释：区域范围（按 (类型, 辖区) 记忆化）
// 背景：区域过滤需要对目录做一次几何相交，结果在进程内不变，只算一次。
// 约束：force 为空返回 nil（全国），面积为目录单元面积合计。
func (e *Engine) scope(kind catalog.Kind, force string) (*scope, error) {
	c, err := e.Catalog(kind)
	if err != nil {
		return nil, err
	}
	k := scopeKey{kind: kind, force: force}
	e.mu.Lock()
	sc, ok := e.scopes[k]
	e.mu.Unlock()
	if ok {
		return sc, nil
	}
	sc = &scope{}
	if force == "" {
		for i := 0; i < c.Len(); i++ {
			sc.areaKm2 += c.Unit(i).AreaKm2
		}
	} else {
		if e.opts.Forces == nil {
			return nil, fmt.Errorf("%w: %q", catalog.ErrRegionNotFound, force)
		}
		r, err := e.opts.Forces.Region(force)
		if err != nil {
			return nil, err
		}
		ids, err := catalog.UnitsInRegion(c, r)
		if err != nil {
			return nil, err
		}
		sc.ids = ids
		sc.areaKm2 = r.AreaKm2
		sc.region = r.Name
		if ids == nil {
			sc.ids = []string{}
		}
	}
	e.mu.Lock()
	if prev, ok := e.scopes[k]; ok {
		sc = prev
	} else {
		e.scopes[k] = sc
	}
	e.mu.Unlock()
	return sc, nil
}

// meanUnitArea：范围内单元平均面积
func meanUnitArea(c *catalog.Catalog, ids []string) float64 {
	if ids == nil {
		if c.Len() == 0 {
			return 0
		}
		total := 0.0
		for i := 0; i < c.Len(); i++ {
			total += c.Unit(i).AreaKm2
		}
		return total / float64(c.Len())
	}
	if len(ids) == 0 {
		return 0
	}
	total := 0.0
	for _, id := range ids {
		a, _ := c.AreaKm2(id)
		total += a
	}
	return total / float64(len(ids))
}

func (e *Engine) resolveN(c *catalog.Catalog, sc *scope, n int, coverage float64) (int, error) {
	if coverage > 0 {
		if coverage > 100 {
			return 0, invalid("coverage %v%% above 100", coverage)
		}
		return hotspot.CountForCoverage(coverage, sc.areaKm2, meanUnitArea(c, sc.ids)), nil
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: got %d", hotspot.ErrInvalidN, n)
	}
	return n, nil
}

// 文档注释：Top-N 热点
// 约束：校验失败返回包装 ErrInvalidRequest/ErrInvalidN 的错误；首次构建前返回 ErrNotReady；不影响其他查询与快照。
func (e *Engine) Hotspots(ctx context.Context, req HotspotRequest) (resp HotspotResponse, err error) {
	defer func(t0 time.Time) { observe("hotspots", t0, err) }(time.Now())
	cat, err := parseCategory(req.Category)
	if err != nil {
		return resp, err
	}
	if err = checkLookback(req.Lookback); err != nil {
		return resp, err
	}
	tb, err := hotspot.ParseTieBreak(req.TieBreak)
	if err != nil {
		return resp, invalid("%v", err)
	}
	snap, err := e.Snapshot(req.Kind)
	if err != nil {
		return resp, err
	}
	months, err := window(snap, req.Month, req.Lookback)
	if err != nil {
		return resp, err
	}
	c, _ := e.Catalog(req.Kind)
	sc, err := e.scope(req.Kind, req.Force)
	if err != nil {
		return resp, err
	}
	n, err := e.resolveN(c, sc, req.N, req.Coverage)
	if err != nil {
		return resp, err
	}
	ids := sc.ids
	if ids == nil && req.IncludeZero {
		ids = c.IDs()
	}
	r, err := hotspot.Rank(snap.Cube, c.AreaKm2, hotspot.Query{
		Category: cat, Months: months, Scope: ids, N: n, TieBreak: tb, IncludeZero: req.IncludeZero,
	})
	if err != nil {
		return resp, err
	}
	return HotspotResponse{Key: snap.Key, Region: sc.region, Months: months, N: n, Result: r}, ctx.Err()
}

// Counts：范围内逐单元逐月计数（窗口合计为 0 的单元不返回）
func (e *Engine) Counts(ctx context.Context, req CountsRequest) (resp CountsResponse, err error) {
	defer func(t0 time.Time) { observe("counts", t0, err) }(time.Now())
	cat, err := parseCategory(req.Category)
	if err != nil {
		return resp, err
	}
	if err = checkLookback(req.Lookback); err != nil {
		return resp, err
	}
	snap, err := e.Snapshot(req.Kind)
	if err != nil {
		return resp, err
	}
	months, err := window(snap, req.Month, req.Lookback)
	if err != nil {
		return resp, err
	}
	sc, err := e.scope(req.Kind, req.Force)
	if err != nil {
		return resp, err
	}
	return CountsResponse{
		Key: snap.Key, Region: sc.region, Months: months,
		Series: snap.Cube.Window(cat, sc.ids, months),
	}, ctx.Err()
}

// Repetition：在完整时间线上的热点重复性分析
func (e *Engine) Repetition(ctx context.Context, req RepetitionRequest) (resp RepetitionResponse, err error) {
	defer func(t0 time.Time) { observe("repetition", t0, err) }(time.Now())
	cat, err := parseCategory(req.Category)
	if err != nil {
		return resp, err
	}
	if err = checkLookback(req.Lookback); err != nil {
		return resp, err
	}
	if req.Predict == 0 {
		req.Predict = 1
	}
	if req.Step == 0 {
		req.Step = 1
	}
	if req.Predict < 1 || req.Predict > MaxLookback || req.Step < 1 || req.Step > MaxLookback {
		return resp, invalid("predict %d step %d not in [1,%d]", req.Predict, req.Step, MaxLookback)
	}
	if p := req.Persistence; p != 0 && !(p > 0 && p < 1) {
		return resp, fmt.Errorf("%w: %w", ErrInvalidRequest, analysis.ErrInvalidPersistence)
	}
	tb, err := hotspot.ParseTieBreak(req.TieBreak)
	if err != nil {
		return resp, invalid("%v", err)
	}
	snap, err := e.Snapshot(req.Kind)
	if err != nil {
		return resp, err
	}
	c, _ := e.Catalog(req.Kind)
	sc, err := e.scope(req.Kind, req.Force)
	if err != nil {
		return resp, err
	}
	n, err := e.resolveN(c, sc, req.N, req.Coverage)
	if err != nil {
		return resp, err
	}
	// 约束：全国范围的 Gini 同样计入零计数单元
	ids := sc.ids
	if ids == nil {
		ids = c.IDs()
	}
	rep, err := analysis.Repeat(snap.Cube, c.AreaKm2, analysis.RepetitionQuery{
		Category: cat, Timeline: snap.Timeline, Scope: ids, N: n,
		Lookback: req.Lookback, Predict: req.Predict, Step: req.Step, TieBreak: tb,
		Persistence: req.Persistence,
	})
	if err != nil {
		return resp, err
	}
	return RepetitionResponse{Key: snap.Key, Region: sc.region, N: n, Repetition: rep}, ctx.Err()
}

// Region：辖区边界与面积（km²）；未配置辖区边界时返回 ErrRegionNotFound
func (e *Engine) Region(name string) (*catalog.Region, error) {
	if e.opts.Forces == nil {
		return nil, fmt.Errorf("%w: %q", catalog.ErrRegionNotFound, name)
	}
	return e.opts.Forces.Region(name)
}

// Forces：已配置的辖区名称（排序）
func (e *Engine) Forces() []string {
	if e.opts.Forces == nil {
		return nil
	}
	return e.opts.Forces.Names()
}
