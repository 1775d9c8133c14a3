// Package analysis 在热点排名之上计算重复性、集中度与一致性指标。
package analysis

import (
	"fmt"
	"sort"

	"crime-hotspots/internal/catalog"
	"crime-hotspots/internal/cube"
	"crime-hotspots/internal/hotspot"
	"crime-hotspots/internal/incident"
	"crime-hotspots/internal/month"
)

// DefaultPersistence：相邻窗口 RBO 的默认衰减
const DefaultPersistence = 0.9

// 文档注释：热点重复性查询
// 背景：在时间线上以 Lookback 为窗口、Step 为步长滚动，每个窗口取前 N 个热点；
// 随后的 Predict 个月用于检验这些热点对未来的捕获率。
// 约束：Timeline 须为按时间正序的连续月份；Lookback/Predict/Step 小于 1 返回 month.ErrInvalidWindow；N < 1 返回 hotspot.ErrInvalidN。
type RepetitionQuery struct {
	Category    incident.Category
	Timeline    []month.Month
	Scope       []string
	N           int
	Lookback    int
	Predict     int
	Step        int
	TieBreak    hotspot.TieBreak
	Persistence float64 // 0 表示 DefaultPersistence
}

// WindowStat：单个回看窗口的统计
type WindowStat struct {
	Label    string
	Months   []month.Month
	Hotspots []string
	// CapturedPct 为窗口内前 N 个热点捕获的计数占比（0–100）
	CapturedPct float64
	// Prediction 为随后的预测窗口；超出时间线时为空，PredictedPct 无意义
	Prediction   []month.Month
	PredictedPct float64
	// 与上一窗口热点的一致性；首个窗口为 0
	RBO    float64
	F1     float64
	Cosine float64
	// Gini 基于 Scope 内全部单元（含零计数）
	Gini float64
}

// Frequency：单元作为热点出现的次数
type Frequency struct {
	Unit  string
	Count int
	Pct   float64
}

type Repetition struct {
	Windows      []WindowStat
	Frequency    []Frequency
	Observations int
}

// 文档注释：热点重复性分析
// 背景：对应“热点在不同时间尺度下是否稳定”的问题；频率 = 出现次数 / 窗口数。
// 约束：输出完全由输入决定；频率按次数降序、编号升序排列。
func Repeat(c *cube.Cube, areas hotspot.AreaFunc, q RepetitionQuery) (Repetition, error) {
	if q.Predict < 1 {
		return Repetition{}, fmt.Errorf("%w: predict %d", month.ErrInvalidWindow, q.Predict)
	}
	if q.N < 1 {
		return Repetition{}, fmt.Errorf("%w: got %d", hotspot.ErrInvalidN, q.N)
	}
	windows, err := month.Rolling(q.Timeline, q.Lookback, q.Step)
	if err != nil {
		return Repetition{}, err
	}
	p := q.Persistence
	if p == 0 {
		p = DefaultPersistence
	}
	pos := make(map[month.Month]int, len(q.Timeline))
	for i, m := range q.Timeline {
		pos[m] = i
	}

	var out Repetition
	hits := make(map[string]int)
	var prev []string
	var prevCounts map[string]int
	for w := range windows {
		r, err := hotspot.Rank(c, areas, hotspot.Query{
			Category: q.Category, Months: w, Scope: q.Scope, N: q.N, TieBreak: q.TieBreak,
		})
		if err != nil {
			return Repetition{}, err
		}
		units := r.Units()
		st := WindowStat{
			Label:       month.Label(w),
			Months:      w,
			Hotspots:    units,
			CapturedPct: pct(r.Captured(q.N), r.Total),
			Gini:        Gini(Counts(c, q.Category, w, q.Scope)),
		}
		end := pos[w[len(w)-1]] + 1
		if end+q.Predict <= len(q.Timeline) {
			st.Prediction = append([]month.Month(nil), q.Timeline[end:end+q.Predict]...)
			st.PredictedPct = Captured(c, q.Category, st.Prediction, q.Scope, units)
		}
		if prev != nil {
			if st.RBO, err = RBO(prev, units, p); err != nil {
				return Repetition{}, err
			}
			st.F1 = F1(prev, units)
		}
		counts := unitCounts(c, q.Category, w, q.Scope)
		if prevCounts != nil {
			st.Cosine = Cosine(prevCounts, counts)
		}
		for _, u := range units {
			hits[u]++
		}
		prev, prevCounts = units, counts
		out.Windows = append(out.Windows, st)
	}
	out.Observations = len(out.Windows)
	for u, n := range hits {
		out.Frequency = append(out.Frequency, Frequency{Unit: u, Count: n, Pct: pct(n, out.Observations)})
	}
	sort.Slice(out.Frequency, func(i, j int) bool {
		a, b := out.Frequency[i], out.Frequency[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return catalog.CompareIDs(a.Unit, b.Unit) < 0
	})
	return out, nil
}

// Captured：给定单元在 months 内捕获的计数占 scope 总计数的百分比
func Captured(c *cube.Cube, cat incident.Category, months []month.Month, scope, units []string) float64 {
	in := make(map[string]struct{}, len(units))
	for _, u := range units {
		in[u] = struct{}{}
	}
	got, total := 0, 0
	for _, s := range c.Window(cat, scope, months) {
		total += s.Total
		if _, ok := in[s.Unit]; ok {
			got += s.Total
		}
	}
	return pct(got, total)
}

// 文档注释：窗口内各单元计数
// 背景：集中度指标需要把零计数单元也算进分母；scope 为 nil 时只能得到出现过的单元。
// 约束：顺序与 scope 一致（scope 为 nil 时按编号排序）。
func Counts(c *cube.Cube, cat incident.Category, months []month.Month, scope []string) []int {
	series := c.Window(cat, scope, months)
	if scope == nil {
		out := make([]int, len(series))
		for i, s := range series {
			out[i] = s.Total
		}
		return out
	}
	by := make(map[string]int, len(series))
	for _, s := range series {
		by[s.Unit] = s.Total
	}
	out := make([]int, len(scope))
	for i, u := range scope {
		out[i] = by[u]
	}
	return out
}

func unitCounts(c *cube.Cube, cat incident.Category, months []month.Month, scope []string) map[string]int {
	series := c.Window(cat, scope, months)
	out := make(map[string]int, len(series))
	for _, s := range series {
		out[s.Unit] = s.Total
	}
	return out
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(n) / float64(total)
}
