// Package hotspot 对计数立方体做 Top-N 排名。
package hotspot

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"crime-hotspots/internal/catalog"
	"crime-hotspots/internal/cube"
	"crime-hotspots/internal/incident"
	"crime-hotspots/internal/month"
)

var ErrInvalidN = errors.New("n must be at least 1")

// TieBreak：计数相同时的次序策略
type TieBreak uint8

const (
	// ByID：编号升序（数值编号按数值，其余按字典序）
	ByID TieBreak = iota
	// ByDensity：count/面积 降序，再按编号升序；偏向更小更密的单元
	ByDensity
)

func (t TieBreak) String() string {
	if t == ByDensity {
		return "density"
	}
	return "id"
}

func ParseTieBreak(s string) (TieBreak, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "id":
		return ByID, nil
	case "density":
		return ByDensity, nil
	}
	return ByID, fmt.Errorf("unknown tie break %q", s)
}

// 文档注释：排名查询
// 背景：Scope 由区域过滤器预先算好传入，排名本身与区域无关；Scope 为 nil 表示立方体中出现过的全部单元。
// 约束：Months 按集合处理，重复月份只计一次；IncludeZero 为 true 时用 Scope 中计数为 0 的单元补足 N（Scope 为 nil 时无从补足）。
type Query struct {
	Category    incident.Category
	Months      []month.Month
	Scope       []string
	N           int
	TieBreak    TieBreak
	IncludeZero bool
}

// Item：一个热点单元
type Item struct {
	Unit    string
	Count   int
	Density float64 // 每平方公里；面积未知时为 0
}

type Result struct {
	Items []Item
	// Total 为 Scope 内窗口总计数，用于计算捕获率
	Total int
}

// Units：按排名顺序的单元编号
func (r Result) Units() []string {
	out := make([]string, len(r.Items))
	for i, it := range r.Items {
		out[i] = it.Unit
	}
	return out
}

// Captured：前 k 个热点的计数合计
func (r Result) Captured(k int) int {
	if k > len(r.Items) {
		k = len(r.Items)
	}
	s := 0
	for _, it := range r.Items[:k] {
		s += it.Count
	}
	return s
}

// AreaFunc：单元面积（平方公里），通常为 Catalog.AreaKm2
type AreaFunc func(unit string) (float64, bool)

// 文档注释：Top-N 排名
// 背景：窗口内按月直接求和（非平均）；按计数降序，平局由 TieBreak 决定，最终以编号兜底形成全序。
// 约束：N < 1 返回 ErrInvalidN；相同输入的输出（含平局顺序）完全一致。
func Rank(c *cube.Cube, areas AreaFunc, q Query) (Result, error) {
	if q.N < 1 {
		return Result{}, fmt.Errorf("%w: got %d", ErrInvalidN, q.N)
	}
	series := c.Window(q.Category, q.Scope, distinct(q.Months))
	items := make([]Item, 0, len(series))
	seen := make(map[string]struct{}, len(series))
	total := 0
	for _, s := range series {
		items = append(items, Item{Unit: s.Unit, Count: s.Total, Density: density(areas, s.Unit, s.Total)})
		seen[s.Unit] = struct{}{}
		total += s.Total
	}
	sortItems(items, q.TieBreak)
	if len(items) < q.N && q.IncludeZero {
		pad := make([]string, 0, len(q.Scope))
		for _, u := range q.Scope {
			if _, ok := seen[u]; !ok {
				pad = append(pad, u)
				seen[u] = struct{}{}
			}
		}
		catalog.SortIDs(pad)
		for _, u := range pad {
			if len(items) >= q.N {
				break
			}
			items = append(items, Item{Unit: u})
		}
	}
	if len(items) > q.N {
		items = items[:q.N]
	}
	return Result{Items: items, Total: total}, nil
}

func density(areas AreaFunc, unit string, n int) float64 {
	if areas == nil {
		return 0
	}
	a, ok := areas(unit)
	if !ok || a <= 0 {
		return 0
	}
	return float64(n) / a
}

func sortItems(items []Item, tb TieBreak) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if tb == ByDensity && a.Density != b.Density {
			return a.Density > b.Density
		}
		return catalog.CompareIDs(a.Unit, b.Unit) < 0
	})
}

func distinct(ms []month.Month) []month.Month {
	out := make([]month.Month, 0, len(ms))
	seen := make(map[month.Month]struct{}, len(ms))
	for _, m := range ms {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// 文档注释：按面积覆盖率换算热点数量
// 背景：“巡逻覆盖辖区面积的 x%” 需要多少个单元；coveragePct 取 0–100。
// 约束：结果至少为 1；参数非正或非有限值时返回 1。
func CountForCoverage(coveragePct, regionAreaKm2, unitAreaKm2 float64) int {
	if !(coveragePct > 0) || !(regionAreaKm2 > 0) || !(unitAreaKm2 > 0) {
		return 1
	}
	n := math.Floor(coveragePct / 100 * regionAreaKm2 / unitAreaKm2)
	if math.IsInf(n, 0) || math.IsNaN(n) || n < 1 {
		return 1
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}
