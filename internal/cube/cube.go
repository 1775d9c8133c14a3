// 包 cube：计数立方体（空间单元 × 月份 × 类别）、空间连接聚合、缓存契约与制品编解码
package cube

import (
	"sort"

	"crime-hotspots/internal/catalog"
	"crime-hotspots/internal/incident"
	"crime-hotspots/internal/month"
)

// Key：立方体坐标
type Key struct {
	Unit     string
	Month    month.Month
	Category incident.Category
}

// Entry：非零计数条目
type Entry struct {
	Key
	Count int
}

type slice struct {
	month    month.Month
	category incident.Category
}

// 文档注释：计数立方体（稀疏、只读）
// 背景：按 (月份, 类别) 切片存放单元计数，排名与窗口查询只需遍历所涉切片，不必扫描整个立方体。
// 约束：零计数从不存储；构建完成后不可修改，可被任意数量的查询并发读取。
type Cube struct {
	kind   catalog.Kind
	slices map[slice]map[string]int
	units  map[string]struct{}
	n      int
	total  int64
}

// Builder：单线程累加器；Cube() 之后不得再使用
type Builder struct {
	c *Cube
}

func NewBuilder(kind catalog.Kind) *Builder {
	return &Builder{c: &Cube{
		kind:   kind,
		slices: make(map[slice]map[string]int),
		units:  make(map[string]struct{}),
	}}
}

// Add：累加计数；n<=0 忽略
func (b *Builder) Add(k Key, n int) {
	if n <= 0 {
		return
	}
	s := slice{month: k.Month, category: k.Category}
	m := b.c.slices[s]
	if m == nil {
		m = make(map[string]int)
		b.c.slices[s] = m
	}
	if m[k.Unit] == 0 {
		b.c.n++
	}
	m[k.Unit] += n
	b.c.units[k.Unit] = struct{}{}
	b.c.total += int64(n)
}

func (b *Builder) Cube() *Cube {
	c := b.c
	b.c = nil
	return c
}

func (c *Cube) Kind() catalog.Kind { return c.kind }

// Len：非零条目数
func (c *Cube) Len() int { return c.n }

// NumUnits：至少有一条非零计数的单元数
func (c *Cube) NumUnits() int { return len(c.units) }

// Total：全部计数之和
func (c *Cube) Total() int64 { return c.total }

// Count：缺省条目返回 0
func (c *Cube) Count(unit string, m month.Month, cat incident.Category) int {
	return c.slices[slice{month: m, category: cat}][unit]
}

// SliceTotal：某月某类别的计数合计
func (c *Cube) SliceTotal(m month.Month, cat incident.Category) int {
	t := 0
	for _, n := range c.slices[slice{month: m, category: cat}] {
		t += n
	}
	return t
}

// Months：出现过的月份（升序）
func (c *Cube) Months() []month.Month {
	seen := make(map[month.Month]struct{})
	for s := range c.slices {
		seen[s.month] = struct{}{}
	}
	out := make([]month.Month, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// 文档注释：全部条目（规范顺序）
// 约束：按 单元编号(CompareIDs) → 月份 → 类别 排序；同一立方体总是得到相同序列，编解码依赖此顺序。
func (c *Cube) Entries() []Entry {
	out := make([]Entry, 0, c.n)
	for s, m := range c.slices {
		for u, n := range m {
			out = append(out, Entry{Key: Key{Unit: u, Month: s.month, Category: s.category}, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return lessKey(out[i].Key, out[j].Key) })
	return out
}

func lessKey(a, b Key) bool {
	if a.Unit != b.Unit {
		return catalog.CompareIDs(a.Unit, b.Unit) < 0
	}
	if a.Month != b.Month {
		return a.Month.Before(b.Month)
	}
	return a.Category < b.Category
}

// Equal：条目逐一相等
func (c *Cube) Equal(o *Cube) bool {
	if c.kind != o.kind || c.n != o.n || c.total != o.total {
		return false
	}
	for s, m := range c.slices {
		om := o.slices[s]
		if len(om) != len(m) {
			return false
		}
		for u, n := range m {
			if om[u] != n {
				return false
			}
		}
	}
	return true
}

// Series：单元在窗口内逐月计数
type Series struct {
	Unit   string
	Counts []int
	Total  int
}

// 文档注释：窗口计数查询
// 背景：对应“某辖区某类别逐单元逐月计数”查询族；scope 为 nil 时取立方体内出现过的全部单元。
// 约束：Counts 与 months 一一对应；窗口内合计为 0 的单元不返回；结果按单元编号排序。
func (c *Cube) Window(cat incident.Category, scope []string, months []month.Month) []Series {
	idx := make(map[string]int)
	var out []Series
	for j, m := range months {
		for u, n := range c.slices[slice{month: m, category: cat}] {
			i, ok := idx[u]
			if !ok {
				i = len(out)
				idx[u] = i
				out = append(out, Series{Unit: u, Counts: make([]int, len(months))})
			}
			out[i].Counts[j] += n
			out[i].Total += n
		}
	}
	if scope != nil {
		in := make(map[string]struct{}, len(scope))
		for _, u := range scope {
			in[u] = struct{}{}
		}
		kept := out[:0]
		for _, s := range out {
			if _, ok := in[s.Unit]; ok {
				kept = append(kept, s)
			}
		}
		out = kept
	}
	sort.Slice(out, func(i, j int) bool { return catalog.CompareIDs(out[i].Unit, out[j].Unit) < 0 })
	return out
}
