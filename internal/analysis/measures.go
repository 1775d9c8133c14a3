package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var ErrInvalidPersistence = errors.New("persistence must be in (0, 1)")

// 文档注释：洛伦兹曲线（降序）
// 背景：单元按计数从高到低排列，第 i 个点为前 i 个单元占全部计数的比例；曲线越早接近 1 说明越集中。
// 约束：返回 len(counts)+1 个点，首点为 0；总计数为 0 时全部为 0。
func Lorenz(counts []int) []float64 {
	sorted := append([]int(nil), counts...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	total := 0
	for _, n := range sorted {
		total += n
	}
	out := make([]float64, len(sorted)+1)
	if total == 0 {
		return out
	}
	cum := 0
	for i, n := range sorted {
		cum += n
		out[i+1] = float64(cum) / float64(total)
	}
	return out
}

// 文档注释：基尼系数
// 背景：由降序洛伦兹曲线下面积 A（横轴为单元占比，梯形积分）得到 G = 2A - 1；均匀分布为 0，全部集中在一个单元为 1 - 1/n。
// 约束：单元数为 0 或总计数为 0 时返回 0。
func Gini(counts []int) float64 {
	l := Lorenz(counts)
	n := len(counts)
	if n == 0 || l[n] == 0 {
		return 0
	}
	area := 0.0
	for i := 0; i < n; i++ {
		area += (l[i] + l[i+1]) / 2
	}
	return 2*area/float64(n) - 1
}

// 文档注释：排名偏重重叠度（RBO，外推形式）
// 背景：比较相邻窗口的热点排名，越靠前的名次权重越大；persistence p 越小越只看头部。
// 约束：仅比较到两列表较短者的深度 k；两列表完全相同时为 1，无交集时为 0；任一为空返回 0。
func RBO(a, b []string, p float64) (float64, error) {
	if !(p > 0 && p < 1) {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidPersistence, p)
	}
	k := min(len(a), len(b))
	if k == 0 {
		return 0, nil
	}
	seenA := make(map[string]struct{}, k)
	seenB := make(map[string]struct{}, k)
	overlap := 0
	sum := 0.0
	weight := 1.0
	for d := 1; d <= k; d++ {
		x, y := a[d-1], b[d-1]
		if x == y {
			overlap++
		} else {
			if _, ok := seenB[x]; ok {
				overlap++
			}
			if _, ok := seenA[y]; ok {
				overlap++
			}
		}
		seenA[x] = struct{}{}
		seenB[y] = struct{}{}
		weight *= p
		sum += float64(overlap) / float64(d) * weight
	}
	v := float64(overlap)/float64(k)*weight + (1-p)/p*sum
	return math.Min(1, math.Max(0, v)), nil
}

// F1：两个热点集合的 F1 一致性，2|A∩B| / (|A|+|B|)
func F1(a, b []string) float64 {
	if len(a)+len(b) == 0 {
		return 0
	}
	in := make(map[string]struct{}, len(a))
	for _, u := range a {
		in[u] = struct{}{}
	}
	both := 0
	for _, u := range b {
		if _, ok := in[u]; ok {
			both++
			delete(in, u)
		}
	}
	return 2 * float64(both) / float64(len(a)+len(b))
}

// 文档注释：两个窗口计数向量的余弦相似度
// 背景：F1 只看热点集合是否重合，余弦相似度衡量各单元计数分布的整体相似程度。
// 约束：按单元编号对齐，缺失视为 0；任一向量全为 0 时返回 0。
func Cosine(a, b map[string]int) float64 {
	dot, na, nb := 0.0, 0.0, 0.0
	for u, x := range a {
		na += float64(x) * float64(x)
		dot += float64(x) * float64(b[u])
	}
	for _, y := range b {
		nb += float64(y) * float64(y)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return math.Min(1, dot/(math.Sqrt(na)*math.Sqrt(nb)))
}
