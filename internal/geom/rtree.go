package geom

import (
	"math"
	"sort"
)

const rtreeNodeCap = 16

// 文档注释：静态 R-Tree（STR 批量装载）
// 背景：单元目录与区域边界加载后只读，批量构建一次即可；点查询与框查询均为亚线性复杂度。
// 约束：构建后不可增删；条目以构建时的下标标识，Search 回调返回 false 时提前结束遍历。
type RTree struct {
	root  *rnode
	boxes []BBox
	size  int
}

type rnode struct {
	box      BBox
	children []*rnode
	items    []int
}

func (n *rnode) leaf() bool { return n.children == nil }

// NewRTree：以 boxes 下标为条目标识构建；空盒条目被忽略
func NewRTree(boxes []BBox) *RTree {
	leaves := make([]*rnode, 0, len(boxes))
	for i, b := range boxes {
		if b.IsEmpty() {
			continue
		}
		leaves = append(leaves, &rnode{box: b, items: []int{i}})
	}
	t := &RTree{boxes: append([]BBox(nil), boxes...), size: len(leaves)}
	if len(leaves) == 0 {
		return t
	}
	level := packLevel(leaves, true)
	for len(level) > 1 {
		level = packLevel(level, false)
	}
	t.root = level[0]
	return t
}

func (t *RTree) Len() int { return t.size }

// packLevel：Sort-Tile-Recursive，一层节点按 X 切片、片内按 Y 分组
func packLevel(nodes []*rnode, leafLevel bool) []*rnode {
	n := len(nodes)
	groups := int(math.Ceil(float64(n) / rtreeNodeCap))
	slices := int(math.Ceil(math.Sqrt(float64(groups))))
	sliceSize := slices * rtreeNodeCap

	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].box.Center().X < nodes[j].box.Center().X })
	var out []*rnode
	for s := 0; s < n; s += sliceSize {
		e := min(s+sliceSize, n)
		part := nodes[s:e]
		sort.SliceStable(part, func(i, j int) bool { return part[i].box.Center().Y < part[j].box.Center().Y })
		for g := 0; g < len(part); g += rtreeNodeCap {
			ge := min(g+rtreeNodeCap, len(part))
			parent := &rnode{box: EmptyBBox()}
			for _, c := range part[g:ge] {
				parent.box = parent.box.Extend(c.box)
				if leafLevel {
					parent.items = append(parent.items, c.items...)
				} else {
					parent.children = append(parent.children, c)
				}
			}
			out = append(out, parent)
		}
	}
	return out
}

// Search：遍历与 q 相交的条目
func (t *RTree) Search(q BBox, fn func(i int) bool) {
	if t.root == nil {
		return
	}
	t.search(t.root, q, fn)
}

func (t *RTree) search(n *rnode, q BBox, fn func(int) bool) bool {
	if !n.box.Intersects(q) {
		return true
	}
	if n.leaf() {
		for _, it := range n.items {
			if !t.boxes[it].Intersects(q) {
				continue
			}
			if !fn(it) {
				return false
			}
		}
		return true
	}
	for _, c := range n.children {
		if !t.search(c, q, fn) {
			return false
		}
	}
	return true
}

// SearchPoint：遍历包围盒包含 p 的候选条目（仍需调用方做精确判定）
func (t *RTree) SearchPoint(p Point, fn func(i int) bool) {
	t.Search(BBox{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y}, fn)
}
