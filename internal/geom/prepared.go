package geom

// 文档注释：预处理几何（边索引）
// 背景：警力辖区边界顶点数可达十万级，逐单元做 O(n) 的点入判定与边相交会拖慢区域过滤；
// 将全部环边装入 R-Tree 后，点入判定只需检索与水平射线相交的边，边相交只需检索候选框内的边。
// 约束：只读；多面之间互不重叠时 Even-Odd 计数对整个多面成立。
type Prepared struct {
	geom  MultiPolygon
	box   BBox
	edges []segment
	index *RTree
}

type segment struct{ a, b Point }

func Prepare(mp MultiPolygon) *Prepared {
	p := &Prepared{geom: mp, box: mp.BBox()}
	var boxes []BBox
	for _, poly := range mp {
		for _, r := range poly.Rings {
			n := len(r)
			if n < 2 {
				continue
			}
			for i, j := 0, n-1; i < n; j, i = i, i+1 {
				s := segment{a: r[j], b: r[i]}
				if s.a == s.b {
					continue
				}
				p.edges = append(p.edges, s)
				boxes = append(boxes, EmptyBBox().ExtendPoint(s.a).ExtendPoint(s.b))
			}
		}
	}
	p.index = NewRTree(boxes)
	return p
}

func (p *Prepared) BBox() BBox { return p.box }

// Contains：射线向 +X 方向，统计穿越边数的奇偶
func (p *Prepared) Contains(pt Point) bool {
	if !p.box.ContainsPoint(pt) {
		return false
	}
	inside := false
	ray := BBox{MinX: pt.X, MinY: pt.Y, MaxX: p.box.MaxX, MaxY: pt.Y}
	p.index.Search(ray, func(i int) bool {
		e := p.edges[i]
		xi, yi := e.b.X, e.b.Y
		xj, yj := e.a.X, e.a.Y
		if (yi > pt.Y) != (yj > pt.Y) && pt.X < (xj-xi)*(pt.Y-yi)/(yj-yi)+xi {
			inside = !inside
		}
		return true
	})
	return inside
}

// Intersects：与多边形存在公共部分（含边界接触）
func (p *Prepared) Intersects(poly Polygon) bool {
	if len(poly.Rings) == 0 || !p.box.Intersects(poly.BBox) {
		return false
	}
	if p.Contains(poly.Rings[0][0]) {
		return true
	}
	for _, q := range p.geom {
		if len(q.Rings) > 0 && len(q.Rings[0]) > 0 && PointInPolygon(q.Rings[0][0], poly) {
			return true
		}
	}
	hit := false
	for _, r := range poly.Rings {
		n := len(r)
		for i, j := 0, n-1; i < n && !hit; j, i = i, i+1 {
			a, b := r[j], r[i]
			eb := EmptyBBox().ExtendPoint(a).ExtendPoint(b)
			p.index.Search(eb, func(k int) bool {
				e := p.edges[k]
				if segmentsIntersect(a, b, e.a, e.b) {
					hit = true
					return false
				}
				return true
			})
		}
		if hit {
			return true
		}
	}
	return false
}

func (p *Prepared) IntersectsMulti(mp MultiPolygon) bool {
	for _, poly := range mp {
		if p.Intersects(poly) {
			return true
		}
	}
	return false
}
