package geom

import "math"

// 文档注释：多边形面积（鞋带公式）
// 背景：投影坐标系下单位为平方米；外环面积减去洞面积，与环方向无关。
func (p Polygon) Area() float64 {
	if len(p.Rings) == 0 {
		return 0
	}
	a := math.Abs(ringArea(p.Rings[0]))
	for i := 1; i < len(p.Rings); i++ {
		a -= math.Abs(ringArea(p.Rings[i]))
	}
	if a < 0 {
		return 0
	}
	return a
}

func (mp MultiPolygon) Area() float64 {
	var a float64
	for _, p := range mp {
		a += p.Area()
	}
	return a
}

func ringArea(r []Point) float64 {
	n := len(r)
	if n < 3 {
		return 0
	}
	var s float64
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		s += (r[j].X - r[i].X) * (r[j].Y + r[i].Y)
	}
	return s / 2
}

// 文档注释：线段相交（含端点接触与共线重叠）
func segmentsIntersect(p1, p2, q1, q2 Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(q1, q2, p1)) ||
		(d2 == 0 && onSegment(q1, q2, p2)) ||
		(d3 == 0 && onSegment(p1, p2, q1)) ||
		(d4 == 0 && onSegment(p1, p2, q2))
}

func cross(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

func onSegment(a, b, p Point) bool {
	return math.Min(a.X, b.X) <= p.X && p.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= p.Y && p.Y <= math.Max(a.Y, b.Y)
}
