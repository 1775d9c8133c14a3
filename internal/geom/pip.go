package geom

// 文档注释：点入多边形判定（Even-Odd）
// 背景：对 R-Tree 候选集合执行精确命中判定；支持洞与多面结构。
// 约束：外环命中且不在任一洞内视为命中；恰好落在公共边上的点可能同时命中相邻单元，由调用方决定取舍。
func PointInPolygon(pt Point, poly Polygon) bool {
	if len(poly.Rings) == 0 || !poly.BBox.ContainsPoint(pt) {
		return false
	}
	if !pointInRing(pt, poly.Rings[0]) {
		return false
	}
	for i := 1; i < len(poly.Rings); i++ {
		if pointInRing(pt, poly.Rings[i]) {
			return false
		}
	}
	return true
}

// PointInMulti：命中任一多边形即为命中
func PointInMulti(pt Point, mp MultiPolygon) bool {
	for _, p := range mp {
		if PointInPolygon(pt, p) {
			return true
		}
	}
	return false
}

// 射线法判定点是否在环内
func pointInRing(pt Point, ring []Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	x, y := pt.X, pt.Y
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].X, ring[i].Y
		xj, yj := ring[j].X, ring[j].Y
		// (yi > y) != (yj > y) 保证 yj != yi，无需额外的除零保护
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}
