// 包 geom：平面几何最小实现（点、环、多边形、包围盒、点入多边形、面积、相交、R-Tree 与坐标投影）
package geom

import "math"

// 文档注释：平面点
// 背景：投影坐标系下 X 为东向、Y 为北向（米）；地理坐标系下 X 为经度、Y 为纬度。
type Point struct {
	X float64
	Y float64
}

// 文档注释：轴对齐包围盒
// 约束：空盒的 Min > Max，Extend 任意点后变为有效盒。
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

func EmptyBBox() BBox {
	return BBox{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
}

func (b BBox) IsEmpty() bool { return b.MinX > b.MaxX || b.MinY > b.MaxY }

func (b BBox) ExtendPoint(p Point) BBox {
	return BBox{
		MinX: math.Min(b.MinX, p.X),
		MinY: math.Min(b.MinY, p.Y),
		MaxX: math.Max(b.MaxX, p.X),
		MaxY: math.Max(b.MaxY, p.Y),
	}
}

func (b BBox) Extend(o BBox) BBox {
	if o.IsEmpty() {
		return b
	}
	return BBox{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

// ContainsPoint：闭区间判定，边界上的点视为包含
func (b BBox) ContainsPoint(p Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

func (b BBox) Intersects(o BBox) bool {
	if b.IsEmpty() || o.IsEmpty() {
		return false
	}
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX && b.MinY <= o.MaxY && o.MinY <= b.MaxY
}

func (b BBox) Center() Point { return Point{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2} }

// Polygon：第一环为外环，其余为洞；环首尾是否闭合均可
type Polygon struct {
	Rings [][]Point
	BBox  BBox
}

// NewPolygon：构造并计算包围盒（仅外环参与）
func NewPolygon(rings ...[]Point) Polygon {
	p := Polygon{Rings: rings}
	p.BBox = computeBBox(p)
	return p
}

func computeBBox(p Polygon) BBox {
	b := EmptyBBox()
	if len(p.Rings) == 0 {
		return b
	}
	for _, pt := range p.Rings[0] {
		b = b.ExtendPoint(pt)
	}
	return b
}

// MultiPolygon：互不重叠的多边形集合
type MultiPolygon []Polygon

func (mp MultiPolygon) BBox() BBox {
	b := EmptyBBox()
	for _, p := range mp {
		b = b.Extend(p.BBox)
	}
	return b
}

// Rect：轴对齐矩形多边形（逆时针）
func Rect(minX, minY, maxX, maxY float64) Polygon {
	return NewPolygon([]Point{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}})
}
