package catalog

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"crime-hotspots/internal/geom"
)

// 文档注释：六边形网格生成器
// 背景：平顶六边形，Size 为边长（米）；列距 1.5·Size，行距 √3·Size，奇数列上移半行。
// 网格锚定在坐标原点，不同辖区生成的单元可对齐；仅保留与边界相交的单元。
// 约束：Boundary 必须位于投影坐标系 CRS 下；编号按列优先、行次之的顺序从 0 递增。
type HexSource struct {
	Size     float64
	Boundary geom.MultiPolygon
	CRS      geom.CRS
}

func (h HexSource) LoadUnits(ctx context.Context) (geom.CRS, []RawUnit, error) {
	if h.Size <= 0 {
		return "", nil, fmt.Errorf("hex size %v", h.Size)
	}
	if !h.CRS.Projected() {
		return "", nil, fmt.Errorf("%w: hex grid needs a projected crs, got %q", geom.ErrUnsupportedCRS, h.CRS)
	}
	s := h.Size
	dx := 1.5 * s
	dy := math.Sqrt(3) * s
	box := h.Boundary.BBox()
	if box.IsEmpty() {
		return "", nil, fmt.Errorf("empty boundary")
	}
	pr := geom.Prepare(h.Boundary)
	c0 := int(math.Floor((box.MinX-s)/dx)) - 1
	c1 := int(math.Ceil((box.MaxX+s)/dx)) + 1
	r0 := int(math.Floor((box.MinY-dy)/dy)) - 1
	r1 := int(math.Ceil((box.MaxY+dy)/dy)) + 1

	var units []RawUnit
	for c := c0; c <= c1; c++ {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		for r := r0; r <= r1; r++ {
			cx := float64(c) * dx
			cy := float64(r) * dy
			if c&1 != 0 {
				cy += dy / 2
			}
			cell := hexagon(cx, cy, s)
			if !cell.BBox.Intersects(box) || !pr.Intersects(cell) {
				continue
			}
			units = append(units, RawUnit{ID: strconv.Itoa(len(units)), Geometry: geom.MultiPolygon{cell}})
		}
	}
	return h.CRS, units, nil
}

func hexagon(cx, cy, s float64) geom.Polygon {
	ring := make([]geom.Point, 6)
	for i := range ring {
		a := float64(i) * math.Pi / 3
		ring[i] = geom.Point{X: cx + s*math.Cos(a), Y: cy + s*math.Sin(a)}
	}
	return geom.NewPolygon(ring)
}

// HexArea：边长为 s 的正六边形面积（3√3/2·s²）
func HexArea(s float64) float64 { return 3 * math.Sqrt(3) / 2 * s * s }

// 文档注释：方格网生成器
// 约束：与 HexSource 相同；方格锚定在 Size 的整数倍上。
type GridSource struct {
	Size     float64
	Boundary geom.MultiPolygon
	CRS      geom.CRS
}

func (g GridSource) LoadUnits(ctx context.Context) (geom.CRS, []RawUnit, error) {
	if g.Size <= 0 {
		return "", nil, fmt.Errorf("grid size %v", g.Size)
	}
	if !g.CRS.Projected() {
		return "", nil, fmt.Errorf("%w: grid needs a projected crs, got %q", geom.ErrUnsupportedCRS, g.CRS)
	}
	box := g.Boundary.BBox()
	if box.IsEmpty() {
		return "", nil, fmt.Errorf("empty boundary")
	}
	s := g.Size
	pr := geom.Prepare(g.Boundary)
	i0, i1 := int(math.Floor(box.MinX/s)), int(math.Ceil(box.MaxX/s))
	j0, j1 := int(math.Floor(box.MinY/s)), int(math.Ceil(box.MaxY/s))

	var units []RawUnit
	for i := i0; i < i1; i++ {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		for j := j0; j < j1; j++ {
			x, y := float64(i)*s, float64(j)*s
			cell := geom.Rect(x, y, x+s, y+s)
			if !pr.Intersects(cell) {
				continue
			}
			units = append(units, RawUnit{ID: strconv.Itoa(len(units)), Geometry: geom.MultiPolygon{cell}})
		}
	}
	return g.CRS, units, nil
}
