package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"crime-hotspots/internal/geom"
	"crime-hotspots/internal/logger"
)

var ErrCatalogLoad = errors.New("catalog load error")

// 文档注释：空间单元
// 背景：聚合的最小空间粒度；几何与面积在加载时按目标投影坐标系计算一次。
type SpatialUnit struct {
	ID       string
	Geometry geom.MultiPolygon
	BBox     geom.BBox
	AreaKm2  float64
}

// 文档注释：空间单元目录（只读快照）
// 背景：进程生命周期内加载一次，供聚合与区域过滤共享；单元按编号全序排列，R-Tree 以单元下标为条目。
// 约束：同一目录内编号唯一；加载后不可修改，可被并发读取。
type Catalog struct {
	kind  Kind
	crs   geom.CRS
	units []SpatialUnit
	byID  map[string]int
	index *geom.RTree
}

// 文档注释：加载目录
// 背景：几何解析交由 Source 协作方；此处负责一次性重投影、编号校验、面积计算与空间索引构建。
// 约束：目标坐标系必须为投影坐标系；空目录、重复编号、空几何或零面积均返回 ErrCatalogLoad。
func Load(ctx context.Context, kind Kind, src Source, target geom.CRS) (*Catalog, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %w: %v", ErrCatalogLoad, ErrUnknownKind, kind)
	}
	srcCRS, raws, err := src.LoadUnits(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCatalogLoad, kind, err)
	}
	raws, err = reproject(raws, srcCRS, target)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCatalogLoad, kind, err)
	}
	c, err := New(kind, target, raws)
	if err != nil {
		return nil, err
	}
	logger.L().Info("catalog_loaded", "kind", kind.String(), "units", c.Len(), "crs", string(target))
	return c, nil
}

func reproject(raws []RawUnit, from, to geom.CRS) ([]RawUnit, error) {
	if !to.Projected() {
		return nil, fmt.Errorf("%w: target %s is not projected", geom.ErrUnsupportedCRS, to)
	}
	if from == "" {
		from = geom.WGS84
	}
	if from == to {
		return raws, nil
	}
	tr, err := geom.NewTransformer(from, to)
	if err != nil {
		return nil, err
	}
	out := make([]RawUnit, len(raws))
	for i, r := range raws {
		out[i] = RawUnit{ID: r.ID, Geometry: geom.TransformMulti(r.Geometry, tr)}
	}
	return out, nil
}

// New：由已投影的原始单元直接构建目录
func New(kind Kind, crs geom.CRS, raws []RawUnit) (*Catalog, error) {
	if len(raws) == 0 {
		return nil, fmt.Errorf("%w: %s: empty catalog", ErrCatalogLoad, kind)
	}
	units := make([]SpatialUnit, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for _, r := range raws {
		if r.ID == "" {
			return nil, fmt.Errorf("%w: %s: unit without id", ErrCatalogLoad, kind)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate unit id %q", ErrCatalogLoad, kind, r.ID)
		}
		seen[r.ID] = struct{}{}
		if len(r.Geometry) == 0 {
			return nil, fmt.Errorf("%w: %s: unit %q has no geometry", ErrCatalogLoad, kind, r.ID)
		}
		area := r.Geometry.Area()
		if area <= 0 {
			return nil, fmt.Errorf("%w: %s: unit %q has zero area", ErrCatalogLoad, kind, r.ID)
		}
		units = append(units, SpatialUnit{
			ID:       r.ID,
			Geometry: r.Geometry,
			BBox:     r.Geometry.BBox(),
			AreaKm2:  area / 1_000_000,
		})
	}
	sort.Slice(units, func(i, j int) bool { return CompareIDs(units[i].ID, units[j].ID) < 0 })

	c := &Catalog{kind: kind, crs: crs, units: units, byID: make(map[string]int, len(units))}
	boxes := make([]geom.BBox, len(units))
	for i, u := range units {
		c.byID[u.ID] = i
		boxes[i] = u.BBox
	}
	c.index = geom.NewRTree(boxes)
	return c, nil
}

func (c *Catalog) Kind() Kind              { return c.kind }
func (c *Catalog) CRS() geom.CRS           { return c.crs }
func (c *Catalog) Len() int                { return len(c.units) }
func (c *Catalog) Unit(i int) *SpatialUnit { return &c.units[i] }

func (c *Catalog) Lookup(id string) (*SpatialUnit, bool) {
	i, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return &c.units[i], true
}

// AreaKm2：供排名按密度打破平局
func (c *Catalog) AreaKm2(id string) (float64, bool) {
	u, ok := c.Lookup(id)
	if !ok {
		return 0, false
	}
	return u.AreaKm2, true
}

// IDs：全部单元编号（已按 CompareIDs 排序，返回新切片）
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.units))
	for i, u := range c.units {
		out[i] = u.ID
	}
	return out
}

// 文档注释：点定位
// 背景：R-Tree 取包围盒候选，再做精确点入多边形判定；结果为单元下标且按目录顺序升序。
// 约束：dst 可复用以减少分配；落在相邻单元公共边上的点可能返回多个下标。
func (c *Catalog) Containing(pt geom.Point, dst []int) []int {
	dst = dst[:0]
	c.index.SearchPoint(pt, func(i int) bool {
		if geom.PointInMulti(pt, c.units[i].Geometry) {
			dst = append(dst, i)
		}
		return true
	})
	sort.Ints(dst)
	return dst
}

// Search：遍历包围盒与 q 相交的单元下标
func (c *Catalog) Search(q geom.BBox, fn func(i int) bool) { c.index.Search(q, fn) }
