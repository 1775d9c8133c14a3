package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"crime-hotspots/internal/geom"
	"crime-hotspots/internal/logger"
)

var ErrRegionNotFound = errors.New("region not found")

// 文档注释：警力辖区
// 背景：同名要素（飞地、岛屿）合并为一个多面；预处理边索引以加速区域过滤。
type Region struct {
	Name     string
	CRS      geom.CRS
	Geometry geom.MultiPolygon
	AreaKm2  float64
	prepared *geom.Prepared
}

func (r *Region) BBox() geom.BBox { return r.prepared.BBox() }

// Forces：警力辖区边界目录（只读）
type Forces struct {
	crs     geom.CRS
	regions map[string]*Region
	folded  map[string]string
	names   []string
}

// 文档注释：加载警力辖区边界
// 背景：边界来源的单元编号即辖区名称；与空间单元目录一样在加载时一次性投影。
// 约束：目标坐标系须与空间单元目录一致，否则区域过滤时返回坐标系不一致错误。
func LoadForces(ctx context.Context, src Source, target geom.CRS) (*Forces, error) {
	srcCRS, raws, err := src.LoadUnits(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: forces: %w", ErrCatalogLoad, err)
	}
	if len(raws) == 0 {
		return nil, fmt.Errorf("%w: forces: empty boundary catalog", ErrCatalogLoad)
	}
	raws, err = reproject(raws, srcCRS, target)
	if err != nil {
		return nil, fmt.Errorf("%w: forces: %w", ErrCatalogLoad, err)
	}
	merged := make(map[string]geom.MultiPolygon)
	var names []string
	for _, r := range raws {
		if r.ID == "" {
			return nil, fmt.Errorf("%w: forces: feature without name", ErrCatalogLoad)
		}
		if _, ok := merged[r.ID]; !ok {
			names = append(names, r.ID)
		}
		merged[r.ID] = append(merged[r.ID], r.Geometry...)
	}
	sort.Strings(names)
	f := &Forces{crs: target, regions: make(map[string]*Region, len(names)), folded: make(map[string]string, len(names)), names: names}
	for _, n := range names {
		mp := merged[n]
		f.regions[n] = &Region{
			Name:     n,
			CRS:      target,
			Geometry: mp,
			AreaKm2:  mp.Area() / 1_000_000,
			prepared: geom.Prepare(mp),
		}
		f.folded[strings.ToLower(n)] = n
	}
	logger.L().Info("forces_loaded", "regions", len(names), "crs", string(target))
	return f, nil
}

// Region：按名称取辖区；大小写不敏感
func (f *Forces) Region(name string) (*Region, error) {
	if r, ok := f.regions[name]; ok {
		return r, nil
	}
	if n, ok := f.folded[strings.ToLower(strings.TrimSpace(name))]; ok {
		return f.regions[n], nil
	}
	return nil, fmt.Errorf("%w: %q", ErrRegionNotFound, name)
}

func (f *Forces) Names() []string { return append([]string(nil), f.names...) }
func (f *Forces) CRS() geom.CRS   { return f.crs }

// 文档注释：区域过滤
// 背景：region 为 nil 表示全国范围，返回全部单元；否则返回几何与辖区边界相交的单元编号。
// 先以 R-Tree 取包围盒候选，再以预处理边界做精确相交判定。
// 约束：目录与辖区坐标系必须一致（返回 geom.ErrCRSMismatch）；结果按目录顺序排列。
func UnitsInRegion(c *Catalog, region *Region) ([]string, error) {
	if region == nil {
		return c.IDs(), nil
	}
	if region.CRS != c.CRS() {
		return nil, fmt.Errorf("%w: catalog %s, region %s", geom.ErrCRSMismatch, c.CRS(), region.CRS)
	}
	var hits []int
	c.Search(region.BBox(), func(i int) bool {
		if region.prepared.IntersectsMulti(c.units[i].Geometry) {
			hits = append(hits, i)
		}
		return true
	})
	sort.Ints(hits)
	ids := make([]string, len(hits))
	for k, i := range hits {
		ids[k] = c.units[i].ID
	}
	return ids, nil
}
