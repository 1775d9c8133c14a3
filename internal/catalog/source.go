package catalog

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	geojson "github.com/paulmach/go.geojson"

	"crime-hotspots/internal/geom"
)

// RawUnit：边界加载协作方交付的单元（未投影、未计算面积）
type RawUnit struct {
	ID       string
	Geometry geom.MultiPolygon
}

// 文档注释：边界加载协作方
// 背景：目录本身不关心几何来自文件、数据库还是现场生成；只要求交付多边形、稳定编号与其声明的坐标系。
// 约束：返回的 CRS 为空时按 WGS84 处理。
type Source interface {
	LoadUnits(ctx context.Context) (geom.CRS, []RawUnit, error)
}

// 文档注释：GeoJSON 边界文件
// 背景：ONS 普查边界与警力辖区边界均可导出为 FeatureCollection；支持 Polygon 与 MultiPolygon。
// 约束：IDProperty 为空时使用 Feature 的 id 成员；CRS 为空时读取旧式 crs 成员，仍缺失则视为 WGS84。
type GeoJSONFile struct {
	Path       string
	IDProperty string
	CRS        geom.CRS
}

func (g GeoJSONFile) LoadUnits(ctx context.Context) (geom.CRS, []RawUnit, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	b, err := os.ReadFile(g.Path)
	if err != nil {
		return "", nil, err
	}
	return ParseGeoJSON(b, g.IDProperty, g.CRS)
}

// 文档注释：解析 GeoJSON
// 背景：GeoJSONFile 与警力辖区加载共用；Feature 级别的几何错误直接返回，不做部分加载。
func ParseGeoJSON(b []byte, idProp string, crs geom.CRS) (geom.CRS, []RawUnit, error) {
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return "", nil, fmt.Errorf("geojson: %w", err)
	}
	if crs == "" {
		if crs, err = namedCRS(fc.CRS); err != nil {
			return "", nil, fmt.Errorf("geojson: %w", err)
		}
	}
	if crs == "" {
		crs = geom.WGS84
	}
	switch fc.Type {
	case "FeatureCollection":
	case "Feature":
		f, err := geojson.UnmarshalFeature(b)
		if err != nil {
			return "", nil, fmt.Errorf("geojson: %w", err)
		}
		fc.Features = []*geojson.Feature{f}
	default:
		return "", nil, fmt.Errorf("geojson: unsupported type %q", fc.Type)
	}

	units := make([]RawUnit, 0, len(fc.Features))
	for i, f := range fc.Features {
		id := featureID(f, idProp)
		if id == "" {
			return "", nil, fmt.Errorf("geojson: feature %d has no %q", i, idProp)
		}
		if f.Geometry == nil {
			return "", nil, fmt.Errorf("geojson: feature %q has no geometry", id)
		}
		mp, err := parseGeometry(f.Geometry)
		if err != nil {
			return "", nil, fmt.Errorf("geojson: feature %q: %w", id, err)
		}
		units = append(units, RawUnit{ID: id, Geometry: mp})
	}
	return crs, units, nil
}

// namedCRS：旧式 {"type":"name","properties":{"name":"urn:ogc:def:crs:EPSG::27700"}} 成员
func namedCRS(m map[string]any) (geom.CRS, error) {
	props, _ := m["properties"].(map[string]any)
	name, _ := props["name"].(string)
	if name == "" {
		return "", nil
	}
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	return geom.ParseCRS(name)
}

func featureID(f *geojson.Feature, prop string) string {
	if prop == "" {
		return scalarString(f.ID)
	}
	return scalarString(f.Properties[prop])
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}

func parseGeometry(g *geojson.Geometry) (geom.MultiPolygon, error) {
	switch {
	case g.IsPolygon():
		p, err := polygonFromCoords(g.Polygon)
		if err != nil {
			return nil, err
		}
		return geom.MultiPolygon{p}, nil
	case g.IsMultiPolygon():
		mp := make(geom.MultiPolygon, 0, len(g.MultiPolygon))
		for _, part := range g.MultiPolygon {
			p, err := polygonFromCoords(part)
			if err != nil {
				return nil, err
			}
			mp = append(mp, p)
		}
		return mp, nil
	}
	return nil, fmt.Errorf("unsupported geometry %q", g.Type)
}

func polygonFromCoords(coords [][][]float64) (geom.Polygon, error) {
	if len(coords) == 0 {
		return geom.Polygon{}, fmt.Errorf("polygon without rings")
	}
	rings := make([][]geom.Point, 0, len(coords))
	for _, ring := range coords {
		if len(ring) < 3 {
			return geom.Polygon{}, fmt.Errorf("ring with %d positions", len(ring))
		}
		rr := make([]geom.Point, 0, len(ring))
		for _, pos := range ring {
			if len(pos) < 2 {
				return geom.Polygon{}, fmt.Errorf("position with %d values", len(pos))
			}
			rr = append(rr, geom.Point{X: pos[0], Y: pos[1]})
		}
		rings = append(rings, rr)
	}
	return geom.NewPolygon(rings...), nil
}

// Units：内存中的原始单元，供测试与生成器复用
type Units struct {
	CRS   geom.CRS
	Items []RawUnit
}

func (u Units) LoadUnits(ctx context.Context) (geom.CRS, []RawUnit, error) {
	return u.CRS, u.Items, ctx.Err()
}
