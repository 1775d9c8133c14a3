package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"crime-hotspots/internal/catalog"
	"crime-hotspots/internal/geom"
	"crime-hotspots/internal/logger"
)

// 文档注释：地理目录清单（YAML）
// 背景：服务哪些目录类型、边界文件在哪、六边形/方格按哪些辖区生成，都由部署决定，不写死在代码里。
// 约束：相对路径以清单文件所在目录为基准；同一类型只能出现一次。
//
//	forces:
//	  path: boundaries/pfa.geojson
//	  name_property: PFA23NM
//	catalogs:
//	  - kind: hex-200
//	    forces: [West Yorkshire]
//	  - kind: lsoa21
//	    path: boundaries/lsoa21.geojson
type Geographies struct {
	Forces   BoundaryFile    `yaml:"forces"`
	Catalogs []CatalogConfig `yaml:"catalogs"`

	dir string
}

// BoundaryFile：GeoJSON 边界文件位置；CRS 为空时读取文件自身声明
type BoundaryFile struct {
	Path         string `yaml:"path"`
	NameProperty string `yaml:"name_property"`
	CRS          string `yaml:"crs"`
}

// 文档注释：单个目录类型
// 约束：hex/grid 由辖区边界生成，Forces 为空表示全部辖区；行政层级须给出 Path，IDProperty 缺省为该层级的普查编码列。
type CatalogConfig struct {
	Kind       catalog.Kind `yaml:"kind"`
	Path       string       `yaml:"path"`
	IDProperty string       `yaml:"id_property"`
	CRS        string       `yaml:"crs"`
	Forces     []string     `yaml:"forces"`
}

func LoadGeographies(path string) (*Geographies, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: geographies: %v", ErrConfig, err)
	}
	g, err := ParseGeographies(b)
	if err != nil {
		return nil, err
	}
	g.dir = filepath.Dir(path)
	return g, nil
}

func ParseGeographies(b []byte) (*Geographies, error) {
	var g Geographies
	if err := yaml.Unmarshal(b, &g); err != nil {
		return nil, fmt.Errorf("%w: geographies: %v", ErrConfig, err)
	}
	if len(g.Catalogs) == 0 {
		return nil, fmt.Errorf("%w: geographies: no catalogs", ErrConfig)
	}
	seen := make(map[catalog.Kind]bool, len(g.Catalogs))
	for _, c := range g.Catalogs {
		if !c.Kind.Valid() {
			return nil, fmt.Errorf("%w: geographies: invalid kind %v", ErrConfig, c.Kind)
		}
		if seen[c.Kind] {
			return nil, fmt.Errorf("%w: geographies: duplicate kind %s", ErrConfig, c.Kind)
		}
		seen[c.Kind] = true
		if !c.Kind.Partition() && c.Path == "" {
			return nil, fmt.Errorf("%w: geographies: %s needs a boundary path", ErrConfig, c.Kind)
		}
		if c.Kind.Partition() && g.Forces.Path == "" {
			return nil, fmt.Errorf("%w: geographies: %s is generated from force boundaries, none configured", ErrConfig, c.Kind)
		}
	}
	return &g, nil
}

func (g *Geographies) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || g.dir == "" {
		return p
	}
	return filepath.Join(g.dir, p)
}

func parseOptionalCRS(s string) (geom.CRS, error) {
	if s == "" {
		return "", nil
	}
	return geom.ParseCRS(s)
}

// 文档注释：加载辖区边界与全部目录
// 背景：启动时一次性完成；任何一个目录失败即整体失败，不提供部分目录。
// 约束：未配置辖区边界时 Forces 返回 nil（只支持全国范围查询）。
func (g *Geographies) Load(ctx context.Context, target geom.CRS) (*catalog.Forces, []*catalog.Catalog, error) {
	var forces *catalog.Forces
	if g.Forces.Path != "" {
		crs, err := parseOptionalCRS(g.Forces.CRS)
		if err != nil {
			return nil, nil, err
		}
		forces, err = catalog.LoadForces(ctx, catalog.GeoJSONFile{
			Path: g.resolve(g.Forces.Path), IDProperty: g.Forces.NameProperty, CRS: crs,
		}, target)
		if err != nil {
			return nil, nil, err
		}
	}
	out := make([]*catalog.Catalog, 0, len(g.Catalogs))
	for _, cc := range g.Catalogs {
		src, err := g.source(cc, forces, target)
		if err != nil {
			return nil, nil, err
		}
		c, err := catalog.Load(ctx, cc.Kind, src, target)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, c)
	}
	logger.L().Info("geographies_loaded", "catalogs", len(out))
	return forces, out, nil
}

func (g *Geographies) source(cc CatalogConfig, forces *catalog.Forces, target geom.CRS) (catalog.Source, error) {
	if !cc.Kind.Partition() {
		crs, err := parseOptionalCRS(cc.CRS)
		if err != nil {
			return nil, err
		}
		idProp := cc.IDProperty
		if idProp == "" {
			idProp = cc.Kind.Level.IDProperty()
		}
		return catalog.GeoJSONFile{Path: g.resolve(cc.Path), IDProperty: idProp, CRS: crs}, nil
	}
	names := cc.Forces
	if len(names) == 0 {
		names = forces.Names()
	}
	var boundary geom.MultiPolygon
	for _, n := range names {
		r, err := forces.Region(n)
		if err != nil {
			return nil, fmt.Errorf("%w: catalog %s: %w", ErrConfig, cc.Kind, err)
		}
		boundary = append(boundary, r.Geometry...)
	}
	if cc.Kind.Family == catalog.FamilyHex {
		return catalog.HexSource{Size: cc.Kind.Size, Boundary: boundary, CRS: target}, nil
	}
	return catalog.GridSource{Size: cc.Kind.Size, Boundary: boundary, CRS: target}, nil
}
