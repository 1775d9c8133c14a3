package geom

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrCRSMismatch    = errors.New("coordinate system mismatch")
	ErrUnsupportedCRS = errors.New("unsupported coordinate transform")
)

// 文档注释：坐标参考系（EPSG 代码）
// 背景：原始事件为 WGS84 经纬度；英格兰与威尔士的边界与网格均在英国国家格网（EPSG:27700）下计算面积与相交。
type CRS string

const (
	WGS84       CRS = "EPSG:4326"
	BNG         CRS = "EPSG:27700"
	WebMercator CRS = "EPSG:3857"
)

// ParseCRS：接受 "EPSG:27700" / "epsg:27700" / "27700"
func ParseCRS(s string) (CRS, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if !strings.HasPrefix(v, "EPSG:") {
		v = "EPSG:" + v
	}
	switch CRS(v) {
	case WGS84, BNG, WebMercator:
		return CRS(v), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedCRS, s)
}

// Projected：投影坐标系（单位为米，可直接计算面积）
func (c CRS) Projected() bool { return c == BNG || c == WebMercator }

// Transformer：逐点坐标转换函数
type Transformer func(Point) Point

// 文档注释：构造坐标转换
// 背景：加载阶段一次性把事件点与边界统一到同一投影坐标系，查询期不再转换。
// 约束：仅支持恒等与 WGS84 → BNG / WebMercator；其他组合返回 ErrUnsupportedCRS。
func NewTransformer(from, to CRS) (Transformer, error) {
	if from == to {
		return func(p Point) Point { return p }, nil
	}
	if from == WGS84 && to == BNG {
		return func(p Point) Point { return wgs84ToBNG(p.Y, p.X) }, nil
	}
	if from == WGS84 && to == WebMercator {
		return func(p Point) Point { return wgs84ToWebMercator(p.Y, p.X) }, nil
	}
	return nil, fmt.Errorf("%w: %s -> %s", ErrUnsupportedCRS, from, to)
}

// TransformMulti：返回转换后的新多面（包围盒重新计算）
func TransformMulti(mp MultiPolygon, tr Transformer) MultiPolygon {
	out := make(MultiPolygon, len(mp))
	for i, poly := range mp {
		rings := make([][]Point, len(poly.Rings))
		for j, r := range poly.Rings {
			nr := make([]Point, len(r))
			for k, pt := range r {
				nr[k] = tr(pt)
			}
			rings[j] = nr
		}
		out[i] = NewPolygon(rings...)
	}
	return out
}

const deg = math.Pi / 180

func wgs84ToWebMercator(lat, lon float64) Point {
	const r = 6378137.0
	lat = math.Max(math.Min(lat, 85.05112878), -85.05112878)
	return Point{X: r * lon * deg, Y: r * math.Log(math.Tan(math.Pi/4+lat*deg/2))}
}

type ellipsoid struct{ a, b float64 }

var (
	grs80 = ellipsoid{a: 6378137.000, b: 6356752.314140}
	airy  = ellipsoid{a: 6377563.396, b: 6356256.909}
)

// 文档注释：WGS84 经纬度 → 英国国家格网（OSGB36 横轴墨卡托）
// 背景：七参数 Helmert 变换至 OSGB36 基准，再按 OS 公式做横轴墨卡托投影；精度约 5 米，满足 200 米级网格聚合。
func wgs84ToBNG(lat, lon float64) Point {
	x, y, z := toCartesian(lat*deg, lon*deg, grs80)
	x, y, z = helmertWGS84ToOSGB36(x, y, z)
	phi, lam := fromCartesian(x, y, z, airy)
	e, n := osgbTM(phi, lam)
	return Point{X: e, Y: n}
}

func toCartesian(phi, lam float64, el ellipsoid) (float64, float64, float64) {
	e2 := 1 - (el.b*el.b)/(el.a*el.a)
	sinPhi := math.Sin(phi)
	nu := el.a / math.Sqrt(1-e2*sinPhi*sinPhi)
	x := nu * math.Cos(phi) * math.Cos(lam)
	y := nu * math.Cos(phi) * math.Sin(lam)
	z := (1 - e2) * nu * sinPhi
	return x, y, z
}

func helmertWGS84ToOSGB36(x, y, z float64) (float64, float64, float64) {
	const (
		tx, ty, tz = -446.448, 125.157, -542.060
		sPPM       = 20.4894
		arcsec     = math.Pi / (180 * 3600)
	)
	rx := -0.1502 * arcsec
	ry := -0.2470 * arcsec
	rz := -0.8421 * arcsec
	s := 1 + sPPM*1e-6
	x2 := tx + s*x - rz*y + ry*z
	y2 := ty + rz*x + s*y - rx*z
	z2 := tz - ry*x + rx*y + s*z
	return x2, y2, z2
}

func fromCartesian(x, y, z float64, el ellipsoid) (float64, float64) {
	e2 := 1 - (el.b*el.b)/(el.a*el.a)
	p := math.Sqrt(x*x + y*y)
	phi := math.Atan2(z, p*(1-e2))
	for i := 0; i < 10; i++ {
		sinPhi := math.Sin(phi)
		nu := el.a / math.Sqrt(1-e2*sinPhi*sinPhi)
		next := math.Atan2(z+e2*nu*sinPhi, p)
		if math.Abs(next-phi) < 1e-12 {
			phi = next
			break
		}
		phi = next
	}
	return phi, math.Atan2(y, x)
}

// osgbTM：OSGB36 经纬度（弧度）→ 东距/北距（米）
func osgbTM(phi, lam float64) (float64, float64) {
	const (
		f0 = 0.9996012717
		n0 = -100000.0
		e0 = 400000.0
	)
	phi0 := 49 * deg
	lam0 := -2 * deg
	a, b := airy.a, airy.b
	e2 := 1 - (b*b)/(a*a)
	n := (a - b) / (a + b)
	n2, n3 := n*n, n*n*n

	sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)
	tanPhi := math.Tan(phi)
	nu := a * f0 / math.Sqrt(1-e2*sinPhi*sinPhi)
	rho := a * f0 * (1 - e2) / math.Pow(1-e2*sinPhi*sinPhi, 1.5)
	eta2 := nu/rho - 1

	dp, sp := phi-phi0, phi+phi0
	ma := (1 + n + 5.0/4*n2 + 5.0/4*n3) * dp
	mb := (3*n + 3*n2 + 21.0/8*n3) * math.Sin(dp) * math.Cos(sp)
	mc := (15.0/8*n2 + 15.0/8*n3) * math.Sin(2*dp) * math.Cos(2*sp)
	md := (35.0 / 24 * n3) * math.Sin(3*dp) * math.Cos(3*sp)
	m := b * f0 * (ma - mb + mc - md)

	cos3 := cosPhi * cosPhi * cosPhi
	cos5 := cos3 * cosPhi * cosPhi
	tan2 := tanPhi * tanPhi
	tan4 := tan2 * tan2

	i := m + n0
	ii := nu / 2 * sinPhi * cosPhi
	iii := nu / 24 * sinPhi * cos3 * (5 - tan2 + 9*eta2)
	iiia := nu / 720 * sinPhi * cos5 * (61 - 58*tan2 + tan4)
	iv := nu * cosPhi
	v := nu / 6 * cos3 * (nu/rho - tan2)
	vi := nu / 120 * cos5 * (5 - 18*tan2 + tan4 + 14*eta2 - 58*tan2*eta2)

	dl := lam - lam0
	dl2 := dl * dl
	north := i + ii*dl2 + iii*dl2*dl2 + iiia*dl2*dl2*dl2
	east := e0 + iv*dl + v*dl2*dl + vi*dl2*dl2*dl
	return east, north
}
