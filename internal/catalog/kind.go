// 包 catalog：空间单元目录（六边形/方格/普查行政区）、警力辖区边界与区域过滤
package catalog

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrUnknownKind = errors.New("unknown catalog kind")

// Family：目录族（封闭集合）
type Family uint8

const (
	FamilyHex Family = iota + 1
	FamilyGrid
	FamilyAdmin
)

// Level：普查行政层级（封闭集合）
type Level uint8

const (
	OA21 Level = iota + 1
	LSOA21
	MSOA21
)

func (l Level) String() string {
	switch l {
	case OA21:
		return "oa21"
	case LSOA21:
		return "lsoa21"
	case MSOA21:
		return "msoa21"
	}
	return ""
}

// IDProperty：边界数据中该层级的编码字段
func (l Level) IDProperty() string {
	switch l {
	case OA21:
		return "OA21CD"
	case LSOA21:
		return "LSOA21CD"
	case MSOA21:
		return "MSOA21CD"
	}
	return ""
}

// 文档注释：目录类型
// 背景：缓存键、查询路径都按类型区分；以枚举表达可用类型，避免运行时拼接表名或键名。
// 约束：六边形/方格需提供正数尺寸（米，六边形为边长）；行政层级不使用尺寸。
type Kind struct {
	Family Family
	Size   float64
	Level  Level
}

func HexKind(size float64) Kind  { return Kind{Family: FamilyHex, Size: size} }
func GridKind(size float64) Kind { return Kind{Family: FamilyGrid, Size: size} }
func AdminKind(l Level) Kind     { return Kind{Family: FamilyAdmin, Level: l} }

// Partition：六边形与方格是平面划分，每个点至多落入一个单元
func (k Kind) Partition() bool { return k.Family == FamilyHex || k.Family == FamilyGrid }

func (k Kind) Valid() bool {
	switch k.Family {
	case FamilyHex, FamilyGrid:
		return k.Size > 0 && !math.IsInf(k.Size, 0)
	case FamilyAdmin:
		return k.Level.String() != ""
	}
	return false
}

// String：缓存键形式，如 hex-200、grid-400、oa21
func (k Kind) String() string {
	switch k.Family {
	case FamilyHex:
		return "hex-" + strconv.FormatFloat(k.Size, 'f', -1, 64)
	case FamilyGrid:
		return "grid-" + strconv.FormatFloat(k.Size, 'f', -1, 64)
	case FamilyAdmin:
		return k.Level.String()
	}
	return "unknown"
}

func ParseKind(s string) (Kind, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "oa21":
		return AdminKind(OA21), nil
	case "lsoa21":
		return AdminKind(LSOA21), nil
	case "msoa21":
		return AdminKind(MSOA21), nil
	}
	var fam Family
	var rest string
	switch {
	case strings.HasPrefix(v, "hex-"):
		fam, rest = FamilyHex, v[len("hex-"):]
	case strings.HasPrefix(v, "grid-"):
		fam, rest = FamilyGrid, v[len("grid-"):]
	default:
		return Kind{}, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	size, err := strconv.ParseFloat(rest, 64)
	if err != nil || math.IsNaN(size) || math.IsInf(size, 0) || size <= 0 {
		return Kind{}, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return Kind{Family: fam, Size: size}, nil
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
