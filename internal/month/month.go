// 包 month：日历月值类型与时间线生成（滚动窗口、步进、前后向窗口）
package month

import (
	"errors"
	"fmt"
	"strconv"
)

var ErrInvalidMonth = errors.New("invalid month")

// 文档注释：日历月（年, 月）
// 背景：警务公开数据以月为最小粒度发布，统计与缓存键均按月对齐；值类型可直接作为 map 键。
// 约束：mon 恒在 [1,12]；零值不是合法月份，仅用于表示“未设置”。
type Month struct {
	year int
	mon  int
}

// New：构造月份，mon 越界返回 ErrInvalidMonth
func New(year, mon int) (Month, error) {
	if mon < 1 || mon > 12 {
		return Month{}, fmt.Errorf("%w: %d-%d", ErrInvalidMonth, year, mon)
	}
	return Month{year: year, mon: mon}, nil
}

// Parse：解析严格的 YYYY-MM 形式
func Parse(s string) (Month, error) {
	if len(s) != 7 || s[4] != '-' {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	m, err := strconv.Atoi(s[5:])
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return New(y, m)
}

// MustParse：测试与常量场景使用，非法输入直接 panic
func MustParse(s string) Month {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Month) Year() int    { return m.year }
func (m Month) Mon() int     { return m.mon }
func (m Month) IsZero() bool { return m.mon == 0 }

func (m Month) String() string {
	if m.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", m.year, m.mon)
}

// index：自公元 0 年 1 月起的月序号，用于算术与比较
func (m Month) index() int { return m.year*12 + m.mon - 1 }

func fromIndex(i int) Month {
	y := i / 12
	r := i % 12
	if r < 0 {
		r += 12
		y--
	}
	return Month{year: y, mon: r + 1}
}

// Add：前推/回退 k 个月，可跨年
func (m Month) Add(k int) Month { return fromIndex(m.index() + k) }

// Sub：m 与 o 相差的月数（m - o）
func (m Month) Sub(o Month) int { return m.index() - o.index() }

func (m Month) Compare(o Month) int {
	switch d := m.index() - o.index(); {
	case d < 0:
		return -1
	case d > 0:
		return 1
	}
	return 0
}

func (m Month) Before(o Month) bool { return m.index() < o.index() }
func (m Month) After(o Month) bool  { return m.index() > o.index() }

func (m Month) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Month) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
