package month

import (
	"errors"
	"fmt"
	"iter"
	"slices"
)

var ErrInvalidWindow = errors.New("invalid window")

// 文档注释：无限月份生成器
// 背景：时间线均由“最新月份”向前或向后推导；惰性生成以便调用方按需截取。
// 约束：backwards 为 true 时从 start 开始逐月回退。
func Gen(start Month, backwards bool) iter.Seq[Month] {
	step := 1
	if backwards {
		step = -1
	}
	return func(yield func(Month) bool) {
		for m := start; ; m = m.Add(step) {
			if !yield(m) {
				return
			}
		}
	}
}

// 文档注释：生成定长连续月份窗口（按时间正序）
// 背景：backwards=true 表示窗口以 end 结尾（回看），否则以 end 开始（前瞻）。
// 约束：length < 1 返回 ErrInvalidWindow。
func Window(end Month, length int, backwards bool) ([]Month, error) {
	if length < 1 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidWindow, length)
	}
	out := make([]Month, 0, length)
	for m := range Gen(end, backwards) {
		out = append(out, m)
		if len(out) == length {
			break
		}
	}
	if backwards {
		slices.Reverse(out)
	}
	return out, nil
}

// 文档注释：滚动子窗口
// 背景：以固定窗口长度与步长遍历月份序列，用于热点重复性分析；例如 3 月窗口 2 月步长：{1,2,3} → {3,4,5}。
// 约束：惰性且可重复遍历，每次遍历都从源序列重新推导；产出切片为独立拷贝。
// 窗口大于序列长度时为空序列而非错误；window/step 小于 1 返回 ErrInvalidWindow。
func Rolling(months []Month, window, step int) (iter.Seq[[]Month], error) {
	if window < 1 || step < 1 {
		return nil, fmt.Errorf("%w: window %d step %d", ErrInvalidWindow, window, step)
	}
	src := slices.Clone(months)
	return func(yield func([]Month) bool) {
		for i := 0; i+window <= len(src); i += step {
			if !yield(slices.Clone(src[i : i+window])) {
				return
			}
		}
	}, nil
}

// NumWindows：Rolling 将产出的窗口数
func NumWindows(n, window, step int) int {
	if window < 1 || step < 1 || n < window {
		return 0
	}
	return (n-window)/step + 1
}

// Label：窗口展示标签，单月为该月，多月为 "起 to 止"
func Label(ms []Month) string {
	switch len(ms) {
	case 0:
		return ""
	case 1:
		return ms[0].String()
	}
	return ms[0].String() + " to " + ms[len(ms)-1].String()
}
