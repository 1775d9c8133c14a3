package catalog

import (
	"sort"
	"strconv"
	"strings"
)

// 文档注释：单元编号全序比较
// 背景：六边形编号为整数，普查编码为字符串（E00000001）；排序需同时满足“数值按数值、字符串按字典序”且保持全序。
// 约束：纯数字编号排在非数字编号之前；数值相等时（如 "07" 与 "7"）退回字典序，保证不同字符串不相等。
func CompareIDs(a, b string) int {
	ia, okA := numericID(a)
	ib, okB := numericID(b)
	switch {
	case okA && okB:
		if ia < ib {
			return -1
		}
		if ia > ib {
			return 1
		}
		return strings.Compare(a, b)
	case okA:
		return -1
	case okB:
		return 1
	}
	return strings.Compare(a, b)
}

func numericID(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	return v, err == nil
}

// SortIDs：按 CompareIDs 原地排序
func SortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return CompareIDs(ids[i], ids[j]) < 0 })
}
