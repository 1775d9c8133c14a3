// 包 availability：确定“最新可用月份”，它决定时间线终点与立方体缓存键
package availability

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"crime-hotspots/internal/logger"
	"crime-hotspots/internal/metrics"
	"crime-hotspots/internal/month"
)

var ErrNoData = errors.New("no monthly data available")

// Source：最新可用月份的来源
type Source interface {
	LatestMonth(ctx context.Context) (month.Month, error)
}

// Fixed：固定月份，用于离线重放与测试
type Fixed struct {
	Month month.Month
}

func (f Fixed) LatestMonth(context.Context) (month.Month, error) {
	if f.Month.IsZero() {
		return month.Month{}, ErrNoData
	}
	return f.Month, nil
}

// 文档注释：扫描本地数据目录
// 背景：police.uk 批量下载解压后为 YYYY-MM/ 子目录（内含 YYYY-MM-<force>-street.csv），也兼容扁平放置的文件。
// 约束：只认可名称以合法 YYYY-MM 开头且含 street 文件的条目；目录为空返回 ErrNoData。
type DirScanner struct {
	Dir string
}

func (d DirScanner) LatestMonth(ctx context.Context) (month.Month, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		metrics.AvailabilityRequestsTotal.WithLabelValues("dir", "error").Inc()
		return month.Month{}, err
	}
	var latest month.Month
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return month.Month{}, err
		}
		name := e.Name()
		if len(name) < 7 {
			continue
		}
		m, err := month.Parse(name[:7])
		if err != nil {
			continue
		}
		switch {
		case e.IsDir():
			if !hasStreetFile(filepath.Join(d.Dir, name), name[:7]) {
				continue
			}
		case !strings.HasSuffix(name, "-street.csv"):
			continue
		}
		if latest.IsZero() || m.After(latest) {
			latest = m
		}
	}
	if latest.IsZero() {
		metrics.AvailabilityRequestsTotal.WithLabelValues("dir", "empty").Inc()
		return month.Month{}, fmt.Errorf("%w: %s", ErrNoData, d.Dir)
	}
	metrics.AvailabilityRequestsTotal.WithLabelValues("dir", "ok").Inc()
	logger.L().Debug("availability_dir", "dir", d.Dir, "latest", latest.String())
	return latest, nil
}

func hasStreetFile(dir, prefix string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		n := e.Name()
		if !e.IsDir() && strings.HasPrefix(n, prefix) && strings.HasSuffix(n, "-street.csv") {
			return true
		}
	}
	return false
}
