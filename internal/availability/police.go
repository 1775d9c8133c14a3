package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"crime-hotspots/internal/logger"
	"crime-hotspots/internal/metrics"
	"crime-hotspots/internal/month"
)

// DefaultPoliceBaseURL：police.uk 公共数据 API
const DefaultPoliceBaseURL = "https://data.police.uk/api"

// 文档注释：police.uk 可用月份响应条目
// 背景：/crimes-street-dates 返回每个已发布月份及其含拦截搜查数据的辖区列表；这里只需要月份。
type streetDate struct {
	Date string `json:"date"`
}

// 文档注释：police.uk 可用月份查询
// 背景：上游通常每月中旬发布上上月数据，以接口为准而非按日历推算。
// 参数：
// - Client：HTTP 客户端；为空时使用 10s 超时的默认客户端；
// - BaseURL：为空时使用 DefaultPoliceBaseURL，测试可指向 httptest 服务。
// 约束：非 2xx 视为错误；忽略无法解析的条目；无任何有效月份返回 ErrNoData。
type PoliceAPI struct {
	Client  *http.Client
	BaseURL string
}

func (p PoliceAPI) LatestMonth(ctx context.Context) (month.Month, error) {
	base := p.BaseURL
	if base == "" {
		base = DefaultPoliceBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/crimes-street-dates", nil)
	if err != nil {
		return month.Month{}, err
	}
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	t0 := time.Now()
	logger.L().Debug("police_api_req", "url", req.URL.String())
	resp, err := client.Do(req)
	if err != nil {
		logger.L().Error("police_api_http_error", "err", err)
		metrics.AvailabilityRequestsTotal.WithLabelValues("police_api", "error").Inc()
		return month.Month{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		metrics.AvailabilityRequestsTotal.WithLabelValues("police_api", "error").Inc()
		return month.Month{}, fmt.Errorf("police api status %d", resp.StatusCode)
	}
	var dates []streetDate
	if err := json.NewDecoder(resp.Body).Decode(&dates); err != nil {
		logger.L().Error("police_api_decode_error", "err", err)
		metrics.AvailabilityRequestsTotal.WithLabelValues("police_api", "error").Inc()
		return month.Month{}, err
	}
	dur := time.Since(t0).Milliseconds()
	metrics.AvailabilityDurationMs.Observe(float64(dur))

	var latest month.Month
	for _, d := range dates {
		m, err := month.Parse(d.Date)
		if err != nil {
			continue
		}
		if latest.IsZero() || m.After(latest) {
			latest = m
		}
	}
	if latest.IsZero() {
		metrics.AvailabilityRequestsTotal.WithLabelValues("police_api", "empty").Inc()
		return month.Month{}, ErrNoData
	}
	metrics.AvailabilityRequestsTotal.WithLabelValues("police_api", "ok").Inc()
	logger.L().Debug("police_api_resp", "latest", latest.String(), "months", len(dates), "duration_ms", dur)
	return latest, nil
}

// 文档注释：带回退的来源
// 背景：外部接口不可用时退回本地目录扫描，刷新任务不因网络抖动停摆。
// 约束：Primary 失败（含 ErrNoData）才调用 Fallback；两者都失败时返回合并错误。
type WithFallback struct {
	Primary  Source
	Fallback Source
}

func (w WithFallback) LatestMonth(ctx context.Context) (month.Month, error) {
	m, err := w.Primary.LatestMonth(ctx)
	if err == nil || w.Fallback == nil {
		return m, err
	}
	logger.L().Warn("availability_fallback", "err", err)
	m, ferr := w.Fallback.LatestMonth(ctx)
	if ferr != nil {
		return month.Month{}, errors.Join(err, ferr)
	}
	return m, nil
}
