package api

import (
	"crime-hotspots/internal/analysis"
	"crime-hotspots/internal/cube"
	"crime-hotspots/internal/engine"
	"crime-hotspots/internal/hotspot"
	"crime-hotspots/internal/month"
)

// 文档注释：对外返回结构（HTTP 与命令行共用）
// 背景：引擎结果类型不带序列化标签，这里统一转换为稳定的 JSON 模型；月份与目录类型都以规范字符串输出。
// 约束：字段稳定；新增字段需评估兼容性。
type HotspotItem struct {
	Unit    string  `json:"unit"`
	Count   int     `json:"count"`
	Density float64 `json:"density_km2"`
}

type HotspotsResult struct {
	Cube        string        `json:"cube"`
	Region      string        `json:"region,omitempty"`
	Months      []month.Month `json:"months"`
	N           int           `json:"n"`
	Total       int           `json:"total"`
	CapturedPct float64       `json:"captured_pct"`
	Items       []HotspotItem `json:"items"`
}

type Series struct {
	Unit   string `json:"unit"`
	Counts []int  `json:"counts"`
	Total  int    `json:"total"`
}

type CountsResult struct {
	Cube   string        `json:"cube"`
	Region string        `json:"region,omitempty"`
	Months []month.Month `json:"months"`
	Series []Series      `json:"series"`
}

type WindowStat struct {
	Label        string        `json:"label"`
	Months       []month.Month `json:"months"`
	Hotspots     []string      `json:"hotspots"`
	CapturedPct  float64       `json:"captured_pct"`
	Prediction   []month.Month `json:"prediction,omitempty"`
	PredictedPct float64       `json:"predicted_pct"`
	RBO          float64       `json:"rbo"`
	F1           float64       `json:"f1"`
	Cosine       float64       `json:"cosine"`
	Gini         float64       `json:"gini"`
}

type Frequency struct {
	Unit  string  `json:"unit"`
	Count int     `json:"count"`
	Pct   float64 `json:"pct"`
}

type RepetitionResult struct {
	Cube         string       `json:"cube"`
	Region       string       `json:"region,omitempty"`
	N            int          `json:"n"`
	Observations int          `json:"observations"`
	Windows      []WindowStat `json:"windows"`
	Frequency    []Frequency  `json:"frequency"`
}

type RegionResult struct {
	Name    string  `json:"name"`
	AreaKm2 float64 `json:"area_km2"`
}

type KindStatus struct {
	Kind  string        `json:"kind"`
	State string        `json:"state"`
	Cube  string        `json:"cube,omitempty"`
	Built string        `json:"built_at,omitempty"`
	Stats *BuildSummary `json:"stats,omitempty"`
}

type BuildSummary struct {
	RunID     string `json:"run_id"`
	Incidents int    `json:"incidents"`
	Matched   int    `json:"matched"`
	Unmatched int    `json:"unmatched"`
	Entries   int    `json:"entries"`
}

type StatusReport struct {
	Latest string       `json:"latest,omitempty"`
	Kinds  []KindStatus `json:"kinds"`
}

func FromHotspots(r engine.HotspotResponse) HotspotsResult {
	out := HotspotsResult{
		Cube: r.Key.String(), Region: r.Region, Months: r.Months, N: r.N, Total: r.Total,
		CapturedPct: capturedPct(r.Result),
		Items:       make([]HotspotItem, len(r.Items)),
	}
	for i, it := range r.Items {
		out.Items[i] = HotspotItem{Unit: it.Unit, Count: it.Count, Density: it.Density}
	}
	return out
}

func capturedPct(r hotspot.Result) float64 {
	if r.Total == 0 {
		return 0
	}
	return 100 * float64(r.Captured(len(r.Items))) / float64(r.Total)
}

func FromCounts(r engine.CountsResponse) CountsResult {
	out := CountsResult{Cube: r.Key.String(), Region: r.Region, Months: r.Months, Series: make([]Series, len(r.Series))}
	for i, s := range r.Series {
		out.Series[i] = fromSeries(s)
	}
	return out
}

func fromSeries(s cube.Series) Series { return Series{Unit: s.Unit, Counts: s.Counts, Total: s.Total} }

func FromRepetition(r engine.RepetitionResponse) RepetitionResult {
	out := RepetitionResult{
		Cube: r.Key.String(), Region: r.Region, N: r.N, Observations: r.Observations,
		Windows:   make([]WindowStat, len(r.Windows)),
		Frequency: make([]Frequency, len(r.Frequency)),
	}
	for i, w := range r.Windows {
		out.Windows[i] = fromWindow(w)
	}
	for i, f := range r.Frequency {
		out.Frequency[i] = Frequency{Unit: f.Unit, Count: f.Count, Pct: f.Pct}
	}
	return out
}

func fromWindow(w analysis.WindowStat) WindowStat {
	return WindowStat{
		Label: w.Label, Months: w.Months, Hotspots: w.Hotspots, CapturedPct: w.CapturedPct,
		Prediction: w.Prediction, PredictedPct: w.PredictedPct, RBO: w.RBO, F1: w.F1, Cosine: w.Cosine, Gini: w.Gini,
	}
}
