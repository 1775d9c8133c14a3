package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CubeBuildDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crimehot_cube_build_seconds",
		Help:    "Count cube spatial join duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"kind"})
	IncidentsJoined = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crimehot_incidents_joined_total",
		Help: "Incidents processed by the spatial join, by result (matched/unmatched)",
	}, []string{"kind", "result"})
	IncidentsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crimehot_incidents_skipped_total",
		Help: "Raw incident records skipped or filtered during ingestion, by reason",
	}, []string{"reason"})
	CubeCacheResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crimehot_cube_cache_total",
		Help: "Cube cache lookups by result (hit/miss/corrupt)",
	}, []string{"kind", "result"})
	CacheLayerOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crimehot_cache_layer_ops_total",
		Help: "Cube artifact store operations by layer, op and result",
	}, []string{"layer", "op", "result"})
	EngineState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crimehot_engine_state",
		Help: "Cache lifecycle state per catalog kind (0 empty, 1 building, 2 cached, 3 stale)",
	}, []string{"kind"})
	QueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crimehot_queries_total",
		Help: "Engine queries by type and status",
	}, []string{"query", "status"})
	QueryDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crimehot_query_duration_ms",
		Help:    "Engine query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"query"})
	AvailabilityRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crimehot_availability_requests_total",
		Help: "Latest-month availability checks by source and result",
	}, []string{"source", "result"})
	AvailabilityDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "crimehot_availability_duration_ms",
		Help:    "police.uk availability call duration in milliseconds",
		Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000},
	})
)

func init() {
	prometheus.MustRegister(CubeBuildDuration)
	prometheus.MustRegister(IncidentsJoined)
	prometheus.MustRegister(IncidentsSkipped)
	prometheus.MustRegister(CubeCacheResults)
	prometheus.MustRegister(CacheLayerOps)
	prometheus.MustRegister(EngineState)
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryDurationMs)
	prometheus.MustRegister(AvailabilityRequestsTotal)
	prometheus.MustRegister(AvailabilityDurationMs)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
