// 包 api：集中注册只读查询路由，主入口挂载到 /api 前缀
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"crime-hotspots/internal/catalog"
	"crime-hotspots/internal/engine"
	"crime-hotspots/internal/hotspot"
	"crime-hotspots/internal/logger"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// 文档注释：错误到状态码的映射
// 约束：校验失败 400；未知类型或辖区 404；首次构建未完成 503（附 Retry-After）；其余 500 且不回显内部错误。
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrInvalidRequest), errors.Is(err, hotspot.ErrInvalidN):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrUnknownKind), errors.Is(err, catalog.ErrRegionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrNotReady):
		status = http.StatusServiceUnavailable
		w.Header().Set("retry-after", "30")
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.L().Error("api_query_error", "path", r.URL.Path, "err", err)
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// params：查询字符串读取器，记录第一个解析错误
type params struct {
	q   url.Values
	err error
}

func (p *params) str(key string) string { return p.q.Get(key) }

func (p *params) intVal(key string, def int) int {
	s := p.q.Get(key)
	if s == "" || p.err != nil {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		p.err = badParam(key, s)
	}
	return n
}

func (p *params) floatVal(key string) float64 {
	s := p.q.Get(key)
	if s == "" || p.err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.err = badParam(key, s)
	}
	return f
}

func (p *params) boolVal(key string) bool {
	s := p.q.Get(key)
	if s == "" || p.err != nil {
		return false
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		p.err = badParam(key, s)
	}
	return b
}

func (p *params) kind() catalog.Kind {
	s := p.q.Get("kind")
	if p.err != nil {
		return catalog.Kind{}
	}
	k, err := catalog.ParseKind(s)
	if err != nil {
		p.err = badParam("kind", s)
	}
	return k
}

func badParam(key, val string) error {
	return &paramError{key: key, val: val}
}

type paramError struct{ key, val string }

func (e *paramError) Error() string { return "bad parameter " + e.key + "=" + strconv.Quote(e.val) }
func (e *paramError) Unwrap() error { return engine.ErrInvalidRequest }

// 文档注释：构建查询路由
// 背景：对应原分析应用的热点、计数、重复性与辖区面积接口；全部只读，直接调用引擎快照。
// 约束：仅支持 GET；lookback 缺省 1；n 与 coverage 二选一，coverage 优先。
func BuildRoutes(eng *engine.Engine) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /hotspots", func(w http.ResponseWriter, r *http.Request) {
		p := &params{q: r.URL.Query()}
		req := engine.HotspotRequest{
			Kind:        p.kind(),
			Force:       p.str("force"),
			Category:    p.str("category"),
			Month:       p.str("month"),
			Lookback:    p.intVal("lookback", 1),
			N:           p.intVal("n", 0),
			Coverage:    p.floatVal("coverage"),
			TieBreak:    p.str("tiebreak"),
			IncludeZero: p.boolVal("include_zero"),
		}
		if p.err != nil {
			writeError(w, r, p.err)
			return
		}
		resp, err := eng.Hotspots(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, FromHotspots(resp))
	})

	mux.HandleFunc("GET /counts", func(w http.ResponseWriter, r *http.Request) {
		p := &params{q: r.URL.Query()}
		req := engine.CountsRequest{
			Kind:     p.kind(),
			Force:    p.str("force"),
			Category: p.str("category"),
			Month:    p.str("month"),
			Lookback: p.intVal("lookback", 1),
		}
		if p.err != nil {
			writeError(w, r, p.err)
			return
		}
		resp, err := eng.Counts(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, FromCounts(resp))
	})

	mux.HandleFunc("GET /repetition", func(w http.ResponseWriter, r *http.Request) {
		p := &params{q: r.URL.Query()}
		req := engine.RepetitionRequest{
			Kind:        p.kind(),
			Force:       p.str("force"),
			Category:    p.str("category"),
			Lookback:    p.intVal("lookback", 1),
			Predict:     p.intVal("predict", 0),
			Step:        p.intVal("step", 0),
			N:           p.intVal("n", 0),
			Coverage:    p.floatVal("coverage"),
			TieBreak:    p.str("tiebreak"),
			Persistence: p.floatVal("persistence"),
		}
		if p.err != nil {
			writeError(w, r, p.err)
			return
		}
		resp, err := eng.Repetition(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, FromRepetition(resp))
	})

	mux.HandleFunc("GET /forces", func(w http.ResponseWriter, r *http.Request) {
		names := eng.Forces()
		if names == nil {
			names = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"forces": names})
	})

	mux.HandleFunc("GET /forces/{name}/area", func(w http.ResponseWriter, r *http.Request) {
		reg, err := eng.Region(r.PathValue("name"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, RegionResult{Name: reg.Name, AreaKm2: reg.AreaKm2})
	})

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Status(eng))
	})

	return mux
}

// Status：各目录类型的生命周期状态与当前快照概要
func Status(eng *engine.Engine) StatusReport {
	var out StatusReport
	if m := eng.Latest(); !m.IsZero() {
		out.Latest = m.String()
	}
	for _, k := range eng.Kinds() {
		ks := KindStatus{Kind: k.String(), State: eng.State(k).String()}
		if snap, err := eng.Snapshot(k); err == nil {
			ks.Cube = snap.Key.String()
			ks.Built = snap.BuiltAt.UTC().Format(time.RFC3339)
			ks.Stats = &BuildSummary{
				RunID:     snap.Stats.RunID,
				Incidents: snap.Stats.Incidents,
				Matched:   snap.Stats.Matched,
				Unmatched: snap.Stats.Unmatched,
				Entries:   snap.Stats.Entries,
			}
		}
		out.Kinds = append(out.Kinds, ks)
	}
	return out
}

// Ready：全部目录类型至少完成过一次构建
func Ready(eng *engine.Engine) bool {
	for _, k := range eng.Kinds() {
		if _, err := eng.Snapshot(k); err != nil {
			return false
		}
	}
	return true
}
