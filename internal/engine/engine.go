// 包 engine：管理各目录类型计数立方体的缓存生命周期，并对外提供只读查询
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"crime-hotspots/internal/availability"
	"crime-hotspots/internal/catalog"
	"crime-hotspots/internal/cube"
	"crime-hotspots/internal/incident"
	"crime-hotspots/internal/logger"
	"crime-hotspots/internal/metrics"
	"crime-hotspots/internal/month"
)

var (
	// ErrNotReady：该类型的首次构建尚未完成
	ErrNotReady = errors.New("cube not ready")
	// ErrInvalidRequest：查询参数校验失败
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnknownKind    = errors.New("catalog kind not served")
)

// DefaultHistoryMonths：时间线长度（含最新月份）
const DefaultHistoryMonths = 36

// State：缓存生命周期状态
type State int32

const (
	Empty State = iota
	Building
	Cached
	Stale
)

func (s State) String() string {
	switch s {
	case Building:
		return "building"
	case Cached:
		return "cached"
	case Stale:
		return "stale"
	}
	return "empty"
}

// Snapshot：一次完整构建的不可变结果；查询只读取快照
type Snapshot struct {
	Key      cube.CacheKey
	Cube     *cube.Cube
	Timeline []month.Month
	Stats    cube.BuildStats
	BuiltAt  time.Time
}

// IncidentLoader：加载给定时间线内的事件；仅在缓存未命中时调用
type IncidentLoader func(ctx context.Context, timeline []month.Month) (*incident.Store, error)

// 文档注释：引擎配置
// 背景：缓存存储、事件来源、可用月份来源都显式注入，测试可替换为内存实现。
// 约束：Store 为 nil 时不落缓存，每次都做空间连接；Forces 为 nil 时只支持全国范围查询。
type Options struct {
	Store         cube.CacheStore
	Incidents     IncidentLoader
	Availability  availability.Source
	Forces        *catalog.Forces
	HistoryMonths int
}

type slot struct {
	cat   *catalog.Catalog
	state atomic.Int32
	snap  atomic.Pointer[Snapshot]
}

func (s *slot) setState(st State) {
	s.state.Store(int32(st))
	metrics.EngineState.WithLabelValues(s.cat.Kind().String()).Set(float64(st))
}

type scopeKey struct {
	kind  catalog.Kind
	force string
}

type scope struct {
	ids     []string
	areaKm2 float64
	region  string
}

// 文档注释：聚合引擎
// 背景：每种目录类型一个槽位，保存当前快照指针与生命周期状态；重建在旁路完成后原子替换指针，读者不会看到半成品。
// 约束：同一缓存键的构建经 singleflight 合并为单写者；首次构建完成前该类型的查询返回 ErrNotReady，之后的重建期间继续服务旧快照。
type Engine struct {
	opts  Options
	slots map[catalog.Kind]*slot
	kinds []catalog.Kind
	sf    singleflight.Group

	mu     sync.Mutex
	latest month.Month
	scopes map[scopeKey]*scope
}

func New(opts Options, catalogs ...*catalog.Catalog) (*Engine, error) {
	if opts.Incidents == nil {
		return nil, errors.New("incident loader required")
	}
	if opts.HistoryMonths <= 0 {
		opts.HistoryMonths = DefaultHistoryMonths
	}
	e := &Engine{
		opts:   opts,
		slots:  make(map[catalog.Kind]*slot, len(catalogs)),
		scopes: make(map[scopeKey]*scope),
	}
	for _, c := range catalogs {
		if c == nil {
			continue
		}
		if _, dup := e.slots[c.Kind()]; dup {
			return nil, fmt.Errorf("duplicate catalog kind %s", c.Kind())
		}
		if opts.Forces != nil && opts.Forces.CRS() != c.CRS() {
			return nil, fmt.Errorf("catalog %s crs %s vs forces %s", c.Kind(), c.CRS(), opts.Forces.CRS())
		}
		s := &slot{cat: c}
		s.setState(Empty)
		e.slots[c.Kind()] = s
		e.kinds = append(e.kinds, c.Kind())
	}
	if len(e.kinds) == 0 {
		return nil, errors.New("no catalogs")
	}
	sort.Slice(e.kinds, func(i, j int) bool { return e.kinds[i].String() < e.kinds[j].String() })
	return e, nil
}

// Kinds：服务的目录类型，按名称排序
func (e *Engine) Kinds() []catalog.Kind { return append([]catalog.Kind(nil), e.kinds...) }

// Latest：当前快照对应的最新月份；尚未构建时为零值
func (e *Engine) Latest() month.Month {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest
}

func (e *Engine) State(kind catalog.Kind) State {
	s, ok := e.slots[kind]
	if !ok {
		return Empty
	}
	return State(s.state.Load())
}

// Snapshot：当前快照；首次构建完成前返回 ErrNotReady
func (e *Engine) Snapshot(kind catalog.Kind) (*Snapshot, error) {
	s, ok := e.slots[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	snap := s.snap.Load()
	if snap == nil {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotReady, kind, State(s.state.Load()))
	}
	return snap, nil
}

// Catalog：某类型的单元目录
func (e *Engine) Catalog(kind catalog.Kind) (*catalog.Catalog, error) {
	s, ok := e.slots[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return s.cat, nil
}

// 文档注释：以给定最新月份构建全部类型
// 背景：各类型并发构建，事件只在首个未命中缓存的类型需要时加载一次，并在本轮构建内共享。
// 约束：某一类型失败不影响其他类型的构建，返回全部失败类型的合并错误；失败类型保留旧快照（若有）。
// 至少一个类型成功时最新月份即前移，失败类型在下一次 Refresh 时重试。
func (e *Engine) BuildAll(ctx context.Context, latest month.Month) error {
	timeline, err := month.Window(latest, e.opts.HistoryMonths, true)
	if err != nil {
		return err
	}
	load := sync.OnceValues(func() (*incident.Store, error) {
		return e.opts.Incidents(ctx, timeline)
	})
	errs := make([]error, len(e.kinds))
	var g errgroup.Group
	for i, k := range e.kinds {
		g.Go(func() error {
			errs[i] = e.build(ctx, e.slots[k], timeline, func(context.Context) (*incident.Store, error) { return load() })
			return nil
		})
	}
	_ = g.Wait()
	built := 0
	for _, err := range errs {
		if err == nil {
			built++
		}
	}
	if built > 0 {
		e.mu.Lock()
		e.latest = latest
		e.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (e *Engine) build(ctx context.Context, s *slot, timeline []month.Month, load cube.IncidentLoader) error {
	key := cube.CacheKey{Kind: s.cat.Kind(), Latest: timeline[len(timeline)-1]}
	if cur := s.snap.Load(); cur != nil && cur.Key == key {
		s.setState(Cached)
		return nil
	}
	v, err, shared := e.sf.Do(key.String(), func() (any, error) {
		if s.snap.Load() == nil {
			s.setState(Building)
		}
		t0 := time.Now()
		var (
			cb  *cube.Cube
			st  cube.BuildStats
			err error
		)
		if e.opts.Store != nil {
			cb, st, err = cube.BuildCached(ctx, e.opts.Store, key, s.cat, load)
		} else {
			var incs *incident.Store
			if incs, err = load(ctx); err == nil {
				cb, st, err = cube.Build(ctx, s.cat, incs)
			}
		}
		if err != nil {
			if s.snap.Load() == nil {
				s.setState(Empty)
			}
			return nil, err
		}
		snap := &Snapshot{Key: key, Cube: cb, Timeline: timeline, Stats: st, BuiltAt: time.Now()}
		s.snap.Store(snap)
		s.setState(Cached)
		logger.L().Info("engine_snapshot_swapped", "key", key.String(), "entries", cb.Len(), "duration_ms", time.Since(t0).Milliseconds())
		return snap, nil
	})
	if err != nil {
		logger.L().Error("engine_build_error", "key", key.String(), "err", err)
		return fmt.Errorf("build %s: %w", key, err)
	}
	if shared {
		logger.L().Debug("engine_build_shared", "key", v.(*Snapshot).Key.String())
	}
	return nil
}

// 文档注释：检查可用月份并按需重建
// 背景：最新月份前移时，全部类型先标记为 Stale（逻辑状态，旧快照继续服务），再以新键构建并替换。
// 约束：返回是否发生了月份前移；月份未变且全部已缓存时不做任何工作。
func (e *Engine) Refresh(ctx context.Context) (bool, error) {
	if e.opts.Availability == nil {
		return false, errors.New("no availability source")
	}
	latest, err := e.opts.Availability.LatestMonth(ctx)
	if err != nil {
		return false, err
	}
	cur := e.Latest()
	if !cur.IsZero() && !latest.After(cur) && e.allCached() {
		logger.L().Debug("engine_refresh_noop", "latest", latest.String())
		return false, nil
	}
	advanced := cur.IsZero() || latest.After(cur)
	if advanced && !cur.IsZero() {
		for _, k := range e.kinds {
			if s := e.slots[k]; State(s.state.Load()) == Cached {
				s.setState(Stale)
			}
		}
		logger.L().Info("engine_stale", "from", cur.String(), "to", latest.String())
	}
	if err := e.BuildAll(ctx, latest); err != nil {
		return advanced, err
	}
	return advanced, nil
}

func (e *Engine) allCached() bool {
	for _, k := range e.kinds {
		if State(e.slots[k].state.Load()) != Cached {
			return false
		}
	}
	return true
}
