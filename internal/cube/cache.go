package cube

import (
	"context"
	"errors"
	"fmt"

	"crime-hotspots/internal/catalog"
	"crime-hotspots/internal/incident"
	"crime-hotspots/internal/logger"
	"crime-hotspots/internal/metrics"
	"crime-hotspots/internal/month"
)

// 文档注释：缓存键 (目录类型, 最新可用月份)
// 背景：最新月份前移即产生新键，旧制品不再被读取；失效靠换键而非改写。
type CacheKey struct {
	Kind   catalog.Kind
	Latest month.Month
}

// String：制品名，如 crime_counts_hex-200_2024-06
func (k CacheKey) String() string {
	return "crime_counts_" + k.Kind.String() + "_" + k.Latest.String()
}

// 文档注释：缓存制品存储
// 背景：显式传入而非进程级全局变量，测试可注入内存实现；文件、Redis、Postgres 与链式实现见 cubecache 包。
// 约束：同一键的制品写入后不可变；Read 对损坏制品返回包装 ErrCacheCorrupt 的错误；键不存在时 Read 返回 ErrCacheMiss。
type CacheStore interface {
	Exists(ctx context.Context, key CacheKey) (bool, error)
	Read(ctx context.Context, key CacheKey) (*Cube, error)
	Write(ctx context.Context, key CacheKey, c *Cube) error
}

var ErrCacheMiss = errors.New("cache miss")

// Evicter：可选能力；损坏制品被删除后才能在同一键下重写
type Evicter interface {
	Evict(ctx context.Context, key CacheKey) error
}

// IncidentLoader：仅在缓存未命中时调用
type IncidentLoader func(ctx context.Context) (*incident.Store, error)

// 文档注释：带缓存的构建
// 背景：命中时原样加载制品，跳过事件导入与空间连接；未命中时计算并写回。
// 损坏制品记录日志后按未命中处理，触发重建，不向调用方报错。
// 约束：写回失败只记录日志，本次构建结果仍然返回；目录类型必须与键一致。
func BuildCached(ctx context.Context, store CacheStore, key CacheKey, c *catalog.Catalog, load IncidentLoader) (*Cube, BuildStats, error) {
	if key.Kind != c.Kind() {
		return nil, BuildStats{}, fmt.Errorf("cache key kind %s does not match catalog %s", key.Kind, c.Kind())
	}
	kind := key.Kind.String()
	ok, err := store.Exists(ctx, key)
	if err != nil {
		logger.L().Warn("cache_exists_error", "key", key.String(), "err", err)
	}
	if ok {
		cb, err := store.Read(ctx, key)
		switch {
		case err == nil && cb.Kind() == key.Kind:
			metrics.CubeCacheResults.WithLabelValues(kind, "hit").Inc()
			logger.L().Info("cache_hit", "key", key.String(), "entries", cb.Len())
			return cb, BuildStats{Entries: cb.Len()}, nil
		case err == nil:
			logger.L().Warn("cache_kind_mismatch", "key", key.String(), "artifact_kind", cb.Kind().String())
			metrics.CubeCacheResults.WithLabelValues(kind, "corrupt").Inc()
			evict(ctx, store, key)
		case errors.Is(err, ErrCacheCorrupt):
			logger.L().Warn("cache_corrupt", "key", key.String(), "err", err)
			metrics.CubeCacheResults.WithLabelValues(kind, "corrupt").Inc()
			evict(ctx, store, key)
		case errors.Is(err, ErrCacheMiss):
		default:
			logger.L().Warn("cache_read_error", "key", key.String(), "err", err)
		}
	}
	metrics.CubeCacheResults.WithLabelValues(kind, "miss").Inc()
	logger.L().Info("cache_miss", "key", key.String())

	incs, err := load(ctx)
	if err != nil {
		return nil, BuildStats{}, err
	}
	cb, st, err := Build(ctx, c, incs)
	if err != nil {
		return nil, st, err
	}
	if err := store.Write(ctx, key, cb); err != nil {
		logger.L().Error("cache_write_error", "key", key.String(), "err", err)
	} else {
		logger.L().Info("cache_written", "key", key.String(), "entries", cb.Len())
	}
	return cb, st, nil
}

func evict(ctx context.Context, store CacheStore, key CacheKey) {
	ev, ok := store.(Evicter)
	if !ok {
		return
	}
	if err := ev.Evict(ctx, key); err != nil {
		logger.L().Warn("cache_evict_error", "key", key.String(), "err", err)
	}
}
