package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"crime-hotspots/internal/catalog"
	"crime-hotspots/internal/cubecache"
	"crime-hotspots/internal/engine"
	"crime-hotspots/internal/logger"
	"crime-hotspots/internal/migrate"
	"crime-hotspots/internal/utils"
)

// Runtime：各命令共用的已装配依赖
type Runtime struct {
	Config   Config
	Engine   *engine.Engine
	Cache    *cubecache.Chain
	Forces   *catalog.Forces
	Catalogs []*catalog.Catalog
	DB       *sql.DB
	Redis    *redis.Client
}

// 文档注释：按配置装配引擎
// 背景：只有启用 postgres 缓存层或 postgres 事件来源时才连接数据库并建表；只有启用 redis 层时才连接 Redis。
// 约束：任一步失败都会关闭已打开的连接后返回错误；调用方负责 Close。
func Open(ctx context.Context, c Config) (_ *Runtime, err error) {
	rt := &Runtime{Config: c}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()
	l := logger.L()

	if c.Uses("postgres") || c.IncidentSource == "postgres" {
		if !utils.PostgresEnabled() {
			return nil, fmt.Errorf("%w: postgres required but PG_HOST / PG_DSN unset", ErrConfig)
		}
		if rt.DB, err = utils.OpenPostgresFromEnv(); err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err = rt.DB.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		l.Info("db_open_ok")
		if err = migrate.EnsureSchema(ctx, rt.DB); err != nil {
			return nil, err
		}
	}
	if c.Uses("redis") {
		rt.Redis = utils.OpenRedisFromEnv()
		if err = rt.Redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		l.Info("redis_ping_ok")
	}

	g, err := LoadGeographies(c.GeographiesFile)
	if err != nil {
		return nil, err
	}
	if rt.Forces, rt.Catalogs, err = g.Load(ctx, c.TargetCRS); err != nil {
		return nil, err
	}
	for _, cat := range rt.Catalogs {
		l.Info("catalog_ready", "kind", cat.Kind().String(), "units", cat.Len())
	}

	if rt.Cache, err = c.CacheStore(rt.DB, rt.Redis); err != nil {
		return nil, err
	}
	load, err := c.IncidentLoader(rt.DB)
	if err != nil {
		return nil, err
	}
	src, err := c.AvailabilitySource()
	if err != nil {
		return nil, err
	}
	rt.Engine, err = engine.New(engine.Options{
		Store:         rt.Cache,
		Incidents:     load,
		Availability:  src,
		Forces:        rt.Forces,
		HistoryMonths: c.HistoryMonths,
	}, rt.Catalogs...)
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) Close() error {
	var errs []error
	if rt.Redis != nil {
		errs = append(errs, rt.Redis.Close())
	}
	if rt.DB != nil {
		errs = append(errs, rt.DB.Close())
	}
	return errors.Join(errs...)
}
