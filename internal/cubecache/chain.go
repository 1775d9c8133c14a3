package cubecache

import (
	"context"
	"errors"

	"crime-hotspots/internal/cube"
	"crime-hotspots/internal/logger"
)

// 文档注释：链式缓存
// 背景：按顺序查找各层（通常 内存 → 文件 → Redis → Postgres），命中后回填之前未命中的层；写入时写全部层。
// 约束：单层错误只记录日志并跳过该层；所有层都失败时才返回错误。损坏的层在读取时即被删除，以便回填。
type Chain struct {
	list []cube.CacheStore
}

func NewChain(list ...cube.CacheStore) *Chain {
	c := &Chain{}
	for _, s := range list {
		if s != nil {
			c.list = append(c.list, s)
		}
	}
	return c
}

func (c *Chain) Len() int { return len(c.list) }

func (c *Chain) Exists(ctx context.Context, key cube.CacheKey) (bool, error) {
	var errs []error
	for _, s := range c.list {
		ok, err := s.Exists(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			return true, nil
		}
	}
	if len(errs) == len(c.list) && len(errs) > 0 {
		return false, errors.Join(errs...)
	}
	return false, nil
}

func (c *Chain) Read(ctx context.Context, key cube.CacheKey) (*cube.Cube, error) {
	var firstCorrupt error
	for i, s := range c.list {
		cb, err := s.Read(ctx, key)
		switch {
		case err == nil:
			for _, prev := range c.list[:i] {
				if werr := prev.Write(ctx, key, cb); werr != nil {
					logger.L().Warn("chaincache_backfill_error", "key", key.String(), "err", werr)
				}
			}
			return cb, nil
		case errors.Is(err, cube.ErrCacheMiss):
		case errors.Is(err, cube.ErrCacheCorrupt):
			if firstCorrupt == nil {
				firstCorrupt = err
			}
			logger.L().Warn("chaincache_layer_corrupt", "key", key.String(), "err", err)
			if ev, ok := s.(cube.Evicter); ok {
				if eerr := ev.Evict(ctx, key); eerr != nil {
					logger.L().Warn("chaincache_evict_error", "key", key.String(), "err", eerr)
				}
			}
		default:
			logger.L().Warn("chaincache_layer_error", "key", key.String(), "err", err)
		}
	}
	if firstCorrupt != nil {
		return nil, firstCorrupt
	}
	return nil, cube.ErrCacheMiss
}

func (c *Chain) Write(ctx context.Context, key cube.CacheKey, cb *cube.Cube) error {
	var errs []error
	for _, s := range c.list {
		if err := s.Write(ctx, key, cb); err != nil {
			logger.L().Warn("chaincache_write_error", "key", key.String(), "err", err)
			errs = append(errs, err)
		}
	}
	if len(errs) == len(c.list) && len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (c *Chain) Evict(ctx context.Context, key cube.CacheKey) error {
	var errs []error
	for _, s := range c.list {
		if ev, ok := s.(cube.Evicter); ok {
			if err := ev.Evict(ctx, key); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
