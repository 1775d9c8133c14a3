// 包 cubecache：计数立方体制品存储（内存、文件、Redis、Postgres 与链式组合）
package cubecache

import (
	"context"
	"errors"
	"fmt"

	"crime-hotspots/internal/cube"
	"crime-hotspots/internal/metrics"
)

// 文档注释：按名称存取的不可变字节制品
// 约束：PutIfAbsent 对已存在的名称不做任何修改；Get 对不存在的名称返回 cube.ErrCacheMiss。
type BlobStore interface {
	Has(ctx context.Context, name string) (bool, error)
	Get(ctx context.Context, name string) ([]byte, error)
	PutIfAbsent(ctx context.Context, name string, b []byte) error
	Delete(ctx context.Context, name string) error
}

// 文档注释：字节存储到立方体缓存的适配器
// 背景：各层只负责字节读写，编解码与指标统一在此完成；名称即 CacheKey.String()。
type Blobs struct {
	Layer string
	Store BlobStore
}

func NewBlobs(layer string, s BlobStore) *Blobs { return &Blobs{Layer: layer, Store: s} }

func (b *Blobs) Exists(ctx context.Context, key cube.CacheKey) (bool, error) {
	ok, err := b.Store.Has(ctx, key.String())
	if err != nil {
		metrics.CacheLayerOps.WithLabelValues(b.Layer, "exists", "error").Inc()
		return false, fmt.Errorf("%s: %w", b.Layer, err)
	}
	return ok, nil
}

func (b *Blobs) Read(ctx context.Context, key cube.CacheKey) (*cube.Cube, error) {
	raw, err := b.Store.Get(ctx, key.String())
	if errors.Is(err, cube.ErrCacheMiss) {
		metrics.CacheLayerOps.WithLabelValues(b.Layer, "read", "miss").Inc()
		return nil, err
	}
	if err != nil {
		metrics.CacheLayerOps.WithLabelValues(b.Layer, "read", "error").Inc()
		return nil, fmt.Errorf("%s: %w", b.Layer, err)
	}
	c, err := cube.Decode(raw)
	if err != nil {
		metrics.CacheLayerOps.WithLabelValues(b.Layer, "read", "corrupt").Inc()
		return nil, fmt.Errorf("%s: %s: %w", b.Layer, key, err)
	}
	metrics.CacheLayerOps.WithLabelValues(b.Layer, "read", "hit").Inc()
	return c, nil
}

func (b *Blobs) Write(ctx context.Context, key cube.CacheKey, c *cube.Cube) error {
	if err := b.Store.PutIfAbsent(ctx, key.String(), cube.Encode(c)); err != nil {
		metrics.CacheLayerOps.WithLabelValues(b.Layer, "write", "error").Inc()
		return fmt.Errorf("%s: %w", b.Layer, err)
	}
	metrics.CacheLayerOps.WithLabelValues(b.Layer, "write", "ok").Inc()
	return nil
}

func (b *Blobs) Evict(ctx context.Context, key cube.CacheKey) error {
	if err := b.Store.Delete(ctx, key.String()); err != nil {
		return fmt.Errorf("%s: %w", b.Layer, err)
	}
	metrics.CacheLayerOps.WithLabelValues(b.Layer, "evict", "ok").Inc()
	return nil
}
