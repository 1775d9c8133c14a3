package cubecache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"crime-hotspots/internal/cube"
)

// 文档注释：Redis 制品存储
// 背景：多副本部署时共享同一份制品，避免每个副本各自做一次全量空间连接。
// 约束：以 SETNX 写入保证同键不可变；TTL 为 0 表示不过期，旧键的回收交给 Redis 的淘汰策略或运维。
type Redis struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

func NewRedis(c *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{Client: c, Prefix: prefix, TTL: ttl}
}

func (r *Redis) key(name string) string { return r.Prefix + name }

func (r *Redis) Has(ctx context.Context, name string) (bool, error) {
	n, err := r.Client.Exists(ctx, r.key(name)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Redis) Get(ctx context.Context, name string) ([]byte, error) {
	b, err := r.Client.Get(ctx, r.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cube.ErrCacheMiss
	}
	return b, err
}

func (r *Redis) PutIfAbsent(ctx context.Context, name string, b []byte) error {
	return r.Client.SetNX(ctx, r.key(name), b, r.TTL).Err()
}

func (r *Redis) Delete(ctx context.Context, name string) error {
	return r.Client.Del(ctx, r.key(name)).Err()
}
