package utils

import (
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"

	"crime-hotspots/internal/logger"
)

// OpenRedisFromEnv：REDIS_ADDR 优先，否则 REDIS_HOST:REDIS_PORT；REDIS_DB 无法解析时用 0
func OpenRedisFromEnv() *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = getenv("REDIS_HOST", "127.0.0.1") + ":" + getenv("REDIS_PORT", "6379")
	}
	db := 0
	if n, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil && n >= 0 {
		db = n
	}
	logger.L().Debug("redis_env", "addr", addr, "db", db)
	return redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASS"), DB: db})
}
