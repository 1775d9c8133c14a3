// 包 utils：从环境变量打开 Postgres 与 Redis 连接
package utils

import (
	"database/sql"
	"net/url"
	"os"
	"strconv"

	_ "github.com/lib/pq"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// PostgresEnabled：是否配置了 Postgres（PG_HOST 或 PG_DSN 任一非空）
func PostgresEnabled() bool {
	return os.Getenv("PG_HOST") != "" || os.Getenv("PG_DSN") != ""
}

// BuildPostgresDSNFromEnv：PG_DSN 优先，否则由 PG_* 拼装
// 约束：用户名与密码做 URL 转义；默认库名 crime
func BuildPostgresDSNFromEnv() string {
	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		return dsn
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   getenv("PG_HOST", "localhost") + ":" + getenv("PG_PORT", "5432"),
		Path:   "/" + getenv("PG_DB", "crime"),
	}
	if pass := os.Getenv("PG_PASSWORD"); pass != "" {
		u.User = url.UserPassword(getenv("PG_USER", "postgres"), pass)
	} else {
		u.User = url.User(getenv("PG_USER", "postgres"))
	}
	q := url.Values{}
	q.Set("sslmode", getenv("PG_SSLMODE", "disable"))
	u.RawQuery = q.Encode()
	return u.String()
}

// OpenPostgresFromEnv：打开连接池；事件读取与制品读写都是少量大查询，默认连接数较小
func OpenPostgresFromEnv() (*sql.DB, error) {
	db, err := sql.Open("postgres", BuildPostgresDSNFromEnv())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(getenvInt("PG_MAX_OPEN_CONNS", 10))
	db.SetMaxIdleConns(getenvInt("PG_MAX_IDLE_CONNS", 5))
	return db, nil
}
