// 包 config：从环境变量读取运行配置，并据此组装可用月份来源与缓存链
package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"crime-hotspots/internal/availability"
	"crime-hotspots/internal/cube"
	"crime-hotspots/internal/cubecache"
	"crime-hotspots/internal/engine"
	"crime-hotspots/internal/geom"
	"crime-hotspots/internal/incident"
	"crime-hotspots/internal/month"
)

var ErrConfig = errors.New("invalid configuration")

// 文档注释：运行配置
// 背景：各命令共用同一套环境变量；.env 由命令入口先行加载（godotenv），这里只读取进程环境。
// 约束：未设置时使用默认值；已设置但无法解析时返回 ErrConfig，而不是静默回退。
type Config struct {
	DataDir         string
	CacheDir        string
	HistoryMonths   int
	TargetCRS       geom.CRS
	CacheLayers     []string
	RefreshInterval time.Duration
	// dir | police | fixed:YYYY-MM
	Availability    string
	GeographiesFile string
	// csv | postgres
	IncidentSource string
	CSVConcurrency int
	RedisPrefix    string
	RedisTTL       time.Duration
	Addr           string
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrConfig, key, v)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrConfig, key, v)
	}
	return d, nil
}

func Load() (Config, error) {
	c := Config{
		DataDir:         env("DATA_DIR", "data"),
		Availability:    strings.ToLower(env("AVAILABILITY", "dir")),
		IncidentSource:  strings.ToLower(env("INCIDENT_SOURCE", "csv")),
		RedisPrefix:     env("REDIS_PREFIX", "crimehot:"),
		Addr:            env("HTTP_ADDR", ":8080"),
		GeographiesFile: env("GEOGRAPHIES_FILE", "geographies.yaml"),
	}
	c.CacheDir = env("CACHE_DIR", filepath.Join(c.DataDir, "cache"))
	var err error
	if c.HistoryMonths, err = envInt("HISTORY_MONTHS", engine.DefaultHistoryMonths); err != nil {
		return c, err
	}
	if c.HistoryMonths < 1 {
		return c, fmt.Errorf("%w: HISTORY_MONTHS=%d", ErrConfig, c.HistoryMonths)
	}
	if c.CSVConcurrency, err = envInt("CSV_CONCURRENCY", 4); err != nil {
		return c, err
	}
	if c.RefreshInterval, err = envDuration("REFRESH_INTERVAL", engine.DefaultRefreshInterval); err != nil {
		return c, err
	}
	if c.RedisTTL, err = envDuration("REDIS_TTL", 0); err != nil {
		return c, err
	}
	if c.TargetCRS, err = geom.ParseCRS(env("TARGET_CRS", string(geom.BNG))); err != nil {
		return c, fmt.Errorf("%w: TARGET_CRS: %v", ErrConfig, err)
	}
	if !c.TargetCRS.Projected() {
		return c, fmt.Errorf("%w: TARGET_CRS %s is not projected", ErrConfig, c.TargetCRS)
	}
	for _, l := range strings.Split(env("CACHE_LAYERS", "memory,file"), ",") {
		l = strings.ToLower(strings.TrimSpace(l))
		switch l {
		case "":
			continue
		case "memory", "file", "redis", "postgres":
			c.CacheLayers = append(c.CacheLayers, l)
		default:
			return c, fmt.Errorf("%w: unknown cache layer %q", ErrConfig, l)
		}
	}
	switch c.IncidentSource {
	case "csv", "postgres":
	default:
		return c, fmt.Errorf("%w: INCIDENT_SOURCE=%q", ErrConfig, c.IncidentSource)
	}
	if _, err := c.AvailabilitySource(); err != nil {
		return c, err
	}
	return c, nil
}

// Uses：是否启用了某缓存层
func (c Config) Uses(layer string) bool {
	for _, l := range c.CacheLayers {
		if l == layer {
			return true
		}
	}
	return false
}

// 文档注释：可用月份来源
// 背景：police 模式在接口失败时回退到本地目录扫描；fixed 模式用于离线重放。
func (c Config) AvailabilitySource() (availability.Source, error) {
	dir := availability.DirScanner{Dir: c.DataDir}
	switch {
	case c.Availability == "dir":
		return dir, nil
	case c.Availability == "police":
		return availability.WithFallback{Primary: availability.PoliceAPI{}, Fallback: dir}, nil
	case strings.HasPrefix(c.Availability, "fixed:"):
		m, err := month.Parse(strings.TrimPrefix(c.Availability, "fixed:"))
		if err != nil {
			return nil, fmt.Errorf("%w: AVAILABILITY: %v", ErrConfig, err)
		}
		return availability.Fixed{Month: m}, nil
	}
	return nil, fmt.Errorf("%w: AVAILABILITY=%q", ErrConfig, c.Availability)
}

// 文档注释：按 CACHE_LAYERS 顺序组装缓存链
// 约束：启用 redis/postgres 层但未提供连接时返回 ErrConfig；顺序即查找顺序。
func (c Config) CacheStore(db *sql.DB, rc *redis.Client) (*cubecache.Chain, error) {
	var layers []cube.CacheStore
	for _, l := range c.CacheLayers {
		switch l {
		case "memory":
			layers = append(layers, cubecache.NewBlobs(l, cubecache.NewMemory()))
		case "file":
			layers = append(layers, cubecache.NewBlobs(l, cubecache.NewFile(c.CacheDir)))
		case "redis":
			if rc == nil {
				return nil, fmt.Errorf("%w: redis cache layer without client", ErrConfig)
			}
			layers = append(layers, cubecache.NewBlobs(l, cubecache.NewRedis(rc, c.RedisPrefix, c.RedisTTL)))
		case "postgres":
			if db == nil {
				return nil, fmt.Errorf("%w: postgres cache layer without database", ErrConfig)
			}
			layers = append(layers, cubecache.NewBlobs(l, cubecache.NewPostgres(db)))
		}
	}
	return cubecache.NewChain(layers...), nil
}

// 文档注释：按 INCIDENT_SOURCE 构造事件加载器
// 背景：csv 模式按时间线在 DATA_DIR 下发现 street 文件；postgres 模式读取 crime-ingest 导入的 _crime_records。
// 约束：两种模式都只加载时间线内的月份，并投影到 TARGET_CRS。
func (c Config) IncidentLoader(db *sql.DB) (engine.IncidentLoader, error) {
	if c.IncidentSource == "postgres" && db == nil {
		return nil, fmt.Errorf("%w: postgres incident source without database", ErrConfig)
	}
	return func(ctx context.Context, timeline []month.Month) (*incident.Store, error) {
		var src incident.Source
		if c.IncidentSource == "postgres" {
			src = incident.PostgresSource{DB: db, Months: timeline}
		} else {
			paths, err := incident.Discover(c.DataDir, timeline)
			if err != nil {
				return nil, err
			}
			src = incident.CSVFiles{Paths: paths, Concurrency: c.CSVConcurrency}
		}
		return incident.Load(ctx, src, incident.Options{Months: timeline, CRS: c.TargetCRS})
	}, nil
}
