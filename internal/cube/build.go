package cube

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"crime-hotspots/internal/catalog"
	"crime-hotspots/internal/geom"
	"crime-hotspots/internal/incident"
	"crime-hotspots/internal/logger"
	"crime-hotspots/internal/metrics"
)

var ErrCoordinateSystemMismatch = errors.New("incident and catalog coordinate systems differ")

// minShard：单个分片最少事件数，避免小数据集上的协程开销
const minShard = 4096

// BuildStats：一次空间连接的诊断计数
type BuildStats struct {
	RunID     string
	Incidents int
	// 落入至少一个单元
	Matched int
	// 落在覆盖范围外，被丢弃
	Unmatched int
	// 命中多个单元（行政层级重叠或公共边）
	MultiMatched int
	Entries      int
	Duration     time.Duration
}

type shardResult struct {
	counts    map[Key]int
	matched   int
	unmatched int
	multi     int
}

// 文档注释：空间连接聚合
// 背景：按目录 R-Tree 取候选单元，再做 Even-Odd 点入判定；事件按下标切分为若干分片并发计数，最后合并。
// 计数满足交换律，合并结果与分片方式无关。
// 约束：目录与事件仓坐标系不一致时返回 ErrCoordinateSystemMismatch；
// 划分类目录（六边形/方格）每个事件至多计入一个单元（公共边上的点取目录顺序最前者）；
// 行政层级计入全部命中单元；范围外事件丢弃并计入 BuildStats.Unmatched。
func Build(ctx context.Context, c *catalog.Catalog, s *incident.Store) (*Cube, BuildStats, error) {
	st := BuildStats{RunID: uuid.NewString(), Incidents: s.Len()}
	if c.CRS() != s.CRS() {
		return nil, st, fmt.Errorf("%w: %w: catalog %s, incidents %s", ErrCoordinateSystemMismatch, geom.ErrCRSMismatch, c.CRS(), s.CRS())
	}
	start := time.Now()
	kind := c.Kind()
	logger.L().Info("cube_build_begin", "kind", kind.String(), "run_id", st.RunID, "incidents", st.Incidents)

	all := s.Incidents()
	shards := runtime.NumCPU()
	if n := (len(all) + minShard - 1) / minShard; n < shards {
		shards = n
	}
	if shards < 1 {
		shards = 1
	}
	results := make([]shardResult, shards)
	size := (len(all) + shards - 1) / shards
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < shards; i++ {
		lo := i * size
		hi := min(lo+size, len(all))
		g.Go(func() error {
			r, err := joinShard(gctx, c, all[lo:hi])
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, st, err
	}

	b := NewBuilder(kind)
	for _, r := range results {
		st.Matched += r.matched
		st.Unmatched += r.unmatched
		st.MultiMatched += r.multi
		for k, n := range r.counts {
			b.Add(k, n)
		}
	}
	cb := b.Cube()
	st.Entries = cb.Len()
	st.Duration = time.Since(start)

	metrics.CubeBuildDuration.WithLabelValues(kind.String()).Observe(st.Duration.Seconds())
	metrics.IncidentsJoined.WithLabelValues(kind.String(), "matched").Add(float64(st.Matched))
	metrics.IncidentsJoined.WithLabelValues(kind.String(), "unmatched").Add(float64(st.Unmatched))
	logger.L().Info("cube_build_done",
		"kind", kind.String(),
		"run_id", st.RunID,
		"entries", st.Entries,
		"matched", st.Matched,
		"unmatched", st.Unmatched,
		"multi_matched", st.MultiMatched,
		"duration_ms", st.Duration.Milliseconds(),
	)
	return cb, st, nil
}

func joinShard(ctx context.Context, c *catalog.Catalog, incs []incident.Incident) (shardResult, error) {
	r := shardResult{counts: make(map[Key]int)}
	partition := c.Kind().Partition()
	hits := make([]int, 0, 4)
	for i := range incs {
		if i&0x3ff == 0 {
			if err := ctx.Err(); err != nil {
				return r, err
			}
		}
		inc := &incs[i]
		hits = c.Containing(inc.Point, hits)
		switch {
		case len(hits) == 0:
			r.unmatched++
			continue
		case len(hits) > 1:
			r.multi++
		}
		r.matched++
		if partition {
			hits = hits[:1]
		}
		for _, h := range hits {
			r.counts[Key{Unit: c.Unit(h).ID, Month: inc.Month, Category: inc.Category}]++
		}
	}
	return r, nil
}
