package engine

import (
	"context"
	"time"

	"crime-hotspots/internal/logger"
)

// DefaultRefreshInterval：police.uk 按月发布，每 6 小时检查一次足够
const DefaultRefreshInterval = 6 * time.Hour

// 文档注释：后台定期刷新
// 背景：服务进程内的后台协程，按固定间隔调用 Refresh；错误只记日志，下一轮继续调度，旧快照持续服务。
// 约束：ctx 取消时退出；interval ≤ 0 时使用 DefaultRefreshInterval；返回的通道在协程退出后关闭。
func (e *Engine) Start(ctx context.Context, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	done := make(chan struct{})
	l := logger.L()
	go func() {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				l.Info("refresh_stopped")
				return
			case <-t.C:
			}
			l.Debug("refresh_start", "interval", interval.String())
			advanced, err := e.Refresh(ctx)
			switch {
			case err != nil:
				l.Error("refresh_error", "err", err)
			case advanced:
				l.Info("refresh_done", "latest", e.Latest().String())
			}
		}
	}()
	return done
}
