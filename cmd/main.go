// 程序入口：读取配置、装配引擎并启动服务；查询路由注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"crime-hotspots/internal/api"
	"crime-hotspots/internal/config"
	"crime-hotspots/internal/logger"
	"crime-hotspots/internal/metrics"
	"crime-hotspots/internal/middleware"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	l.Debug("log_init_ok")

	cfg, err := config.Load()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	l.Debug("config_loaded", "data_dir", cfg.DataDir, "layers", cfg.CacheLayers, "history", cfg.HistoryMonths, "crs", string(cfg.TargetCRS))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := config.Open(ctx, cfg)
	if err != nil {
		l.Error("startup_error", "err", err)
		os.Exit(1)
	}
	defer rt.Close()
	eng := rt.Engine

	// 背景：首次构建在后台进行，构建完成前查询返回 503，/healthz 也返回 503
	go func() {
		if _, err := eng.Refresh(ctx); err != nil {
			l.Error("initial_build_error", "err", err)
		}
	}()
	done := eng.Start(ctx, cfg.RefreshInterval)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		if !api.Ready(eng) {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("content-type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(http.StatusText(status)))
	})
	apiBase := os.Getenv("API_BASE")
	if apiBase == "" {
		apiBase = "/api"
	}
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, middleware.Wrap(api.BuildRoutes(eng))))
	l.Debug("config_api_base", "base", apiBase)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           logger.AccessMiddleware(l)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	l.Info("server_listen", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("server_error", "err", err)
		os.Exit(1)
	}
	<-done
	l.Info("server_stopped")
}
