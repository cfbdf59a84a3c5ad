// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geo-api/internal/api"
	"geo-api/internal/config"
	"geo-api/internal/logger"
	"geo-api/internal/metrics"
	"geo-api/internal/middleware"
	"geo-api/internal/stats"
	"geo-api/internal/utils"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	// 日志初始化
	l := logger.Setup()
	l.Debug("log_init_ok")
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	l.Debug("config_api_base", "base", cfg.APIBase)
	l.Debug("config_static_dir", "dir", cfg.StaticDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		l.Error("backend_open_error", "mode", string(cfg.Mode), "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			l.Error("backend_close_error", "err", err)
		}
	}()
	l.Info("backend_ready", "mode", backend.Mode())

	rc := utils.OpenRedis(cfg.Redis)
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
	}
	rec := stats.New(rc)

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(backend, rec)
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, apiMux))
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())
	// NOTE: 向前端暴露 API 基础路径与后端模式，避免硬编码
	mux.Handle("/config.js", api.ConfigScript(cfg.APIBase, backend.Mode()))
	mux.Handle("/", api.Static(cfg.StaticDir))

	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler, cfg.APIBase, cfg.RateLimit)
	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("listening", "addr", cfg.Addr)
		errCh <- s.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("listen_error", "err", err)
		}
	case <-ctx.Done():
		l.Info("shutdown_begin")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Shutdown(sctx); err != nil {
			l.Error("shutdown_error", "err", err)
		}
		l.Info("shutdown_done")
	}
}
