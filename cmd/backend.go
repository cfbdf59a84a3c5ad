package main

import (
	"context"
	"database/sql"
	"io"

	"geo-api/internal/config"
	"geo-api/internal/logger"
	"geo-api/internal/objstore"
	"geo-api/internal/store"
	"geo-api/internal/utils"

	"github.com/pkg/errors"
)

// openBackend：按启动配置选择后端，进程生命周期内不再切换
func openBackend(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	if cfg.Mode != config.ModeGCP {
		return store.OpenLocal(cfg.DataRoot)
	}
	l := logger.L()

	gcs, err := objstore.NewGCS(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "gcs client")
	}
	closers := []io.Closer{gcs}

	var db *sql.DB
	if cfg.DB.URL != "" {
		db, err = utils.OpenPostgres(cfg.DB.URL, cfg.DB.MaxOpen, cfg.DB.MaxIdle)
	} else {
		var dialer io.Closer
		db, dialer, err = openCloudSQL(ctx, cfg)
		if dialer != nil {
			closers = append(closers, dialer)
		}
	}
	if err != nil {
		closeAll(closers)
		return nil, errors.Wrap(err, "db open")
	}
	l.Info("db_open_ok")
	// Ping 失败不阻止启动，单次请求失败按 500 处理
	if err := db.PingContext(ctx); err != nil {
		l.Error("db_ping_error", "err", err)
	} else {
		l.Info("db_ping_ok")
	}
	return store.NewRemote(db, gcs, cfg.GCP.Bucket, closers...), nil
}

func openCloudSQL(ctx context.Context, cfg *config.Config) (*sql.DB, io.Closer, error) {
	db, d, err := utils.OpenCloudSQL(ctx, cfg.GCP, cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	return db, d, nil
}

func closeAll(cs []io.Closer) {
	for i := len(cs) - 1; i >= 0; i-- {
		_ = cs[i].Close()
	}
}
