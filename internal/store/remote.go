package store

import (
	"context"
	"database/sql"
	"io"
	"time"

	"geo-api/internal/logger"
	"geo-api/internal/metrics"
	"geo-api/internal/objstore"

	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
)

const (
	listPointsSQL  = `SELECT id, notes, ST_AsGeoJSON(location) AS location FROM user_points ORDER BY id`
	insertPointSQL = `INSERT INTO user_points (notes, location) VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326)) RETURNING id`
)

// 文档注释：GCP 后端（GCS 图层 + Cloud SQL/PostGIS 兴趣点）
// 背景：每次请求都回源读取，不做缓存；数据量小、访问量低，换取实现简单与数据实时。
// 约束：连接从连接池获取，仅在单次调用内持有；任何失败立即返回，不重试。
type Remote struct {
	db      *sql.DB
	blobs   objstore.BlobReader
	bucket  string
	closers []io.Closer
}

// NewRemote：Close 时先关闭连接池，再逆序关闭 closers（如 Cloud SQL 拨号器、存储客户端）
func NewRemote(db *sql.DB, blobs objstore.BlobReader, bucket string, closers ...io.Closer) *Remote {
	return &Remote{db: db, blobs: blobs, bucket: bucket, closers: closers}
}

func (r *Remote) Mode() string { return "gcp" }

// Resolve 从 bucket 读取 <layer>.geojson 并解析
func (r *Remote) Resolve(ctx context.Context, layer Layer) (*geojson.FeatureCollection, error) {
	t0 := time.Now()
	fc, err := r.fetchLayer(ctx, layer)
	metrics.ObserveLayerFetch(string(layer), r.Mode(), time.Since(t0), err)
	if err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("resolve_layer").Inc()
		logger.L().Error("layer_fetch_error", "layer", layer, "bucket", r.bucket, "err", err)
		return nil, &Error{Kind: ErrStorageFetch, Op: "resolve_layer", Target: layer.FileName(), Err: err}
	}
	return fc, nil
}

func (r *Remote) fetchLayer(ctx context.Context, layer Layer) (*geojson.FeatureCollection, error) {
	b, err := r.blobs.ReadBlob(ctx, r.bucket, layer.FileName())
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", layer.FileName())
	}
	return fc, nil
}

// ListPoints 按 id 升序读取全部兴趣点
func (r *Remote) ListPoints(ctx context.Context) (*geojson.FeatureCollection, error) {
	fc, err := r.queryPoints(ctx)
	if err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("list_points").Inc()
		logger.L().Error("points_query_error", "err", err)
		return nil, &Error{Kind: ErrQuery, Op: "list_points", Target: "user_points", Err: err}
	}
	return fc, nil
}

func (r *Remote) queryPoints(ctx context.Context) (*geojson.FeatureCollection, error) {
	rows, err := r.db.QueryContext(ctx, listPointsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "query user_points")
	}
	defer rows.Close()
	fc := geojson.NewFeatureCollection()
	for rows.Next() {
		var (
			id    int64
			notes sql.NullString
			loc   string
		)
		if err := rows.Scan(&id, &notes, &loc); err != nil {
			return nil, errors.Wrap(err, "scan user_points")
		}
		g, err := geojson.UnmarshalGeometry([]byte(loc))
		if err != nil {
			return nil, errors.Wrapf(err, "parse location of point %d", id)
		}
		f := geojson.NewFeature(g.Geometry())
		f.Properties["id"] = id
		f.Properties["notes"] = notes.String
		fc.Append(f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate user_points")
	}
	return fc, nil
}

// CreatePoint 在单个事务内插入一行（SRID 4326），返回数据库生成的 id
func (r *Remote) CreatePoint(ctx context.Context, notes string, lat, lon *float64) (int64, error) {
	if err := validatePoint(lat, lon); err != nil {
		return 0, err
	}
	id, err := r.insertPoint(ctx, notes, *lon, *lat)
	if err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("create_point").Inc()
		logger.L().Error("point_insert_error", "err", err)
		return 0, &Error{Kind: ErrInsert, Op: "create_point", Target: "user_points", Err: err}
	}
	metrics.PointsWrittenTotal.WithLabelValues(r.Mode()).Inc()
	logger.L().Debug("point_inserted", "id", id)
	return id, nil
}

func (r *Remote) insertPoint(ctx context.Context, notes string, lon, lat float64) (id int64, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = tx.QueryRowContext(ctx, insertPointSQL, notes, lon, lat).Scan(&id); err != nil {
		return 0, errors.Wrap(err, "insert user_points")
	}
	if err = tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit")
	}
	return id, nil
}

func (r *Remote) Close() error {
	var first error
	if r.db != nil {
		first = r.db.Close()
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
