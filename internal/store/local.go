package store

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"geo-api/internal/logger"
	"geo-api/internal/metrics"

	"github.com/paulmach/orb/geojson"
)

// 文档注释：本地文件后端
// 背景：启动时一次性加载图层与兴趣点到内存，之后图层只读；兴趣点新增后整文件重写。
// 约束：所有对兴趣点集合的读写经同一互斥锁串行化，id 分配、追加与落盘构成一个临界区。
type Local struct {
	root       string
	layers     map[Layer]*geojson.FeatureCollection
	pointsPath string

	mu     sync.Mutex
	points *geojson.FeatureCollection
}

// OpenLocal：从 root 目录加载全部图层与兴趣点
// 约束：文件缺失回退到内置默认（兴趣点为空集合）；文件存在但无法解析时返回错误，启动失败。
func OpenLocal(root string) (*Local, error) {
	s := &Local{
		root:       root,
		layers:     make(map[Layer]*geojson.FeatureCollection, len(Layers)),
		pointsPath: filepath.Join(root, PointsFile),
	}
	for _, l := range Layers {
		fc, fromFile, err := ReadLayer(root, l)
		if err != nil {
			logger.L().Error("local_layer_load_error", "layer", l, "err", err)
			return nil, err
		}
		source := "default"
		if fromFile {
			source = "file"
		}
		logger.L().Info("local_layer_loaded", "layer", l, "source", source, "features", len(fc.Features))
		s.layers[l] = fc
	}
	pts, found, err := readCollection(s.pointsPath)
	if err != nil {
		logger.L().Error("local_points_load_error", "path", s.pointsPath, "err", err)
		return nil, err
	}
	if !found {
		pts = geojson.NewFeatureCollection()
	}
	s.points = pts
	logger.L().Info("local_points_loaded", "path", s.pointsPath, "found", found, "features", len(pts.Features))
	return s, nil
}

func (s *Local) Mode() string { return "local" }

// Resolve 返回启动时加载的图层，不重新读盘
func (s *Local) Resolve(ctx context.Context, layer Layer) (*geojson.FeatureCollection, error) {
	t0 := time.Now()
	fc, ok := s.layers[layer]
	if !ok {
		err := &Error{Kind: ErrUnknownLayer, Op: "resolve_layer", Target: string(layer), Err: ErrUnknownLayer}
		metrics.ObserveLayerFetch(string(layer), s.Mode(), time.Since(t0), err)
		return nil, err
	}
	metrics.ObserveLayerFetch(string(layer), s.Mode(), time.Since(t0), nil)
	return fc, nil
}

// ListPoints 返回当前集合的快照；要素本身追加后不再修改，可共享引用
func (s *Local) ListPoints(ctx context.Context) (*geojson.FeatureCollection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := geojson.NewFeatureCollection()
	out.Features = append(make([]*geojson.Feature, 0, len(s.points.Features)), s.points.Features...)
	return out, nil
}

// CreatePoint：分配 max(id)+1，追加并整文件重写
// 约束：落盘失败时回滚内存追加，保证内存与文件一致，并返回 ErrLocalPersist。
func (s *Local) CreatePoint(ctx context.Context, notes string, lat, lon *float64) (int64, error) {
	if err := validatePoint(lat, lon); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var maxID int64
	for _, f := range s.points.Features {
		if id := PointID(f); id > maxID {
			maxID = id
		}
	}
	id := maxID + 1
	n := len(s.points.Features)
	s.points.Append(newPointFeature(id, notes, *lon, *lat))
	if err := writeCollection(s.pointsPath, s.points); err != nil {
		s.points.Features = s.points.Features[:n]
		metrics.StorageErrorsTotal.WithLabelValues("local_persist").Inc()
		logger.L().Error("local_points_persist_error", "path", s.pointsPath, "id", id, "err", err)
		return 0, &Error{Kind: ErrLocalPersist, Op: "create_point", Target: PointsFile, Err: err}
	}
	metrics.PointsWrittenTotal.WithLabelValues(s.Mode()).Inc()
	logger.L().Debug("local_point_created", "id", id)
	return id, nil
}

func (s *Local) Close() error { return nil }
