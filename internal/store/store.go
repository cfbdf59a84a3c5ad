// 包 store：图层与用户兴趣点的数据访问层；本地文件与 GCP（GCS + Cloud SQL）两种实现共用同一契约
package store

import (
	"context"
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
)

// Layer：静态只读图层名
type Layer string

const (
	LayerBoundary  Layer = "boundary"
	LayerBuildings Layer = "buildings"
	LayerCountries Layer = "countries"
)

// Layers：全部静态图层，按路由注册顺序排列
var Layers = []Layer{LayerBoundary, LayerBuildings, LayerCountries}

// PointsFile：本地模式下用户兴趣点的持久化文件名
const PointsFile = "user_points.geojson"

// FileName 返回图层对应的本地文件名，同时也是对象存储中的 blob 名
func (l Layer) FileName() string { return string(l) + ".geojson" }

// ParseLayer 将名称解析为已知图层
func ParseLayer(name string) (Layer, error) {
	for _, l := range Layers {
		if string(l) == name {
			return l, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownLayer, "%q", name)
}

// Backend：数据后端契约
// 背景：启动时根据模式选择一种实现并注入到路由层，运行期不再分支判断。
// 约束：返回的 FeatureCollection 由调用方只读使用。
type Backend interface {
	// Mode 返回 "local" 或 "gcp"
	Mode() string
	Resolve(ctx context.Context, layer Layer) (*geojson.FeatureCollection, error)
	ListPoints(ctx context.Context) (*geojson.FeatureCollection, error)
	// CreatePoint 校验 lat/lon 后新增一个点并返回其 id
	CreatePoint(ctx context.Context, notes string, lat, lon *float64) (int64, error)
	Close() error
}

// PointID 读取兴趣点要素的 id 属性；文件回读后的数值为 float64，统一转换为整数
func PointID(f *geojson.Feature) int64 {
	if f == nil {
		return 0
	}
	switch v := f.Properties["id"].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

// newPointFeature 构造兴趣点要素；坐标顺序为 [lon, lat]
func newPointFeature(id int64, notes string, lon, lat float64) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{lon, lat})
	f.Properties["id"] = id
	f.Properties["notes"] = notes
	return f
}
