package store

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// 文档注释：内置默认图层
// 背景：本地模式下数据文件缺失时使用，保证演示与测试开箱可用。
// 约束：每次调用返回新构造的集合，调用方可自由持有；用户兴趣点不提供内置数据。
func defaultLayer(l Layer) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	switch l {
	case LayerBoundary:
		fc.Append(polygonFeature(rect(-105.270, 40.010, -105.260, 40.005),
			geojson.Properties{"name": "校园边界", "area": "Campus Boundary"}))
	case LayerBuildings:
		fc.Append(polygonFeature(rect(-105.266, 40.008, -105.265, 40.007),
			geojson.Properties{"name": "图书馆", "type": "Library", "capacity": 500}))
		fc.Append(polygonFeature(rect(-105.268, 40.009, -105.267, 40.008),
			geojson.Properties{"name": "教学楼A", "type": "Academic Building", "capacity": 300}))
	case LayerCountries:
		fc.Append(polygonFeature(rect(-109.05, 41.00, -102.04, 37.00),
			geojson.Properties{"name": "Colorado", "country": "USA", "population": "5.8M"}))
		fc.Append(polygonFeature(rect(-111.05, 45.00, -104.05, 41.00),
			geojson.Properties{"name": "Wyoming", "country": "USA", "population": "0.6M"}))
	}
	return fc
}

// rect 以西北角、东南角构造闭合矩形外环，顶点顺序 NW → NE → SE → SW → NW
func rect(west, north, east, south float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{west, north}, {east, north}, {east, south}, {west, south}, {west, north},
	}}
}

func polygonFeature(p orb.Polygon, props geojson.Properties) *geojson.Feature {
	f := geojson.NewFeature(p)
	f.Properties = props
	return f
}
