package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoapi_http_requests_total",
		Help: "Total number of HTTP requests by method and status code",
	}, []string{"method", "code"})
	HTTPDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geoapi_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	LayerFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoapi_layer_fetch_total",
		Help: "Total layer resolutions by layer, backend mode and result",
	}, []string{"layer", "mode", "result"})
	LayerFetchDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geoapi_layer_fetch_duration_ms",
		Help:    "Layer resolution duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"mode"})
	PointsWrittenTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoapi_points_written_total",
		Help: "Total user points created by backend mode",
	}, []string{"mode"})
	StorageErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoapi_storage_errors_total",
		Help: "Total storage failures by operation",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPDurationMs)
	prometheus.MustRegister(LayerFetchTotal)
	prometheus.MustRegister(LayerFetchDurationMs)
	prometheus.MustRegister(PointsWrittenTotal)
	prometheus.MustRegister(StorageErrorsTotal)
}

// ObserveHTTP 记录一次 HTTP 请求的状态码与耗时
func ObserveHTTP(method string, code int, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	HTTPDurationMs.Observe(float64(d.Milliseconds()))
}

// ObserveLayerFetch 记录图层解析结果；err 非空时记为 error
func ObserveLayerFetch(layer, mode string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	LayerFetchTotal.WithLabelValues(layer, mode, result).Inc()
	LayerFetchDurationMs.WithLabelValues(mode).Observe(float64(d.Milliseconds()))
}

// 文档注释：返回 Prometheus 指标处理器，在 API 前缀下挂载 /metrics
func Handler() http.Handler { return promhttp.Handler() }
