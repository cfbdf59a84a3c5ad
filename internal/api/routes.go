// 包 api：地理数据 HTTP 接口（图层、用户点位、健康检查、统计）
package api

import (
	"encoding/json"
	"net/http"

	"geo-api/internal/logger"
	"geo-api/internal/stats"
	"geo-api/internal/store"

	"github.com/pkg/errors"
)

const (
	pointsStatName = "user-points"
	maxBodyBytes   = 1 << 20
)

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 API_BASE 前缀
// 方法不匹配由 ServeMux 统一返回 405
func BuildRoutes(b store.Backend, rec *stats.Recorder) *http.ServeMux {
	apiMux := http.NewServeMux()

	apiMux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Mode: b.Mode()})
	})

	for _, l := range store.Layers {
		apiMux.HandleFunc("GET /"+string(l), layerHandler(b, rec, l))
	}

	apiMux.HandleFunc("GET /user-points", func(w http.ResponseWriter, r *http.Request) {
		fc, err := b.ListPoints(r.Context())
		if err != nil {
			logger.L().Error("list_points_failed", "mode", b.Mode(), "err", err)
			writeError(w, http.StatusInternalServerError, "Database query failed")
			return
		}
		countRequest(r, rec, pointsStatName)
		writeJSON(w, http.StatusOK, fc)
	})

	apiMux.HandleFunc("POST /user-points", func(w http.ResponseWriter, r *http.Request) {
		req := decodePoint(w, r)
		id, err := b.CreatePoint(r.Context(), req.Notes, req.Lat, req.Lon)
		if err != nil {
			status, msg := createErrorResponse(err)
			if status >= http.StatusInternalServerError {
				logger.L().Error("create_point_failed", "mode", b.Mode(), "err", err)
			}
			writeError(w, status, msg)
			return
		}
		logger.L().Info("point_created", "id", id, "mode", b.Mode(), "ip", clientIP(r))
		writeJSON(w, http.StatusCreated, createPointResponse{Message: createdMessage(b.Mode()), ID: id})
	})

	apiMux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		t, err := rec.Get(r.Context())
		if err != nil {
			logger.L().Warn("stats_read_failed", "err", err)
		}
		writeJSON(w, http.StatusOK, t)
	})

	return apiMux
}

func layerHandler(b store.Backend, rec *stats.Recorder, l store.Layer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fc, err := b.Resolve(r.Context(), l)
		if err != nil {
			if errors.Is(err, store.ErrUnknownLayer) {
				writeError(w, http.StatusNotFound, "Unknown layer")
				return
			}
			logger.L().Error("resolve_layer_failed", "layer", string(l), "mode", b.Mode(), "err", err)
			writeError(w, http.StatusInternalServerError, "Failed to fetch "+l.FileName()+" from storage")
			return
		}
		countRequest(r, rec, string(l))
		writeJSON(w, http.StatusOK, fc)
	}
}

// decodePoint：请求体无法解析时按空对象处理；单个字段类型错误时仅视该字段缺失
func decodePoint(w http.ResponseWriter, r *http.Request) createPointRequest {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&raw); err != nil {
		logger.L().Debug("point_body_invalid", "err", err)
		return createPointRequest{}
	}
	var req createPointRequest
	decodeField(raw, "notes", &req.Notes)
	decodeField(raw, "lat", &req.Lat)
	decodeField(raw, "lon", &req.Lon)
	return req
}

func decodeField(raw map[string]json.RawMessage, name string, dst any) {
	b, ok := raw[name]
	if !ok {
		return
	}
	if err := json.Unmarshal(b, dst); err != nil {
		logger.L().Debug("point_field_invalid", "field", name, "err", err)
	}
}

func createErrorResponse(err error) (int, string) {
	var ve *store.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, store.ErrInsert):
		return http.StatusInternalServerError, "Database insert failed"
	default:
		return http.StatusInternalServerError, "Failed to save point"
	}
}

func createdMessage(mode string) string {
	if mode == "gcp" {
		return "Point added successfully"
	}
	return "Point saved successfully"
}

// 统计失败不影响响应
func countRequest(r *http.Request, rec *stats.Recorder, name string) {
	if err := rec.Incr(r.Context(), name); err != nil {
		logger.L().Debug("stats_incr_failed", "name", name, "err", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
