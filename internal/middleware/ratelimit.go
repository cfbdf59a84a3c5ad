package middleware

import (
	"net/http"
	"strings"

	"geo-api/internal/config"
	"geo-api/internal/logger"

	"github.com/rs/cors"
	"golang.org/x/time/rate"
)

// 文档注释：全局限流中间件（令牌桶）
// 背景：演示服务无鉴权，对入口整体限速，避免对象存储与数据库被突发流量压垮。
// 约束：不排队，超限直接返回 429；qps<=0 视为关闭。
func RateLimit(qps int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if qps <= 0 {
			return next
		}
		lim := rate.NewLimiter(rate.Limit(qps), qps)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.Allow() {
				logger.L().Debug("rate_limited", "path", r.URL.Path, "ip", r.RemoteAddr)
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORS：仅对 apiBase 下的路径放开任意来源，静态资源不带 CORS 头
func CORS(apiBase string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	prefix := strings.TrimSuffix(apiBase, "/") + "/"
	return func(next http.Handler) http.Handler {
		withCORS := c.Handler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, prefix) {
				withCORS.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Wrap：按配置组装中间件链，外层先执行：限流 → CORS → next
func Wrap(next http.Handler, apiBase string, rl config.RateLimitConfig) http.Handler {
	h := CORS(apiBase)(next)
	if rl.Enabled {
		h = RateLimit(rl.QPS)(h)
	}
	return h
}
