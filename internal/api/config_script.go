package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ConfigScript：前端引导脚本，告知 API 前缀与后端模式
func ConfigScript(apiBase, mode string) http.Handler {
	base, _ := json.Marshal(apiBase)
	m, _ := json.Marshal(mode)
	body := fmt.Sprintf("window.__API_BASE__ = %s;\nwindow.__BACKEND_MODE__ = %s;\n", base, m)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte(body))
	})
}
