package api

// 文档注释：新增点位请求体
// 背景：lat/lon 使用指针区分“缺失”与“0”，赤道与本初子午线上的坐标合法。
// 约束：notes 缺失时按空串处理；多余字段忽略。
type createPointRequest struct {
	Notes string   `json:"notes"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
}

type createPointResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

type healthResponse struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
}

type errorResponse struct {
	Error string `json:"error"`
}
