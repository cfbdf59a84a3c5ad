// 包 stats：按数据集统计请求次数（累计 + 当日），存放于 Redis
package stats

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	totalKey       = "geoapi:stats:total"
	dailyPrefix    = "geoapi:stats:daily:"
	dailyRetention = 48 * time.Hour
)

// Totals：统计快照，键为数据集名（boundary/buildings/countries/user-points）
type Totals struct {
	Total map[string]int64 `json:"total"`
	Today map[string]int64 `json:"today"`
}

// Recorder：rc 为 nil 时所有操作为空操作，统计关闭不影响主流程
type Recorder struct {
	rc  *redis.Client
	now func() time.Time
}

func New(rc *redis.Client) *Recorder {
	return &Recorder{rc: rc, now: time.Now}
}

func (r *Recorder) Enabled() bool { return r != nil && r.rc != nil }

func (r *Recorder) dailyKey() string {
	return dailyPrefix + r.now().UTC().Format("2006-01-02")
}

// Incr：累计与当日计数各加一；当日键保留 48 小时
func (r *Recorder) Incr(ctx context.Context, name string) error {
	if !r.Enabled() {
		return nil
	}
	dk := r.dailyKey()
	pipe := r.rc.TxPipeline()
	pipe.HIncrBy(ctx, totalKey, name, 1)
	pipe.HIncrBy(ctx, dk, name, 1)
	pipe.Expire(ctx, dk, dailyRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "stats incr")
	}
	return nil
}

// Get：读取累计与当日计数
func (r *Recorder) Get(ctx context.Context) (Totals, error) {
	t := Totals{Total: map[string]int64{}, Today: map[string]int64{}}
	if !r.Enabled() {
		return t, nil
	}
	total, err := r.rc.HGetAll(ctx, totalKey).Result()
	if err != nil {
		return t, errors.Wrap(err, "stats total")
	}
	today, err := r.rc.HGetAll(ctx, r.dailyKey()).Result()
	if err != nil {
		return t, errors.Wrap(err, "stats today")
	}
	fill(t.Total, total)
	fill(t.Today, today)
	return t, nil
}

func fill(dst map[string]int64, src map[string]string) {
	for k, v := range src {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			dst[k] = n
		}
	}
}
