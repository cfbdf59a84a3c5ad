// 包 utils：外部连接工具（Postgres / Cloud SQL / Redis）
package utils

import (
	"geo-api/internal/config"
	"geo-api/internal/logger"

	"github.com/redis/go-redis/v9"
)

// OpenRedis：按配置打开 Redis 客户端；未启用时返回 nil，调用方据此跳过统计
func OpenRedis(c config.RedisConfig) *redis.Client {
	if !c.Enabled || c.Addr == "" {
		return nil
	}
	logger.L().Debug("redis_env", "addr", c.Addr, "db", c.DB)
	return redis.NewClient(&redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
}
