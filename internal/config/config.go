// 包 config：集中读取进程级配置；后端模式在启动时确定，运行期不可变
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Mode：数据后端模式
type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

// Config：服务配置快照
type Config struct {
	Mode      Mode
	DataRoot  string
	StaticDir string
	Addr      string
	APIBase   string
	GCP       GCPConfig
	DB        DBConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
}

// GCPConfig：远端模式下的对象存储与 Cloud SQL 实例定位
type GCPConfig struct {
	ProjectID string
	Region    string
	Instance  string
	Bucket    string
	PrivateIP bool
}

// InstanceConnectionName 返回 project:region:instance 形式的实例连接名
func (g GCPConfig) InstanceConnectionName() string {
	return g.ProjectID + ":" + g.Region + ":" + g.Instance
}

type DBConfig struct {
	User     string
	Password string
	Name     string
	// URL 非空时直连该 DSN，跳过 Cloud SQL 连接器（本地开发）
	URL     string
	MaxOpen int
	MaxIdle int
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled bool
	QPS     int
}

// ErrMissingSettings：远端模式缺少必填配置
var ErrMissingSettings = errors.New("missing required settings")

// ErrInvalidAPIBase：API_BASE 不可为根路径
var ErrInvalidAPIBase = errors.New("invalid api base")

// Load：加载 .env 后从进程环境构建配置
// 约束：.env 不存在时静默跳过；已存在的环境变量不被覆盖
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	return FromEnv(os.Getenv)
}

// FromEnv：使用给定的查找函数构建配置，便于测试注入
func FromEnv(getenv func(string) string) (*Config, error) {
	env := func(k, def string) string {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
		return def
	}
	c := &Config{Mode: ModeLocal}
	if strings.EqualFold(getenv("USE_GCP_BACKEND"), "true") {
		c.Mode = ModeGCP
	}
	c.DataRoot = env("DATA_ROOT", ".")
	c.StaticDir = env("STATIC_DIR", c.DataRoot)
	base := strings.Trim(env("API_BASE", "/api"), "/")
	if base == "" {
		// API 与静态文件共用根路径会互相遮蔽
		return nil, errors.Wrap(ErrInvalidAPIBase, "API_BASE must not be the root path")
	}
	c.APIBase = "/" + base
	c.Addr = env("ADDR", "")
	if c.Addr == "" {
		c.Addr = ":" + env("PORT", "8080")
	}

	c.GCP = GCPConfig{
		ProjectID: env("GCP_PROJECT_ID", ""),
		Region:    env("CLOUD_SQL_REGION", ""),
		Instance:  env("CLOUD_SQL_INSTANCE", ""),
		Bucket:    env("GCS_BUCKET_NAME", ""),
		PrivateIP: !strings.EqualFold(env("CLOUD_SQL_PRIVATE_IP", "true"), "false"),
	}
	c.DB = DBConfig{
		User:     env("DB_USER", "postgres"),
		Password: getenv("DB_PASSWORD"),
		Name:     env("DB_NAME", "postgres"),
		URL:      env("DATABASE_URL", ""),
		MaxOpen:  atoiDefault(getenv("PG_MAX_OPEN_CONNS"), 10),
		MaxIdle:  atoiDefault(getenv("PG_MAX_IDLE_CONNS"), 5),
	}
	c.Redis = RedisConfig{
		Enabled:  strings.EqualFold(getenv("STATS_ENABLED"), "true"),
		Addr:     env("REDIS_HOST", "127.0.0.1") + ":" + env("REDIS_PORT", "6379"),
		Password: getenv("REDIS_PASS"),
		DB:       atoiDefault(getenv("REDIS_DB"), 0),
	}
	c.RateLimit = RateLimitConfig{
		Enabled: strings.EqualFold(getenv("RATE_LIMIT_ENABLED"), "true"),
		QPS:     atoiDefault(getenv("RATE_LIMIT_QPS"), 200),
	}

	if c.Mode == ModeGCP {
		if err := c.validateGCP(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// validateGCP：远端模式必填项检查，一次性报告全部缺失项
func (c *Config) validateGCP() error {
	var missing []string
	check := func(name, v string) {
		if v == "" {
			missing = append(missing, name)
		}
	}
	check("GCS_BUCKET_NAME", c.GCP.Bucket)
	if c.DB.URL == "" {
		check("GCP_PROJECT_ID", c.GCP.ProjectID)
		check("CLOUD_SQL_REGION", c.GCP.Region)
		check("CLOUD_SQL_INSTANCE", c.GCP.Instance)
		check("DB_PASSWORD", c.DB.Password)
	}
	if len(missing) > 0 {
		return errors.Wrapf(ErrMissingSettings, "gcp backend: %s", strings.Join(missing, ", "))
	}
	return nil
}

// atoiDefault：解析失败或为负时回退默认值
func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return def
	}
	return n
}
