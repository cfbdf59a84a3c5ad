package utils

import (
	"context"
	"database/sql"
	"net"
	"strings"
	"time"

	"geo-api/internal/config"
	"geo-api/internal/logger"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// OpenPostgres：按 DSN 打开连接池并设置池大小
func OpenPostgres(dsn string, maxOpen, maxIdle int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	return db, nil
}

// cloudSQLDialer：将 lib/pq 的拨号请求转交给 Cloud SQL 连接器
// 约束：忽略 pq 传入的地址，始终连接固定的实例连接名；TLS 由连接器负责，DSN 中 sslmode=disable。
type cloudSQLDialer struct {
	d    *cloudsqlconn.Dialer
	icn  string
	opts []cloudsqlconn.DialOption
}

func (c *cloudSQLDialer) Dial(network, address string) (net.Conn, error) {
	return c.DialContext(context.Background(), network, address)
}

func (c *cloudSQLDialer) DialTimeout(network, address string, timeout time.Duration) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.DialContext(ctx, network, address)
}

func (c *cloudSQLDialer) DialContext(ctx context.Context, _, _ string) (net.Conn, error) {
	return c.d.Dial(ctx, c.icn, c.opts...)
}

// OpenCloudSQL：经 Cloud SQL 连接器打开 Postgres 连接池
// 返回的 dialer 需在连接池关闭之后关闭。
func OpenCloudSQL(ctx context.Context, g config.GCPConfig, dbc config.DBConfig) (*sql.DB, *cloudsqlconn.Dialer, error) {
	d, err := cloudsqlconn.NewDialer(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "cloudsql dialer")
	}
	var opts []cloudsqlconn.DialOption
	if g.PrivateIP {
		opts = append(opts, cloudsqlconn.WithPrivateIP())
	}
	connector, err := pq.NewConnector(CloudSQLDSN(dbc))
	if err != nil {
		_ = d.Close()
		return nil, nil, errors.Wrap(err, "postgres connector")
	}
	connector.Dialer(&cloudSQLDialer{d: d, icn: g.InstanceConnectionName(), opts: opts})
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(dbc.MaxOpen)
	db.SetMaxIdleConns(dbc.MaxIdle)
	logger.L().Debug("cloudsql_open", "instance", g.InstanceConnectionName(), "private_ip", g.PrivateIP, "user", dbc.User, "db", dbc.Name)
	return db, d, nil
}

// CloudSQLDSN：构造 key=value 形式的 DSN，不含主机与端口
func CloudSQLDSN(dbc config.DBConfig) string {
	parts := []string{
		"user=" + quoteDSN(dbc.User),
		"password=" + quoteDSN(dbc.Password),
		"dbname=" + quoteDSN(dbc.Name),
		"sslmode=disable",
	}
	return strings.Join(parts, " ")
}

// quoteDSN 按 libpq 规则对值加单引号并转义反斜杠与单引号
func quoteDSN(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
