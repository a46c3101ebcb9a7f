package engine

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"querydesk/internal/domain"
)

const dialTimeout = 10 * time.Second

// ServerDriver opens client/server databases over the network.
type ServerDriver struct {
	defaultPort int
	open        func(t domain.ServerTarget) (*sql.DB, error)
}

var _ domain.BackendDriver = (*ServerDriver)(nil)

// NewPostgresDriver returns the driver for PostgreSQL servers (pgx).
func NewPostgresDriver() *ServerDriver {
	d := &ServerDriver{defaultPort: 5432}
	d.open = func(t domain.ServerTarget) (*sql.DB, error) {
		cfg, err := pgx.ParseConfig(PostgresDSN(t, d.defaultPort))
		if err != nil {
			return nil, err
		}
		return stdlib.OpenDB(*cfg), nil
	}
	return d
}

// NewMySQLDriver returns the driver for MySQL servers.
func NewMySQLDriver() *ServerDriver {
	d := &ServerDriver{defaultPort: 3306}
	d.open = func(t domain.ServerTarget) (*sql.DB, error) {
		connector, err := mysql.NewConnector(MySQLConfig(t, d.defaultPort))
		if err != nil {
			return nil, err
		}
		return sql.OpenDB(connector), nil
	}
	return d
}

// Open dials the server named by the descriptor. Network and authentication
// failures surface as ConnectionError.
func (s *ServerDriver) Open(ctx context.Context, d domain.Descriptor) (domain.BackendSession, error) {
	if d.Kind != domain.BackendClientServer {
		return nil, domain.ErrConnection(nil, "descriptor %q is not a client-server connection", d.Name)
	}
	db, err := s.open(d.Server)
	if err != nil {
		return nil, domain.ErrConnection(err, "configure %s connection", d.Server.Engine)
	}
	return newSQLSession(ctx, db, hostPort(d.Server, s.defaultPort))
}

// PostgresDSN renders a postgres:// URL for the target.
func PostgresDSN(t domain.ServerTarget, defaultPort int) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   hostPort(t, defaultPort),
		Path:   "/" + t.Database,
	}
	if t.User != "" {
		if t.Password != "" {
			u.User = url.UserPassword(t.User, t.Password)
		} else {
			u.User = url.User(t.User)
		}
	}
	q := url.Values{}
	q.Set("connect_timeout", strconv.Itoa(int(dialTimeout.Seconds())))
	u.RawQuery = q.Encode()
	return u.String()
}

// MySQLConfig builds the go-sql-driver configuration for the target.
func MySQLConfig(t domain.ServerTarget, defaultPort int) *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.User = t.User
	cfg.Passwd = t.Password
	cfg.Net = "tcp"
	cfg.Addr = hostPort(t, defaultPort)
	cfg.DBName = t.Database
	cfg.ParseTime = true
	cfg.Timeout = dialTimeout
	return cfg
}

func hostPort(t domain.ServerTarget, defaultPort int) string {
	port := t.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(t.Host, fmt.Sprint(port))
}
