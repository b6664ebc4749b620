package factory

import (
	"context"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	apperrors "github.com/go-i2p/connpool/lib/errors"
)

// MySQL creates raw driver connections to a MySQL server, bypassing
// database/sql's own pool.
type MySQL struct {
	connector   driver.Connector
	addr        string
	pingTimeout time.Duration
}

// NewMySQL parses dsn and returns a factory for it. A positive
// dialTimeout overrides the DSN's timeout parameter.
func NewMySQL(dsn string, dialTimeout time.Duration) (*MySQL, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: parse dsn: %v: %w", err, apperrors.ErrInvalidInput)
	}
	if dialTimeout > 0 {
		cfg.Timeout = dialTimeout
	}
	return NewMySQLFromConfig(cfg)
}

// NewMySQLFromConfig returns a factory for a prepared driver configuration.
func NewMySQLFromConfig(cfg *mysql.Config) (*MySQL, error) {
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql: %v: %w", err, apperrors.ErrConfiguration)
	}
	return &MySQL{
		connector:   connector,
		addr:        cfg.Addr,
		pingTimeout: DefaultPingTimeout,
	}, nil
}

// Create opens a new server connection.
func (f *MySQL) Create(ctx context.Context) (driver.Conn, error) {
	conn, err := f.connector.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("mysql %s: connect: %w", f.addr, err)
	}
	log.WithField("address", f.addr).Debug("opened mysql connection")
	return conn, nil
}

// Test checks the connection with the driver's validity flag and a ping.
func (f *MySQL) Test(conn driver.Conn) bool {
	if v, ok := conn.(driver.Validator); ok && !v.IsValid() {
		return false
	}
	pinger, ok := conn.(driver.Pinger)
	if !ok {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.pingTimeout)
	defer cancel()
	if err := pinger.Ping(ctx); err != nil {
		log.WithField("address", f.addr).WithError(err).Debug("mysql ping failed")
		return false
	}
	return true
}
