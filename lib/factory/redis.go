package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPingTimeout bounds the liveness PING in Redis.Test and MySQL.Test.
const DefaultPingTimeout = 2 * time.Second

// Redis creates go-redis clients that each hold exactly one connection,
// so the pool rather than go-redis decides how many sockets are open.
type Redis struct {
	// Options are copied for every client. PoolSize, MinIdleConns and
	// MaxIdleConns are overridden.
	Options redis.Options
	// PingTimeout bounds Test. Zero uses DefaultPingTimeout.
	PingTimeout time.Duration
}

// NewRedis returns a Redis factory for addr.
func NewRedis(addr, password string, db int, dialTimeout time.Duration) *Redis {
	return &Redis{
		Options: redis.Options{
			Addr:        addr,
			Password:    password,
			DB:          db,
			DialTimeout: dialTimeout,
		},
	}
}

// Create opens a client and verifies it with PING.
func (f *Redis) Create(ctx context.Context) (*redis.Client, error) {
	opts := f.Options
	opts.PoolSize = 1
	opts.MinIdleConns = 0
	opts.MaxIdleConns = 1

	client := redis.NewClient(&opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis %s: ping: %w", opts.Addr, err)
	}

	log.WithField("address", opts.Addr).WithField("db", opts.DB).Debug("opened redis client")
	return client, nil
}

// Test pings the client.
func (f *Redis) Test(client *redis.Client) bool {
	timeout := f.PingTimeout
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.WithField("address", f.Options.Addr).WithError(err).Debug("redis ping failed")
		return false
	}
	return true
}
