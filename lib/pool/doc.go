// Package pool provides a generic connection pool for expensive resources
// such as network or database connections.
//
// The pool supports:
//   - A hard MaxOpen ceiling on live connections
//   - LIFO reuse of idle connections and FIFO service of blocked callers
//   - Direct hand-off of released connections to waiting callers
//   - Validation on borrow and on return
//   - Idle timeout, max lifetime and MinIdle warm capacity via a reaper
//   - Generation based invalidation after factory changes
//   - Metrics for pool utilization
//
// # Basic Usage
//
//	factory := pool.FactoryFuncs[net.Conn]{
//	    CreateFunc: func(ctx context.Context) (net.Conn, error) {
//	        var d net.Dialer
//	        return d.DialContext(ctx, "tcp", "localhost:8080")
//	    },
//	}
//
//	opts := pool.DefaultOptions()
//	opts.MaxOpen = 10
//	opts.IdleTimeout = 5 * time.Minute
//
//	p, err := pool.New[net.Conn](factory, opts)
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	conn, err := p.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	_, err = conn.Raw.Write(payload)
//	p.Release(conn, err != nil)
//
// # Errors
//
// Failures are returned as *PoolError and match one of ErrPoolClosed,
// ErrNoAvailableConnection, ErrCreateConnection or ErrTestConnection with
// errors.Is. Releasing a connection the pool does not own panics.
//
// # Metrics
//
// Pool utilization metrics are registered with the metrics package:
//   - connpool_connections_max, connpool_connections_open
//   - connpool_connections_idle, connpool_connections_in_use, connpool_waiters
//   - connpool_acquire_total, connpool_acquire_success_total, connpool_acquire_failed_total
//   - connpool_release_total, connpool_handoff_total
//   - connpool_created_total, connpool_create_failed_total
//   - connpool_destroyed_total, connpool_evicted_total, connpool_validation_fails_total
//   - connpool_acquire_duration_seconds, connpool_create_duration_seconds
package pool
