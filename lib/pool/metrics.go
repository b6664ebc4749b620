package pool

import "github.com/go-i2p/connpool/lib/metrics"

// Pool utilization metrics. They aggregate over every pool in the process.
var (
	// PoolConnectionsMax is the configured maximum of the last pool created.
	PoolConnectionsMax = metrics.NewGauge(
		"connpool_connections_max",
		"Maximum number of live connections",
	)
	// PoolConnectionsOpen is the current number of live connections.
	PoolConnectionsOpen = metrics.NewGauge(
		"connpool_connections_open",
		"Current number of live connections",
	)
	// PoolConnectionsIdle is the current number of idle connections.
	PoolConnectionsIdle = metrics.NewGauge(
		"connpool_connections_idle",
		"Current number of idle connections in the pool",
	)
	// PoolConnectionsInUse is the number of connections currently in use.
	PoolConnectionsInUse = metrics.NewGauge(
		"connpool_connections_in_use",
		"Number of connections currently in use",
	)
	// PoolWaiters is the number of blocked Acquire calls.
	PoolWaiters = metrics.NewGauge(
		"connpool_waiters",
		"Number of Acquire calls waiting for a connection",
	)
	PoolAcquireTotal = metrics.NewCounter(
		"connpool_acquire_total",
		"Total number of connection acquire attempts",
	)
	PoolAcquireSuccessTotal = metrics.NewCounter(
		"connpool_acquire_success_total",
		"Total number of successful connection acquires",
	)
	PoolAcquireFailedTotal = metrics.NewCounter(
		"connpool_acquire_failed_total",
		"Total number of failed connection acquires",
	)
	PoolReleaseTotal = metrics.NewCounter(
		"connpool_release_total",
		"Total number of connection releases",
	)
	// PoolHandoffTotal counts connections passed directly to a waiter.
	PoolHandoffTotal = metrics.NewCounter(
		"connpool_handoff_total",
		"Total number of connections handed directly to waiters",
	)
	PoolCreatedTotal = metrics.NewCounter(
		"connpool_created_total",
		"Total number of connections created by the factory",
	)
	PoolCreateFailedTotal = metrics.NewCounter(
		"connpool_create_failed_total",
		"Total number of failed connection creations",
	)
	PoolDestroyedTotal = metrics.NewCounter(
		"connpool_destroyed_total",
		"Total number of connections destroyed",
	)
	PoolEvictedTotal = metrics.NewCounter(
		"connpool_evicted_total",
		"Total number of idle connections evicted by the reaper",
	)
	PoolValidationFailsTotal = metrics.NewCounter(
		"connpool_validation_fails_total",
		"Total number of connections that failed validation",
	)
	// PoolAcquireLatency tracks time spent acquiring connections.
	PoolAcquireLatency = metrics.NewHistogram(
		"connpool_acquire_duration_seconds",
		"Time spent acquiring a connection from the pool",
		metrics.DefaultLatencyBuckets,
	)
	// PoolCreateLatency tracks time spent in the factory's Create.
	PoolCreateLatency = metrics.NewHistogram(
		"connpool_create_duration_seconds",
		"Time spent creating a connection",
		metrics.DefaultLatencyBuckets,
	)
)

// UpdateMetrics updates the pool gauges from Stats.
func UpdateMetrics(stats Stats) {
	PoolConnectionsMax.Set(int64(stats.MaxOpen))
	PoolConnectionsOpen.Set(int64(stats.NumOpen))
	PoolConnectionsIdle.Set(int64(stats.NumIdle))
	PoolConnectionsInUse.Set(int64(stats.NumInUse))
	PoolWaiters.Set(int64(stats.NumWaiting))
}
