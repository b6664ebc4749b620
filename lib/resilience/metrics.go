package resilience

import (
	"github.com/go-i2p/connpool/lib/metrics"
)

// Breaker metrics for Prometheus exposition. They aggregate over every
// breaker in the process.
var (
	// BreakerState tracks the state of the most recently transitioned breaker.
	// 0 = closed, 1 = open, 2 = half-open
	BreakerState = metrics.NewGauge(
		"connpool_breaker_state",
		"Current state of the circuit breaker (0=closed, 1=open, 2=half-open)",
	)

	// BreakerTrips counts the number of times breakers have opened.
	BreakerTrips = metrics.NewCounter(
		"connpool_breaker_trips_total",
		"Total number of times circuit breakers have opened",
	)

	BreakerSuccesses = metrics.NewCounter(
		"connpool_breaker_successes_total",
		"Total successful calls through circuit breakers",
	)

	BreakerFailures = metrics.NewCounter(
		"connpool_breaker_failures_total",
		"Total failed calls through circuit breakers",
	)

	// BreakerRejections counts calls rejected without reaching the backend.
	BreakerRejections = metrics.NewCounter(
		"connpool_breaker_rejections_total",
		"Total calls rejected by open circuit breakers",
	)

	// MonitorProbeFailures counts failed backend health probes.
	MonitorProbeFailures = metrics.NewCounter(
		"connpool_monitor_probe_failures_total",
		"Total failed backend health probes",
	)
)
