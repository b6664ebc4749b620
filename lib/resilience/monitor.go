package resilience

import (
	"context"
	"sync"
	"time"
)

// ProbeFunc checks whether a backend is reachable.
type ProbeFunc func(ctx context.Context) error

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	// Interval is the time between probes.
	Interval time.Duration
	// ProbeTimeout bounds a single probe.
	ProbeTimeout time.Duration
}

// DefaultMonitorConfig returns sensible defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:     30 * time.Second,
		ProbeTimeout: 5 * time.Second,
	}
}

// Monitor probes a backend periodically and feeds the results into a
// Breaker. A successful probe after an outage closes the breaker at once
// and fires the recover callback, which is the place to invalidate pooled
// connections opened before the outage.
type Monitor struct {
	mu      sync.Mutex
	cfg     MonitorConfig
	name    string
	probe   ProbeFunc
	breaker *Breaker

	healthy     bool
	lastCheck   time.Time
	lastHealthy time.Time
	lastErr     error

	onDown    func(error)
	onRecover func()

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewMonitor creates a monitor for probe. breaker may be nil.
func NewMonitor(name string, probe ProbeFunc, breaker *Breaker, cfg MonitorConfig) *Monitor {
	def := DefaultMonitorConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = def.ProbeTimeout
	}

	return &Monitor{
		cfg:     cfg,
		name:    name,
		probe:   probe,
		breaker: breaker,
		healthy: true,
	}
}

// OnTransition sets the callbacks for health changes. They run on the
// goroutine that performed the probe.
func (m *Monitor) OnTransition(onDown func(error), onRecover func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDown = onDown
	m.onRecover = onRecover
}

// Start begins probing in the background. It probes once immediately.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	log.WithField("monitor", m.name).
		WithField("interval", m.cfg.Interval).
		Debug("starting backend monitor")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.loop(ctx)
	}()
}

// Stop halts probing and waits for an in-flight probe to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()
	log.WithField("monitor", m.name).Debug("backend monitor stopped")
}

func (m *Monitor) loop(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check runs one probe, updates the breaker and fires callbacks on a
// health change. It returns the probe's error.
func (m *Monitor) Check(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	err := m.probe(probeCtx)
	cancel()

	if err != nil && ctx.Err() != nil {
		// Shutting down; the failure says nothing about the backend.
		return err
	}

	now := time.Now()
	m.mu.Lock()
	wasHealthy := m.healthy
	m.healthy = err == nil
	m.lastCheck = now
	m.lastErr = err
	if err == nil {
		m.lastHealthy = now
	}
	onDown, onRecover := m.onDown, m.onRecover
	m.mu.Unlock()

	if err != nil {
		MonitorProbeFailures.Inc()
		log.WithField("monitor", m.name).WithError(err).Debug("backend probe failed")
		if m.breaker != nil {
			m.breaker.Failure()
		}
		if wasHealthy && onDown != nil {
			onDown(err)
		}
		return err
	}

	if !wasHealthy {
		log.WithField("monitor", m.name).Info("backend recovered")
		if m.breaker != nil {
			m.breaker.Reset()
		}
		if onRecover != nil {
			onRecover()
		}
	} else if m.breaker != nil {
		m.breaker.Success()
	}
	return nil
}

// Healthy reports whether the last probe succeeded.
func (m *Monitor) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy
}

// MonitorStats is a snapshot of a Monitor.
type MonitorStats struct {
	Healthy     bool
	LastCheck   time.Time
	LastHealthy time.Time
	LastError   error
	Breaker     *Stats
}

// Stats returns a snapshot of the monitor and its breaker.
func (m *Monitor) Stats() MonitorStats {
	m.mu.Lock()
	stats := MonitorStats{
		Healthy:     m.healthy,
		LastCheck:   m.lastCheck,
		LastHealthy: m.lastHealthy,
		LastError:   m.lastErr,
	}
	m.mu.Unlock()

	if m.breaker != nil {
		bs := m.breaker.Stats()
		stats.Breaker = &bs
	}
	return stats
}
