package main

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/go-i2p/connpool/lib/config"
	apperrors "github.com/go-i2p/connpool/lib/errors"
	"github.com/go-i2p/connpool/lib/factory"
	"github.com/go-i2p/connpool/lib/pool"
	"github.com/go-i2p/connpool/lib/resilience"
)

// load describes the borrowing pattern of the probe.
type load struct {
	workers int
	hold    time.Duration
}

// report summarizes a probe run.
type report struct {
	Borrowed    uint64            `json:"borrowed"`
	Failed      uint64            `json:"failed"`
	Timeouts    uint64            `json:"timeouts"`
	MeanAcquire time.Duration     `json:"mean_acquire_ns"`
	Errors      map[string]uint64 `json:"errors,omitempty"`
	Codes       map[int]uint64    `json:"codes,omitempty"`
	LastError   *apperrors.Error  `json:"last_error,omitempty"`
	Stats       pool.Stats        `json:"stats"`
}

// probeTarget builds the factory for the configured target kind and runs
// the load against it until ctx ends.
func probeTarget(ctx context.Context, logger *slog.Logger, cfg *config.Config, l load) (report, error) {
	dialTimeout := time.Duration(cfg.Target.DialTimeout)

	switch cfg.Target.Kind {
	case config.KindTCP:
		return runProbe[net.Conn](ctx, logger, cfg, factory.NewTCP(cfg.Target.Address, dialTimeout), l)
	case config.KindRedis:
		f := factory.NewRedis(cfg.Target.Address, cfg.Target.Password, cfg.Target.DB, dialTimeout)
		return runProbe[*redis.Client](ctx, logger, cfg, f, l)
	case config.KindMySQL:
		f, err := factory.NewMySQL(cfg.Target.DSN, dialTimeout)
		if err != nil {
			return report{}, err
		}
		return runProbe[driver.Conn](ctx, logger, cfg, f, l)
	default:
		return report{}, fmt.Errorf("unsupported target kind %q", cfg.Target.Kind)
	}
}

// decorate applies the creation throttle and circuit breaker configured
// for the target. The returned breaker is nil when disabled.
func decorate[T pool.Connection](cfg *config.Config, base pool.Factory[T]) (pool.Factory[T], *resilience.Breaker) {
	f := base
	if cfg.Target.CreateRate > 0 {
		f = factory.NewThrottled(f, cfg.Target.CreateRate, cfg.Target.CreateBurst)
	}

	var circuit *resilience.Breaker
	if cfg.Breaker.Enabled {
		circuit = resilience.New(cfg.Target.Kind, cfg.BreakerOptions())
		f = factory.NewBreaker(f, circuit)
	}
	return f, circuit
}

func runProbe[T pool.Connection](ctx context.Context, logger *slog.Logger, cfg *config.Config, base pool.Factory[T], l load) (report, error) {
	f, circuit := decorate(cfg, base)

	opts := cfg.PoolOptions()
	opts.OnError = func(err error) {
		logger.Warn("background connection error", "error", err)
	}

	p, err := pool.New(f, opts)
	if err != nil {
		return report{}, err
	}
	defer p.Close()

	if cfg.Breaker.MonitorInterval > 0 {
		m := resilience.NewMonitor(cfg.Target.Kind, factory.Probe(base), circuit, cfg.MonitorOptions())
		m.OnTransition(
			func(err error) {
				logger.Warn("backend unreachable", "error", err)
			},
			func() {
				logger.Info("backend recovered, invalidating pooled connections")
				p.Invalidate()
			},
		)
		m.Start(ctx)
		defer m.Stop()
	}

	r := borrow(ctx, p, l)
	r.Stats = p.Stats()
	pool.UpdateMetrics(r.Stats)
	return r, nil
}

// borrow runs l.workers goroutines that acquire, hold and release
// connections until ctx ends.
func borrow[T pool.Connection](ctx context.Context, p *pool.Pool[T], l load) report {
	var (
		mu     sync.Mutex
		r      = report{Errors: make(map[string]uint64), Codes: make(map[int]uint64)}
		waited time.Duration
		wg     sync.WaitGroup
	)

	for i := 0; i < l.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				start := time.Now()
				pc, err := p.Acquire(ctx)
				elapsed := time.Since(start)

				if err != nil {
					if ctx.Err() != nil {
						return
					}
					mu.Lock()
					r.Failed++
					if apperrors.IsTimeout(err) {
						r.Timeouts++
					}
					r.Errors[errorKind(err)]++
					r.Codes[apperrors.Code(err)]++
					r.LastError = apperrors.FromSentinel(err)
					mu.Unlock()
					if apperrors.IsClosed(err) {
						return
					}
					// Back off so a dead backend is not hammered, longer
					// while the breaker rejects creation outright.
					backoff := 10 * time.Millisecond
					if apperrors.IsUnavailable(err) {
						backoff = 50 * time.Millisecond
					}
					sleep(ctx, backoff)
					continue
				}

				mu.Lock()
				r.Borrowed++
				waited += elapsed
				mu.Unlock()

				sleep(ctx, l.hold)
				p.Release(pc, false)
			}
		}()
	}
	wg.Wait()

	if r.Borrowed > 0 {
		r.MeanAcquire = waited / time.Duration(r.Borrowed)
	}
	return r
}

func errorKind(err error) string {
	var pe *pool.PoolError
	if errors.As(err, &pe) {
		return pe.Kind.String()
	}
	return "other"
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
