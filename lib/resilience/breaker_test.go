package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/go-i2p/connpool/lib/errors"
)

func testConfig() Config {
	return Config{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		OpenTimeout:      50 * time.Millisecond,
		MaxProbes:        1,
	}
}

func trip(b *Breaker) {
	for i := 0; i < b.cfg.FailureThreshold; i++ {
		b.Failure()
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.FailureThreshold <= 0 || cfg.SuccessThreshold <= 0 || cfg.OpenTimeout <= 0 || cfg.MaxProbes <= 0 {
		t.Errorf("default config has non-positive fields: %+v", cfg)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	b := New("test", Config{})
	if b.Stats().Config != DefaultConfig() {
		t.Errorf("expected defaults, got %+v", b.Stats().Config)
	}
	if b.Name() != "test" {
		t.Errorf("expected name 'test', got %q", b.Name())
	}
	if b.State() != StateClosed {
		t.Errorf("expected closed, got %v", b.State())
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 3
	b := New("test", cfg)

	for i := 0; i < 3; i++ {
		if b.State() == StateOpen {
			t.Fatalf("breaker opened too early at failure %d", i)
		}
		b.Failure()
	}

	if b.State() != StateOpen {
		t.Fatalf("expected open, got %v", b.State())
	}
	err := b.Allow()
	if !errors.Is(err, ErrCircuitOpen) || !errors.Is(err, apperrors.ErrUnavailable) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := New("test", testConfig())
	b.Failure()
	b.Success()
	b.Failure()

	if b.State() != StateClosed {
		t.Error("non-consecutive failures should not trip the breaker")
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := New("test", testConfig())
	trip(b)

	time.Sleep(60 * time.Millisecond)
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open after timeout, got %v", b.State())
	}

	if err := b.Allow(); err != nil {
		t.Fatalf("first probe should be admitted: %v", err)
	}
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("probe limit exceeded, expected rejection, got %v", err)
	}

	b.Success()
	if b.State() != StateClosed {
		t.Errorf("expected closed after successful probe, got %v", b.State())
	}
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	b := New("test", testConfig())
	trip(b)
	time.Sleep(60 * time.Millisecond)

	if err := b.Allow(); err != nil {
		t.Fatalf("probe should be admitted: %v", err)
	}
	b.Failure()

	if b.State() != StateOpen {
		t.Errorf("expected open after failed probe, got %v", b.State())
	}
}

func TestBreakerDo(t *testing.T) {
	b := New("test", testConfig())
	ctx := context.Background()

	if err := b.Do(ctx, func(context.Context) error { return nil }); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	errBackend := errors.New("backend down")
	for i := 0; i < 2; i++ {
		if err := b.Do(ctx, func(context.Context) error { return errBackend }); !errors.Is(err, errBackend) {
			t.Errorf("expected backend error, got %v", err)
		}
	}

	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("open breaker should not run the call")
	}
}

func TestBreakerDoIgnoresCancellation(t *testing.T) {
	b := New("test", testConfig())
	ctx, cancel := context.WithCancel(context.Background())

	err := b.Do(ctx, func(context.Context) error {
		cancel()
		return errors.New("dial aborted")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if b.Stats().Failures != 0 {
		t.Error("cancellation should not count as a backend failure")
	}

	if err := b.Do(ctx, func(context.Context) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled before running, got %v", err)
	}
}

func TestBreakerTripAndReset(t *testing.T) {
	b := New("test", testConfig())
	b.Trip()
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %v", b.State())
	}
	b.Reset()
	if b.State() != StateClosed {
		t.Fatalf("expected closed, got %v", b.State())
	}
	if err := b.Allow(); err != nil {
		t.Errorf("reset breaker should allow: %v", err)
	}
}

func TestBreakerStateChangeCallback(t *testing.T) {
	b := New("test", testConfig())

	changes := make(chan [2]State, 4)
	b.OnStateChange(func(from, to State) {
		changes <- [2]State{from, to}
	})
	trip(b)

	select {
	case got := <-changes:
		if got != [2]State{StateClosed, StateOpen} {
			t.Errorf("unexpected transition %v -> %v", got[0], got[1])
		}
	case <-time.After(time.Second):
		t.Fatal("callback not invoked")
	}
}

func TestBreakerConcurrency(t *testing.T) {
	cfg := Config{FailureThreshold: 100, SuccessThreshold: 10, OpenTimeout: time.Second, MaxProbes: 50}
	b := New("test", cfg)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = b.Allow()
				if n%2 == 0 {
					b.Success()
				} else {
					b.Failure()
				}
			}
		}(i)
	}
	wg.Wait()

	switch b.State() {
	case StateClosed, StateOpen, StateHalfOpen:
	default:
		t.Errorf("unexpected state %v", b.State())
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestBreakerMetrics(t *testing.T) {
	trips := BreakerTrips.Value()
	rejections := BreakerRejections.Value()

	b := New("metrics", testConfig())
	trip(b)
	_ = b.Allow()

	if BreakerTrips.Value() <= trips {
		t.Error("expected trip counter to increase")
	}
	if BreakerRejections.Value() <= rejections {
		t.Error("expected rejection counter to increase")
	}
}
