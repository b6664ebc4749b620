// This file implements a circuit breaker for connection creation.
//
// A pool that keeps dialing a dead backend burns its acquire deadline on
// every attempt. The breaker counts consecutive creation failures and,
// once tripped, rejects dials immediately until a cool-down has passed.
//
// State transitions:
//
//	Closed (dialing) -> Open (rejecting) -> HalfOpen (probing) -> Closed
//	                      ^                      |
//	                      +----------------------+ (if a probe fails)
package resilience

import (
	"context"
	"sync"
	"time"
)

// State is the state of a Breaker.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects every call until OpenTimeout elapses.
	StateOpen
	// StateHalfOpen lets a limited number of probe calls through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures a Breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker.
	FailureThreshold int
	// SuccessThreshold is the number of successful probes needed to close
	// a half-open breaker.
	SuccessThreshold int
	// OpenTimeout is how long the breaker rejects calls before probing.
	OpenTimeout time.Duration
	// MaxProbes caps the calls admitted while half-open.
	MaxProbes int
}

// DefaultConfig returns defaults suited to dialing a network backend.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
		MaxProbes:        3,
	}
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	mu   sync.Mutex
	cfg  Config
	name string

	state     State
	failures  int
	successes int
	probes    int

	openedAt    time.Time
	lastFailure time.Time
	lastChange  time.Time

	onChange func(from, to State)
}

// New creates a closed breaker. Zero fields in cfg take their defaults.
func New(name string, cfg Config) *Breaker {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.MaxProbes <= 0 {
		cfg.MaxProbes = def.MaxProbes
	}

	return &Breaker{
		cfg:        cfg,
		name:       name,
		state:      StateClosed,
		lastChange: time.Now(),
	}
}

// Name returns the breaker's name.
func (b *Breaker) Name() string {
	return b.name
}

// OnStateChange registers fn to run, on its own goroutine, after every
// state transition.
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// State returns the current state. An open breaker whose timeout has
// elapsed reports half-open; the transition itself happens on the next
// Allow.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked(time.Now())
}

func (b *Breaker) stateLocked(now time.Time) State {
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.cfg.OpenTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Allow reports whether a call may proceed. It returns ErrCircuitOpen
// when the call is rejected.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(b.openedAt) < b.cfg.OpenTimeout {
			BreakerRejections.Inc()
			return ErrCircuitOpen
		}
		b.transitionLocked(StateHalfOpen)
		b.probes = 1
		return nil
	case StateHalfOpen:
		if b.probes < b.cfg.MaxProbes {
			b.probes++
			return nil
		}
		BreakerRejections.Inc()
		return ErrCircuitOpen
	}
	return ErrCircuitOpen
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	BreakerSuccesses.Inc()
	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.transitionLocked(StateClosed)
		}
	case StateOpen:
		log.WithField("breaker", b.name).Debug("success recorded while breaker open")
	}
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	BreakerFailures.Inc()
	b.lastFailure = time.Now()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		b.transitionLocked(StateOpen)
	}
}

// transitionLocked moves to next and resets the counters it owns.
func (b *Breaker) transitionLocked(next State) {
	if b.state == next {
		return
	}

	prev := b.state
	b.state = next
	b.lastChange = time.Now()

	switch next {
	case StateClosed:
		b.failures = 0
		b.successes = 0
	case StateOpen:
		b.openedAt = b.lastChange
		b.successes = 0
		BreakerTrips.Inc()
	case StateHalfOpen:
		b.successes = 0
		b.probes = 0
	}
	BreakerState.Set(int64(next))

	log.WithField("breaker", b.name).
		WithField("from", prev.String()).
		WithField("to", next.String()).
		Info("breaker state transition")

	if b.onChange != nil {
		go b.onChange(prev, next)
	}
}

// Do runs fn if the breaker allows it and records the outcome. A failure
// caused by ctx ending is returned as ctx.Err() and not counted against
// the backend.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.Allow(); err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.Failure()
		return err
	}

	b.Success()
	return nil
}

// Trip forces the breaker open.
func (b *Breaker) Trip() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionLocked(StateOpen)
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionLocked(StateClosed)
	b.failures = 0
	b.successes = 0
	b.probes = 0
}

// Stats is a snapshot of a Breaker.
type Stats struct {
	Name        string
	State       State
	Failures    int
	Successes   int
	Probes      int
	LastFailure time.Time
	LastChange  time.Time
	Config      Config
}

// Stats returns a snapshot of the breaker.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		Name:        b.name,
		State:       b.stateLocked(time.Now()),
		Failures:    b.failures,
		Successes:   b.successes,
		Probes:      b.probes,
		LastFailure: b.lastFailure,
		LastChange:  b.lastChange,
		Config:      b.cfg,
	}
}
