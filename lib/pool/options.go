package pool

import (
	"fmt"
	"time"

	apperrors "github.com/go-i2p/connpool/lib/errors"
)

// DefaultMaxValidationAttempts is the number of consecutive borrow
// validation failures Acquire tolerates before giving up.
const DefaultMaxValidationAttempts = 3

// Options configures a Pool. It is copied by New and never mutated
// afterwards.
type Options struct {
	// MinIdle is the number of live connections the reaper keeps warm.
	// Default: 0
	MinIdle int
	// MaxOpen is the hard ceiling on live connections (idle + in use).
	// Default: 10
	MaxOpen int
	// AcquireTimeout bounds how long Acquire blocks on an exhausted pool.
	// Zero makes Acquire fail fast.
	// Default: 30 seconds
	AcquireTimeout time.Duration
	// IdleTimeout evicts connections idle for longer than this.
	// Zero disables idle eviction.
	// Default: 10 minutes
	IdleTimeout time.Duration
	// MaxLifetime evicts connections older than this regardless of activity.
	// Zero disables lifetime eviction.
	// Default: 1 hour
	MaxLifetime time.Duration
	// ValidateOnBorrow tests idle connections before handing them out.
	ValidateOnBorrow bool
	// ValidateOnReturn tests connections on Release before re-pooling them.
	ValidateOnReturn bool
	// MaxValidationAttempts caps consecutive borrow validation failures
	// within one Acquire.
	// Default: 3
	MaxValidationAttempts int
	// ReapInterval is how often the background reaper runs.
	// Zero disables the background reaper; Reap can still be called.
	// Default: 1 minute
	ReapInterval time.Duration
	// OnError receives failures from background work that has no caller to
	// report to, such as replacement creation by the reaper.
	// If nil, such errors are logged. It runs on the reaper or creation
	// goroutine, so it must not block on the pool and must not call Close.
	// Failures caused by Close itself are not reported.
	OnError func(error)
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MinIdle:               0,
		MaxOpen:               10,
		AcquireTimeout:        30 * time.Second,
		IdleTimeout:           10 * time.Minute,
		MaxLifetime:           time.Hour,
		MaxValidationAttempts: DefaultMaxValidationAttempts,
		ReapInterval:          time.Minute,
	}
}

// Validate checks the options for errors.
func (o Options) Validate() error {
	switch {
	case o.MaxOpen <= 0:
		return fmt.Errorf("pool: max open must be positive, got %d: %w", o.MaxOpen, apperrors.ErrConfiguration)
	case o.MinIdle < 0:
		return fmt.Errorf("pool: min idle must not be negative, got %d: %w", o.MinIdle, apperrors.ErrConfiguration)
	case o.MinIdle > o.MaxOpen:
		return fmt.Errorf("pool: min idle %d exceeds max open %d: %w", o.MinIdle, o.MaxOpen, apperrors.ErrConfiguration)
	case o.AcquireTimeout < 0, o.IdleTimeout < 0, o.MaxLifetime < 0, o.ReapInterval < 0:
		return fmt.Errorf("pool: durations must not be negative: %w", apperrors.ErrConfiguration)
	case o.MaxValidationAttempts < 0:
		return fmt.Errorf("pool: max validation attempts must not be negative: %w", apperrors.ErrConfiguration)
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.MaxValidationAttempts == 0 {
		o.MaxValidationAttempts = DefaultMaxValidationAttempts
	}
	return o
}
