package factory

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	apperrors "github.com/go-i2p/connpool/lib/errors"
	"github.com/go-i2p/connpool/lib/pool"
)

// Throttled limits how fast the wrapped factory opens connections. Pool
// warm-up and replacement bursts then reach a recovering backend at a
// bounded rate instead of all at once.
type Throttled[T pool.Connection] struct {
	Factory pool.Factory[T]
	Limiter *rate.Limiter
}

// NewThrottled allows perSecond creations per second with the given burst.
// A non-positive perSecond disables the limit.
func NewThrottled[T pool.Connection](f pool.Factory[T], perSecond float64, burst int) *Throttled[T] {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttled[T]{Factory: f, Limiter: rate.NewLimiter(limit, burst)}
}

// Create waits for a token and then creates a connection. It gives up
// early if ctx would expire before a token is available.
func (t *Throttled[T]) Create(ctx context.Context) (T, error) {
	if err := t.Limiter.Wait(ctx); err != nil {
		var zero T
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, fmt.Errorf("create throttled: %v: %w", err, apperrors.ErrRateLimited)
	}
	return t.Factory.Create(ctx)
}

// Test delegates to the wrapped factory.
func (t *Throttled[T]) Test(conn T) bool {
	return t.Factory.Test(conn)
}
