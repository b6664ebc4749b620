package factory

import (
	"context"

	"github.com/go-i2p/connpool/lib/pool"
	"github.com/go-i2p/connpool/lib/resilience"
)

// Breaker guards the wrapped factory with a circuit breaker. While the
// circuit is open Create fails at once with resilience.ErrCircuitOpen,
// which the pool reports as a create-connection error.
type Breaker[T pool.Connection] struct {
	Factory pool.Factory[T]
	Circuit *resilience.Breaker
}

// NewBreaker wraps f with circuit.
func NewBreaker[T pool.Connection](f pool.Factory[T], circuit *resilience.Breaker) *Breaker[T] {
	return &Breaker[T]{Factory: f, Circuit: circuit}
}

// Create creates a connection if the circuit allows it and records the
// outcome.
func (b *Breaker[T]) Create(ctx context.Context) (T, error) {
	var conn T
	err := b.Circuit.Do(ctx, func(ctx context.Context) error {
		var err error
		conn, err = b.Factory.Create(ctx)
		return err
	})
	return conn, err
}

// Test delegates to the wrapped factory. Liveness failures of single
// connections say nothing about the backend, so they do not move the
// circuit.
func (b *Breaker[T]) Test(conn T) bool {
	return b.Factory.Test(conn)
}
