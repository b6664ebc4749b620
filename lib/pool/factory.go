package pool

import "context"

// Connection represents a poolable connection.
type Connection interface {
	// Close closes the connection.
	Close() error
}

// Factory creates raw connections and checks their liveness.
// Implementations must be safe for concurrent use; the pool never
// serializes calls to them.
type Factory[T Connection] interface {
	// Create opens a new connection.
	Create(ctx context.Context) (T, error)
	// Test reports whether conn is still usable.
	Test(conn T) bool
}

// FactoryFuncs adapts a pair of functions to the Factory interface.
// A nil TestFunc treats every connection as healthy.
type FactoryFuncs[T Connection] struct {
	CreateFunc func(ctx context.Context) (T, error)
	TestFunc   func(conn T) bool
}

// Create calls f.CreateFunc.
func (f FactoryFuncs[T]) Create(ctx context.Context) (T, error) {
	return f.CreateFunc(ctx)
}

// Test calls f.TestFunc if set.
func (f FactoryFuncs[T]) Test(conn T) bool {
	if f.TestFunc == nil {
		return true
	}
	return f.TestFunc(conn)
}
