package factory

import (
	"context"

	"github.com/go-i2p/connpool/lib/pool"
	"github.com/go-i2p/connpool/lib/resilience"
)

// Probe returns a health probe that opens and immediately closes a
// connection through f. Pass the undecorated factory so probes are not
// rejected by the breaker they are meant to reset.
func Probe[T pool.Connection](f pool.Factory[T]) resilience.ProbeFunc {
	return func(ctx context.Context) error {
		conn, err := f.Create(ctx)
		if err != nil {
			return err
		}
		return conn.Close()
	}
}
