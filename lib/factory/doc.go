// Package factory provides pool.Factory implementations for common
// backends and decorators that shape how connections get created.
//
// Backends:
//
//	TCP    raw net.Conn to host:port
//	Redis  single-connection go-redis clients
//	MySQL  driver.Conn handles from go-sql-driver/mysql
//
// Decorators wrap any factory:
//
//	Throttled  caps the creation rate with a token bucket
//	Breaker    fails creation fast while the backend is down
//
// Decorators only affect Create. Test is passed through unchanged.
package factory
