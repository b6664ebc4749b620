package pool

import (
	"time"
)

// State is the ownership state of a pooled connection.
type State int

const (
	// StateIdle means the connection sits in the pool's idle set.
	StateIdle State = iota
	// StateInUse means exactly one caller owns the connection.
	StateInUse
	// StateInvalid means the connection has been destroyed.
	StateInvalid

	// stateReturning marks a released connection under return validation.
	stateReturning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInUse:
		return "in-use"
	case StateInvalid:
		return "invalid"
	case stateReturning:
		return "returning"
	default:
		return "unknown"
	}
}

// PooledConnection wraps a raw connection with pool bookkeeping.
//
// Raw is owned either by the pool or by the single caller that acquired it.
// The accessors are only safe to call while the caller owns the connection.
type PooledConnection[T Connection] struct {
	// Raw is the underlying connection.
	Raw T

	id         string
	createdAt  time.Time
	lastUsedAt time.Time
	generation uint64
	state      State
	pool       *Pool[T]
}

// ID returns the unique identifier assigned when the connection was created.
func (pc *PooledConnection[T]) ID() string { return pc.id }

// CreatedAt returns when the factory created the connection.
func (pc *PooledConnection[T]) CreatedAt() time.Time { return pc.createdAt }

// LastUsedAt returns when the connection was last handed out or returned.
func (pc *PooledConnection[T]) LastUsedAt() time.Time { return pc.lastUsedAt }

// Generation returns the factory generation that created the connection.
func (pc *PooledConnection[T]) Generation() uint64 { return pc.generation }

// State returns the connection state.
func (pc *PooledConnection[T]) State() State { return pc.state }

// expired reports whether the connection exceeded its idle or lifetime
// budget at now. Zero limits are disabled.
func (pc *PooledConnection[T]) expired(now time.Time, idleTimeout, maxLifetime time.Duration) bool {
	if idleTimeout > 0 && now.Sub(pc.lastUsedAt) > idleTimeout {
		return true
	}
	if maxLifetime > 0 && now.Sub(pc.createdAt) > maxLifetime {
		return true
	}
	return false
}
