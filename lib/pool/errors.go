package pool

import (
	"fmt"
	"strings"

	apperrors "github.com/go-i2p/connpool/lib/errors"
)

// Sentinels for each error kind. Use errors.Is against these; they also
// match the generic conditions from lib/errors they wrap.
var (
	// ErrPoolClosed is returned when operating on a closed pool.
	ErrPoolClosed = fmt.Errorf("pool: %w", apperrors.ErrClosed)
	// ErrNoAvailableConnection is returned when the acquire deadline
	// elapses on an exhausted pool.
	ErrNoAvailableConnection = fmt.Errorf("pool: no available connection: %w", apperrors.ErrTimeout)
	// ErrCreateConnection is returned when the factory fails to create a
	// connection.
	ErrCreateConnection = fmt.Errorf("pool: create connection: %w", apperrors.ErrConnection)
	// ErrTestConnection is returned when borrow validation keeps failing.
	ErrTestConnection = fmt.Errorf("pool: test connection: %w", apperrors.ErrUnavailable)
)

// ErrorKind classifies a PoolError.
type ErrorKind int

const (
	KindPoolClosed ErrorKind = iota + 1
	KindNoAvailableConnection
	KindCreateConnection
	KindTestConnection
)

func (k ErrorKind) String() string {
	switch k {
	case KindPoolClosed:
		return "pool closed"
	case KindNoAvailableConnection:
		return "no available connection"
	case KindCreateConnection:
		return "create connection"
	case KindTestConnection:
		return "test connection"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindPoolClosed:
		return ErrPoolClosed
	case KindNoAvailableConnection:
		return ErrNoAvailableConnection
	case KindCreateConnection:
		return ErrCreateConnection
	case KindTestConnection:
		return ErrTestConnection
	default:
		return apperrors.ErrInternal
	}
}

// PoolError is the error returned by pool operations.
type PoolError struct {
	// Kind classifies the failure.
	Kind ErrorKind
	// Attempts is the number of validation attempts for KindTestConnection.
	Attempts int
	// Err is the underlying cause, if any.
	Err error
}

func newError(kind ErrorKind, err error) *PoolError {
	return &PoolError{Kind: kind, Err: err}
}

func (e *PoolError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.sentinel().Error())
	if e.Attempts > 0 {
		fmt.Fprintf(&sb, " after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *PoolError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}
