package factory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	apperrors "github.com/go-i2p/connpool/lib/errors"
)

// DefaultProbeTimeout is how long TCP.Test waits for a read before
// concluding the peer is still there and silent.
const DefaultProbeTimeout = time.Millisecond

// TCP dials plain TCP connections.
type TCP struct {
	// Address is the host:port to dial.
	Address string
	// DialTimeout bounds a single dial. Zero means only ctx bounds it.
	DialTimeout time.Duration
	// KeepAlive is the TCP keep-alive period. Zero uses the system default.
	KeepAlive time.Duration
}

// NewTCP returns a TCP factory for address.
func NewTCP(address string, dialTimeout time.Duration) *TCP {
	return &TCP{Address: address, DialTimeout: dialTimeout}
}

// Create dials a new connection.
func (f *TCP) Create(ctx context.Context) (net.Conn, error) {
	if f.Address == "" {
		return nil, fmt.Errorf("tcp factory: empty address: %w", apperrors.ErrInvalidInput)
	}

	d := net.Dialer{Timeout: f.DialTimeout, KeepAlive: f.KeepAlive}
	conn, err := d.DialContext(ctx, "tcp", f.Address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", f.Address, err)
	}

	log.WithField("address", f.Address).
		WithField("local", conn.LocalAddr().String()).
		Debug("dialed tcp connection")
	return conn, nil
}

// Test reports whether the peer still holds the connection open. It
// performs a short read: a timeout means the connection is alive and
// idle, while EOF, a reset or unsolicited data means it cannot be reused.
func (f *TCP) Test(conn net.Conn) bool {
	if err := conn.SetReadDeadline(time.Now().Add(DefaultProbeTimeout)); err != nil {
		return false
	}
	defer conn.SetReadDeadline(time.Time{})

	var buf [1]byte
	n, err := conn.Read(buf[:])
	if n > 0 {
		log.WithField("address", f.Address).Debug("unsolicited data on idle connection")
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	log.WithField("address", f.Address).WithError(err).Debug("idle connection probe failed")
	return false
}
