// Package testutil provides loopback backends for testing connection
// factories and pools without external servers.
package testutil

import (
	"net"
	"sync"
	"testing"
	"time"
)

// Handler serves one accepted connection. It owns conn until it returns;
// the backend closes conn afterwards.
type Handler func(conn net.Conn)

// MockBackend is a TCP server on 127.0.0.1 that records every accepted
// connection so tests can inspect or sever them from the server side.
type MockBackend struct {
	mu       sync.Mutex
	listener net.Listener
	handler  Handler
	conns    []net.Conn
	closed   bool
	wg       sync.WaitGroup
}

// NewMockBackend starts a backend on a random port. A nil handler holds
// connections open without reading from them. The backend is closed
// when the test ends.
func NewMockBackend(t testing.TB, handler Handler) *MockBackend {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("testutil: listen: %v", err)
	}

	b := &MockBackend{listener: ln, handler: handler}
	b.wg.Add(1)
	go b.acceptLoop()
	t.Cleanup(b.Close)
	return b
}

// Addr returns the host:port the backend listens on.
func (b *MockBackend) Addr() string {
	return b.listener.Addr().String()
}

func (b *MockBackend) acceptLoop() {
	defer b.wg.Done()
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			return
		}

		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			conn.Close()
			return
		}
		b.conns = append(b.conns, conn)
		b.mu.Unlock()

		if b.handler != nil {
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				defer conn.Close()
				b.handler(conn)
			}()
		}
	}
}

// Accepted returns the number of connections accepted so far.
func (b *MockBackend) Accepted() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// Conn waits for the n-th accepted connection (zero based) and returns
// the server side of it.
func (b *MockBackend) Conn(t testing.TB, n int) net.Conn {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		b.mu.Lock()
		if len(b.conns) > n {
			conn := b.conns[n]
			b.mu.Unlock()
			return conn
		}
		b.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("testutil: connection %d was never accepted", n)
	return nil
}

// DropAll closes the server side of every accepted connection but keeps
// listening, like a backend restart that kills existing sessions.
func (b *MockBackend) DropAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, conn := range b.conns {
		conn.Close()
	}
}

// Close stops listening, drops every connection and waits for handlers
// to return. It is safe to call more than once.
func (b *MockBackend) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.listener.Close()
	b.DropAll()
	b.wg.Wait()
}

// ClosedAddr returns a loopback address with nothing listening on it.
func ClosedAddr(t testing.TB) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("testutil: listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}
