// Package netsock is the engine's socket layer: stream connections with a
// switchable blocking mode, a listener with non-blocking accept, and a
// readiness poll over a set of connections.
//
// Network is the injectable entry point. TCPNetwork implements it on top of
// package net; netsocktest provides an in-memory implementation for tests.
package netsock

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

var (
	// ErrWouldBlock is returned by non-blocking calls that have nothing to do.
	ErrWouldBlock = errors.New("netsock: operation would block")
	// ErrClosed is returned by calls on a closed socket.
	ErrClosed = errors.New("netsock: socket closed")
	// ErrUnsupportedConn is returned by Poll for connections it did not create.
	ErrUnsupportedConn = errors.New("netsock: connection not owned by this network")
)

// TransportError describes a failed socket operation.
type TransportError struct {
	Op   string
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("netsock: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("netsock: %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Conn is a stream connection.
type Conn interface {
	// Send writes p in a single call and returns the number of bytes written.
	Send(p []byte) (int, error)
	// Receive copies buffered bytes into p. In non-blocking mode it returns
	// ErrWouldBlock when nothing is buffered. After the peer hangs up and the
	// buffer is drained it returns io.EOF.
	Receive(p []byte) (int, error)
	// SetBlocking switches Receive between blocking and non-blocking mode.
	SetBlocking(blocking bool)
	// Address returns the peer address.
	Address() string
	Close() error
}

// Listener accepts incoming connections without blocking.
type Listener interface {
	// Accept returns the next pending connection or ErrWouldBlock.
	Accept() (Conn, error)
	// Address returns the bound address.
	Address() string
	Close() error
}

// PollResult is the readiness of one connection.
type PollResult struct {
	Readable bool
	HungUp   bool
}

// Network creates listeners and connections and polls them.
type Network interface {
	// Listen binds addr and starts accepting connections.
	Listen(addr string) (Listener, error)
	// Dial connects to addr, blocking for at most timeout. The returned
	// connection is in blocking mode.
	Dial(addr string, timeout time.Duration) (Conn, error)
	// Poll reports readiness for each connection, in order. A zero timeout
	// returns immediately.
	Poll(conns []Conn, timeout time.Duration) ([]PollResult, error)
	// LocalHostName returns the name of this host.
	LocalHostName() string
}

// JoinAddress combines host and port. A host that already carries a port is
// returned unchanged; an empty host means localhost.
func JoinAddress(host string, port int) string {
	if host == "" {
		host = "localhost"
	}
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
