// Package netsocktest provides an in-memory netsock.Network for tests.
//
// Listeners are keyed by port only, so a host bound to ":4325" is reachable
// as "localhost:4325". Connections come in pairs; bytes sent on one side are
// buffered on the other until received. Every Send and Poll call is counted.
package netsocktest

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/vovakirdan/bread/internal/netsock"
)

var (
	// ErrRefused is returned by Dial when nothing listens on the port.
	ErrRefused = errors.New("connection refused")
	// ErrAddrInUse is returned by Listen when the port is taken.
	ErrAddrInUse = errors.New("address already in use")
)

// Network is an in-memory netsock.Network.
type Network struct {
	mu        sync.Mutex
	listeners map[string]*Listener
	polls     int
	nextPort  int

	// ListenErr, when set, is returned by every Listen call.
	ListenErr error
	// DialErr, when set, is returned by every Dial call.
	DialErr error
	// HostName is returned by LocalHostName.
	HostName string
}

// New creates an empty in-memory network.
func New() *Network {
	return &Network{
		listeners: make(map[string]*Listener),
		nextPort:  50000,
		HostName:  "testhost",
	}
}

// LocalHostName implements netsock.Network.
func (n *Network) LocalHostName() string {
	return n.HostName
}

// Listen implements netsock.Network.
func (n *Network) Listen(addr string) (netsock.Listener, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, &netsock.TransportError{Op: "resolve", Addr: addr, Err: err}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.ListenErr != nil {
		return nil, &netsock.TransportError{Op: "listen", Addr: addr, Err: n.ListenErr}
	}
	if _, taken := n.listeners[port]; taken {
		return nil, &netsock.TransportError{Op: "listen", Addr: addr, Err: ErrAddrInUse}
	}
	if host == "" {
		host = "0.0.0.0"
	}

	l := &Listener{net: n, port: port, addr: net.JoinHostPort(host, port)}
	n.listeners[port] = l
	return l, nil
}

// Dial implements netsock.Network. The timeout is ignored.
func (n *Network) Dial(addr string, _ time.Duration) (netsock.Conn, error) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, &netsock.TransportError{Op: "resolve", Addr: addr, Err: err}
	}

	n.mu.Lock()
	if n.DialErr != nil {
		n.mu.Unlock()
		return nil, &netsock.TransportError{Op: "connect", Addr: addr, Err: n.DialErr}
	}
	l, ok := n.listeners[port]
	if !ok {
		n.mu.Unlock()
		return nil, &netsock.TransportError{Op: "connect", Addr: addr, Err: ErrRefused}
	}
	n.nextPort++
	peerAddr := fmt.Sprintf("127.0.0.1:%d", n.nextPort)
	n.mu.Unlock()

	client, server := Pipe(net.JoinHostPort("127.0.0.1", port), peerAddr)
	client.blocking = true
	l.push(server)
	return client, nil
}

// Poll implements netsock.Network.
func (n *Network) Poll(conns []netsock.Conn, _ time.Duration) ([]netsock.PollResult, error) {
	n.mu.Lock()
	n.polls++
	n.mu.Unlock()

	results := make([]netsock.PollResult, len(conns))
	for i, c := range conns {
		fc, ok := c.(*Conn)
		if !ok {
			return nil, &netsock.TransportError{Op: "poll", Addr: c.Address(), Err: netsock.ErrUnsupportedConn}
		}
		results[i] = fc.poll()
	}
	return results, nil
}

// Polls returns how many times Poll has been called.
func (n *Network) Polls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.polls
}

// Listening reports whether something is bound to port.
func (n *Network) Listening(port string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.listeners[port]
	return ok
}

func (n *Network) remove(port string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.listeners, port)
}

// Listener is an in-memory netsock.Listener.
type Listener struct {
	net  *Network
	port string
	addr string

	mu      sync.Mutex
	pending []*Conn
	closed  bool

	// AcceptErr, when set, is returned by every Accept call.
	AcceptErr error
}

func (l *Listener) push(c *Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		c.HangUp()
		return
	}
	l.pending = append(l.pending, c)
}

// Accept implements netsock.Listener.
func (l *Listener) Accept() (netsock.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, &netsock.TransportError{Op: "accept", Addr: l.addr, Err: netsock.ErrClosed}
	}
	if l.AcceptErr != nil {
		return nil, &netsock.TransportError{Op: "accept", Addr: l.addr, Err: l.AcceptErr}
	}
	if len(l.pending) == 0 {
		return nil, netsock.ErrWouldBlock
	}
	c := l.pending[0]
	l.pending = l.pending[1:]
	return c, nil
}

// Address implements netsock.Listener.
func (l *Listener) Address() string {
	return l.addr
}

// Close implements netsock.Listener.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.net.remove(l.port)
	return nil
}

// Conn is one end of an in-memory connection.
type Conn struct {
	addr string
	peer *Conn

	mu       sync.Mutex
	inbound  []byte
	sends    [][]byte
	closed   bool
	hungUp   bool
	blocking bool

	// SendErr, when set, is returned by every Send call.
	SendErr error
	// ReceiveErr, when set, is returned by Receive once buffered bytes are
	// drained, and the connection polls as readable.
	ReceiveErr error
}

// Pipe creates a connected pair. Each end reports the other's address.
func Pipe(clientSees, serverSees string) (client, server *Conn) {
	client = &Conn{addr: clientSees}
	server = &Conn{addr: serverSees}
	client.peer = server
	server.peer = client
	return client, server
}

// Send implements netsock.Conn. Data is delivered to the peer immediately.
func (c *Conn) Send(p []byte) (int, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, &netsock.TransportError{Op: "send", Addr: c.addr, Err: netsock.ErrClosed}
	}
	c.sends = append(c.sends, append([]byte(nil), p...))
	if c.SendErr != nil {
		err := c.SendErr
		c.mu.Unlock()
		return 0, &netsock.TransportError{Op: "send", Addr: c.addr, Err: err}
	}
	peer := c.peer
	c.mu.Unlock()

	if peer != nil {
		peer.Inject(p)
	}
	return len(p), nil
}

// Receive implements netsock.Conn. It never blocks, whatever the mode.
func (c *Conn) Receive(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, &netsock.TransportError{Op: "receive", Addr: c.addr, Err: netsock.ErrClosed}
	}
	if len(c.inbound) > 0 {
		n := copy(p, c.inbound)
		c.inbound = c.inbound[n:]
		return n, nil
	}
	if c.ReceiveErr != nil {
		return 0, &netsock.TransportError{Op: "receive", Addr: c.addr, Err: c.ReceiveErr}
	}
	if c.hungUp {
		return 0, io.EOF
	}
	return 0, netsock.ErrWouldBlock
}

// SetBlocking implements netsock.Conn.
func (c *Conn) SetBlocking(blocking bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocking = blocking
}

// Blocking reports the current mode.
func (c *Conn) Blocking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocking
}

// Address implements netsock.Conn.
func (c *Conn) Address() string {
	return c.addr
}

// Close implements netsock.Conn and hangs up the peer.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	peer := c.peer
	c.mu.Unlock()

	if peer != nil {
		peer.HangUp()
	}
	return nil
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Peer returns the other end of the pair.
func (c *Conn) Peer() *Conn {
	return c.peer
}

// Inject appends bytes to the receive buffer as if the peer had sent them.
func (c *Conn) Inject(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inbound = append(c.inbound, p...)
}

// HangUp marks the connection as hung up by the peer.
func (c *Conn) HangUp() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hungUp = true
}

// Sends returns a copy of every buffer passed to Send, in order.
func (c *Conn) Sends() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sends))
	copy(out, c.sends)
	return out
}

func (c *Conn) poll() netsock.PollResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return netsock.PollResult{
		Readable: len(c.inbound) > 0 || c.ReceiveErr != nil,
		HungUp:   c.hungUp || c.closed,
	}
}
