package netsock

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"
)

const (
	readChunk     = 4096
	acceptBacklog = 64
	pollInterval  = time.Millisecond
)

// TCPNetwork implements Network over TCP.
//
// Each connection has a reader goroutine that moves bytes from the kernel
// into a buffer, so Receive and Poll never touch the socket directly.
type TCPNetwork struct{}

// NewTCPNetwork creates a TCP network.
func NewTCPNetwork() *TCPNetwork {
	return &TCPNetwork{}
}

// LocalHostName returns the OS host name, or localhost if it is unknown.
func (n *TCPNetwork) LocalHostName() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "localhost"
	}
	return name
}

// Listen binds addr and starts the accept loop.
func (n *TCPNetwork) Listen(addr string) (Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, &TransportError{Op: "resolve", Addr: addr, Err: err}
	}

	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, &TransportError{Op: "listen", Addr: addr, Err: err}
	}

	l := &tcpListener{
		ln:      ln,
		pending: make(chan *tcpConn, acceptBacklog),
		done:    make(chan struct{}),
	}
	go l.acceptLoop()

	return l, nil
}

// Dial connects to addr.
func (n *TCPNetwork) Dial(addr string, timeout time.Duration) (Conn, error) {
	c, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, &TransportError{Op: "connect", Addr: addr, Err: err}
	}
	conn := newTCPConn(c)
	conn.SetBlocking(true)
	return conn, nil
}

// Poll reports readiness for connections created by this network.
func (n *TCPNetwork) Poll(conns []Conn, timeout time.Duration) ([]PollResult, error) {
	results := make([]PollResult, len(conns))
	deadline := time.Now().Add(timeout)

	for {
		ready := false
		for i, c := range conns {
			tc, ok := c.(*tcpConn)
			if !ok {
				return nil, &TransportError{Op: "poll", Addr: c.Address(), Err: ErrUnsupportedConn}
			}
			results[i] = tc.poll()
			if results[i].Readable || results[i].HungUp {
				ready = true
			}
		}

		if ready || timeout <= 0 || !time.Now().Before(deadline) {
			return results, nil
		}
		time.Sleep(pollInterval)
	}
}

type tcpListener struct {
	ln      *net.TCPListener
	pending chan *tcpConn
	done    chan struct{}

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
}

func (l *tcpListener) acceptLoop() {
	for {
		c, err := l.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				l.mu.Lock()
				l.err = err
				l.mu.Unlock()
			}
			return
		}

		conn := newTCPConn(c)
		select {
		case l.pending <- conn:
		case <-l.done:
			conn.Close()
			return
		}
	}
}

func (l *tcpListener) Accept() (Conn, error) {
	select {
	case c := <-l.pending:
		return c, nil
	default:
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, &TransportError{Op: "accept", Addr: l.Address(), Err: l.err}
	}
	return nil, ErrWouldBlock
}

func (l *tcpListener) Address() string {
	return l.ln.Addr().String()
}

func (l *tcpListener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.ln.Close()
		for {
			select {
			case c := <-l.pending:
				c.Close()
			default:
				return
			}
		}
	})
	return err
}

type tcpConn struct {
	conn net.Conn
	addr string

	mu       sync.Mutex
	cond     *sync.Cond
	buf      bytes.Buffer
	readErr  error
	closed   bool
	blocking bool

	closeOnce sync.Once
}

func newTCPConn(c net.Conn) *tcpConn {
	tc := &tcpConn{conn: c, addr: c.RemoteAddr().String()}
	tc.cond = sync.NewCond(&tc.mu)
	go tc.readLoop()
	return tc
}

func (c *tcpConn) readLoop() {
	chunk := make([]byte, readChunk)
	for {
		n, err := c.conn.Read(chunk)

		c.mu.Lock()
		if n > 0 {
			c.buf.Write(chunk[:n])
		}
		if err != nil {
			c.readErr = err
		}
		c.cond.Broadcast()
		c.mu.Unlock()

		if err != nil {
			return
		}
	}
}

func (c *tcpConn) Send(p []byte) (int, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return 0, &TransportError{Op: "send", Addr: c.addr, Err: ErrClosed}
	}

	n, err := c.conn.Write(p)
	if err != nil {
		return n, &TransportError{Op: "send", Addr: c.addr, Err: err}
	}
	return n, nil
}

func (c *tcpConn) Receive(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.blocking && c.buf.Len() == 0 && c.readErr == nil && !c.closed {
		c.cond.Wait()
	}

	if c.closed {
		return 0, &TransportError{Op: "receive", Addr: c.addr, Err: ErrClosed}
	}
	if c.buf.Len() > 0 {
		return c.buf.Read(p)
	}
	if c.readErr != nil {
		if errors.Is(c.readErr, io.EOF) {
			return 0, io.EOF
		}
		return 0, &TransportError{Op: "receive", Addr: c.addr, Err: c.readErr}
	}
	return 0, ErrWouldBlock
}

func (c *tcpConn) SetBlocking(blocking bool) {
	c.mu.Lock()
	c.blocking = blocking
	c.cond.Broadcast()
	c.mu.Unlock()
}

func (c *tcpConn) Address() string {
	return c.addr
}

func (c *tcpConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.cond.Broadcast()
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *tcpConn) poll() PollResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return PollResult{
		Readable: c.buf.Len() > 0,
		HungUp:   c.closed || c.readErr != nil,
	}
}
