package rcs

import (
	"errors"
	"io"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/bread/internal/netsock"
)

// ConnectionStats counts traffic on one connection.
type ConnectionStats struct {
	BytesIn   int
	FramesIn  int
	FramesOut int
	Dropped   int
}

// Connection frames messages over one transport.
type Connection struct {
	id      uuid.UUID
	conn    netsock.Conn
	name    string
	framer  *Framer
	readBuf []byte
	limiter *rate.Limiter
	emit    func(MessageReceived)
	stats   ConnectionStats
	logger  *log.Logger
}

// NewConnection wraps conn. emit receives every decoded message; limiter
// may be nil to accept commands at any rate.
func NewConnection(conn netsock.Conn, bufferSize int, limiter *rate.Limiter, emit func(MessageReceived), logger *log.Logger) *Connection {
	if logger == nil {
		logger = log.Default()
	}
	c := &Connection{
		id:      uuid.New(),
		conn:    conn,
		framer:  NewFramer(bufferSize),
		limiter: limiter,
		emit:    emit,
		logger:  logger,
	}
	c.readBuf = make([]byte, c.framer.Cap())
	if conn != nil {
		c.name = conn.Address()
	}
	return c
}

// ID returns the connection's unique id.
func (c *Connection) ID() uuid.UUID {
	return c.id
}

// Address returns the peer address, or an empty string without a transport.
func (c *Connection) Address() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.Address()
}

// Name returns the peer's display name. It starts as the peer address and
// changes when the peer sends a rename message.
func (c *Connection) Name() string {
	return c.name
}

// SetName changes the display name.
func (c *Connection) SetName(name string) {
	c.name = name
}

// Stats returns the traffic counters.
func (c *Connection) Stats() ConnectionStats {
	return c.stats
}

// Conn returns the underlying transport.
func (c *Connection) Conn() netsock.Conn {
	return c.conn
}

// Send writes one frame in a single transport call.
func (c *Connection) Send(t MessageType, msg string) error {
	frame, err := EncodeFrame(t, msg)
	if err != nil {
		return err
	}
	if c.conn == nil {
		return &netsock.TransportError{Op: "send", Err: netsock.ErrClosed}
	}

	n, err := c.conn.Send(frame)
	if err != nil {
		var te *netsock.TransportError
		if errors.As(err, &te) {
			return err
		}
		return &netsock.TransportError{Op: "send", Addr: c.Address(), Err: err}
	}
	if n != len(frame) {
		return &netsock.TransportError{Op: "send", Addr: c.Address(), Err: io.ErrShortWrite}
	}

	c.stats.FramesOut++
	return nil
}

// Receive drains every byte currently available and emits the completed
// frames. Returns an error only when the transport fails; the caller must
// then drop the connection.
func (c *Connection) Receive() error {
	if c.conn == nil {
		return nil
	}

	for {
		n, err := c.conn.Receive(c.readBuf)
		if n > 0 {
			c.stats.BytesIn += n
			if dropped := c.framer.Feed(c.readBuf[:n], c.deliver); dropped > 0 {
				c.stats.Dropped += dropped
				c.logger.Warn("discarded oversized frame",
					"peer", c.Address(), "limit", c.framer.Cap(), "err", ErrFrameTooLong)
			}
		}

		if err != nil {
			if errors.Is(err, netsock.ErrWouldBlock) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// AllowCommand reports whether another command fits the rate limit.
func (c *Connection) AllowCommand() bool {
	if c.limiter == nil {
		return true
	}
	return c.limiter.Allow()
}

// Close releases the transport.
func (c *Connection) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Connection) deliver(f Frame) {
	c.stats.FramesIn++
	if c.emit == nil {
		return
	}
	c.emit(MessageReceived{
		ConnID:  c.id,
		Address: c.Address(),
		Type:    f.Type,
		Text:    f.Text,
	})
}
