// Package rcs implements the remote command server: a small control channel
// over TCP that lets engine instances send console commands, echo console
// output and exchange display names.
//
// Frames on the wire are a type byte, the payload, and a terminating zero
// byte. Payloads may not contain the terminator.
package rcs

import (
	"bytes"
	"errors"
	"fmt"
)

// MessageType is the first byte of every frame.
type MessageType byte

const (
	MessageEnd MessageType = iota
	MessageCommand
	MessageEcho
	MessageRename
	MessageError
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case MessageEnd:
		return "end"
	case MessageCommand:
		return "command"
	case MessageEcho:
		return "echo"
	case MessageRename:
		return "rename"
	case MessageError:
		return "error"
	default:
		return fmt.Sprintf("type(%d)", byte(t))
	}
}

// Default settings.
const (
	DefaultPort       = 4325
	GamePort          = 4334
	DefaultBufferSize = 256
)

const endMarker = byte(MessageEnd)

var (
	// ErrInvalidPayload is returned when a payload contains the end marker.
	ErrInvalidPayload = errors.New("rcs: payload contains end marker")
	// ErrInvalidType is returned when a frame would use the end marker as its type.
	ErrInvalidType = errors.New("rcs: invalid message type")
	// ErrFrameTooLong is reported when an inbound frame overflows the receive buffer.
	ErrFrameTooLong = errors.New("rcs: frame exceeds receive buffer")
)

// EncodeFrame builds the wire form of one message.
func EncodeFrame(t MessageType, payload string) ([]byte, error) {
	if t == MessageEnd {
		return nil, ErrInvalidType
	}
	if bytes.IndexByte([]byte(payload), endMarker) >= 0 {
		return nil, ErrInvalidPayload
	}

	frame := make([]byte, 0, len(payload)+2)
	frame = append(frame, byte(t))
	frame = append(frame, payload...)
	frame = append(frame, endMarker)
	return frame, nil
}

// Frame is one decoded message.
type Frame struct {
	Type MessageType
	Text string
}

// Framer reassembles frames from a byte stream into a fixed-size buffer.
// A frame that does not fit is dropped along with every byte up to its
// terminator; the stream resynchronizes at the next frame.
type Framer struct {
	buf        []byte
	n          int
	discarding bool
}

// NewFramer creates a framer holding at most size bytes of type and payload.
func NewFramer(size int) *Framer {
	if size < 2 {
		size = DefaultBufferSize
	}
	return &Framer{buf: make([]byte, size)}
}

// Cap returns the buffer size.
func (f *Framer) Cap() int {
	return len(f.buf)
}

// Buffered returns the number of bytes of the frame in progress.
func (f *Framer) Buffered() int {
	return f.n
}

// Feed consumes p, calling emit for every completed frame. Empty frames are
// skipped. Returns the number of frames dropped for overflowing the buffer.
func (f *Framer) Feed(p []byte, emit func(Frame)) int {
	dropped := 0
	for _, b := range p {
		if f.discarding {
			if b == endMarker {
				f.discarding = false
			}
			continue
		}

		if b == endMarker {
			if f.n > 0 {
				emit(Frame{Type: MessageType(f.buf[0]), Text: string(f.buf[1:f.n])})
			}
			f.reset()
			continue
		}

		if f.n == len(f.buf) {
			f.reset()
			f.discarding = true
			dropped++
			continue
		}

		f.buf[f.n] = b
		f.n++
	}
	return dropped
}

func (f *Framer) reset() {
	clear(f.buf[:f.n])
	f.n = 0
}
