package console

import "sync"

// DefaultListenerBuffer is used when Subscribe is given a non-positive size.
const DefaultListenerBuffer = 256

// Listener receives console lines as they are added.
type Listener struct {
	entries  chan Entry
	done     chan struct{}
	doneOnce sync.Once
}

// Subscribe creates a listener. When its buffer fills, the oldest
// undelivered line is dropped.
func (c *Console) Subscribe(buffer int) *Listener {
	_, l := c.SubscribeWithBacklog(buffer)
	return l
}

// SubscribeWithBacklog creates a listener and returns the lines retained at
// that moment. No line is both in the backlog and delivered to the listener.
func (c *Console) SubscribeWithBacklog(buffer int) ([]Entry, *Listener) {
	if buffer < 1 {
		buffer = DefaultListenerBuffer
	}
	l := &Listener{
		entries: make(chan Entry, buffer),
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	backlog := append([]Entry(nil), c.entries...)
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()

	return backlog, l
}

// Unsubscribe detaches and closes l.
func (c *Console) Unsubscribe(l *Listener) {
	c.mu.Lock()
	for i, other := range c.listeners {
		if other == l {
			c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	l.Close()
}

// Entries returns the channel lines are delivered on.
func (l *Listener) Entries() <-chan Entry {
	return l.entries
}

// Done returns a channel that closes when the listener is closed.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Close marks the listener as done. Safe to call multiple times.
func (l *Listener) Close() {
	l.doneOnce.Do(func() {
		close(l.done)
	})
}

func (l *Listener) send(e Entry) {
	select {
	case <-l.done:
		return
	default:
	}

	select {
	case l.entries <- e:
	default:
		// Buffer full, drop oldest and retry
		select {
		case <-l.entries:
		default:
		}
		select {
		case l.entries <- e:
		default:
		}
	}
}
