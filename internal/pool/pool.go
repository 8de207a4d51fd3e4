// Package pool provides a fixed-capacity object arena addressed by
// generation-tagged handles.
//
// Slots are preallocated once and recycled through an intrusive free list,
// so Alloc and Free never touch the heap after construction. A Handle carries
// the generation of the slot it was issued for; freeing a slot bumps its
// generation, which turns any outstanding copies of the handle stale.
//
// A Pool is not safe for concurrent use. Callers that share one across
// goroutines must provide their own locking.
package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrExhausted is returned by Alloc when every slot is in use.
	ErrExhausted = errors.New("pool: exhausted")

	// ErrStaleHandle is returned when a handle no longer refers to a live slot.
	ErrStaleHandle = errors.New("pool: stale handle")
)

const noSlot = -1

// Handle identifies a live slot in a Pool.
// The zero Handle never refers to a live slot.
type Handle struct {
	index uint32
	gen   uint32
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h.gen == 0
}

// String formats the handle as index:generation.
func (h Handle) String() string {
	return fmt.Sprintf("%d:%d", h.index, h.gen)
}

type slot[T any] struct {
	value T
	gen   uint32
	live  bool
	next  int
}

// Pool is a fixed-capacity arena of T values.
type Pool[T any] struct {
	slots     []slot[T]
	free      int
	live      int
	highWater int
}

// New creates a pool with room for capacity values.
// Panics if capacity is not positive.
func New[T any](capacity int) *Pool[T] {
	if capacity < 1 {
		panic(fmt.Sprintf("pool: invalid capacity %d", capacity))
	}

	p := &Pool[T]{slots: make([]slot[T], capacity)}
	p.reset()
	return p
}

// reset threads every slot onto the free list, lowest index first.
func (p *Pool[T]) reset() {
	for i := range p.slots {
		p.slots[i].next = i + 1
		if p.slots[i].gen == 0 {
			p.slots[i].gen = 1
		}
	}
	if len(p.slots) > 0 {
		p.slots[len(p.slots)-1].next = noSlot
		p.free = 0
	} else {
		p.free = noSlot
	}
	p.live = 0
}

// Alloc takes a zeroed slot off the free list.
// Returns ErrExhausted when the pool is full.
func (p *Pool[T]) Alloc() (Handle, *T, error) {
	if p.free == noSlot {
		return Handle{}, nil, ErrExhausted
	}

	idx := p.free
	s := &p.slots[idx]
	p.free = s.next
	s.next = noSlot
	s.live = true

	p.live++
	if p.live > p.highWater {
		p.highWater = p.live
	}

	return Handle{index: uint32(idx), gen: s.gen}, &s.value, nil
}

// Get returns the value behind h, or false if h is stale.
func (p *Pool[T]) Get(h Handle) (*T, bool) {
	s, ok := p.lookup(h)
	if !ok {
		return nil, false
	}
	return &s.value, true
}

// Free returns the slot behind h to the pool and invalidates h.
func (p *Pool[T]) Free(h Handle) error {
	s, ok := p.lookup(h)
	if !ok {
		return fmt.Errorf("%w: %s", ErrStaleHandle, h)
	}

	var zero T
	s.value = zero
	s.live = false
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.next = p.free
	p.free = int(h.index)
	p.live--

	return nil
}

func (p *Pool[T]) lookup(h Handle) (*slot[T], bool) {
	if h.gen == 0 || int(h.index) >= len(p.slots) {
		return nil, false
	}
	s := &p.slots[h.index]
	if !s.live || s.gen != h.gen {
		return nil, false
	}
	return s, true
}

// Len returns the number of live values.
func (p *Pool[T]) Len() int {
	return p.live
}

// Cap returns the fixed capacity of the pool.
func (p *Pool[T]) Cap() int {
	return len(p.slots)
}

// HighWater returns the largest number of values ever live at once.
func (p *Pool[T]) HighWater() int {
	return p.highWater
}

// Destroy releases the backing storage. Every handle becomes stale and
// further Alloc calls return ErrExhausted.
func (p *Pool[T]) Destroy() {
	p.slots = nil
	p.free = noSlot
	p.live = 0
}
