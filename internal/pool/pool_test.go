package pool

import (
	"errors"
	"testing"
)

type item struct {
	name  string
	count int
}

func TestAllocUntilExhausted(t *testing.T) {
	const capacity = 8
	p := New[item](capacity)

	for i := 0; i < capacity; i++ {
		if _, _, err := p.Alloc(); err != nil {
			t.Fatalf("Alloc() #%d failed: %v", i+1, err)
		}
	}

	if _, _, err := p.Alloc(); !errors.Is(err, ErrExhausted) {
		t.Errorf("Alloc() #%d error = %v, want ErrExhausted", capacity+1, err)
	}

	if p.Len() != capacity {
		t.Errorf("Len() = %d, want %d", p.Len(), capacity)
	}
}

func TestAllocReturnsZeroedSlot(t *testing.T) {
	p := New[item](1)

	h, v, err := p.Alloc()
	if err != nil {
		t.Fatalf("Alloc() failed: %v", err)
	}
	v.name = "dirty"
	v.count = 42

	if err := p.Free(h); err != nil {
		t.Fatalf("Free() failed: %v", err)
	}

	_, v2, err := p.Alloc()
	if err != nil {
		t.Fatalf("Alloc() after Free failed: %v", err)
	}
	if v2.name != "" || v2.count != 0 {
		t.Errorf("reused slot not zeroed: %+v", *v2)
	}
}

func TestStaleHandle(t *testing.T) {
	p := New[item](2)

	h, _, _ := p.Alloc()
	if err := p.Free(h); err != nil {
		t.Fatalf("Free() failed: %v", err)
	}

	if _, ok := p.Get(h); ok {
		t.Error("Get() on freed handle should fail")
	}
	if err := p.Free(h); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("double Free() error = %v, want ErrStaleHandle", err)
	}

	// The slot is reused with a new generation.
	h2, _, _ := p.Alloc()
	if h2 == h {
		t.Error("reallocated handle should differ from freed handle")
	}
	if _, ok := p.Get(h); ok {
		t.Error("old handle should not resolve to reused slot")
	}
	if _, ok := p.Get(h2); !ok {
		t.Error("new handle should resolve")
	}
}

func TestZeroHandle(t *testing.T) {
	p := New[item](1)
	var h Handle

	if !h.IsZero() {
		t.Error("zero Handle should report IsZero")
	}
	if _, ok := p.Get(h); ok {
		t.Error("Get() on zero handle should fail")
	}
	if err := p.Free(h); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("Free(zero) error = %v, want ErrStaleHandle", err)
	}
}

func TestHighWater(t *testing.T) {
	p := New[item](4)

	a, _, _ := p.Alloc()
	b, _, _ := p.Alloc()
	c, _, _ := p.Alloc()
	_ = p.Free(a)
	_ = p.Free(b)
	_, _, _ = p.Alloc()

	if p.HighWater() != 3 {
		t.Errorf("HighWater() = %d, want 3", p.HighWater())
	}
	if p.Len() != 2 {
		t.Errorf("Len() = %d, want 2", p.Len())
	}
	_ = p.Free(c)
}

func TestExhaustionAfterChurn(t *testing.T) {
	p := New[int](3)

	// Churn through the free list so it is no longer in index order.
	for i := 0; i < 10; i++ {
		h, _, err := p.Alloc()
		if err != nil {
			t.Fatalf("Alloc() failed: %v", err)
		}
		if err := p.Free(h); err != nil {
			t.Fatalf("Free() failed: %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		if _, _, err := p.Alloc(); err != nil {
			t.Fatalf("Alloc() #%d failed: %v", i+1, err)
		}
	}
	if _, _, err := p.Alloc(); !errors.Is(err, ErrExhausted) {
		t.Errorf("Alloc() #4 error = %v, want ErrExhausted", err)
	}
}

func TestDestroy(t *testing.T) {
	p := New[int](2)
	h, _, _ := p.Alloc()

	p.Destroy()

	if _, ok := p.Get(h); ok {
		t.Error("Get() after Destroy should fail")
	}
	if _, _, err := p.Alloc(); !errors.Is(err, ErrExhausted) {
		t.Errorf("Alloc() after Destroy error = %v, want ErrExhausted", err)
	}
	if p.Cap() != 0 {
		t.Errorf("Cap() after Destroy = %d, want 0", p.Cap())
	}
}

func TestNewPanicsOnInvalidCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New(0) should panic")
		}
	}()
	New[int](0)
}
