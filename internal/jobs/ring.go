package jobs

import "errors"

var (
	errQueueFull  = errors.New("jobs: queue is full")
	errQueueEmpty = errors.New("jobs: queue is empty")
)

// ringQueue is a fixed-size FIFO. Not safe for concurrent use.
type ringQueue[T any] struct {
	data       []T
	readIndex  int
	writeIndex int
	count      int
}

func newRingQueue[T any](size int) *ringQueue[T] {
	return &ringQueue[T]{data: make([]T, size)}
}

// Enqueue adds an element to the back of the queue.
func (rq *ringQueue[T]) Enqueue(value T) error {
	if rq.IsFull() {
		return errQueueFull
	}

	rq.data[rq.writeIndex] = value
	rq.writeIndex = (rq.writeIndex + 1) % len(rq.data)
	rq.count++
	return nil
}

// Dequeue removes and returns the front element.
func (rq *ringQueue[T]) Dequeue() (T, error) {
	var zero T
	if rq.IsEmpty() {
		return zero, errQueueEmpty
	}

	value := rq.data[rq.readIndex]
	rq.data[rq.readIndex] = zero
	rq.readIndex = (rq.readIndex + 1) % len(rq.data)
	rq.count--
	return value, nil
}

func (rq *ringQueue[T]) Len() int {
	return rq.count
}

func (rq *ringQueue[T]) IsEmpty() bool {
	return rq.count == 0
}

func (rq *ringQueue[T]) IsFull() bool {
	return rq.count == len(rq.data)
}
