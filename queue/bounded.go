// Package queue provides the fixed-capacity, drop-oldest queue that connects
// pipeline stages.
package queue

import (
	"sync"
	"time"
)

// Bounded is a FIFO of at most Cap items. Push never blocks: when the queue
// is full the oldest item is evicted. Pop blocks until an item arrives or the
// queue is stopped.
type Bounded[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buf     []T
	head    int
	size    int
	dropped uint64
	pushed  uint64
	stopped bool
}

// New returns a queue holding at most capacity items; capacity is at least 1.
func New[T any](capacity int) *Bounded[T] {
	if capacity < 1 {
		capacity = 1
	}
	q := &Bounded[T]{buf: make([]T, capacity)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends item, evicting the oldest entry if the queue is full. It
// reports whether an entry was evicted. Pushing to a stopped queue is a no-op.
func (q *Bounded[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return false
	}

	evicted := false
	if q.size == len(q.buf) {
		var zero T
		q.buf[q.head] = zero
		q.head = (q.head + 1) % len(q.buf)
		q.size--
		q.dropped++
		evicted = true
	}
	q.buf[(q.head+q.size)%len(q.buf)] = item
	q.size++
	q.pushed++
	q.cond.Signal()
	return evicted
}

// Pop blocks for the next item. ok is false once the queue is stopped.
func (q *Bounded[T]) Pop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.size == 0 && !q.stopped {
		q.cond.Wait()
	}
	if q.stopped {
		return item, false
	}
	return q.take(), true
}

// PopTimeout is Pop with an upper bound on the wait. ok is false on timeout
// or stop.
func (q *Bounded[T]) PopTimeout(d time.Duration) (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 && !q.stopped {
		expired := false
		timer := time.AfterFunc(d, func() {
			q.mu.Lock()
			expired = true
			q.mu.Unlock()
			q.cond.Broadcast()
		})
		defer timer.Stop()

		for q.size == 0 && !q.stopped && !expired {
			q.cond.Wait()
		}
	}

	if q.stopped || q.size == 0 {
		return item, false
	}
	return q.take(), true
}

// TryPop returns the next item without waiting.
func (q *Bounded[T]) TryPop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped || q.size == 0 {
		return item, false
	}
	return q.take(), true
}

// take removes the head; q.mu must be held and size > 0.
func (q *Bounded[T]) take() T {
	item := q.buf[q.head]
	var zero T
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return item
}

// Stop wakes every blocked Pop. It is safe to call more than once.
func (q *Bounded[T]) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *Bounded[T]) Stopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

func (q *Bounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *Bounded[T]) Cap() int {
	return len(q.buf)
}

// Dropped counts items evicted by Push.
func (q *Bounded[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

func (q *Bounded[T]) Pushed() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushed
}

// Snapshot copies the queued items, oldest first.
func (q *Bounded[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, q.size)
	for i := 0; i < q.size; i++ {
		out[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	return out
}

// Drain removes and returns everything queued, even after Stop.
func (q *Bounded[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, 0, q.size)
	for q.size > 0 {
		out = append(out, q.take())
	}
	return out
}
