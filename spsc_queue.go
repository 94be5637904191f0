// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringbuf

import (
	"code.hybscloud.com/atomix"
)

// SPSCQueue is a bounded single-producer single-consumer FIFO queue.
//
// Each position counter has exactly one writer, so both operations are
// wait-free: the producer release-stores enq after writing a slot, the
// consumer release-stores deq after clearing one, and each side observes
// the other with an acquire load. The full and empty tests run against a
// locally cached copy of the opposite counter that is refreshed only
// when the test fails, which keeps steady-state operations off the other
// core's cache line.
//
// Exactly one goroutine may enqueue and exactly one may dequeue.
// Violating this is a programmer error; the implementation does not
// detect it.
type SPSCQueue[T any] struct {
	_       pad
	deq     atomix.Uint64 // next read position, consumer-owned
	_       pad
	enqSeen uint64 // consumer's last observed enq
	_       pad
	enq     atomix.Uint64 // next write position, producer-owned
	_       pad
	deqSeen uint64 // producer's last observed deq
	_       pad
	slots   []T
	mask    uint64
}

// NewSPSCQueue creates a new SPSC queue.
// Capacity rounds up to the next power of 2.
func NewSPSCQueue[T any](capacity int) *SPSCQueue[T] {
	n := queueSlotCount(capacity)
	return &SPSCQueue[T]{
		slots: make([]T, n),
		mask:  n - 1,
	}
}

// Enqueue adds an element to the queue (producer only).
// Returns ErrWouldBlock if the queue is full.
func (q *SPSCQueue[T]) Enqueue(elem *T) error {
	_ = *elem // fail fast on a nil pointer, even when the queue is full
	pos := q.enq.LoadRelaxed()
	if pos == q.deqSeen+uint64(len(q.slots)) {
		// Looks full; refresh the cached reader position and re-test.
		q.deqSeen = q.deq.LoadAcquire()
		if pos == q.deqSeen+uint64(len(q.slots)) {
			return ErrWouldBlock
		}
	}

	q.slots[pos&q.mask] = *elem
	q.enq.StoreRelease(pos + 1)
	return nil
}

// Dequeue removes and returns an element (consumer only).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *SPSCQueue[T]) Dequeue() (T, error) {
	pos := q.deq.LoadRelaxed()
	if pos == q.enqSeen {
		// Looks empty; refresh the cached writer position and re-test.
		q.enqSeen = q.enq.LoadAcquire()
		if pos == q.enqSeen {
			var empty T
			return empty, ErrWouldBlock
		}
	}

	out := q.slots[pos&q.mask]
	var empty T
	q.slots[pos&q.mask] = empty
	q.deq.StoreRelease(pos + 1)
	return out, nil
}

// Drain dequeues up to limit elements, passing each to consumer
// (consumer only). Returns the count moved.
func (q *SPSCQueue[T]) Drain(consumer func(T), limit int) int {
	n := 0
	for n < limit {
		elem, err := q.Dequeue()
		if err != nil {
			break
		}
		consumer(elem)
		n++
	}
	return n
}

// Fill enqueues up to limit elements obtained from supplier, stopping
// early if the queue fills (producer only). Returns the count added.
func (q *SPSCQueue[T]) Fill(supplier func() T, limit int) int {
	n := 0
	for n < limit {
		elem := supplier()
		if q.Enqueue(&elem) != nil {
			break
		}
		n++
	}
	return n
}

// Size returns the approximate number of queued elements, clamped to
// [0, Cap()].
func (q *SPSCQueue[T]) Size() int {
	deq := q.deq.LoadAcquire()
	enq := q.enq.LoadAcquire()
	return clampSize(enq, deq, q.mask+1)
}

// IsEmpty reports whether the queue was empty at the moment of
// inspection.
func (q *SPSCQueue[T]) IsEmpty() bool {
	return q.enq.LoadAcquire() == q.deq.LoadAcquire()
}

// Clear discards all queued elements. Not thread-safe: callers must
// quiesce the producer and consumer first.
func (q *SPSCQueue[T]) Clear() {
	var empty T
	for i := range q.slots {
		q.slots[i] = empty
	}
	q.enq.StoreRelaxed(0)
	q.deq.StoreRelaxed(0)
	q.enqSeen = 0
	q.deqSeen = 0
}

// Cap returns the queue capacity.
func (q *SPSCQueue[T]) Cap() int {
	return int(q.mask + 1)
}
