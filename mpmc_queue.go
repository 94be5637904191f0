// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringbuf

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// MPMCQueue is a bounded multi-producer multi-consumer FIFO queue.
//
// The queue is a circular slot array driven by two position counters,
// enq and deq, that producers and consumers claim with CAS. Each slot
// carries a ticket that encodes which position may touch it next: a slot
// is free for the enqueue at position p while its ticket equals p,
// occupied for the matching dequeue while the ticket equals p+1, and the
// dequeue re-arms it with p+capacity for the slot's next lap around the
// ring. An operation whose ticket is ahead of its position retries with a
// fresh position (a peer took that position first). An operation whose
// position is ahead of the ticket fails at once: the queue is full or
// empty, or a peer has claimed the slot and not yet finished with it.
// Because positions never repeat, a recycled slot can never be mistaken
// for a fresh one.
//
// Slot occupancy is tracked entirely by the ticket, never by the stored
// value, so any value of T round-trips, including zero values.
//
// Memory: each slot holds its ticket and element followed by
// CacheLineLength-8 bytes of padding, so no two tickets share a cache
// line.
type MPMCQueue[T any] struct {
	_        pad
	enq      atomix.Uint64 // next enqueue position
	_        pad
	deq      atomix.Uint64 // next dequeue position
	_        pad
	slots    []slot[T]
	mask     uint64
	capacity uint64
}

// slot pairs an element with the ticket gating its handoff.
type slot[T any] struct {
	ticket atomix.Uint64
	elem   T
	_      padShort // keeps the next slot's ticket off this cache line
}

// NewMPMCQueue creates a new MPMC queue.
// Capacity rounds up to the next power of 2.
func NewMPMCQueue[T any](capacity int) *MPMCQueue[T] {
	n := queueSlotCount(capacity)

	slots := make([]slot[T], n)
	for i := range slots {
		slots[i].ticket.StoreRelaxed(uint64(i))
	}

	return &MPMCQueue[T]{
		slots:    slots,
		mask:     n - 1,
		capacity: n,
	}
}

// Enqueue adds an element to the queue. The pointer must not be nil.
// Returns ErrWouldBlock if the queue is full.
func (q *MPMCQueue[T]) Enqueue(elem *T) error {
	_ = *elem // fail fast on a nil pointer before claiming a position
	w := spin.Wait{}
	for {
		pos := q.enq.LoadAcquire()
		s := &q.slots[pos&q.mask]
		switch ticket := s.ticket.LoadAcquire(); {
		case ticket == pos:
			if !q.enq.CompareAndSwapAcqRel(pos, pos+1) {
				break // lost the position to another producer
			}
			s.elem = *elem
			s.ticket.StoreRelease(pos + 1)
			return nil
		case int64(ticket)-int64(pos) < 0:
			// The slot still holds the element enqueued one lap ago.
			return ErrWouldBlock
		}
		w.Once()
	}
}

// Dequeue removes and returns an element from the queue. The slot is
// cleared so the referent can be reclaimed.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *MPMCQueue[T]) Dequeue() (T, error) {
	w := spin.Wait{}
	for {
		pos := q.deq.LoadAcquire()
		s := &q.slots[pos&q.mask]
		switch ticket := s.ticket.LoadAcquire(); {
		case ticket == pos+1:
			if !q.deq.CompareAndSwapAcqRel(pos, pos+1) {
				break // lost the position to another consumer
			}
			out := s.elem
			var empty T
			s.elem = empty
			s.ticket.StoreRelease(pos + q.capacity)
			return out, nil
		case int64(ticket)-int64(pos+1) < 0:
			// No enqueue has reached this position yet.
			var empty T
			return empty, ErrWouldBlock
		}
		w.Once()
	}
}

// Drain dequeues up to limit elements, passing each to consumer.
// Returns the count moved.
func (q *MPMCQueue[T]) Drain(consumer func(T), limit int) int {
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
// early if the queue fills. Returns the count added.
func (q *MPMCQueue[T]) Fill(supplier func() T, limit int) int {
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
// [0, Cap()]. Concurrent operations may invalidate it immediately.
func (q *MPMCQueue[T]) Size() int {
	deq := q.deq.LoadAcquire()
	enq := q.enq.LoadAcquire()
	return clampSize(enq, deq, q.capacity)
}

// IsEmpty reports whether the queue was empty at the moment of
// inspection.
func (q *MPMCQueue[T]) IsEmpty() bool {
	return q.enq.LoadAcquire() == q.deq.LoadAcquire()
}

// Clear discards all queued elements and re-arms every slot ticket for
// lap zero. Not thread-safe: callers must quiesce all producers and
// consumers first.
func (q *MPMCQueue[T]) Clear() {
	var empty T
	for i := range q.slots {
		q.slots[i].elem = empty
		q.slots[i].ticket.StoreRelaxed(uint64(i))
	}
	q.enq.StoreRelaxed(0)
	q.deq.StoreRelaxed(0)
}

// Cap returns the queue capacity.
func (q *MPMCQueue[T]) Cap() int {
	return int(q.capacity)
}

// clampSize folds a momentary enq/deq pair into the [0, capacity] range;
// torn reads under concurrency can put the raw difference outside it.
func clampSize(enq, deq, capacity uint64) int {
	d := int64(enq) - int64(deq)
	if d < 0 {
		return 0
	}
	if d > int64(capacity) {
		return int(capacity)
	}
	return int(d)
}
