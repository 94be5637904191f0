// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringbuf

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// MPSCQueue is a bounded multi-producer single-consumer FIFO queue.
//
// Producers claim positions with CAS against the same per-slot ticket
// handshake as [MPMCQueue]. The single consumer needs no CAS of its own:
// it owns the deq counter outright and only has to wait for the ticket
// at its position to show a completed enqueue.
//
// Memory: each slot holds its ticket and element followed by
// CacheLineLength-8 bytes of padding, so no two tickets share a cache
// line.
type MPSCQueue[T any] struct {
	_        pad
	deq      atomix.Uint64 // next dequeue position, consumer-owned
	_        pad
	enq      atomix.Uint64 // next enqueue position, claimed by CAS
	_        pad
	slots    []slot[T]
	mask     uint64
	capacity uint64
}

// NewMPSCQueue creates a new MPSC queue.
// Capacity rounds up to the next power of 2.
func NewMPSCQueue[T any](capacity int) *MPSCQueue[T] {
	n := queueSlotCount(capacity)

	slots := make([]slot[T], n)
	for i := range slots {
		slots[i].ticket.StoreRelaxed(uint64(i))
	}

	return &MPSCQueue[T]{
		slots:    slots,
		mask:     n - 1,
		capacity: n,
	}
}

// Enqueue adds an element to the queue (multiple producers safe).
// The pointer must not be nil.
// Returns ErrWouldBlock if the queue is full.
func (q *MPSCQueue[T]) Enqueue(elem *T) error {
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

// Dequeue removes and returns an element (single consumer only).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *MPSCQueue[T]) Dequeue() (T, error) {
	pos := q.deq.LoadRelaxed()
	s := &q.slots[pos&q.mask]
	if s.ticket.LoadAcquire() != pos+1 {
		var empty T
		return empty, ErrWouldBlock
	}

	out := s.elem
	var empty T
	s.elem = empty
	s.ticket.StoreRelease(pos + q.capacity)
	q.deq.StoreRelease(pos + 1)
	return out, nil
}

// Drain dequeues up to limit elements, passing each to consumer
// (single consumer only). Returns the count moved.
func (q *MPSCQueue[T]) Drain(consumer func(T), limit int) int {
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
func (q *MPSCQueue[T]) Fill(supplier func() T, limit int) int {
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
func (q *MPSCQueue[T]) Size() int {
	deq := q.deq.LoadAcquire()
	enq := q.enq.LoadAcquire()
	return clampSize(enq, deq, q.capacity)
}

// IsEmpty reports whether the queue was empty at the moment of
// inspection.
func (q *MPSCQueue[T]) IsEmpty() bool {
	return q.enq.LoadAcquire() == q.deq.LoadAcquire()
}

// Clear discards all queued elements and re-arms every slot ticket for
// lap zero. Not thread-safe: callers must quiesce all producers and the
// consumer first.
func (q *MPSCQueue[T]) Clear() {
	var empty T
	for i := range q.slots {
		q.slots[i].elem = empty
		q.slots[i].ticket.StoreRelaxed(uint64(i))
	}
	q.enq.StoreRelaxed(0)
	q.deq.StoreRelaxed(0)
}

// Cap returns the queue capacity.
func (q *MPSCQueue[T]) Cap() int {
	return int(q.capacity)
}
