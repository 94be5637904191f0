// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringbuf

// Handler consumes one delivered record. The payload view is only valid
// for the duration of the call; copy out any bytes that must outlive it.
type Handler func(typeID int32, payload View)

// ControlAction is a controlled-poll handler's verdict on the record it
// was just shown.
type ControlAction int

const (
	// ControlContinue consumes the record and continues polling.
	ControlContinue ControlAction = iota
	// ControlBreak consumes the record and stops polling.
	ControlBreak
	// ControlAbort stops polling without consuming the record, which stays
	// first in line for the next poll. Not supported by the MPMC ring.
	ControlAbort
)

// ControlledHandler consumes one delivered record and steers the poll loop.
type ControlledHandler func(typeID int32, payload View) ControlAction

// Ring is the combined producer-consumer interface for a record ring
// buffer over a byte region.
//
// Producers either copy a framed message in with Offer, or reserve space
// with TryClaim, write the payload into Buffer(), and Publish. Consumers
// deliver records to a handler in FIFO order by producer commit order.
// Every operation is non-blocking; failure is reported by return value
// (false / -1 / 0) and the caller chooses a retry policy.
type Ring interface {
	// Offer copies length bytes from src[srcIndex:] into the ring as one
	// record of the given type. Returns false if insufficient contiguous
	// space (after any wrap padding) is available.
	Offer(typeID int32, src []byte, srcIndex, length int) bool

	// TryClaim reserves space for a record of the given type and payload
	// length, returning the payload offset within Buffer(), or -1 if
	// insufficient space is available. A successful claim must be
	// completed with Publish or Abandon.
	TryClaim(typeID int32, length int) int

	// Publish finalises a prior TryClaim, making the record visible to
	// consumers.
	Publish(offset int)

	// Abandon converts a prior TryClaim into a padding record of the same
	// span; consumers skip it without delivery.
	Abandon(offset int)

	// Poll delivers up to limit records to handler in FIFO order and
	// returns the count consumed.
	Poll(handler Handler, limit int) int

	// ControlledPoll is Poll with per-record control flow. The error is
	// non-nil only where an action is unsupported by the ring variant.
	ControlledPoll(handler ControlledHandler, limit int) (int, error)

	// Buffer returns the region the ring is framed over. Payload bytes for
	// a claimed record are written here at the offset TryClaim returned.
	Buffer() *Region

	// Utilization returns the byte distance between producer and consumer
	// positions.
	Utilization() int

	// Cap returns the data-area capacity in bytes.
	Cap() int

	// MaxPayloadLength returns the largest single payload the ring
	// accepts.
	MaxPayloadLength() int

	// NextCorrelation mints a fresh monotonically increasing id for
	// callers to tag messages with.
	NextCorrelation() int64
}

// Queue is the combined producer-consumer interface for a bounded FIFO
// queue of values.
//
// Queue provides non-blocking single-shot and batch operations. Enqueue
// and Dequeue return ErrWouldBlock when they cannot proceed (queue full or
// empty).
type Queue[T any] interface {
	Producer[T]
	Consumer[T]

	// Drain dequeues up to limit elements, passing each to consumer, and
	// returns the count moved.
	Drain(consumer func(T), limit int) int

	// Fill enqueues up to limit elements obtained from supplier, stopping
	// early if the queue fills, and returns the count added.
	Fill(supplier func() T, limit int) int

	// Size returns the approximate number of queued elements, clamped to
	// [0, Cap()]. Concurrent operations may invalidate it immediately.
	Size() int

	// IsEmpty reports whether the queue was empty at the moment of
	// inspection.
	IsEmpty() bool

	// Clear discards all queued elements. Not thread-safe: callers must
	// quiesce all producers and consumers first.
	Clear()

	Cap() int
}

// Producer is the interface for enqueueing elements.
//
// The element is passed by pointer to avoid copying large structs; the
// queue stores a copy of the pointed-to value, so the original can be
// modified after Enqueue returns. The pointer must not be nil.
type Producer[T any] interface {
	// Enqueue adds an element to the queue (non-blocking).
	// Returns nil on success, ErrWouldBlock if the queue is full.
	Enqueue(elem *T) error
}

// Consumer is the interface for dequeueing elements.
//
// The element is returned by value and the slot is cleared so referenced
// objects can be reclaimed.
type Consumer[T any] interface {
	// Dequeue removes and returns an element from the queue (non-blocking).
	// Returns (zero-value, ErrWouldBlock) if the queue is empty.
	Dequeue() (T, error)
}

var (
	_ Ring = (*SPSCRing)(nil)
	_ Ring = (*MPMCRing)(nil)

	_ Queue[int] = (*SPSCQueue[int])(nil)
	_ Queue[int] = (*MPSCQueue[int])(nil)
	_ Queue[int] = (*MPMCQueue[int])(nil)
)
