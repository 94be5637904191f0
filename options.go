// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringbuf

// Options configures ring and queue creation and algorithm selection.
type Options struct {
	// Producer/Consumer constraints (determines the variant)
	singleProducer bool
	singleConsumer bool

	// Capacity: bytes for rings (must be a power of two >= 64),
	// elements for queues (rounds up to the next power of 2)
	capacity int
}

// Builder creates rings and queues with fluent configuration.
//
// The builder selects the algorithm based on declared producer/consumer
// constraints.
//
// Example:
//
//	// SPSC record ring (optimal for single producer/consumer)
//	r := ringbuf.New(1 << 16).SingleProducer().SingleConsumer().BuildRing()
//
//	// MPSC queue (multiple submitters, one worker)
//	q := ringbuf.BuildQueue[Event](ringbuf.New(4096).SingleConsumer())
type Builder struct {
	opts Options
}

// New creates a builder with the given capacity.
//
// For queues the capacity is an element count and rounds up to the next
// power of 2; panics if capacity < 2. For rings the capacity is the
// data-area byte size and must be a power of two >= 64, checked at
// BuildRing.
func New(capacity int) *Builder {
	if capacity < 2 {
		panic("ringbuf: capacity must be >= 2")
	}
	return &Builder{opts: Options{capacity: capacity}}
}

// SingleProducer declares that only one goroutine will produce.
func (b *Builder) SingleProducer() *Builder {
	b.opts.singleProducer = true
	return b
}

// SingleConsumer declares that only one goroutine will consume.
func (b *Builder) SingleConsumer() *Builder {
	b.opts.singleConsumer = true
	return b
}

// BuildRing creates a record [Ring].
//
// Algorithm selection:
//
//	SingleProducer + SingleConsumer → SPSCRing
//	Anything else                   → MPMCRing
//
// The MPMC ring is correct for every discipline; the SPSC variant trades
// generality for wait-free operations on both sides.
func (b *Builder) BuildRing() Ring {
	if b.opts.singleProducer && b.opts.singleConsumer {
		return NewSPSCRing(b.opts.capacity)
	}
	return NewMPMCRing(b.opts.capacity)
}

// BuildQueue creates a [Queue] with automatic algorithm selection.
//
// Algorithm selection:
//
//	SingleProducer + SingleConsumer → SPSCQueue (Lamport ring buffer)
//	SingleConsumer only             → MPSCQueue
//	Anything else                   → MPMCQueue
func BuildQueue[T any](b *Builder) Queue[T] {
	switch {
	case b.opts.singleProducer && b.opts.singleConsumer:
		return NewSPSCQueue[T](b.opts.capacity)
	case b.opts.singleConsumer:
		return NewMPSCQueue[T](b.opts.capacity)
	default:
		return NewMPMCQueue[T](b.opts.capacity)
	}
}

// queueSlotCount validates a requested queue capacity and rounds it up
// to the power-of-two slot count the index masks require.
func queueSlotCount(capacity int) uint64 {
	if capacity < 2 {
		panic("ringbuf: capacity must be >= 2")
	}
	return uint64(roundToPow2(capacity))
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// pad is cache line padding to prevent false sharing.
type pad [CacheLineLength]byte

// padShort is padding to fill cache line after 8-byte field.
type padShort [CacheLineLength - 8]byte
