// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ringbuf provides record ring buffers and bounded object queues
// for latency-sensitive message passing between OS threads.
//
// The package offers two families of primitives:
//
//   - Record rings: variable-length, typed messages framed over a bounded
//     byte region ([SPSCRing], [MPMCRing])
//   - Object queues: fixed-capacity circular queues of values
//     ([SPSCQueue], [MPSCQueue], [MPMCQueue])
//
// # Quick Start
//
// Direct constructors (recommended for most cases):
//
//	r := ringbuf.NewSPSCRing(1 << 16)
//	r := ringbuf.NewMPMCRing(1 << 20)
//	q := ringbuf.NewMPMCQueue[*Request](4096)
//
// Builder API auto-selects the algorithm based on constraints:
//
//	r := ringbuf.New(1 << 16).SingleProducer().SingleConsumer().BuildRing() // → SPSCRing
//	q := ringbuf.BuildQueue[Event](ringbuf.New(1024).SingleConsumer())      // → MPSCQueue
//	q := ringbuf.BuildQueue[Event](ringbuf.New(1024))                       // → MPMCQueue
//
// # Record Rings
//
// A record ring carries framed messages over a power-of-two byte region.
// Producers either copy a message in with Offer, or reserve space with
// TryClaim, write the payload in place, and Publish:
//
//	r := ringbuf.NewSPSCRing(1 << 16)
//
//	// Copy-based publish
//	if !r.Offer(msgTypeOrder, payload, 0, len(payload)) {
//	    // Ring full - handle backpressure
//	}
//
//	// Zero-copy publish
//	if off := r.TryClaim(msgTypeOrder, 16); off >= 0 {
//	    buf := r.Buffer()
//	    buf.PutInt64(off, orderID)
//	    buf.PutInt64(off+8, qty)
//	    r.Publish(off)
//	}
//
//	// Consume
//	n := r.Poll(func(typeID int32, payload ringbuf.View) {
//	    handle(typeID, payload)
//	}, 16)
//
// Records are delivered in FIFO order by producer commit order. The payload
// View is only valid for the duration of the handler call; copy out any
// bytes that must outlive it.
//
// # Object Queues
//
// Object queues expose the non-blocking Enqueue/Dequeue surface of a
// bounded FIFO. Operations return [ErrWouldBlock] when they cannot
// proceed:
//
//	q := ringbuf.NewMPMCQueue[int](1024)
//
//	v := 42
//	if err := q.Enqueue(&v); ringbuf.IsWouldBlock(err) {
//	    // Queue full
//	}
//
//	elem, err := q.Dequeue()
//	if ringbuf.IsWouldBlock(err) {
//	    // Queue empty
//	}
//
// Batch helpers mirror the single-shot operations:
//
//	moved := q.Drain(func(v int) { process(v) }, 128)
//	added := q.Fill(nextValue, 128)
//
// # Backpressure
//
// Nothing in this package blocks or retries. Producers fail with false /
// -1 / ErrWouldBlock when space is unavailable, consumers return 0 /
// ErrWouldBlock when no message is ready, and the caller chooses a spin,
// yield, or backoff policy:
//
//	backoff := iox.Backoff{}
//	for !r.Offer(typeID, buf, 0, n) {
//	    backoff.Wait()
//	}
//	backoff.Reset()
//
// # Memory Ordering
//
// Producers publish records with release stores and consumers observe them
// with acquire loads, so for any delivered record every payload write made
// before Publish happens-before every payload read made by the handler.
// The SPSC ring additionally carries a heartbeat cell with release/acquire
// semantics: a consumer that reads heartbeat value V observes every ring
// write the producer made before the matching MarkHeartbeat(V).
//
// On the MPMC ring, producers serialise through a CAS on the producer
// position and stamp each claimed record header with the negative of its
// length; Publish flips the sign with a release store, which is the commit
// signal consumers wait on. A producer that has claimed but not yet
// published therefore holds back all consumers behind it - this is the
// intentional ordering contract, not a defect.
//
// # Thread Safety
//
// All operations are thread-safe within their access pattern constraints:
//
//   - SPSC: one producer goroutine, one consumer goroutine
//   - MPSC: multiple producers, one consumer
//   - MPMC: multiple producers and consumers
//
// Violating these constraints (e.g., two producers on an SPSC ring) causes
// undefined behavior including data corruption. The implementation does
// not detect it.
//
// # Race Detection
//
// Go's race detector cannot observe happens-before relationships
// established through atomic memory orderings on separate variables, and
// reports false positives on the non-atomic payload bytes these algorithms
// protect with sequence numbers and header sign flips. Concurrency stress
// tests are excluded under the race detector via the RaceEnabled gate; for
// algorithm verification use stress testing without the detector and
// memory model analysis.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomic primitives with
// explicit memory ordering, [code.hybscloud.com/spin] for CPU pause
// instructions in CAS retry loops, [code.hybscloud.com/iox] for semantic
// errors, and [github.com/agilira/go-timecache] for the cached epoch clock
// behind heartbeat stamping.
package ringbuf
