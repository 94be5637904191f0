// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringbuf

import (
	"code.hybscloud.com/atomix"
)

// SPSCRing is a single-producer single-consumer record ring buffer.
//
// Records are framed over a power-of-two byte region with an 8-byte
// header (length + type). The producer publishes with a release store of
// its position; the consumer observes records with an acquire load and
// releases space back with a release store of its own position. The
// producer caches the consumer's position to keep the common publish path
// off the consumer's cache line.
//
// Exactly one goroutine may produce and exactly one may consume. Violating
// this is a programmer error; the implementation does not detect it.
type SPSCRing struct {
	region      *Region
	mask        uint64
	capacity    int
	maxPayload  int
	head        *atomix.Uint64 // producer position
	headCache   *atomix.Uint64 // producer's cached view of tail
	tail        *atomix.Uint64 // consumer position
	correlation *atomix.Int64
	heartbeat   *atomix.Int64

	// Outstanding claim, producer-owned. pendingSpan == 0 means none.
	pendingStart  uint64
	pendingSpan   int
	pendingLength int
}

// NewSPSCRing creates an SPSC record ring with the given data-area
// capacity in bytes. Capacity must be a power of two >= 64; the backing
// region is capacity + TrailerLength bytes.
func NewSPSCRing(capacity int) *SPSCRing {
	checkRingCapacity(capacity)
	return WrapSPSCRing(NewRegion(capacity + TrailerLength))
}

// WrapSPSCRing overlays an SPSC record ring on an existing region of
// length (power-of-two data size) + TrailerLength. The region's data area
// and trailer must be zeroed, or hold the consistent state of a previous
// ring over the same memory.
func WrapSPSCRing(region *Region) *SPSCRing {
	capacity := region.Len() - TrailerLength
	checkRingCapacity(capacity)
	return &SPSCRing{
		region:      region,
		mask:        uint64(capacity - 1),
		capacity:    capacity,
		maxPayload:  capacity - recordHeaderLength,
		head:        region.uint64Cell(capacity + trailerHeadOffset),
		headCache:   region.uint64Cell(capacity + trailerHeadCacheOffset),
		tail:        region.uint64Cell(capacity + trailerTailOffset),
		correlation: region.int64Cell(capacity + trailerCorrelationOffset),
		heartbeat:   region.int64Cell(capacity + trailerHeartbeatOffset),
	}
}

// Offer copies length bytes from src[srcIndex:] into the ring as one
// record of the given type (producer only). Returns false if insufficient
// contiguous space (after any wrap padding) is available.
func (r *SPSCRing) Offer(typeID int32, src []byte, srcIndex, length int) bool {
	checkSubRange(len(src), srcIndex, length)
	offset := r.TryClaim(typeID, length)
	if offset < 0 {
		return false
	}
	r.region.PutBytes(offset, src, srcIndex, length)
	r.Publish(offset)
	return true
}

// TryClaim reserves space for a record of the given type and payload
// length (producer only). Returns the payload offset within Buffer(), or
// -1 if insufficient space is available. At most one claim may be
// outstanding; complete it with Publish or Abandon before the next
// TryClaim or Offer.
func (r *SPSCRing) TryClaim(typeID int32, length int) int {
	checkTypeID(typeID)
	r.checkPayloadLength(length)
	if r.pendingSpan != 0 {
		panic("ringbuf: claim already outstanding")
	}

	span := recordAlign(recordHeaderLength + length)
	head := r.head.LoadRelaxed()
	offset := int(head & r.mask)

	padding := 0
	if remaining := r.capacity - offset; span > remaining {
		padding = remaining
	}
	if !r.hasSpace(head, span+padding) {
		return -1
	}

	if padding > 0 {
		r.region.putInt32(offset+typeFieldOffset, PaddingTypeID)
		r.region.putInt32(offset+lengthFieldOffset, int32(padding))
		head += uint64(padding)
		r.head.StoreRelease(head)
		offset = 0
	}

	// Header length stays zero until Publish; the payload must be visible
	// before the record is.
	r.region.putInt32(offset+typeFieldOffset, typeID)
	r.region.putInt32(offset+lengthFieldOffset, 0)
	r.pendingStart = head
	r.pendingSpan = span
	r.pendingLength = recordHeaderLength + length
	return offset + recordHeaderLength
}

// Publish finalises a prior TryClaim, making the record visible to the
// consumer (producer only).
func (r *SPSCRing) Publish(offset int) {
	r.checkPending(offset)
	recordOffset := int(r.pendingStart & r.mask)
	r.region.putInt32(recordOffset+lengthFieldOffset, int32(r.pendingLength))
	r.head.StoreRelease(r.pendingStart + uint64(r.pendingSpan))
	r.pendingSpan = 0
}

// Abandon converts a prior TryClaim into a padding record of the same
// span (producer only). The next poll skips it without delivery.
func (r *SPSCRing) Abandon(offset int) {
	r.checkPending(offset)
	recordOffset := int(r.pendingStart & r.mask)
	r.region.putInt32(recordOffset+typeFieldOffset, PaddingTypeID)
	r.region.putInt32(recordOffset+lengthFieldOffset, int32(r.pendingSpan))
	r.head.StoreRelease(r.pendingStart + uint64(r.pendingSpan))
	r.pendingSpan = 0
}

// Poll delivers up to limit records to handler in FIFO order (consumer
// only). Returns the count consumed. Space is released to the producer
// after each record.
func (r *SPSCRing) Poll(handler Handler, limit int) int {
	count := 0
	tail := r.tail.LoadRelaxed()
	head := r.head.LoadAcquire()
	for count < limit && tail < head {
		offset := int(tail & r.mask)
		recordLength := int(r.region.getInt32(offset + lengthFieldOffset))
		typeID := r.region.getInt32(offset + typeFieldOffset)
		tail += uint64(recordAlign(recordLength))
		if typeID != PaddingTypeID {
			handler(typeID, View{
				region: r.region,
				base:   offset + recordHeaderLength,
				length: recordLength - recordHeaderLength,
			})
			count++
		}
		r.tail.StoreRelease(tail)
	}
	return count
}

// ControlledPoll is Poll with per-record control flow (consumer only).
// ControlContinue consumes and continues, ControlBreak consumes and
// stops, ControlAbort stops without consuming the current record, which
// stays first in line for the next poll. The error is always nil.
func (r *SPSCRing) ControlledPoll(handler ControlledHandler, limit int) (int, error) {
	count := 0
	tail := r.tail.LoadRelaxed()
	head := r.head.LoadAcquire()
	for count < limit && tail < head {
		offset := int(tail & r.mask)
		recordLength := int(r.region.getInt32(offset + lengthFieldOffset))
		typeID := r.region.getInt32(offset + typeFieldOffset)
		if typeID == PaddingTypeID {
			tail += uint64(recordAlign(recordLength))
			r.tail.StoreRelease(tail)
			continue
		}
		action := handler(typeID, View{
			region: r.region,
			base:   offset + recordHeaderLength,
			length: recordLength - recordHeaderLength,
		})
		if action == ControlAbort {
			return count, nil
		}
		tail += uint64(recordAlign(recordLength))
		r.tail.StoreRelease(tail)
		count++
		if action == ControlBreak {
			break
		}
	}
	return count, nil
}

// Buffer returns the region the ring is framed over.
func (r *SPSCRing) Buffer() *Region {
	return r.region
}

// Utilization returns head - tail in bytes: how much of the data area is
// occupied by records not yet released by the consumer.
func (r *SPSCRing) Utilization() int {
	tail := r.tail.LoadAcquire()
	head := r.head.LoadAcquire()
	return int(head - tail)
}

// Cap returns the data-area capacity in bytes.
func (r *SPSCRing) Cap() int {
	return r.capacity
}

// MaxPayloadLength returns the largest single payload the ring accepts:
// Cap() minus one record header.
func (r *SPSCRing) MaxPayloadLength() int {
	return r.maxPayload
}

// NextCorrelation mints a fresh monotonically increasing id (producer
// only).
func (r *SPSCRing) NextCorrelation() int64 {
	return r.correlation.Add(1)
}

// MarkHeartbeat release-stores v into the heartbeat cell (producer only).
// A consumer that reads v back is guaranteed to observe all ring writes
// made before this call.
func (r *SPSCRing) MarkHeartbeat(v int64) {
	r.heartbeat.StoreRelease(v)
}

// MarkHeartbeatNow stamps the heartbeat cell with the clock's cached
// epoch nanos (producer only).
func (r *SPSCRing) MarkHeartbeatNow(c *EpochClock) {
	r.heartbeat.StoreRelease(c.UnixNano())
}

// ReadHeartbeat acquire-loads the heartbeat cell.
func (r *SPSCRing) ReadHeartbeat() int64 {
	return r.heartbeat.LoadAcquire()
}

func (r *SPSCRing) hasSpace(head uint64, required int) bool {
	cache := r.headCache.LoadRelaxed()
	if head+uint64(required)-cache > uint64(r.capacity) {
		cache = r.tail.LoadAcquire()
		r.headCache.StoreRelaxed(cache)
		if head+uint64(required)-cache > uint64(r.capacity) {
			return false
		}
	}
	return true
}

func (r *SPSCRing) checkPayloadLength(length int) {
	if length < 0 || length > r.maxPayload {
		panic("ringbuf: payload length out of range")
	}
}

func (r *SPSCRing) checkPending(offset int) {
	if r.pendingSpan == 0 {
		panic("ringbuf: no outstanding claim")
	}
	if offset != int(r.pendingStart&r.mask)+recordHeaderLength {
		panic("ringbuf: offset was not returned by TryClaim")
	}
}
