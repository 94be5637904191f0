// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringbuf

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// MPMCRing is a multi-producer multi-consumer record ring buffer.
//
// Producers serialise through a CAS on the producer position; the CAS
// winner owns the claimed bytes exclusively. Because producers publish at
// different speeds, consumers cannot rely on the producer position alone:
// each record header carries a per-record commit signal. The length field
// is stored as the negative total length at claim time and flipped
// positive with a release store on Publish; consumers wait on any record
// whose length is not yet positive.
//
// Consumers serialise through a CAS on the consumer position. Consumed
// spans are handed back to producers strictly in claim order through a
// separate release position, so the capacity bound stays exact while
// handlers of different consumers finish out of order.
//
// A producer that has claimed but not published holds back all consumers
// behind it; a consumer whose handler has not returned holds back release
// of all spans claimed after its own. This is the intentional ordering
// contract. Handlers must return; a handler that never returns stalls the
// ring.
type MPMCRing struct {
	region      *Region
	mask        uint64
	capacity    int
	maxPayload  int
	head        *atomix.Uint64 // producer position (CAS)
	headCache   *atomix.Uint64 // producers' cached view of free
	tail        *atomix.Uint64 // consumer position (CAS)
	free        *atomix.Uint64 // release position, advanced in claim order
	correlation *atomix.Int64
}

// NewMPMCRing creates an MPMC record ring with the given data-area
// capacity in bytes. Capacity must be a power of two >= 64; the backing
// region is capacity + TrailerLength bytes.
func NewMPMCRing(capacity int) *MPMCRing {
	checkRingCapacity(capacity)
	return WrapMPMCRing(NewRegion(capacity + TrailerLength))
}

// WrapMPMCRing overlays an MPMC record ring on an existing region of
// length (power-of-two data size) + TrailerLength. The region's data area
// and trailer must be zeroed, or hold the consistent state of a previous
// ring over the same memory.
func WrapMPMCRing(region *Region) *MPMCRing {
	capacity := region.Len() - TrailerLength
	checkRingCapacity(capacity)
	return &MPMCRing{
		region:      region,
		mask:        uint64(capacity - 1),
		capacity:    capacity,
		maxPayload:  capacity - recordHeaderLength,
		head:        region.uint64Cell(capacity + trailerHeadOffset),
		headCache:   region.uint64Cell(capacity + trailerHeadCacheOffset),
		tail:        region.uint64Cell(capacity + trailerTailOffset),
		free:        region.uint64Cell(capacity + trailerFreeOffset),
		correlation: region.int64Cell(capacity + trailerCorrelationOffset),
	}
}

// Offer copies length bytes from src[srcIndex:] into the ring as one
// record of the given type. Returns false if insufficient contiguous
// space (after any wrap padding) is available.
func (r *MPMCRing) Offer(typeID int32, src []byte, srcIndex, length int) bool {
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
// length, returning the payload offset within Buffer(), or -1 if
// insufficient space is available. The winner of the claim owns the
// reserved bytes exclusively and must complete with Publish or Abandon;
// until then every consumer is held behind this record.
func (r *MPMCRing) TryClaim(typeID int32, length int) int {
	checkTypeID(typeID)
	r.checkPayloadLength(length)

	span := recordAlign(recordHeaderLength + length)
	sw := spin.Wait{}
	for {
		head := r.head.LoadAcquire()
		offset := int(head & r.mask)

		padding := 0
		if remaining := r.capacity - offset; span > remaining {
			padding = remaining
		}
		required := uint64(span + padding)

		cache := r.headCache.LoadRelaxed()
		if head+required-cache > uint64(r.capacity) {
			free := r.free.LoadAcquire()
			if free > head {
				// Stale head snapshot; the ring moved on under us.
				sw.Once()
				continue
			}
			r.headCache.StoreRelaxed(free)
			if head+required-free > uint64(r.capacity) {
				return -1
			}
		}
		if !r.head.CompareAndSwapAcqRel(head, head+required) {
			sw.Once()
			continue
		}

		if padding > 0 {
			// The padding record is published immediately; consumers skip
			// it as soon as its length lands.
			r.region.putInt32(offset+typeFieldOffset, PaddingTypeID)
			r.region.int32Cell(offset+lengthFieldOffset).StoreRelease(int32(padding))
			offset = 0
		}
		r.region.putInt32(offset+typeFieldOffset, typeID)
		r.region.int32Cell(offset+lengthFieldOffset).StoreRelease(int32(-(recordHeaderLength + length)))
		return offset + recordHeaderLength
	}
}

// Publish finalises a prior TryClaim, making the record visible to
// consumers. The payload bytes written before Publish happen-before any
// payload read by the delivering poll.
func (r *MPMCRing) Publish(offset int) {
	cell := r.region.int32Cell(offset - recordHeaderLength + lengthFieldOffset)
	n := cell.LoadRelaxed()
	if n >= 0 {
		panic("ringbuf: offset was not returned by TryClaim")
	}
	cell.StoreRelease(-n)
}

// Abandon converts a prior TryClaim into an immediately consumable
// padding record spanning the claimed bytes.
func (r *MPMCRing) Abandon(offset int) {
	cell := r.region.int32Cell(offset - recordHeaderLength + lengthFieldOffset)
	n := cell.LoadRelaxed()
	if n >= 0 {
		panic("ringbuf: offset was not returned by TryClaim")
	}
	r.region.putInt32(offset-recordHeaderLength+typeFieldOffset, PaddingTypeID)
	cell.StoreRelease(int32(recordAlign(int(-n))))
}

// Poll delivers up to limit records to handler in FIFO order by producer
// commit order. Returns the count consumed. Stops early when the next
// record in line is absent or not yet published.
func (r *MPMCRing) Poll(handler Handler, limit int) int {
	count := 0
	sw := spin.Wait{}
	for count < limit {
		tail := r.tail.LoadAcquire()
		offset := int(tail & r.mask)
		cell := r.region.int32Cell(offset + lengthFieldOffset)
		recordLength := int(cell.LoadAcquire())
		if recordLength <= 0 {
			break
		}
		span := recordAlign(recordLength)
		typeID := r.region.getInt32(offset + typeFieldOffset)
		if !r.tail.CompareAndSwapAcqRel(tail, tail+uint64(span)) {
			sw.Once()
			continue
		}
		if typeID != PaddingTypeID {
			handler(typeID, View{
				region: r.region,
				base:   offset + recordHeaderLength,
				length: recordLength - recordHeaderLength,
			})
			count++
		}
		r.releaseSpan(cell, tail, tail+uint64(span))
	}
	return count
}

// ControlledPoll is Poll with per-record control flow. ControlContinue
// and ControlBreak behave as on the SPSC ring. ControlAbort is not
// supported: the record was already claimed by the consumer position CAS
// and cannot be put back in line, so the poll stops, the record is
// discarded, and the error is ErrAbortUnsupported.
func (r *MPMCRing) ControlledPoll(handler ControlledHandler, limit int) (int, error) {
	count := 0
	sw := spin.Wait{}
	for count < limit {
		tail := r.tail.LoadAcquire()
		offset := int(tail & r.mask)
		cell := r.region.int32Cell(offset + lengthFieldOffset)
		recordLength := int(cell.LoadAcquire())
		if recordLength <= 0 {
			break
		}
		span := recordAlign(recordLength)
		typeID := r.region.getInt32(offset + typeFieldOffset)
		if !r.tail.CompareAndSwapAcqRel(tail, tail+uint64(span)) {
			sw.Once()
			continue
		}
		if typeID == PaddingTypeID {
			r.releaseSpan(cell, tail, tail+uint64(span))
			continue
		}
		action := handler(typeID, View{
			region: r.region,
			base:   offset + recordHeaderLength,
			length: recordLength - recordHeaderLength,
		})
		r.releaseSpan(cell, tail, tail+uint64(span))
		switch action {
		case ControlAbort:
			return count, ErrAbortUnsupported
		case ControlBreak:
			count++
			return count, nil
		default:
			count++
		}
	}
	return count, nil
}

// Buffer returns the region the ring is framed over.
func (r *MPMCRing) Buffer() *Region {
	return r.region
}

// Utilization returns head - tail in bytes: how much of the data area is
// occupied by claimed or published records not yet consumed.
func (r *MPMCRing) Utilization() int {
	tail := r.tail.LoadAcquire()
	head := r.head.LoadAcquire()
	return int(head - tail)
}

// Cap returns the data-area capacity in bytes.
func (r *MPMCRing) Cap() int {
	return r.capacity
}

// MaxPayloadLength returns the largest single payload the ring accepts:
// Cap() minus one record header.
func (r *MPMCRing) MaxPayloadLength() int {
	return r.maxPayload
}

// NextCorrelation mints a fresh monotonically increasing id. Safe for
// concurrent producers.
func (r *MPMCRing) NextCorrelation() int64 {
	return r.correlation.AddAcqRel(1)
}

// releaseSpan scrubs the consumed header and hands [from, to) back to
// producers once every span claimed before it has been released.
func (r *MPMCRing) releaseSpan(cell *atomix.Int32, from, to uint64) {
	cell.StoreRelaxed(0)
	sw := spin.Wait{}
	for !r.free.CompareAndSwapAcqRel(from, to) {
		sw.Once()
	}
}

func (r *MPMCRing) checkPayloadLength(length int) {
	if length < 0 || length > r.maxPayload {
		panic("ringbuf: payload length out of range")
	}
}
