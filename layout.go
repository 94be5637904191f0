// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringbuf

import (
	"unsafe"

	"code.hybscloud.com/atomix"
)

// Record layout. A ring's data area is an array of 8-byte aligned records:
//
//	offset 0: length (int32, native order) - header + payload bytes
//	offset 4: type   (int32, native order)
//	offset 8: payload
//	total:    recordAlign(8 + payload length)
//
// A record with type PaddingTypeID carries no payload semantics and
// consumers skip it. Its length spans either the remainder of the data
// area (padding at the wrap point) or the bytes of an abandoned claim. On the MPMC
// ring the length field doubles as the commit signal: negative while
// claimed, flipped positive on publish, zero where no record exists.
const (
	recordHeaderLength = 8
	lengthFieldOffset  = 0
	typeFieldOffset    = 4
	recordAlignment    = 8
)

// PaddingTypeID is the record type id reserved for padding records.
// It is not a valid caller-supplied type id.
const PaddingTypeID int32 = -1

// CacheLineLength is the padding unit between independently written
// counters.
const CacheLineLength = 64

// Ring trailer. A ring region is data area + trailer; the trailer holds
// the shared counters, one per cache line so producer- and consumer-owned
// cells never share a line. Offsets are relative to the end of the data
// area.
const (
	trailerHeadOffset        = 0 * CacheLineLength // producer position
	trailerHeadCacheOffset   = 1 * CacheLineLength // producer's cached view of free space
	trailerTailOffset        = 2 * CacheLineLength // consumer position
	trailerFreeOffset        = 3 * CacheLineLength // consumer release position (MPMC)
	trailerCorrelationOffset = 4 * CacheLineLength
	trailerHeartbeatOffset   = 5 * CacheLineLength

	// TrailerLength is the number of bytes a ring region carries beyond
	// its power-of-two data area.
	TrailerLength = 6 * CacheLineLength
)

// MinRingCapacity is the smallest supported ring data area.
const MinRingCapacity = 64

// recordAlign rounds n up to the record alignment.
func recordAlign(n int) int {
	return (n + recordAlignment - 1) &^ (recordAlignment - 1)
}

func checkRingCapacity(capacity int) {
	if capacity < MinRingCapacity || capacity&(capacity-1) != 0 {
		panic("ringbuf: ring capacity must be a power of two >= 64")
	}
}

func checkTypeID(typeID int32) {
	if typeID < 1 {
		panic("ringbuf: record type id must be positive")
	}
}

// Trailer cells and record headers are overlaid on region memory, so the
// atomix cell types must be exactly their word size.
var (
	zeroUint64Cell atomix.Uint64
	zeroInt64Cell  atomix.Int64
	zeroInt32Cell  atomix.Int32

	_ [unsafe.Sizeof(zeroUint64Cell) - 8]byte
	_ [8 - unsafe.Sizeof(zeroUint64Cell)]byte
	_ [unsafe.Sizeof(zeroInt64Cell) - 8]byte
	_ [8 - unsafe.Sizeof(zeroInt64Cell)]byte
	_ [unsafe.Sizeof(zeroInt32Cell) - 4]byte
	_ [4 - unsafe.Sizeof(zeroInt32Cell)]byte
)
