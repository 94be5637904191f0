// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringbuf

import (
	"fmt"
	"unsafe"

	"code.hybscloud.com/atomix"
)

// Region is a fixed-length, 8-byte-aligned, addressable byte region.
//
// Region exposes primitive reads and writes of widths 1, 2, 4 and 8 at
// arbitrary byte offsets in native byte order, plus bulk byte copy and
// length-prefixed string accessors. It is the substrate the record rings
// are framed over.
//
// Accesses need not be aligned. Every access is bounds-checked and panics
// on violation; the region never silently corrupts adjacent memory.
// Cross-platform portability of serialised content is a caller concern.
type Region struct {
	data []byte
}

// NewRegion allocates a zeroed region of the given length in bytes.
// The base address is 8-byte aligned.
func NewRegion(length int) *Region {
	if length <= 0 {
		panic("ringbuf: region length must be positive")
	}
	// Backing storage is a []uint64 so the base address is word aligned
	// without platform-specific allocation.
	words := make([]uint64, (length+7)/8)
	data := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), length)
	return &Region{data: data}
}

// WrapRegion overlays a region on caller-supplied memory.
// The base address of data must be 8-byte aligned.
func WrapRegion(data []byte) *Region {
	if len(data) == 0 {
		panic("ringbuf: region length must be positive")
	}
	if uintptr(unsafe.Pointer(unsafe.SliceData(data)))&7 != 0 {
		panic("ringbuf: wrapped memory must be 8-byte aligned")
	}
	return &Region{data: data}
}

// Len returns the region length in bytes.
func (r *Region) Len() int {
	return len(r.data)
}

func (r *Region) check(offset, width int) {
	if offset < 0 || width < 0 || offset+width > len(r.data) {
		panic(fmt.Sprintf("ringbuf: region access [%d:%d) out of range [0:%d)", offset, offset+width, len(r.data)))
	}
}

// GetByte reads the byte at offset.
func (r *Region) GetByte(offset int) byte {
	r.check(offset, 1)
	return r.data[offset]
}

// PutByte writes v at offset.
func (r *Region) PutByte(offset int, v byte) {
	r.check(offset, 1)
	r.data[offset] = v
}

// GetInt16 reads a 16-bit signed integer at offset in native byte order.
func (r *Region) GetInt16(offset int) int16 {
	r.check(offset, 2)
	return *(*int16)(unsafe.Pointer(&r.data[offset]))
}

// PutInt16 writes v at offset in native byte order.
func (r *Region) PutInt16(offset int, v int16) {
	r.check(offset, 2)
	*(*int16)(unsafe.Pointer(&r.data[offset])) = v
}

// GetUint16 reads a 16-bit unsigned integer at offset in native byte order.
func (r *Region) GetUint16(offset int) uint16 {
	r.check(offset, 2)
	return *(*uint16)(unsafe.Pointer(&r.data[offset]))
}

// PutUint16 writes v at offset in native byte order.
func (r *Region) PutUint16(offset int, v uint16) {
	r.check(offset, 2)
	*(*uint16)(unsafe.Pointer(&r.data[offset])) = v
}

// GetInt32 reads a 32-bit signed integer at offset in native byte order.
func (r *Region) GetInt32(offset int) int32 {
	r.check(offset, 4)
	return *(*int32)(unsafe.Pointer(&r.data[offset]))
}

// PutInt32 writes v at offset in native byte order.
func (r *Region) PutInt32(offset int, v int32) {
	r.check(offset, 4)
	*(*int32)(unsafe.Pointer(&r.data[offset])) = v
}

// GetUint32 reads a 32-bit unsigned integer at offset in native byte order.
func (r *Region) GetUint32(offset int) uint32 {
	r.check(offset, 4)
	return *(*uint32)(unsafe.Pointer(&r.data[offset]))
}

// PutUint32 writes v at offset in native byte order.
func (r *Region) PutUint32(offset int, v uint32) {
	r.check(offset, 4)
	*(*uint32)(unsafe.Pointer(&r.data[offset])) = v
}

// GetInt64 reads a 64-bit signed integer at offset in native byte order.
func (r *Region) GetInt64(offset int) int64 {
	r.check(offset, 8)
	return *(*int64)(unsafe.Pointer(&r.data[offset]))
}

// PutInt64 writes v at offset in native byte order.
func (r *Region) PutInt64(offset int, v int64) {
	r.check(offset, 8)
	*(*int64)(unsafe.Pointer(&r.data[offset])) = v
}

// GetUint64 reads a 64-bit unsigned integer at offset in native byte order.
func (r *Region) GetUint64(offset int) uint64 {
	r.check(offset, 8)
	return *(*uint64)(unsafe.Pointer(&r.data[offset]))
}

// PutUint64 writes v at offset in native byte order.
func (r *Region) PutUint64(offset int, v uint64) {
	r.check(offset, 8)
	*(*uint64)(unsafe.Pointer(&r.data[offset])) = v
}

// GetBytes copies length bytes starting at offset into dst[dstIndex:].
func (r *Region) GetBytes(offset int, dst []byte, dstIndex, length int) {
	r.check(offset, length)
	checkSubRange(len(dst), dstIndex, length)
	copy(dst[dstIndex:dstIndex+length], r.data[offset:offset+length])
}

// PutBytes copies length bytes from src[srcIndex:] to the region at offset.
func (r *Region) PutBytes(offset int, src []byte, srcIndex, length int) {
	r.check(offset, length)
	checkSubRange(len(src), srcIndex, length)
	copy(r.data[offset:offset+length], src[srcIndex:srcIndex+length])
}

// PutStringASCII writes s at offset as a 4-byte native-order length prefix
// followed by the raw bytes, one byte per character. Returns the total
// number of bytes written.
func (r *Region) PutStringASCII(offset int, s string) int {
	return r.putPrefixed(offset, s)
}

// GetStringASCII reads a string written by PutStringASCII.
func (r *Region) GetStringASCII(offset int) string {
	return r.getPrefixed(offset)
}

// PutStringUTF8 writes the UTF-8 encoded bytes of s at offset with a
// 4-byte native-order length prefix. Returns the total number of bytes
// written.
func (r *Region) PutStringUTF8(offset int, s string) int {
	return r.putPrefixed(offset, s)
}

// GetStringUTF8 reads a string written by PutStringUTF8.
func (r *Region) GetStringUTF8(offset int) string {
	return r.getPrefixed(offset)
}

func (r *Region) putPrefixed(offset int, s string) int {
	r.check(offset, 4+len(s))
	*(*int32)(unsafe.Pointer(&r.data[offset])) = int32(len(s))
	copy(r.data[offset+4:offset+4+len(s)], s)
	return 4 + len(s)
}

func (r *Region) getPrefixed(offset int) string {
	n := int(r.GetInt32(offset))
	r.check(offset+4, n)
	return string(r.data[offset+4 : offset+4+n])
}

func checkSubRange(size, index, length int) {
	if index < 0 || length < 0 || index+length > size {
		panic(fmt.Sprintf("ringbuf: buffer sub-range [%d:%d) out of range [0:%d)", index, index+length, size))
	}
}

// Atomic cell overlays used by the ring trailers and record headers.
// Offsets must be naturally aligned for the cell width.

func (r *Region) uint64Cell(offset int) *atomix.Uint64 {
	return (*atomix.Uint64)(unsafe.Pointer(&r.data[offset]))
}

func (r *Region) int64Cell(offset int) *atomix.Int64 {
	return (*atomix.Int64)(unsafe.Pointer(&r.data[offset]))
}

func (r *Region) int32Cell(offset int) *atomix.Int32 {
	return (*atomix.Int32)(unsafe.Pointer(&r.data[offset]))
}

// Unchecked accessors for the ring hot paths. Offsets are derived from the
// slot-claim protocol, which keeps them in range by construction.

func (r *Region) putInt32(offset int, v int32) {
	*(*int32)(unsafe.Pointer(&r.data[offset])) = v
}

func (r *Region) getInt32(offset int) int32 {
	return *(*int32)(unsafe.Pointer(&r.data[offset]))
}

// View is a bounded window over a region, handed to poll handlers as the
// payload of a delivered record. The zero offset of a View is the first
// payload byte. A View is only valid for the duration of the handler call.
type View struct {
	region *Region
	base   int
	length int
}

// Len returns the window length in bytes. For a record payload this equals
// the payload length the producer published.
func (v View) Len() int {
	return v.length
}

func (v View) check(offset, width int) {
	if offset < 0 || width < 0 || offset+width > v.length {
		panic(fmt.Sprintf("ringbuf: view access [%d:%d) out of range [0:%d)", offset, offset+width, v.length))
	}
}

// GetByte reads the byte at offset within the window.
func (v View) GetByte(offset int) byte {
	v.check(offset, 1)
	return v.region.data[v.base+offset]
}

// PutByte writes b at offset within the window.
func (v View) PutByte(offset int, b byte) {
	v.check(offset, 1)
	v.region.data[v.base+offset] = b
}

// GetInt32 reads a 32-bit signed integer at offset within the window.
func (v View) GetInt32(offset int) int32 {
	v.check(offset, 4)
	return v.region.getInt32(v.base + offset)
}

// PutInt32 writes x at offset within the window.
func (v View) PutInt32(offset int, x int32) {
	v.check(offset, 4)
	v.region.putInt32(v.base+offset, x)
}

// GetInt64 reads a 64-bit signed integer at offset within the window.
func (v View) GetInt64(offset int) int64 {
	v.check(offset, 8)
	return *(*int64)(unsafe.Pointer(&v.region.data[v.base+offset]))
}

// PutInt64 writes x at offset within the window.
func (v View) PutInt64(offset int, x int64) {
	v.check(offset, 8)
	*(*int64)(unsafe.Pointer(&v.region.data[v.base+offset])) = x
}

// GetBytes copies length bytes starting at offset into dst[dstIndex:].
func (v View) GetBytes(offset int, dst []byte, dstIndex, length int) {
	v.check(offset, length)
	v.region.GetBytes(v.base+offset, dst, dstIndex, length)
}

// Bytes appends the window contents to dst and returns the result.
func (v View) Bytes(dst []byte) []byte {
	return append(dst, v.region.data[v.base:v.base+v.length]...)
}
