// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringbuf_test

import (
	"encoding/binary"
	"testing"
	"time"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/ringbuf"
)

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func TestSPSCRingConstruction(t *testing.T) {
	r := ringbuf.NewSPSCRing(1024)

	if r.Cap() != 1024 {
		t.Fatalf("Cap: got %d, want 1024", r.Cap())
	}
	if r.MaxPayloadLength() != 1016 {
		t.Fatalf("MaxPayloadLength: got %d, want 1016", r.MaxPayloadLength())
	}
	if r.Buffer().Len() != 1024+ringbuf.TrailerLength {
		t.Fatalf("Buffer().Len: got %d, want %d", r.Buffer().Len(), 1024+ringbuf.TrailerLength)
	}
	if r.Utilization() != 0 {
		t.Fatalf("Utilization: got %d, want 0", r.Utilization())
	}

	mustPanic(t, "non-power-of-two capacity", func() { ringbuf.NewSPSCRing(1000) })
	mustPanic(t, "tiny capacity", func() { ringbuf.NewSPSCRing(32) })
	mustPanic(t, "short region", func() {
		ringbuf.WrapSPSCRing(ringbuf.NewRegion(ringbuf.TrailerLength))
	})
	mustPanic(t, "non-power-of-two region", func() {
		ringbuf.WrapSPSCRing(ringbuf.NewRegion(1000 + ringbuf.TrailerLength))
	})
}

func TestSPSCRingOfferPoll(t *testing.T) {
	r := ringbuf.NewSPSCRing(1024)
	src := pattern(64)

	if !r.Offer(7, src, 0, 64) {
		t.Fatal("Offer failed on empty ring")
	}
	if got := r.Utilization(); got != 72 {
		t.Fatalf("Utilization: got %d, want 72", got)
	}

	polled := r.Poll(func(typeID int32, payload ringbuf.View) {
		if typeID != 7 {
			t.Fatalf("typeID: got %d, want 7", typeID)
		}
		if payload.Len() != 64 {
			t.Fatalf("payload.Len: got %d, want 64", payload.Len())
		}
		got := payload.Bytes(nil)
		for i, b := range got {
			if b != src[i] {
				t.Fatalf("payload[%d]: got %d, want %d", i, b, src[i])
			}
		}
	}, 10)
	if polled != 1 {
		t.Fatalf("Poll: got %d, want 1", polled)
	}
	if got := r.Utilization(); got != 0 {
		t.Fatalf("Utilization after poll: got %d, want 0", got)
	}

	// Empty ring polls zero records.
	if got := r.Poll(func(int32, ringbuf.View) {}, 10); got != 0 {
		t.Fatalf("Poll on empty: got %d, want 0", got)
	}
}

func TestSPSCRingOfferFull(t *testing.T) {
	r := ringbuf.NewSPSCRing(64)
	src := pattern(8)

	for i := range 4 {
		if !r.Offer(1, src, 0, 8) {
			t.Fatalf("Offer(%d) failed", i)
		}
	}
	if r.Offer(1, src, 0, 8) {
		t.Fatal("Offer on full ring succeeded")
	}
	if got := r.Utilization(); got != 64 {
		t.Fatalf("Utilization: got %d, want 64", got)
	}

	// Draining one record frees exactly its span.
	if got := r.Poll(func(int32, ringbuf.View) {}, 1); got != 1 {
		t.Fatalf("Poll: got %d, want 1", got)
	}
	if !r.Offer(2, src, 0, 8) {
		t.Fatal("Offer after drain failed")
	}
}

// A record that exactly fills the remaining contiguous space up to the
// wrap point must land without padding. The padding case is covered by
// TestSPSCRingWrapPadding.
func TestSPSCRingWrap(t *testing.T) {
	r := ringbuf.NewSPSCRing(1024)
	big := pattern(952)

	if !r.Offer(1, big, 0, 952) {
		t.Fatal("Offer(952) failed")
	}
	if got := r.Poll(func(int32, ringbuf.View) {}, 1); got != 1 {
		t.Fatalf("Poll: got %d, want 1", got)
	}

	// 64 contiguous bytes remain; a 56-byte payload fits exactly.
	exact := pattern(56)
	if !r.Offer(2, exact, 0, 56) {
		t.Fatal("Offer(56) into exact remaining space failed")
	}
	if got := r.Utilization(); got != 64 {
		t.Fatalf("Utilization: got %d, want 64 (no padding expected)", got)
	}
	if got := r.Poll(func(int32, ringbuf.View) {}, 1); got != 1 {
		t.Fatalf("Poll: got %d, want 1", got)
	}
}

// A 952-byte record fills bytes [0, 960); after it drains,
// a 128-byte record needs 136 bytes but only 64 remain contiguous, so a
// padding record covers the tail and the record lands at offset 0.
func TestSPSCRingWrapPadding(t *testing.T) {
	r := ringbuf.NewSPSCRing(1024)

	if !r.Offer(1, pattern(952), 0, 952) {
		t.Fatal("Offer(952) failed")
	}
	if got := r.Poll(func(int32, ringbuf.View) {}, 1); got != 1 {
		t.Fatalf("Poll: got %d, want 1", got)
	}

	src := pattern(128)
	if !r.Offer(2, src, 0, 128) {
		t.Fatal("Offer(128) across wrap failed")
	}
	// Padding (64) + record (136) are both outstanding.
	if got := r.Utilization(); got != 200 {
		t.Fatalf("Utilization: got %d, want 200", got)
	}

	polled := r.Poll(func(typeID int32, payload ringbuf.View) {
		if typeID != 2 {
			t.Fatalf("typeID: got %d, want 2", typeID)
		}
		if payload.Len() != 128 {
			t.Fatalf("payload.Len: got %d, want 128", payload.Len())
		}
		got := payload.Bytes(nil)
		for i, b := range got {
			if b != src[i] {
				t.Fatalf("payload[%d]: got %d, want %d", i, b, src[i])
			}
		}
	}, 10)
	if polled != 1 {
		t.Fatalf("Poll: got %d, want 1 (padding must not be delivered)", polled)
	}

	// The wrapped record occupied [0, 136); the next claim lands after it.
	if off := r.TryClaim(3, 8); off != 136+8 {
		t.Fatalf("TryClaim after wrap: got offset %d, want 144", off)
	}
	r.Abandon(136 + 8)
}

func TestSPSCRingClaimPublish(t *testing.T) {
	r := ringbuf.NewSPSCRing(1024)

	off := r.TryClaim(5, 16)
	if off != 8 {
		t.Fatalf("TryClaim: got offset %d, want 8", off)
	}
	r.Buffer().PutInt64(off, 0x1111)
	r.Buffer().PutInt64(off+8, 0x2222)
	r.Publish(off)

	polled := r.Poll(func(typeID int32, payload ringbuf.View) {
		if typeID != 5 {
			t.Fatalf("typeID: got %d, want 5", typeID)
		}
		if got := payload.GetInt64(0); got != 0x1111 {
			t.Fatalf("payload[0]: got %#x, want 0x1111", got)
		}
		if got := payload.GetInt64(8); got != 0x2222 {
			t.Fatalf("payload[8]: got %#x, want 0x2222", got)
		}
	}, 1)
	if polled != 1 {
		t.Fatalf("Poll: got %d, want 1", polled)
	}
}

// An abandoned claim is invisible to the consumer; the
// next published record is the only one delivered.
func TestSPSCRingClaimAbandon(t *testing.T) {
	r := ringbuf.NewSPSCRing(1024)

	off := r.TryClaim(1, 64)
	if off < 8 {
		t.Fatalf("TryClaim: got offset %d, want >= 8", off)
	}
	r.Abandon(off)

	if !r.Offer(2, pattern(32), 0, 32) {
		t.Fatal("Offer after abandon failed")
	}

	var types []int32
	polled := r.Poll(func(typeID int32, payload ringbuf.View) {
		types = append(types, typeID)
		if payload.Len() != 32 {
			t.Fatalf("payload.Len: got %d, want 32", payload.Len())
		}
	}, 10)
	if polled != 1 || len(types) != 1 || types[0] != 2 {
		t.Fatalf("Poll after abandon: got %d records %v, want one record of type 2", polled, types)
	}
}

// BREAK consumes the record it was returned for and stops.
func TestSPSCRingControlledPollBreak(t *testing.T) {
	r := ringbuf.NewSPSCRing(1024)
	for typeID := int32(1); typeID <= 3; typeID++ {
		if !r.Offer(typeID, pattern(8), 0, 8) {
			t.Fatalf("Offer(%d) failed", typeID)
		}
	}

	count, err := r.ControlledPoll(func(typeID int32, _ ringbuf.View) ringbuf.ControlAction {
		if typeID == 2 {
			return ringbuf.ControlBreak
		}
		return ringbuf.ControlContinue
	}, 10)
	if err != nil {
		t.Fatalf("ControlledPoll: %v", err)
	}
	if count != 2 {
		t.Fatalf("ControlledPoll: got %d, want 2", count)
	}

	var last int32
	if got := r.Poll(func(typeID int32, _ ringbuf.View) { last = typeID }, 10); got != 1 {
		t.Fatalf("Poll: got %d, want 1", got)
	}
	if last != 3 {
		t.Fatalf("remaining record: got type %d, want 3", last)
	}
}

// ABORT leaves the current record first in line for the next poll.
func TestSPSCRingControlledPollAbort(t *testing.T) {
	r := ringbuf.NewSPSCRing(1024)
	for typeID := int32(1); typeID <= 2; typeID++ {
		if !r.Offer(typeID, pattern(8), 0, 8) {
			t.Fatalf("Offer(%d) failed", typeID)
		}
	}

	count, err := r.ControlledPoll(func(int32, ringbuf.View) ringbuf.ControlAction {
		return ringbuf.ControlAbort
	}, 10)
	if err != nil {
		t.Fatalf("ControlledPoll: %v", err)
	}
	if count != 0 {
		t.Fatalf("ControlledPoll with abort: got %d, want 0", count)
	}

	var types []int32
	if got := r.Poll(func(typeID int32, _ ringbuf.View) { types = append(types, typeID) }, 10); got != 2 {
		t.Fatalf("Poll: got %d, want 2", got)
	}
	if types[0] != 1 || types[1] != 2 {
		t.Fatalf("order after abort: got %v, want [1 2]", types)
	}
}

func TestSPSCRingPreconditions(t *testing.T) {
	r := ringbuf.NewSPSCRing(1024)
	src := pattern(16)

	mustPanic(t, "zero type id", func() { r.Offer(0, src, 0, 16) })
	mustPanic(t, "negative type id", func() { r.Offer(-2, src, 0, 16) })
	mustPanic(t, "padding type id", func() { r.Offer(ringbuf.PaddingTypeID, src, 0, 16) })
	mustPanic(t, "negative length", func() { r.TryClaim(1, -1) })
	mustPanic(t, "oversized payload", func() { r.TryClaim(1, r.MaxPayloadLength()+1) })
	mustPanic(t, "publish without claim", func() { r.Publish(8) })
	mustPanic(t, "abandon without claim", func() { r.Abandon(8) })

	off := r.TryClaim(1, 8)
	mustPanic(t, "claim while outstanding", func() { r.TryClaim(1, 8) })
	mustPanic(t, "publish wrong offset", func() { r.Publish(off + 8) })
	r.Publish(off)
}

func TestSPSCRingCorrelation(t *testing.T) {
	r := ringbuf.NewSPSCRing(1024)

	first := r.NextCorrelation()
	second := r.NextCorrelation()
	if second <= first {
		t.Fatalf("correlation not increasing: %d then %d", first, second)
	}
}

func TestSPSCRingHeartbeat(t *testing.T) {
	r := ringbuf.NewSPSCRing(1024)

	if got := r.ReadHeartbeat(); got != 0 {
		t.Fatalf("initial heartbeat: got %d, want 0", got)
	}
	r.MarkHeartbeat(77)
	if got := r.ReadHeartbeat(); got != 77 {
		t.Fatalf("heartbeat: got %d, want 77", got)
	}

	clock := ringbuf.NewEpochClockWithResolution(time.Millisecond)
	defer clock.Stop()
	r.MarkHeartbeatNow(clock)
	if got := r.ReadHeartbeat(); got <= 77 {
		t.Fatalf("heartbeat after MarkHeartbeatNow: got %d, want epoch nanos", got)
	}
}

// One producer, one consumer, enough records to lap the ring many times.
// Delivery must be in order with payloads intact across every wrap.
func TestSPSCRingConcurrent(t *testing.T) {
	if ringbuf.RaceEnabled {
		t.Skip("skip: cross-variable memory ordering confuses the race detector")
	}

	total := 200_000
	if testing.Short() {
		total = 20_000
	}

	r := ringbuf.NewSPSCRing(1 << 14)

	go func() {
		src := make([]byte, 8)
		backoff := iox.Backoff{}
		for i := 0; i < total; i++ {
			binary.NativeEndian.PutUint64(src, uint64(i))
			for !r.Offer(1, src, 0, 8) {
				backoff.Wait()
			}
			backoff.Reset()
		}
	}()

	next := int64(0)
	deadline := time.Now().Add(30 * time.Second)
	backoff := iox.Backoff{}
	for next < int64(total) {
		polled := r.Poll(func(typeID int32, payload ringbuf.View) {
			if typeID != 1 {
				t.Errorf("typeID: got %d, want 1", typeID)
			}
			if got := payload.GetInt64(0); got != next {
				t.Errorf("out of order: got %d, want %d", got, next)
			}
			next++
		}, 256)
		if polled == 0 {
			if time.Now().After(deadline) {
				t.Fatalf("timeout: consumed %d of %d", next, total)
			}
			backoff.Wait()
			continue
		}
		backoff.Reset()
	}
}
