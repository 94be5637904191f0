// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringbuf_test

import (
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/ringbuf"
)

// 4 producers enqueue disjoint integer ranges, 4 consumers
// dequeue concurrently. The union of dequeued integers must be exactly
// the union of the produced ranges.
func TestMPMCQueueStress(t *testing.T) {
	if ringbuf.RaceEnabled {
		t.Skip("skip: cross-variable memory ordering confuses the race detector")
	}

	const producers, consumers = 4, 4
	perProducer := 100_000
	if testing.Short() {
		perProducer = 10_000
	}
	total := int64(producers * perProducer)

	q := ringbuf.NewMPMCQueue[int](1 << 14)
	seen := make([]atomix.Int32, total)
	var consumed atomix.Int64

	var prodWg sync.WaitGroup
	for p := 0; p < producers; p++ {
		prodWg.Add(1)
		go func(p int) {
			defer prodWg.Done()
			backoff := iox.Backoff{}
			for i := p * perProducer; i < (p+1)*perProducer; i++ {
				v := i
				for q.Enqueue(&v) != nil {
					backoff.Wait()
				}
				backoff.Reset()
			}
		}(p)
	}

	var consWg sync.WaitGroup
	for c := 0; c < consumers; c++ {
		consWg.Add(1)
		go func() {
			defer consWg.Done()
			backoff := iox.Backoff{}
			for consumed.Load() < total {
				v, err := q.Dequeue()
				if err != nil {
					backoff.Wait()
					continue
				}
				backoff.Reset()
				seen[v].Add(1)
				consumed.Add(1)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		prodWg.Wait()
		consWg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(120 * time.Second):
		t.Fatalf("timeout: consumed %d of %d", consumed.Load(), total)
	}

	for i := range seen {
		if got := seen[i].Load(); got != 1 {
			t.Fatalf("value %d dequeued %d times, want exactly once", i, got)
		}
	}
}

func TestMPSCQueueStress(t *testing.T) {
	if ringbuf.RaceEnabled {
		t.Skip("skip: cross-variable memory ordering confuses the race detector")
	}

	const producers = 4
	perProducer := 100_000
	if testing.Short() {
		perProducer = 10_000
	}
	total := producers * perProducer

	q := ringbuf.NewMPSCQueue[int](1 << 12)
	seen := make([]atomix.Int32, total)

	var prodWg sync.WaitGroup
	for p := 0; p < producers; p++ {
		prodWg.Add(1)
		go func(p int) {
			defer prodWg.Done()
			backoff := iox.Backoff{}
			for i := p * perProducer; i < (p+1)*perProducer; i++ {
				v := i
				for q.Enqueue(&v) != nil {
					backoff.Wait()
				}
				backoff.Reset()
			}
		}(p)
	}

	deadline := time.Now().Add(120 * time.Second)
	backoff := iox.Backoff{}
	for consumed := 0; consumed < total; {
		v, err := q.Dequeue()
		if err != nil {
			if time.Now().After(deadline) {
				t.Fatalf("timeout: consumed %d of %d", consumed, total)
			}
			backoff.Wait()
			continue
		}
		backoff.Reset()
		seen[v].Add(1)
		consumed++
	}
	prodWg.Wait()

	for i := range seen {
		if got := seen[i].Load(); got != 1 {
			t.Fatalf("value %d dequeued %d times, want exactly once", i, got)
		}
	}
}

// One producer, one consumer: delivery must preserve program order.
func TestSPSCQueueConcurrent(t *testing.T) {
	if ringbuf.RaceEnabled {
		t.Skip("skip: cross-variable memory ordering confuses the race detector")
	}

	total := 500_000
	if testing.Short() {
		total = 50_000
	}

	q := ringbuf.NewSPSCQueue[int](1 << 10)

	go func() {
		backoff := iox.Backoff{}
		for i := 0; i < total; i++ {
			v := i
			for q.Enqueue(&v) != nil {
				backoff.Wait()
			}
			backoff.Reset()
		}
	}()

	deadline := time.Now().Add(60 * time.Second)
	backoff := iox.Backoff{}
	for next := 0; next < total; {
		v, err := q.Dequeue()
		if err != nil {
			if time.Now().After(deadline) {
				t.Fatalf("timeout: consumed %d of %d", next, total)
			}
			backoff.Wait()
			continue
		}
		backoff.Reset()
		if v != next {
			t.Fatalf("out of order: got %d, want %d", v, next)
		}
		next++
	}
}
