// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringbuf

import (
	"time"

	"github.com/agilira/go-timecache"
)

// EpochClock supplies epoch timestamps for heartbeat stamping without a
// time.Now() call on the producer hot path. It reads a cached coarse
// clock; the resolution bounds how stale a stamp can be.
type EpochClock struct {
	cache *timecache.TimeCache
}

// NewEpochClock creates an epoch clock backed by the process-wide default
// time cache.
func NewEpochClock() *EpochClock {
	return &EpochClock{cache: timecache.DefaultCache()}
}

// NewEpochClockWithResolution creates an epoch clock with a dedicated
// cache ticking at the given resolution. Stop it when done.
func NewEpochClockWithResolution(resolution time.Duration) *EpochClock {
	return &EpochClock{cache: timecache.NewWithResolution(resolution)}
}

// UnixNano returns the cached epoch time in nanoseconds.
func (c *EpochClock) UnixNano() int64 {
	return c.cache.CachedTime().UnixNano()
}

// Stop releases the underlying cache. Only stop clocks created with
// NewEpochClockWithResolution; the default cache is shared process-wide.
func (c *EpochClock) Stop() {
	c.cache.Stop()
}
