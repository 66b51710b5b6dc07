// Copyright 2026 The loadx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package ratelimit

import (
	"context"
	"sync/atomic"
	"time"
)

// A Limiter is a token bucket shared by every factory minted from one
// service. It holds up to capacity permits; one permit is refilled per
// interval elapsed, and refill is the only operation that increments
// the budget.
//
// All methods are safe for concurrent use from any number of
// goroutines. The shared counter is maintained with compare-and-swap
// operations only; no acquisition path busy-waits.
type Limiter struct {
	capacity int64
	interval time.Duration
	tokens   int64
	refill   int64 // unix nanoseconds of the last refill accounting
}

// New constructs a Limiter with the given permit capacity and refill
// interval. One permit becomes available again each time interval
// elapses, up to capacity. New panics if capacity is not positive or
// interval is not positive.
func New(capacity int, interval time.Duration) *Limiter {
	if capacity < 1 {
		panic("loadx/ratelimit: capacity must be positive")
	}
	if interval <= 0 {
		panic("loadx/ratelimit: interval must be positive")
	}
	return &Limiter{
		capacity: int64(capacity),
		interval: interval,
		tokens:   int64(capacity),
		refill:   time.Now().UnixNano(),
	}
}

// TryAcquire consumes one permit if one is available and reports
// whether it did. It never blocks.
func (l *Limiter) TryAcquire() bool {
	l.refillElapsed()
	return l.consume()
}

// Acquire consumes one permit, waiting for a refill when none is
// available. It returns nil once a permit is held, or ctx.Err() if the
// context is cancelled first. Waiting is timer-based; Acquire never
// polls in a tight loop.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		if l.TryAcquire() {
			return nil
		}
		timer := time.NewTimer(l.untilRefill(time.Now()))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// refillElapsed credits permits for every full interval elapsed since
// the last refill accounting, capped at capacity.
func (l *Limiter) refillElapsed() {
	now := time.Now().UnixNano()
	for {
		last := atomic.LoadInt64(&l.refill)
		credits := (now - last) / int64(l.interval)
		if credits <= 0 {
			return
		}
		// Advance the accounting clock by whole intervals only, so
		// fractional elapsed time still counts toward the next credit.
		if !atomic.CompareAndSwapInt64(&l.refill, last, last+credits*int64(l.interval)) {
			continue
		}
		for {
			cur := atomic.LoadInt64(&l.tokens)
			next := cur + credits
			if next > l.capacity {
				next = l.capacity
			}
			if atomic.CompareAndSwapInt64(&l.tokens, cur, next) {
				return
			}
		}
	}
}

func (l *Limiter) consume() bool {
	for {
		cur := atomic.LoadInt64(&l.tokens)
		if cur <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt64(&l.tokens, cur, cur-1) {
			return true
		}
	}
}

// untilRefill returns the time remaining until the next permit is
// credited.
func (l *Limiter) untilRefill(now time.Time) time.Duration {
	last := atomic.LoadInt64(&l.refill)
	next := last + int64(l.interval)
	d := time.Duration(next - now.UnixNano())
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}
