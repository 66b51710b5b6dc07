// Copyright 2026 The loadx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"math/rand"
	"sync"
	"time"

	"github.com/loadx/loadx/request"
)

// A Waiter specifies how long to back off before the next transport
// retry. The dispatch engine only consults the Waiter after the
// Decider has decided to retry.
//
// Implementations must be safe for concurrent use by multiple
// goroutines.
type Waiter interface {
	Wait(e *request.Execution) time.Duration
}

// DefaultWaiter backs off with full jitter over an exponential ceiling
// starting at 50 milliseconds and capped at 1 second.
var DefaultWaiter = NewExpWaiter(50*time.Millisecond, time.Second, rand.NewSource(time.Now().UnixNano()))

// NewFixedWaiter returns a Waiter that always waits d.
func NewFixedWaiter(d time.Duration) Waiter {
	return fixedWaiter(d)
}

type fixedWaiter time.Duration

func (w fixedWaiter) Wait(_ *request.Execution) time.Duration {
	return time.Duration(w)
}

// NewExpWaiter returns a Waiter implementing exponential backoff with
// optional full jitter, following the "Full Jitter" formula from
// https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter.
//
// The ceiling for a wait is min(base << retries, max); with a non-nil
// jitter source the wait is drawn uniformly from [0, ceiling),
// otherwise the ceiling itself is used. NewExpWaiter panics unless
// 0 < base <= max.
func NewExpWaiter(base, max time.Duration, src rand.Source) Waiter {
	if base < 1 {
		panic("loadx/retry: base must be positive")
	}
	if max < base {
		panic("loadx/retry: max must be at least base")
	}
	w := &expWaiter{base: base, max: max}
	if src != nil {
		w.rand = rand.New(src)
	}
	return w
}

type expWaiter struct {
	base time.Duration
	max  time.Duration
	lock sync.Mutex
	rand *rand.Rand
}

func (w *expWaiter) Wait(e *request.Execution) time.Duration {
	shift := e.TransportRetries
	exp := int64(1) << shift
	if shift > 62 || exp < 1 {
		exp = 1<<63 - 1
	}

	ceil := int64(w.base) * exp
	if ceil < int64(w.base) || ceil > int64(w.max) {
		ceil = int64(w.max)
	}

	if w.rand == nil || ceil <= 0 {
		return time.Duration(ceil)
	}
	w.lock.Lock()
	defer w.lock.Unlock()
	return time.Duration(w.rand.Int63n(ceil))
}
