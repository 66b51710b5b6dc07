// Copyright 2026 The loadx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"time"

	"github.com/loadx/loadx/request"
)

// A Policy controls transport-level retries during a dispatch. After
// each transport attempt the policy decides whether to retry and, if
// so, how long to back off first.
//
// A Policy never governs the authorisation retry, which is a separate
// at-most-once budget owned by the dispatch engine.
//
// Implementations of Policy must be safe for concurrent use by
// multiple goroutines. A Policy is the composition of a Decider and a
// Waiter; use NewPolicy to build one from existing parts.
type Policy interface {
	Decider
	Waiter
}

// DefaultPolicy retries within the request's MaxRetries budget when
// the attempt failed with a transient transport error or received a
// 429, 502, 503 or 504 response, backing off with jittered exponential
// waits.
var DefaultPolicy Policy = policy{Budget().And(StatusCode(429, 502, 503, 504).Or(TransientErr)), DefaultWaiter}

// Never is a policy that never retries at the transport level.
var Never Policy = policy{never, DefaultWaiter}

var never DeciderFunc = func(_ *request.Execution) bool { return false }

// NewPolicy composes a Decider and a Waiter into a Policy.
func NewPolicy(d Decider, w Waiter) Policy {
	return policy{decider: d, waiter: w}
}

type policy struct {
	decider Decider
	waiter  Waiter
}

func (p policy) Decide(e *request.Execution) bool {
	return p.decider.Decide(e)
}

func (p policy) Wait(e *request.Execution) time.Duration {
	return p.waiter.Wait(e)
}
