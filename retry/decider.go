// Copyright 2026 The loadx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"time"

	"github.com/loadx/loadx/request"
)

// A Decider decides whether the dispatch engine should retry the most
// recent transport attempt.
//
// Implementations must be safe for concurrent use by multiple
// goroutines. Use DeciderFunc to adapt an ordinary function, and
// DeciderFunc.And and DeciderFunc.Or to compose decision trees.
type Decider interface {
	Decide(e *request.Execution) bool
}

// The DeciderFunc type adapts an ordinary function into a Decider and
// provides the logical composition methods And and Or.
type DeciderFunc func(e *request.Execution) bool

// Decide calls f(e).
func (f DeciderFunc) Decide(e *request.Execution) bool {
	return f(e)
}

// And composes two deciders into one that retries only when both
// retry. Short-circuit logic is used: g is not evaluated when f
// declines.
func (f DeciderFunc) And(g DeciderFunc) DeciderFunc {
	return func(e *request.Execution) bool {
		return f(e) && g(e)
	}
}

// Or composes two deciders into one that retries when either retries.
// Short-circuit logic is used: g is not evaluated when f retries.
func (f DeciderFunc) Or(g DeciderFunc) DeciderFunc {
	return func(e *request.Execution) bool {
		return f(e) || g(e)
	}
}

// Budget returns a decider that retries while the execution's
// transport-retry count is below the request's MaxRetries ceiling.
func Budget() DeciderFunc {
	return func(e *request.Execution) bool {
		return e.TransportRetries < e.Request.MaxRetries
	}
}

// Times returns a decider that allows up to n transport retries,
// regardless of the request's own MaxRetries setting.
func Times(n int) DeciderFunc {
	return func(e *request.Execution) bool {
		return e.TransportRetries < n
	}
}

// Before returns a decider that allows retries until the dispatch has
// been running for d.
func Before(d time.Duration) DeciderFunc {
	return func(e *request.Execution) bool {
		return e.Duration() < d
	}
}

// StatusCode returns a decider that retries when the most recent
// attempt received a response carrying one of the given status codes.
func StatusCode(ss ...int) DeciderFunc {
	ss2 := make([]int, len(ss))
	copy(ss2, ss)
	return func(e *request.Execution) bool {
		for _, s := range ss2 {
			if e.StatusCode() == s {
				return true
			}
		}
		return false
	}
}

// TransientErr is a decider that retries when the most recent attempt
// failed with a transient transport error, as reported by Transient.
// It never retries on a received response; compose it with StatusCode
// for status-based retries.
var TransientErr DeciderFunc = func(e *request.Execution) bool {
	return Transient(e.Err)
}
