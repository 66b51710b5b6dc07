// Copyright 2026 The loadx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import "sync/atomic"

// A Token is a caller-held handle used to abort in-flight requests.
//
// The caller owns the Token's lifetime; any Request referencing it
// holds a plain non-owning pointer and never extends that lifetime.
// One Token may be shared by any number of Requests.
//
// Cancel may be called from any goroutine and is idempotent. The
// dispatch engine observes cancellation cooperatively, at defined
// suspension points: before acquiring a rate-limit permit, before a
// redispatch, and before delivering each response chunk. A cancelled
// Request never produces a successful completion.
type Token struct {
	cancelled int32
	done      chan struct{}
}

// NewToken returns a fresh, uncancelled Token.
func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Cancel marks the token cancelled. The first call closes the Done
// channel; subsequent calls have no effect.
func (t *Token) Cancel() {
	if t == nil {
		return
	}
	if atomic.CompareAndSwapInt32(&t.cancelled, 0, 1) {
		close(t.done)
	}
}

// Cancelled reports whether Cancel has been called. A nil Token is
// never cancelled.
func (t *Token) Cancelled() bool {
	return t != nil && atomic.LoadInt32(&t.cancelled) == 1
}

// Done returns a channel that is closed when the token is cancelled.
// A nil Token returns a channel that is never closed.
func (t *Token) Done() <-chan struct{} {
	if t == nil {
		return neverDone
	}
	return t.done
}

var neverDone = make(chan struct{})
