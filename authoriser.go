// Copyright 2026 The loadx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package loadx

import (
	"net/http"

	"github.com/loadx/loadx/request"
)

// An Authoriser is a pluggable strategy that decides whether a
// response represents an authorisation failure it can cure by
// retrying with modified credentials.
//
// A factory consults its authorisers in registration order, one at a
// time, never concurrently for the same response. The first authoriser
// that claims a response wins, and its replacement request is
// redispatched in place of the original. Each logical request gets at
// most one authorisation retry overall: once spent, a further claimed
// response is terminal.
//
// Implementations must be safe for concurrent use by multiple
// goroutines, since one factory may dispatch many requests in
// parallel.
type Authoriser interface {
	// ShouldRetry inspects the response received by req. If the
	// response is an authorisation failure this authoriser handles, it
	// returns a replacement request carrying refreshed credentials and
	// true; the replacement may be req itself, mutated through its
	// thread-safe header operations. Otherwise it returns nil and
	// false.
	//
	// ShouldRetry must not read the response body; the body has not
	// been consumed when the chain runs, and is drained by the engine
	// before any redispatch.
	//
	// If req carries a BodyStream, the stream has already been consumed
	// by the failed dispatch and cannot be replayed. A replacement that
	// claims such a request must set a fresh BodyStream, or the
	// redispatch will send an empty body.
	ShouldRetry(req *request.Request, resp *http.Response) (*request.Request, bool)
}

// The AuthoriserFunc type adapts an ordinary function into an
// Authoriser.
type AuthoriserFunc func(req *request.Request, resp *http.Response) (*request.Request, bool)

// ShouldRetry calls f(req, resp).
func (f AuthoriserFunc) ShouldRetry(req *request.Request, resp *http.Response) (*request.Request, bool) {
	return f(req, resp)
}
