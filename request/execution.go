// Copyright 2026 The loadx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// An Execution records the state of one logical dispatch of a Request.
//
// A factory creates an Execution when dispatch begins, updates it as
// transport attempts, transport retries and the authorisation retry
// progress, and returns it as the terminal result. Every terminal
// outcome is delivered exactly once, through exactly one Execution.
//
// Callers should treat the exported fields of a returned Execution as
// read-only.
type Execution struct {
	// ID is an opaque identifier for this dispatch, distinct from the
	// Request's numeric identity. It correlates log lines and debug
	// output across attempts.
	ID string

	// Request is the logical request being dispatched. It is never nil
	// and always refers to the original request, even after an
	// authorisation retry swaps in a replacement for redispatch.
	Request *Request

	// Start and End bound the dispatch in time. End is zero while the
	// dispatch is in flight.
	Start time.Time
	End   time.Time

	// Attempt is the zero-based index of the current transport attempt.
	Attempt int

	// TransportRetries counts transport-level retries performed so far.
	// It is bounded by the request's MaxRetries and is independent of
	// AuthRetries.
	TransportRetries int

	// AuthRetries counts authorisation retries performed. The dispatch
	// engine permits at most one per logical request, so the value is
	// 0 or 1.
	AuthRetries int

	// Response is the HTTP response from the most recent attempt, or
	// nil if the attempt ended in an error or none has completed.
	Response *http.Response

	// Body is the fully buffered response body. It is nil when the
	// dispatch ended in error, and nil in chunked delivery mode, where
	// bytes are handed to the request's ChunkFunc instead of being
	// buffered.
	Body []byte

	// Chunks counts response chunks delivered in chunked mode.
	Chunks int

	// Err is the terminal error of the dispatch, or nil on success.
	// When non-nil it has type *url.Error and wraps one of the engine's
	// error kinds or the transport's error.
	Err error
}

// NewExecution returns a fresh Execution for one dispatch of r.
func NewExecution(r *Request) *Execution {
	return &Execution{
		ID:      uuid.NewString(),
		Request: r,
	}
}

// StatusCode returns the status code of the most recent response, or 0
// if there is no response.
func (e *Execution) StatusCode() int {
	if e.Response == nil {
		return 0
	}
	return e.Response.StatusCode
}

// Header returns the headers of the most recent response. If there is
// no response, the nil header is returned, which is safe for read-only
// use.
func (e *Execution) Header() http.Header {
	if e.Response == nil {
		return nil
	}
	return e.Response.Header
}

// Duration returns the elapsed time of the dispatch: zero before it
// starts, current time minus Start while in flight, and End minus
// Start once ended.
func (e *Execution) Duration() time.Duration {
	if !e.Started() {
		return 0
	}
	if !e.Ended() {
		return time.Since(e.Start)
	}
	return e.End.Sub(e.Start)
}

// Started reports whether the dispatch has started.
func (e *Execution) Started() bool {
	return !e.Start.IsZero()
}

// Ended reports whether the dispatch has ended. Once Ended returns
// true there will be no further changes to the Execution.
func (e *Execution) Ended() bool {
	return !e.End.IsZero()
}
