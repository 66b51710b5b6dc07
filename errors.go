// Copyright 2026 The loadx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package loadx

import (
	"errors"
	"net/url"
	"strings"

	"github.com/loadx/loadx/request"
)

// Sentinel errors for the dispatch engine's terminal outcomes. They
// are always delivered wrapped in a *url.Error, so test them with
// errors.Is.
var (
	// ErrRateLimited is returned when the shared rate limiter denies a
	// permit and the service is configured to fail fast. The transport
	// is never contacted for a rate-limited dispatch.
	ErrRateLimited = errors.New("loadx: rate limited")

	// ErrAuthorisationFailed is returned when an authoriser claims a
	// response as an authorisation failure but the request's single
	// authorisation retry has already been spent.
	ErrAuthorisationFailed = errors.New("loadx: authorisation failed")

	// ErrCancelled is returned when the request's cancellation token
	// is observed cancelled at a suspension point. It is reported
	// distinctly from transport failures so callers can tell "aborted"
	// from "failed".
	ErrCancelled = errors.New("loadx: cancelled")
)

// A ChunkError wraps a non-nil error returned by a request's
// ChunkFunc. It marks the dispatch as aborted by the caller's chunk
// callback rather than failed in transport, and unwraps to the
// callback's error for errors.Is and errors.As.
type ChunkError struct {
	Err error
}

func (e *ChunkError) Error() string {
	return "loadx: chunk delivery aborted: " + e.Err.Error()
}

func (e *ChunkError) Unwrap() error { return e.Err }

// wrapError wraps err in a *url.Error for the given request, matching
// the error shape of the standard HTTP client. An err that is already
// a *url.Error is returned unchanged.
func wrapError(r *request.Request, err error) error {
	if _, ok := err.(*url.Error); ok {
		return err
	}
	return &url.Error{
		Op:  errorOp(r.Method),
		URL: r.URL().String(),
		Err: err,
	}
}

func errorOp(method string) string {
	if method == "" {
		return "Get"
	}
	return method[:1] + strings.ToLower(method[1:])
}
