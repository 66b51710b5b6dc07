// Copyright 2026 The loadx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	urlpkg "net/url"
	"sync"
	"time"
)

const nilCtxMsg = "loadx/request: nil context"

// A Request is an identity-bearing description of one logical HTTP
// call. Unlike the lower-level http.Request, which is only suitable
// for a single attempt on the wire, a Request survives retries: the
// dispatching factory materializes a fresh http.Request from it for
// every attempt.
//
// Every Request carries a process-unique, strictly increasing
// identifier assigned at construction. The identifier is the tracking
// key used by the dispatch engine and is never reused within a process
// lifetime.
//
// The exported configuration fields are owned by the constructing
// caller and must not be modified once the Request has been handed to
// a factory for dispatch. The header map is the exception: it is
// guarded by a per-request lock and may be mutated from any goroutine
// at any time, including while the Request is in flight.
type Request struct {
	// Method is the HTTP method. The empty string means GET. Only the
	// closed set GET, POST, PUT, PATCH, DELETE and HEAD is accepted by
	// New.
	Method string

	// Body is the pre-buffered request body. A nil or empty body means
	// no request body is sent. Ignored when BodyStream is set.
	Body []byte

	// BodyStream is a streaming request body. When non-nil it takes
	// precedence over Body, and no Content-Length is set on the
	// materialized request.
	//
	// A stream cannot be replayed once consumed, so a Request with a
	// BodyStream is never retried at the transport level regardless of
	// MaxRetries. An authorisation retry of a streamed request must
	// carry a fresh stream on the replacement; see Authoriser.
	BodyStream io.ReadCloser

	// MaxRetries is the ceiling on transport-level retries for this
	// Request. It is independent of the single authorisation retry:
	// transport retries never consume or reset the authorisation-retry
	// flag.
	MaxRetries int

	// Timeout bounds each individual transport attempt. Zero means no
	// per-attempt timeout.
	Timeout time.Duration

	// SkipCache asks intermediaries not to serve or store a cached
	// response for this request.
	SkipCache bool

	// WaitsForConnectivity indicates the caller prefers the transport
	// to wait for connectivity rather than fail fast. It is advisory
	// configuration carried for transports that support it.
	WaitsForConnectivity bool

	// StopRedirects stops the default transport from following
	// redirects for this request; the redirect response is returned
	// as-is.
	StopRedirects bool

	// Chunked selects incremental response delivery: response bytes
	// are handed to ChunkFunc in order as they are read instead of
	// being buffered to completion.
	Chunked bool

	// ChunkFunc receives each response chunk when Chunked is set. A
	// non-nil error return aborts the read. Ignored unless Chunked.
	ChunkFunc func(chunk []byte) error

	// UserInfo carries arbitrary caller data. The dispatch engine never
	// touches it; it is copied (shallowly, entry by entry) by Copy.
	UserInfo map[string]interface{}

	// CancelToken is a non-owning reference to a caller-held
	// cancellation token. The Request never manages the token's
	// lifetime; a nil token is never cancelled.
	CancelToken *Token

	id     uint64
	url    *urlpkg.URL
	source string

	mu          sync.Mutex
	headers     map[string]string
	authRetried bool
}

// New constructs a Request for the given method, URL and source
// identifier. An empty method means GET; any method outside the closed
// set GET, POST, PUT, PATCH, DELETE, HEAD is rejected. The source
// identifier names the subsystem issuing the request and is immutable,
// as is the URL.
//
// The returned Request has a freshly allocated unique identifier.
func New(method, url, source string) (*Request, error) {
	if method == "" {
		method = http.MethodGet
	}
	if !validMethod(method) {
		return nil, fmt.Errorf("loadx/request: invalid method %q", method)
	}
	u, err := urlpkg.Parse(url)
	if err != nil {
		return nil, err
	}
	return &Request{
		Method:  method,
		id:      nextID(),
		url:     u,
		source:  source,
		headers: make(map[string]string),
	}, nil
}

// ID returns the process-unique identifier assigned to this Request at
// construction. Identifiers are strictly increasing in allocation
// order and never reused within a process lifetime.
func (r *Request) ID() uint64 {
	return r.id
}

// URL returns the request URL set at construction. The returned value
// must be treated as read-only.
func (r *Request) URL() *urlpkg.URL {
	return r.url
}

// Source returns the source identifier set at construction.
func (r *Request) Source() string {
	return r.source
}

// SetHeader sets the header name to value. An empty name is a no-op.
// An empty value removes the header. All header mutation is serialized
// through the request's lock, so concurrent SetHeader, DeleteHeader
// and Headers calls are safe and a reader never observes a
// partially-applied write.
func (r *Request) SetHeader(name, value string) {
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if value == "" {
		delete(r.headers, name)
		return
	}
	r.headers[name] = value
}

// DeleteHeader removes the header name, if present.
func (r *Request) DeleteHeader(name string) {
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.headers, name)
}

// Header returns the current value of the header name, or the empty
// string if the header is not set.
func (r *Request) Header(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.headers[name]
}

// Headers returns a snapshot of the request headers taken under the
// request's lock. The snapshot is a copy: later mutation of the
// Request is not reflected in it, and mutating it does not affect the
// Request.
func (r *Request) Headers() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Request) snapshotLocked() map[string]string {
	snap := make(map[string]string, len(r.headers))
	for k, v := range r.headers {
		snap[k] = v
	}
	return snap
}

// AuthRetried reports whether the authorisation-retry path has already
// been taken for this Request. Once true, a subsequent unauthorised
// response is terminal.
func (r *Request) AuthRetried() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.authRetried
}

// MarkAuthRetried records that the authorisation-retry path has been
// taken for this Request. It is set on the original request before the
// replacement is redispatched and is never cleared.
func (r *Request) MarkAuthRetried() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authRetried = true
}

// Copy returns a new Request representing a fresh logical attempt at
// the same call. The copy has a freshly allocated unique identifier, a
// deep copy of the header map (taken under the source's lock), a clear
// authorisation-retry flag, and every configuration field copied
// verbatim. The copy shares the cancellation token reference and, when
// present, the body stream, since a stream cannot be duplicated.
func (r *Request) Copy() *Request {
	r.mu.Lock()
	headers := r.snapshotLocked()
	r.mu.Unlock()

	var u *urlpkg.URL
	if r.url != nil {
		u2 := *r.url
		u = &u2
	}
	body := make([]byte, len(r.Body))
	copy(body, r.Body)
	var userInfo map[string]interface{}
	if r.UserInfo != nil {
		userInfo = make(map[string]interface{}, len(r.UserInfo))
		for k, v := range r.UserInfo {
			userInfo[k] = v
		}
	}
	return &Request{
		Method:               r.Method,
		Body:                 body,
		BodyStream:           r.BodyStream,
		MaxRetries:           r.MaxRetries,
		Timeout:              r.Timeout,
		SkipCache:            r.SkipCache,
		WaitsForConnectivity: r.WaitsForConnectivity,
		StopRedirects:        r.StopRedirects,
		Chunked:              r.Chunked,
		ChunkFunc:            r.ChunkFunc,
		UserInfo:             userInfo,
		CancelToken:          r.CancelToken,
		id:                   nextID(),
		url:                  u,
		source:               r.source,
		headers:              headers,
	}
}

// Cancelled reports whether the request's cancellation token, if any,
// has been cancelled.
func (r *Request) Cancelled() bool {
	return r.CancelToken.Cancelled()
}

type stopRedirectsKey struct{}

// StopRedirectsRequested reports whether the http.Request was
// materialized from a Request with StopRedirects set. The default
// transport's redirect policy consults it.
func StopRedirectsRequested(ctx context.Context) bool {
	v, _ := ctx.Value(stopRedirectsKey{}).(bool)
	return v
}

// HTTPRequest materializes a transport-level http.Request from the
// current state of r. The context ctx, which must be non-nil, bounds
// the transport attempt.
//
// Materialization copies every header from a snapshot taken under the
// request's lock, injects the process-wide Accept-Language value when
// the caller has not set one, applies the cache policy, and attaches
// the body. A body stream takes precedence over a byte body; the
// Content-Length is only set for a byte body, whose length is known.
func (r *Request) HTTPRequest(ctx context.Context) (*http.Request, error) {
	if ctx == nil {
		return nil, errors.New(nilCtxMsg)
	}
	if r.StopRedirects {
		ctx = context.WithValue(ctx, stopRedirectsKey{}, true)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	hr := (&http.Request{
		Method: method,
		URL:    r.url,
		Header: make(http.Header),
		Host:   r.url.Host,
	}).WithContext(ctx)

	for name, value := range r.Headers() {
		hr.Header.Set(name, value)
	}
	if hr.Header.Get("Accept-Language") == "" {
		hr.Header.Set("Accept-Language", acceptLanguage())
	}
	if r.SkipCache && hr.Header.Get("Cache-Control") == "" {
		hr.Header.Set("Cache-Control", "no-store")
	}

	switch {
	case r.BodyStream != nil:
		hr.Body = r.BodyStream
	case len(r.Body) > 0:
		body := r.Body
		hr.Body = io.NopCloser(bytes.NewReader(body))
		hr.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		hr.ContentLength = int64(len(body))
	}
	return hr, nil
}

func validMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodHead:
		return true
	}
	return false
}
