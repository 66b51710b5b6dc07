// Copyright 2026 The loadx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package loadx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/loadx/loadx/request"
)

// An HTTPDoer implements a Do method in the same manner as the Go
// standard library http.Client from the net/http package.
type HTTPDoer interface {
	// Do sends an HTTP request and returns an HTTP response following
	// policy (such as redirects, cookies, auth) configured on the
	// HTTPDoer.
	//
	// The Do method must follow the contract documented on the Go
	// standard library http.Client from the net/http package.
	Do(r *http.Request) (*http.Response, error)
}

// A Factory dispatches Requests through a fixed, ordered set of
// Authorisers while respecting the rate-limit budget shared across
// every factory minted from the same Service.
//
// Create factories with Service.Factory. A Factory is safe for
// concurrent use by multiple goroutines.
type Factory struct {
	service     *Service
	authorisers []Authoriser
}

// Do dispatches the request and returns its terminal execution state.
//
// Dispatch acquires a rate-limit permit, materializes and sends the
// transport request, retries transport failures per the service's
// retry policy up to the request's MaxRetries, runs the authoriser
// chain on the response, and performs at most one authorisation retry
// for the logical request. Cancellation is observed cooperatively
// before permit acquisition, before a redispatch, and before each
// chunk delivery.
//
// The returned Execution is never nil. Its Err field references the
// same error as the returned error; terminal errors have type
// *url.Error and wrap ErrRateLimited, ErrAuthorisationFailed,
// ErrCancelled or the transport's error, so use errors.Is to
// distinguish them. A response whose status no authoriser claims is
// delivered unchanged, whatever the status code; a non-2XX status is
// not an error.
func (f *Factory) Do(r *request.Request) (*request.Execution, error) {
	e := request.NewExecution(r)
	f.service.metrics.incInflight()
	defer f.service.metrics.decInflight()

	e.Start = time.Now()
	f.dispatch(e)
	e.End = time.Now()
	f.observe(e)
	return e, e.Err
}

// dispatch runs permit-consuming legs until a terminal outcome. The
// first leg dispatches the original request; an authorisation retry
// starts one more leg with the replacement request and a fresh permit.
func (f *Factory) dispatch(e *request.Execution) {
	orig := e.Request
	cur := orig
	for {
		if orig.Cancelled() || cur.Cancelled() {
			e.Err = wrapError(cur, ErrCancelled)
			return
		}
		if err := f.permit(cur); err != nil {
			e.Err = wrapError(cur, err)
			return
		}
		cancel, ok := f.transport(e, cur)
		if !ok {
			return
		}

		// Authoriser chain runs on status and headers only, before the
		// body is consumed, so an unauthorised body is never delivered
		// to chunk callbacks.
		repl, claimed := f.consult(cur, e.Response)
		if !claimed {
			f.readBody(e, cur)
			cancel()
			return
		}
		drain(e.Response.Body)
		cancel()
		if orig.AuthRetried() {
			e.Err = wrapError(cur, ErrAuthorisationFailed)
			return
		}
		orig.MarkAuthRetried()
		e.AuthRetries++
		f.service.metrics.incAuthRetry()
		f.service.logger.Debug("authorisation retry",
			zap.Uint64("request_id", orig.ID()),
			zap.String("execution_id", e.ID),
			zap.Int("status", e.StatusCode()))
		if repl != nil {
			cur = repl
		}
		e.Response = nil
		e.Attempt++
	}
}

// transport performs one dispatch leg: a transport attempt plus any
// transport-level retries the retry policy mandates. It reports false
// when the leg ended in a terminal error (already recorded on e), and
// otherwise leaves the response on e and returns the attempt context's
// cancel function, which the caller must invoke once the response body
// has been consumed.
func (f *Factory) transport(e *request.Execution, r *request.Request) (context.CancelFunc, bool) {
	s := f.service
	for {
		cancel := f.attempt(e, r)
		// A consumed body stream cannot be replayed, so a streamed
		// request never retries at the transport level, the same way
		// net/http declines replays without GetBody.
		if r.BodyStream != nil || !s.policy.Decide(e) {
			if e.Err != nil {
				cancel()
				return nil, false
			}
			return cancel, true
		}
		if e.Response != nil {
			drain(e.Response.Body)
		}
		cancel()

		wait := s.policy.Wait(e)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-r.CancelToken.Done():
			timer.Stop()
			e.Err = wrapError(r, ErrCancelled)
			return nil, false
		}
		e.Response = nil
		e.Err = nil
		e.Body = nil
		e.TransportRetries++
		e.Attempt++
		s.metrics.incTransportRetry()
		s.logger.Debug("transport retry",
			zap.Uint64("request_id", e.Request.ID()),
			zap.String("execution_id", e.ID),
			zap.Int("attempt", e.Attempt),
			zap.Duration("backoff", wait))
	}
}

// attempt materializes and sends one transport request. The returned
// cancel function releases the attempt's context and must be called
// exactly once; the context stays alive so the response body remains
// readable after attempt returns.
func (f *Factory) attempt(e *request.Execution, r *request.Request) context.CancelFunc {
	var ctx context.Context
	var cancel context.CancelFunc
	if r.Timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), r.Timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	if tok := r.CancelToken; tok != nil {
		go func() {
			select {
			case <-tok.Done():
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	hr, err := r.HTTPRequest(ctx)
	if err != nil {
		e.Err = wrapError(r, err)
		return cancel
	}
	if hr.Header.Get("User-Agent") == "" {
		hr.Header.Set("User-Agent", f.service.userAgent)
	}

	resp, err := f.service.doer.Do(hr)
	if err != nil {
		e.Err = wrapError(r, err)
		return cancel
	}
	e.Response = resp
	return cancel
}

// permit acquires one rate-limit permit for a dispatch leg, either
// failing fast with ErrRateLimited or, in queueing mode, waiting for a
// refill while watching the cancellation token.
func (f *Factory) permit(r *request.Request) error {
	s := f.service
	if s.limiter == nil {
		return nil
	}
	if !s.queue {
		if !s.limiter.TryAcquire() {
			s.metrics.incRateLimited()
			return ErrRateLimited
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if tok := r.CancelToken; tok != nil {
		go func() {
			select {
			case <-tok.Done():
				cancel()
			case <-ctx.Done():
			}
		}()
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		if r.Cancelled() {
			return ErrCancelled
		}
		return err
	}
	return nil
}

// consult runs the authoriser chain in registration order. The first
// authoriser claiming the response wins; the chain is never run
// concurrently for one response.
func (f *Factory) consult(r *request.Request, resp *http.Response) (*request.Request, bool) {
	for _, a := range f.authorisers {
		if repl, ok := a.ShouldRetry(r, resp); ok {
			return repl, true
		}
	}
	return nil, false
}

// readBody consumes the response body, either buffering it whole into
// e.Body or, in chunked mode, delivering it incrementally to the
// request's ChunkFunc with a cancellation check before each delivery.
func (f *Factory) readBody(e *request.Execution, r *request.Request) {
	resp := e.Response
	defer func() {
		_ = resp.Body.Close()
	}()

	if !r.Chunked {
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			e.Err = wrapError(r, readErr(r, err))
			return
		}
		e.Body = b
		return
	}

	buf := make([]byte, f.service.chunkSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if r.Cancelled() {
				e.Err = wrapError(r, ErrCancelled)
				return
			}
			if r.ChunkFunc != nil {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				if cerr := r.ChunkFunc(chunk); cerr != nil {
					e.Err = wrapError(r, &ChunkError{Err: cerr})
					return
				}
			}
			e.Chunks++
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			e.Err = wrapError(r, readErr(r, err))
			return
		}
	}
}

// readErr maps body-read failures caused by the request's cancellation
// token to ErrCancelled; the token tears down the attempt context, so
// the read can fail before the cooperative cancellation check runs.
func readErr(r *request.Request, err error) error {
	if r.Cancelled() {
		return ErrCancelled
	}
	return err
}

func (f *Factory) observe(e *request.Execution) {
	outcome := "success"
	var chunkErr *ChunkError
	switch {
	case e.Err == nil:
	case errors.Is(e.Err, ErrRateLimited):
		outcome = "rate_limited"
	case errors.Is(e.Err, ErrAuthorisationFailed):
		outcome = "authorisation_failed"
	case errors.Is(e.Err, ErrCancelled):
		outcome = "cancelled"
	case errors.As(e.Err, &chunkErr):
		outcome = "chunk_aborted"
	default:
		outcome = "transport_failure"
	}
	f.service.metrics.observeDispatch(e.Request.Method, outcome, e.Duration())
	f.service.logger.Debug("dispatch complete",
		zap.Uint64("request_id", e.Request.ID()),
		zap.String("execution_id", e.ID),
		zap.String("outcome", outcome),
		zap.Int("status", e.StatusCode()),
		zap.Int("attempts", e.Attempt+1),
		zap.Duration("duration", e.Duration()))
}

// Get dispatches a GET request to the given URL through f. If the URL
// cannot be parsed, no dispatch begins and the returned Execution is
// nil.
func (f *Factory) Get(url string) (*request.Execution, error) {
	r, err := request.New(http.MethodGet, url, "")
	if err != nil {
		return nil, err
	}
	return f.Do(r)
}

// Post dispatches a POST request to the given URL through f. The body
// may be any of the types accepted by request.BodyBytes: nil, string,
// []byte, io.Reader or io.ReadCloser. If the URL or body is invalid,
// no dispatch begins and the returned Execution is nil.
func (f *Factory) Post(url, contentType string, body interface{}) (*request.Execution, error) {
	b, err := request.BodyBytes(body)
	if err != nil {
		return nil, err
	}
	r, err := request.New(http.MethodPost, url, "")
	if err != nil {
		return nil, err
	}
	r.Body = b
	r.SetHeader("Content-Type", contentType)
	return f.Do(r)
}

// drainLimit bounds how much of a discarded response body is read
// before closing, to keep the connection reusable without buffering
// arbitrarily large unauthorised responses.
const drainLimit = 256 * 1024

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, drainLimit))
	_ = body.Close()
}
