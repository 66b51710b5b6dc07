// Copyright 2026 The loadx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package loadx

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadx/loadx/request"
	"github.com/loadx/loadx/retry"
)

// doerFunc adapts a function into an HTTPDoer.
type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

type timeoutError struct{}

func (timeoutError) Error() string { return "deadline exceeded" }
func (timeoutError) Timeout() bool { return true }

// bearerAuthoriser claims 401 responses and retries with a bearer
// token.
type bearerAuthoriser struct {
	token  string
	claims int32
}

func (a *bearerAuthoriser) ShouldRetry(r *request.Request, resp *http.Response) (*request.Request, bool) {
	if resp.StatusCode != http.StatusUnauthorized {
		return nil, false
	}
	atomic.AddInt32(&a.claims, 1)
	r.SetHeader("Authorization", "Bearer "+a.token)
	return r, true
}

func fastRetryPolicy() retry.Policy {
	return retry.NewPolicy(
		retry.Budget().And(retry.StatusCode(429, 502, 503, 504).Or(retry.TransientErr)),
		retry.NewFixedWaiter(time.Millisecond),
	)
}

func newRequest(t *testing.T, method, url string) *request.Request {
	r, err := request.New(method, url, "test")
	require.NoError(t, err)
	return r
}

func TestDo(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	f := NewService("test-agent/1.0").Factory()
	e, err := f.Do(newRequest(t, "GET", srv.URL))
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, http.StatusOK, e.StatusCode())
	assert.Equal(t, []byte("hello"), e.Body)
	assert.Equal(t, 0, e.Attempt)
	assert.Equal(t, 0, e.AuthRetries)
	assert.True(t, e.Started())
	assert.True(t, e.Ended())
	assert.NotEmpty(t, e.ID)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestDoUserAgent(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	f := NewService("test-agent/1.0").Factory()
	t.Run("service user agent attached", func(t *testing.T) {
		_, err := f.Do(newRequest(t, "GET", srv.URL))
		require.NoError(t, err)
		assert.Equal(t, "test-agent/1.0", got.Load())
	})
	t.Run("caller override wins", func(t *testing.T) {
		r := newRequest(t, "GET", srv.URL)
		r.SetHeader("User-Agent", "custom/2.0")
		_, err := f.Do(r)
		require.NoError(t, err)
		assert.Equal(t, "custom/2.0", got.Load())
	})
}

func TestDoAcceptLanguage(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Accept-Language"))
	}))
	defer srv.Close()

	f := NewService("test-agent/1.0").Factory()
	_, err := f.Do(newRequest(t, "GET", srv.URL+"/x"))
	require.NoError(t, err)
	al, _ := got.Load().(string)
	require.NotEmpty(t, al)
	assert.True(t, strings.HasSuffix(strings.Split(al, ", ")[0], ";q=1.00"),
		"first language %q must carry q=1.00", al)
}

func TestAuthorisationRetry(t *testing.T) {
	t.Run("refreshed credentials succeed", func(t *testing.T) {
		var hits int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			if r.Header.Get("Authorization") != "Bearer good" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte("secret"))
		}))
		defer srv.Close()

		auth := &bearerAuthoriser{token: "good"}
		f := NewService("test-agent/1.0").Factory(auth)
		r := newRequest(t, "GET", srv.URL)
		e, err := f.Do(r)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, e.StatusCode())
		assert.Equal(t, []byte("secret"), e.Body)
		assert.Equal(t, 1, e.AuthRetries)
		assert.True(t, r.AuthRetried())
		assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
	})

	t.Run("perpetually rejected credentials are terminal", func(t *testing.T) {
		var hits int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			atomic.AddInt32(&hits, 1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		auth := &bearerAuthoriser{token: "still-bad"}
		f := NewService("test-agent/1.0").Factory(auth)
		e, err := f.Do(newRequest(t, "GET", srv.URL))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAuthorisationFailed)
		assert.Same(t, err, e.Err)
		assert.Equal(t, http.StatusUnauthorized, e.StatusCode(),
			"terminal response stays attached to the execution")
		assert.Equal(t, 1, e.AuthRetries, "exactly one retry, never more")
		assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
	})

	t.Run("unclaimed response delivered unchanged", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("nope"))
		}))
		defer srv.Close()

		auth := &bearerAuthoriser{token: "unused"}
		f := NewService("test-agent/1.0").Factory(auth)
		e, err := f.Do(newRequest(t, "GET", srv.URL))
		require.NoError(t, err, "a non-2XX status no authoriser claims is not an error")
		assert.Equal(t, http.StatusForbidden, e.StatusCode())
		assert.Equal(t, []byte("nope"), e.Body)
		assert.Equal(t, 0, e.AuthRetries)
		assert.EqualValues(t, 0, atomic.LoadInt32(&auth.claims))
	})

	t.Run("first claiming authoriser wins", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				w.WriteHeader(http.StatusUnauthorized)
			}
		}))
		defer srv.Close()

		first := &bearerAuthoriser{token: "first"}
		second := &bearerAuthoriser{token: "second"}
		f := NewService("test-agent/1.0").Factory(first, second)
		e, err := f.Do(newRequest(t, "GET", srv.URL))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, e.StatusCode())
		assert.EqualValues(t, 1, atomic.LoadInt32(&first.claims))
		assert.EqualValues(t, 0, atomic.LoadInt32(&second.claims),
			"later authorisers never consulted once one claims")
	})

	t.Run("declining authoriser passes to the next", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer second" {
				w.WriteHeader(http.StatusUnauthorized)
			}
		}))
		defer srv.Close()

		decline := AuthoriserFunc(func(_ *request.Request, _ *http.Response) (*request.Request, bool) {
			return nil, false
		})
		second := &bearerAuthoriser{token: "second"}
		f := NewService("test-agent/1.0").Factory(decline, second)
		e, err := f.Do(newRequest(t, "GET", srv.URL))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, e.StatusCode())
		assert.EqualValues(t, 1, atomic.LoadInt32(&second.claims))
	})

	t.Run("redispatch consumes a fresh permit", func(t *testing.T) {
		var hits int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			atomic.AddInt32(&hits, 1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		auth := &bearerAuthoriser{token: "any"}
		svc := NewService("test-agent/1.0", WithRateLimit(1, time.Hour))
		e, err := svc.Factory(auth).Do(newRequest(t, "GET", srv.URL))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRateLimited)
		assert.Equal(t, 1, e.AuthRetries)
		assert.EqualValues(t, 1, atomic.LoadInt32(&hits),
			"the redispatch must be gated before contacting the transport")
	})
}

func TestRateLimited(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	t.Run("excess dispatches denied", func(t *testing.T) {
		atomic.StoreInt32(&hits, 0)
		svc := NewService("test-agent/1.0", WithRateLimit(1, time.Hour))
		f := svc.Factory()
		_, err := f.Do(newRequest(t, "GET", srv.URL))
		require.NoError(t, err)
		e, err := f.Do(newRequest(t, "GET", srv.URL))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRateLimited)
		var urlErr *url.Error
		assert.ErrorAs(t, err, &urlErr)
		assert.Nil(t, e.Response, "the transport is never contacted when denied")
		assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
	})

	t.Run("capacity restored after refill", func(t *testing.T) {
		svc := NewService("test-agent/1.0", WithRateLimit(1, 30*time.Millisecond))
		f := svc.Factory()
		_, err := f.Do(newRequest(t, "GET", srv.URL))
		require.NoError(t, err)
		_, err = f.Do(newRequest(t, "GET", srv.URL))
		assert.ErrorIs(t, err, ErrRateLimited)
		time.Sleep(80 * time.Millisecond)
		_, err = f.Do(newRequest(t, "GET", srv.URL))
		assert.NoError(t, err)
	})

	t.Run("queueing waits instead of failing", func(t *testing.T) {
		svc := NewService("test-agent/1.0",
			WithRateLimit(1, 25*time.Millisecond), WithQueueing())
		f := svc.Factory()
		start := time.Now()
		_, err := f.Do(newRequest(t, "GET", srv.URL))
		require.NoError(t, err)
		_, err = f.Do(newRequest(t, "GET", srv.URL))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond,
			"second dispatch must wait out the refill interval")
	})

	t.Run("factories from one service share the budget", func(t *testing.T) {
		svc := NewService("test-agent/1.0", WithRateLimit(2, time.Hour))
		f1 := svc.Factory()
		f2 := svc.Factory()
		_, err := f1.Do(newRequest(t, "GET", srv.URL))
		require.NoError(t, err)
		_, err = f2.Do(newRequest(t, "GET", srv.URL))
		require.NoError(t, err)
		_, err = f1.Do(newRequest(t, "GET", srv.URL))
		assert.ErrorIs(t, err, ErrRateLimited)
		_, err = f2.Do(newRequest(t, "GET", srv.URL))
		assert.ErrorIs(t, err, ErrRateLimited)
	})
}

func TestTransportRetry(t *testing.T) {
	t.Run("retryable status retried within budget", func(t *testing.T) {
		var hits int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if atomic.AddInt32(&hits, 1) <= 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("finally"))
		}))
		defer srv.Close()

		svc := NewService("test-agent/1.0", WithRetryPolicy(fastRetryPolicy()))
		r := newRequest(t, "GET", srv.URL)
		r.MaxRetries = 3
		e, err := svc.Factory().Do(r)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, e.StatusCode())
		assert.Equal(t, []byte("finally"), e.Body)
		assert.Equal(t, 2, e.TransportRetries)
		assert.Equal(t, 2, e.Attempt)
		assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
	})

	t.Run("exhausted budget surfaces the response", func(t *testing.T) {
		var hits int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			atomic.AddInt32(&hits, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		svc := NewService("test-agent/1.0", WithRetryPolicy(fastRetryPolicy()))
		r := newRequest(t, "GET", srv.URL)
		r.MaxRetries = 1
		e, err := svc.Factory().Do(r)
		require.NoError(t, err, "a response that exhausts retries is delivered, not an error")
		assert.Equal(t, http.StatusServiceUnavailable, e.StatusCode())
		assert.Equal(t, 1, e.TransportRetries)
		assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
	})

	t.Run("transient transport errors retried", func(t *testing.T) {
		var calls int32
		doer := doerFunc(func(_ *http.Request) (*http.Response, error) {
			if atomic.AddInt32(&calls, 1) <= 2 {
				return nil, timeoutError{}
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{},
				Body:       io.NopCloser(strings.NewReader("recovered")),
			}, nil
		})
		svc := NewService("test-agent/1.0",
			WithHTTPDoer(doer), WithRetryPolicy(fastRetryPolicy()))
		r := newRequest(t, "GET", "https://foo.com")
		r.MaxRetries = 2
		e, err := svc.Factory().Do(r)
		require.NoError(t, err)
		assert.Equal(t, []byte("recovered"), e.Body)
		assert.Equal(t, 2, e.TransportRetries)
		assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	})

	t.Run("persistent transport errors surface after exhaustion", func(t *testing.T) {
		var calls int32
		doer := doerFunc(func(_ *http.Request) (*http.Response, error) {
			atomic.AddInt32(&calls, 1)
			return nil, timeoutError{}
		})
		svc := NewService("test-agent/1.0",
			WithHTTPDoer(doer), WithRetryPolicy(fastRetryPolicy()))
		r := newRequest(t, "GET", "https://foo.com")
		r.MaxRetries = 1
		e, err := svc.Factory().Do(r)
		require.Error(t, err)
		var urlErr *url.Error
		require.ErrorAs(t, err, &urlErr)
		assert.True(t, urlErr.Timeout())
		assert.NotErrorIs(t, err, ErrCancelled)
		assert.Nil(t, e.Response)
		assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	})

	t.Run("byte bodies replayed in full on retry", func(t *testing.T) {
		var bodies []string
		var mu sync.Mutex
		var hits int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			mu.Lock()
			bodies = append(bodies, string(b))
			mu.Unlock()
			if atomic.AddInt32(&hits, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		}))
		defer srv.Close()

		svc := NewService("test-agent/1.0", WithRetryPolicy(fastRetryPolicy()))
		r := newRequest(t, "POST", srv.URL)
		r.Body = []byte("payload")
		r.MaxRetries = 1
		e, err := svc.Factory().Do(r)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, e.StatusCode())
		assert.Equal(t, 1, e.TransportRetries)
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"payload", "payload"}, bodies,
			"every attempt must carry the complete body")
	})

	t.Run("streamed bodies are never retried", func(t *testing.T) {
		var bodies []string
		var mu sync.Mutex
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			mu.Lock()
			bodies = append(bodies, string(b))
			mu.Unlock()
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		svc := NewService("test-agent/1.0", WithRetryPolicy(fastRetryPolicy()))
		r := newRequest(t, "POST", srv.URL)
		r.BodyStream = io.NopCloser(strings.NewReader("payload"))
		r.MaxRetries = 3
		e, err := svc.Factory().Do(r)
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, e.StatusCode())
		assert.Equal(t, 0, e.TransportRetries,
			"a consumed stream must never be resent")
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"payload"}, bodies)
	})

	t.Run("transport retries never touch the authorisation budget", func(t *testing.T) {
		var hits int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch atomic.AddInt32(&hits, 1) {
			case 1:
				w.WriteHeader(http.StatusServiceUnavailable)
			case 2:
				w.WriteHeader(http.StatusUnauthorized)
			default:
				if r.Header.Get("Authorization") != "Bearer good" {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
			}
		}))
		defer srv.Close()

		auth := &bearerAuthoriser{token: "good"}
		svc := NewService("test-agent/1.0", WithRetryPolicy(fastRetryPolicy()))
		r := newRequest(t, "GET", srv.URL)
		r.MaxRetries = 2
		e, err := svc.Factory(auth).Do(r)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, e.StatusCode())
		assert.Equal(t, 1, e.TransportRetries)
		assert.Equal(t, 1, e.AuthRetries)
		assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
	})
}

func TestCancellation(t *testing.T) {
	t.Run("cancelled before dispatch never contacts the transport", func(t *testing.T) {
		var hits int32
		srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
			atomic.AddInt32(&hits, 1)
		}))
		defer srv.Close()

		tok := request.NewToken()
		tok.Cancel()
		r := newRequest(t, "GET", srv.URL)
		r.CancelToken = tok
		e, err := NewService("test-agent/1.0").Factory().Do(r)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCancelled)
		assert.Nil(t, e.Response)
		assert.EqualValues(t, 0, atomic.LoadInt32(&hits))
	})

	t.Run("cancelled during backoff aborts the retry", func(t *testing.T) {
		doer := doerFunc(func(_ *http.Request) (*http.Response, error) {
			return nil, timeoutError{}
		})
		svc := NewService("test-agent/1.0", WithHTTPDoer(doer),
			WithRetryPolicy(retry.NewPolicy(retry.Budget().And(retry.TransientErr),
				retry.NewFixedWaiter(10*time.Second))))
		tok := request.NewToken()
		r := newRequest(t, "GET", "https://foo.com")
		r.CancelToken = tok
		r.MaxRetries = 5

		go func() {
			time.Sleep(50 * time.Millisecond)
			tok.Cancel()
		}()
		start := time.Now()
		_, err := svc.Factory().Do(r)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCancelled)
		assert.Less(t, time.Since(start), 5*time.Second,
			"cancellation must cut the backoff wait short")
	})

	t.Run("cancelled between chunks suppresses further delivery", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("first"))
			w.(http.Flusher).Flush()
			<-release
			_, _ = w.Write([]byte("second"))
		}))
		defer srv.Close()

		tok := request.NewToken()
		var chunks [][]byte
		var mu sync.Mutex
		r := newRequest(t, "GET", srv.URL)
		r.CancelToken = tok
		r.Chunked = true
		r.ChunkFunc = func(chunk []byte) error {
			mu.Lock()
			chunks = append(chunks, chunk)
			mu.Unlock()
			tok.Cancel()
			close(release)
			return nil
		}
		e, err := NewService("test-agent/1.0").Factory().Do(r)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCancelled)
		mu.Lock()
		defer mu.Unlock()
		require.Len(t, chunks, 1, "no chunk delivered after cancellation")
		assert.Equal(t, []byte("first"), chunks[0])
		assert.Equal(t, 1, e.Chunks)
	})
}

func TestChunkedDelivery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		flusher := w.(http.Flusher)
		for _, part := range []string{"alpha ", "beta ", "gamma"} {
			_, _ = w.Write([]byte(part))
			flusher.Flush()
			time.Sleep(5 * time.Millisecond)
		}
	}))
	defer srv.Close()

	var got []byte
	var mu sync.Mutex
	r := newRequest(t, "GET", srv.URL)
	r.Chunked = true
	r.ChunkFunc = func(chunk []byte) error {
		mu.Lock()
		got = append(got, chunk...)
		mu.Unlock()
		return nil
	}
	e, err := NewService("test-agent/1.0").Factory().Do(r)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, e.StatusCode())
	assert.Nil(t, e.Body, "chunked mode never buffers the body")
	assert.GreaterOrEqual(t, e.Chunks, 1)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "alpha beta gamma", string(got), "chunks delivered in order")
}

func TestChunkFuncError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	chunkErr := io.ErrShortWrite
	r := newRequest(t, "GET", srv.URL)
	r.Chunked = true
	r.ChunkFunc = func(_ []byte) error { return chunkErr }
	_, err := NewService("test-agent/1.0").Factory().Do(r)
	require.Error(t, err)
	assert.ErrorIs(t, err, chunkErr)
	var ce *ChunkError
	require.ErrorAs(t, err, &ce)
	assert.Same(t, chunkErr, ce.Err)
}

func TestPost(t *testing.T) {
	var body atomic.Value
	var contentType atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body.Store(string(b))
		contentType.Store(r.Header.Get("Content-Type"))
	}))
	defer srv.Close()

	f := NewService("test-agent/1.0").Factory()
	e, err := f.Post(srv.URL, "application/json", `{"k":"v"}`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, e.StatusCode())
	assert.Equal(t, `{"k":"v"}`, body.Load())
	assert.Equal(t, "application/json", contentType.Load())

	t.Run("invalid body type", func(t *testing.T) {
		e, err := f.Post(srv.URL, "text/plain", 42)
		require.Error(t, err)
		assert.Nil(t, e, "no dispatch begins when the body cannot be buffered")
	})
}

func TestGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	e, err := NewService("test-agent/1.0").Factory().Get(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), e.Body)

	t.Run("invalid url", func(t *testing.T) {
		e, err := NewService("test-agent/1.0").Factory().Get("http://bad url^")
		require.Error(t, err)
		assert.Nil(t, e, "no dispatch begins when the request cannot be constructed")
	})
}

func TestStreamedRequestBody(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got.Store(string(b))
	}))
	defer srv.Close()

	r := newRequest(t, "POST", srv.URL)
	r.BodyStream = io.NopCloser(strings.NewReader("streamed payload"))
	_, err := NewService("test-agent/1.0").Factory().Do(r)
	require.NoError(t, err)
	assert.Equal(t, "streamed payload", got.Load())
}

func TestConcurrentDispatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewService("test-agent/1.0").Factory()
	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := f.Do(newRequest(t, "GET", srv.URL))
			if err == nil && e.StatusCode() != http.StatusOK {
				err = io.ErrUnexpectedEOF
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
}
