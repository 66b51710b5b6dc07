// Copyright 2026 The loadx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package loadx

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/loadx/loadx/ratelimit"
	"github.com/loadx/loadx/request"
	"github.com/loadx/loadx/retry"
)

// DefaultChunkSize is the read size used for chunked response
// delivery unless overridden with WithChunkSize.
const DefaultChunkSize = 32 * 1024

// A Service is the process-wide construction point of the dispatch
// engine. It owns the user-agent string and the single rate limiter
// shared by every Factory it mints: factories from one Service compete
// for the same budget, giving process-wide rather than per-factory
// fairness.
//
// Create a Service with NewService and factories with Service.Factory.
// A Service is safe for concurrent use by multiple goroutines.
type Service struct {
	userAgent string
	limiter   *ratelimit.Limiter
	doer      HTTPDoer
	policy    retry.Policy
	logger    *zap.Logger
	metrics   *metrics
	queue     bool
	chunkSize int
}

// An Option configures a Service.
type Option func(*Service)

// NewService constructs a Service reporting the given user agent on
// every request whose caller has not set one.
//
// Without options the Service uses an unlimited dispatch budget (no
// rate limiter), the default retry policy, a default transport whose
// redirect policy honours each request's StopRedirects flag, no
// logging and no metrics.
func NewService(userAgent string, opts ...Option) *Service {
	s := &Service{
		userAgent: userAgent,
		policy:    retry.DefaultPolicy,
		logger:    zap.NewNop(),
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.doer == nil {
		s.doer = defaultDoer()
	}
	return s
}

// WithRateLimit gives the Service a shared token-bucket budget of
// capacity permits, one permit refilling per interval. Every factory
// minted from the Service draws on this one budget.
func WithRateLimit(capacity int, interval time.Duration) Option {
	return func(s *Service) {
		s.limiter = ratelimit.New(capacity, interval)
	}
}

// WithQueueing makes dispatch wait for a rate-limit refill instead of
// failing fast with ErrRateLimited. Waits are timer-based and abort
// when the request's cancellation token fires.
func WithQueueing() Option {
	return func(s *Service) {
		s.queue = true
	}
}

// WithHTTPDoer sets the transport used to send materialized requests.
// Note that a custom HTTPDoer is responsible for its own redirect
// policy; the per-request StopRedirects flag is only honoured by the
// default transport, or by custom transports that consult
// request.StopRedirectsRequested.
func WithHTTPDoer(d HTTPDoer) Option {
	return func(s *Service) {
		s.doer = d
	}
}

// WithRetryPolicy sets the transport-level retry policy applied to
// every dispatch.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Service) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithLogger sets the logger used for dispatch debug logging.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics registers the engine's Prometheus collectors with reg
// and enables instrumentation of every factory minted from the
// Service.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Service) {
		s.metrics = newMetrics(reg)
	}
}

// WithChunkSize sets the read size for chunked response delivery.
// Values below one are ignored.
func WithChunkSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// Factory mints a Factory bound to the given authorisers, consulted in
// the given order, and sharing the Service's rate limiter, transport,
// retry policy and instrumentation.
func (s *Service) Factory(authorisers ...Authoriser) *Factory {
	as := make([]Authoriser, len(authorisers))
	copy(as, authorisers)
	return &Factory{service: s, authorisers: as}
}

// UserAgent returns the user-agent string the Service attaches to
// outgoing requests.
func (s *Service) UserAgent() string {
	return s.userAgent
}

func defaultDoer() HTTPDoer {
	return &http.Client{
		CheckRedirect: func(req *http.Request, _ []*http.Request) error {
			if request.StopRedirectsRequested(req.Context()) {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}
