// Copyright 2026 The loadx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package loadx

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics instruments the dispatch engine. A nil *metrics is valid and
// records nothing, so instrumentation stays opt-in via WithMetrics.
type metrics struct {
	dispatches       *prometheus.CounterVec
	rateLimited      prometheus.Counter
	authRetries      prometheus.Counter
	transportRetries prometheus.Counter
	inflight         prometheus.Gauge
	duration         prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loadx",
			Name:      "dispatches_total",
			Help:      "Terminal dispatch outcomes by method and outcome.",
		}, []string{"method", "outcome"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loadx",
			Name:      "rate_limited_total",
			Help:      "Dispatches denied a rate-limit permit.",
		}),
		authRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loadx",
			Name:      "auth_retries_total",
			Help:      "Authorisation retries performed.",
		}),
		transportRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loadx",
			Name:      "transport_retries_total",
			Help:      "Transport-level retries performed.",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "loadx",
			Name:      "inflight_dispatches",
			Help:      "Dispatches currently in flight.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "loadx",
			Name:      "dispatch_duration_seconds",
			Help:      "Wall-clock duration of terminal dispatches.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.dispatches, m.rateLimited, m.authRetries,
		m.transportRetries, m.inflight, m.duration)
	return m
}

func (m *metrics) observeDispatch(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(method, outcome).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *metrics) incRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *metrics) incAuthRetry() {
	if m == nil {
		return
	}
	m.authRetries.Inc()
}

func (m *metrics) incTransportRetry() {
	if m == nil {
		return
	}
	m.transportRetries.Inc()
}

func (m *metrics) incInflight() {
	if m == nil {
		return
	}
	m.inflight.Inc()
}

func (m *metrics) decInflight() {
	if m == nil {
		return
	}
	m.inflight.Dec()
}
