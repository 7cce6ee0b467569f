// Package metrics records authentication and cache events as Prometheus
// metrics. The CLI is short-lived, so the registry is written to a textfile
// for the node-exporter textfile collector instead of being scraped.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder owns a private registry. A nil Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	authTotal     *prometheus.CounterVec
	authDuration  *prometheus.HistogramVec
	cacheFallback *prometheus.CounterVec
	hostCalls     *prometheus.CounterVec
}

// NewRecorder creates a recorder with all metrics registered.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		authTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenbroker_authentications_total",
				Help: "Total number of authentication attempts",
			},
			[]string{"flow", "outcome"},
		),
		authDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tokenbroker_authentication_duration_seconds",
				Help:    "Duration of authentication attempts in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"flow"},
		),
		cacheFallback: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenbroker_cache_fallbacks_total",
				Help: "Total number of token cache storage fallbacks",
			},
			[]string{"from", "to"},
		),
		hostCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenbroker_host_calls_total",
				Help: "Total number of host calls marshaled to the foreground",
			},
			[]string{"kind"},
		),
	}
}

// RecordAuthentication records one authentication attempt.
func (r *Recorder) RecordAuthentication(flow string, err error, elapsed time.Duration) {
	if r == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	r.authTotal.WithLabelValues(flow, outcome).Inc()
	r.authDuration.WithLabelValues(flow).Observe(elapsed.Seconds())
}

// RecordCacheFallback records a degrade from one storage tier to another.
func (r *Recorder) RecordCacheFallback(from, to string) {
	if r == nil {
		return
	}
	r.cacheFallback.WithLabelValues(from, to).Inc()
}

// RecordHostCall records a host call serviced by the bridge.
func (r *Recorder) RecordHostCall(kind string) {
	if r == nil {
		return
	}
	r.hostCalls.WithLabelValues(kind).Inc()
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
