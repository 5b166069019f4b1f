package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics for skew
type Registry struct {
	reg *prometheus.Registry

	// Client side
	ClassifyRequests *prometheus.CounterVec
	ClassifyDuration prometheus.Histogram

	// Stub service side
	ProcessRequests *prometheus.CounterVec
	Classifications *prometheus.CounterVec
	RateLimited     prometheus.Counter
}

// NewRegistry creates an isolated registry with every skew metric registered
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		ClassifyRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skew_classify_requests_total",
				Help: "Classification requests issued by the client, by outcome",
			},
			[]string{"outcome"},
		),

		ClassifyDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "skew_classify_duration_seconds",
				Help:    "Round-trip time of classification requests",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),

		ProcessRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skew_process_requests_total",
				Help: "Requests served by the classification stub, by route and status code",
			},
			[]string{"route", "code"},
		),

		Classifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skew_classifications_total",
				Help: "Classifications returned by the stub, by bias and extent",
			},
			[]string{"bias", "extent"},
		),

		RateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "skew_rate_limited_total",
				Help: "Requests rejected by the per-client rate limiter",
			},
		),
	}

	r.reg.MustRegister(
		r.ClassifyRequests,
		r.ClassifyDuration,
		r.ProcessRequests,
		r.Classifications,
		r.RateLimited,
		collectors.NewGoCollector(),
	)

	return r
}

// ObserveClassify records one client request
func (r *Registry) ObserveClassify(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.ClassifyRequests.WithLabelValues(outcome).Inc()
	r.ClassifyDuration.Observe(elapsed.Seconds())
}

// ClassifySummary reads back the client outcome counts and the total time
// spent waiting on the classification service
func (r *Registry) ClassifySummary() (map[string]float64, time.Duration, error) {
	families, err := r.reg.Gather()
	if err != nil {
		return nil, 0, fmt.Errorf("gather metrics: %w", err)
	}

	outcomes := make(map[string]float64)
	var seconds float64
	for _, family := range families {
		switch family.GetName() {
		case "skew_classify_requests_total":
			for _, m := range family.GetMetric() {
				for _, lp := range m.GetLabel() {
					if lp.GetName() == "outcome" {
						outcomes[lp.GetValue()] = m.GetCounter().GetValue()
					}
				}
			}
		case "skew_classify_duration_seconds":
			for _, m := range family.GetMetric() {
				seconds += m.GetHistogram().GetSampleSum()
			}
		}
	}

	return outcomes, time.Duration(seconds * float64(time.Second)), nil
}

// Gatherer exposes the underlying registry for scraping and tests
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
