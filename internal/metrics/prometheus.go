package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	appLog "schedcal/internal/log"
)

// PrometheusSink implements Sink with the Prometheus client library.
// A collector already registered under the same name is reused; other
// registration errors are logged but never propagated.
type PrometheusSink struct {
	aggregationDuration *prometheus.HistogramVec
	aggregationErrors   *prometheus.CounterVec
	fetchErrors         *prometheus.CounterVec
	excludedEvents      *prometheus.CounterVec
	limitExceeded       *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initEngineMetrics(reg)
	s.initCacheMetrics(reg)
	s.initHTTPMetrics(reg)
	return s
}

func (s *PrometheusSink) initEngineMetrics(reg prometheus.Registerer) {
	s.aggregationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "schedcal_aggregation_duration_seconds",
		Help:    "Duration of schedule aggregations, including fetches.",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"kind"})
	s.aggregationErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedcal_aggregation_errors_total",
		Help: "Total number of failed aggregations.",
	}, []string{"kind"})
	s.fetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedcal_fetch_errors_total",
		Help: "Total number of schedule fetch failures per source.",
	}, []string{"source"})
	s.excludedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedcal_excluded_events_total",
		Help: "Recurring events excluded because their rule could not be expanded.",
	}, []string{"source"})
	s.limitExceeded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedcal_occurrence_limit_exceeded_total",
		Help: "Recurring events with more occurrences in the window than the per-event cap.",
	}, []string{"source"})

	s.aggregationDuration = register(reg, s.aggregationDuration, "schedcal_aggregation_duration_seconds")
	s.aggregationErrors = register(reg, s.aggregationErrors, "schedcal_aggregation_errors_total")
	s.fetchErrors = register(reg, s.fetchErrors, "schedcal_fetch_errors_total")
	s.excludedEvents = register(reg, s.excludedEvents, "schedcal_excluded_events_total")
	s.limitExceeded = register(reg, s.limitExceeded, "schedcal_occurrence_limit_exceeded_total")
}

func (s *PrometheusSink) initCacheMetrics(reg prometheus.Registerer) {
	s.cacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedcal_cache_hits_total",
		Help: "Response cache hits per route.",
	}, []string{"route"})
	s.cacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedcal_cache_misses_total",
		Help: "Response cache misses per route.",
	}, []string{"route"})

	s.cacheHits = register(reg, s.cacheHits, "schedcal_cache_hits_total")
	s.cacheMisses = register(reg, s.cacheMisses, "schedcal_cache_misses_total")
}

func (s *PrometheusSink) initHTTPMetrics(reg prometheus.Registerer) {
	s.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedcal_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	s.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "schedcal_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	s.requestsTotal = register(reg, s.requestsTotal, "schedcal_http_requests_total")
	s.requestDuration = register(reg, s.requestDuration, "schedcal_http_request_duration_seconds")
}

// register adds c to reg. If an equal collector is already registered, that
// one is returned so that every sink on reg feeds the exported series.
func register[C prometheus.Collector](reg prometheus.Registerer, c C, name string) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	appLog.Error("metrics: failed to register collector", err, "name", name)
	return c
}

func (s *PrometheusSink) AggregationCompleted(kind string, duration time.Duration, err error) {
	s.aggregationDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if err != nil {
		s.aggregationErrors.WithLabelValues(kind).Inc()
	}
}

func (s *PrometheusSink) FetchFailed(source string) {
	s.fetchErrors.WithLabelValues(source).Inc()
}

func (s *PrometheusSink) EventExcluded(source string) {
	s.excludedEvents.WithLabelValues(source).Inc()
}

func (s *PrometheusSink) OccurrenceLimitExceeded(source string) {
	s.limitExceeded.WithLabelValues(source).Inc()
}

func (s *PrometheusSink) CacheHit(route string) {
	s.cacheHits.WithLabelValues(route).Inc()
}

func (s *PrometheusSink) CacheMiss(route string) {
	s.cacheMisses.WithLabelValues(route).Inc()
}

func (s *PrometheusSink) RequestCompleted(route string, status int, duration time.Duration) {
	s.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	s.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
