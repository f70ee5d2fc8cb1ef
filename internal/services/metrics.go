package services

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector holds the operational metrics of the gateway. It is
// registered on a caller-supplied registry so tests can use a fresh one.
type MetricsCollector struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	recorderErrors  *prometheus.CounterVec
	cacheOps        *prometheus.CounterVec
	rateLimitHits   prometheus.Counter
	quotaRejections prometheus.Counter
}

func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(reg)
	return &MetricsCollector{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gamevault_metered_requests_total",
			Help: "Total number of metered requests by method and status code",
		}, []string{"method", "code"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gamevault_metered_request_duration_seconds",
			Help:    "Histogram of metered request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		recorderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gamevault_recorder_failures_total",
			Help: "Accounting writes that failed and were dropped",
		}, []string{"op"}),
		cacheOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gamevault_cache_operations_total",
			Help: "Total number of response cache hits and misses",
		}, []string{"result"}),
		rateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "gamevault_rate_limit_hits_total",
			Help: "Requests refused by the auth rate limiter",
		}),
		quotaRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "gamevault_quota_rejections_total",
			Help: "Requests refused because the monthly quota was exhausted",
		}),
	}
}

func (mc *MetricsCollector) RecordRequest(method string, statusCode int, latency time.Duration) {
	mc.requests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	mc.requestDuration.WithLabelValues(method).Observe(latency.Seconds())
}

func (mc *MetricsCollector) RecordRecorderFailure(op string) {
	mc.recorderErrors.WithLabelValues(op).Inc()
}

func (mc *MetricsCollector) RecordCacheHit() {
	mc.cacheOps.WithLabelValues("hit").Inc()
}

func (mc *MetricsCollector) RecordCacheMiss() {
	mc.cacheOps.WithLabelValues("miss").Inc()
}

func (mc *MetricsCollector) RecordRateLimitHit() {
	mc.rateLimitHits.Inc()
}

func (mc *MetricsCollector) RecordQuotaRejection() {
	mc.quotaRejections.Inc()
}
