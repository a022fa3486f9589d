package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

// PrometheusMetrics provides high-performance metrics collection using Prometheus
type PrometheusMetrics struct {
	// Request metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// Rewrite metrics
	urlsRewrittenTotal *prometheus.CounterVec
	urlsSkippedTotal   *prometheus.CounterVec
	rewriteRatio       *prometheus.GaugeVec
	rewriteSkipsTotal  *prometheus.CounterVec
	rewriteDuration    *prometheus.HistogramVec

	// Upstream metrics
	originFetchDuration *prometheus.HistogramVec
	originErrorsTotal   *prometheus.CounterVec

	// Entitlement metrics
	entitlementChecksTotal *prometheus.CounterVec

	// Traffic metrics
	rateLimitedTotal   *prometheus.CounterVec
	responseBytesTotal *prometheus.CounterVec
	activeRequests     prometheus.Gauge

	// System metrics
	errorRate    *prometheus.CounterVec
	systemMemory prometheus.GaugeFunc

	logger      *zap.Logger
	httpHandler func(*fasthttp.RequestCtx)
}

// NewPrometheusMetrics creates a new Prometheus-based metrics collector
func NewPrometheusMetrics(namespace string, logger *zap.Logger) *PrometheusMetrics {
	return NewPrometheusMetricsWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

// NewPrometheusMetricsWithRegistry creates a new Prometheus-based metrics collector with custom registry
func NewPrometheusMetricsWithRegistry(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *PrometheusMetrics {
	pm := &PrometheusMetrics{
		logger: logger,
	}

	// Request metrics
	pm.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rg",
			Name:      "requests_total",
			Help:      "Total number of requests processed",
		},
		[]string{"host", "action", "status_range"},
	)

	pm.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rg",
			Name:      "request_duration_seconds",
			Help:      "Time taken to process requests end to end",
			Buckets:   prometheus.DefBuckets, // Standard buckets: 0.005s to 10s
		},
		[]string{"host", "action"},
	)

	// Rewrite metrics
	pm.urlsRewrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rg",
			Name:      "urls_rewritten_total",
			Help:      "Total number of media URLs rewritten to the edge domain",
		},
		[]string{"host"},
	)

	pm.urlsSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rg",
			Name:      "urls_skipped_total",
			Help:      "Total number of candidate URLs left unchanged",
		},
		[]string{"host"},
	)

	pm.rewriteRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rg",
			Name:      "rewrite_ratio",
			Help:      "Fraction (0-1) of candidate URLs rewritten for each host",
		},
		[]string{"host"},
	)

	pm.rewriteSkipsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rg",
			Name:      "rewrite_skips_total",
			Help:      "Total skipped URLs by reason",
		},
		[]string{"host", "reason"},
	)

	pm.rewriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rg",
			Name:      "rewrite_duration_seconds",
			Help:      "Time spent in the markup rewriting pass",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25}, // Markup pass is CPU-bound and fast
		},
		[]string{"host"},
	)

	// Upstream metrics
	pm.originFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rg",
			Name:      "origin_fetch_duration_seconds",
			Help:      "Time taken to fetch pages from tenant upstreams",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}, // Network-bound buckets
		},
		[]string{"host", "status_range"},
	)

	pm.originErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rg",
			Name:      "origin_errors_total",
			Help:      "Total upstream fetch failures by kind",
		},
		[]string{"host", "kind"}, // kind: unreachable, budget_exhausted
	)

	// Entitlement metrics
	pm.entitlementChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rg",
			Name:      "entitlement_checks_total",
			Help:      "Total entitlement verdicts by outcome and source",
		},
		[]string{"host", "verdict", "source"}, // verdict: allowed, denied; source: cache, service, grace
	)

	// Traffic metrics
	pm.rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rg",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the rate limiter",
		},
		[]string{"host"},
	)

	pm.responseBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rg",
			Name:      "response_bytes_total",
			Help:      "Total response body bytes sent to clients",
		},
		[]string{"host", "encoding"},
	)

	pm.activeRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rg",
			Name:      "active_requests",
			Help:      "Number of currently active requests",
		},
	)

	// System metrics
	pm.errorRate = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rg",
			Name:      "errors_total",
			Help:      "Total number of errors by type",
		},
		[]string{"error_type", "host"},
	)

	pm.systemMemory = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rg",
			Name:      "system_memory_used_percent",
			Help:      "System memory usage percentage, sampled at scrape time",
		},
		func() float64 {
			v, err := mem.VirtualMemory()
			if err != nil {
				return 0
			}
			return v.UsedPercent
		},
	)

	// Register all metrics
	registerer.MustRegister(
		pm.requestsTotal,
		pm.requestDuration,
		pm.urlsRewrittenTotal,
		pm.urlsSkippedTotal,
		pm.rewriteRatio,
		pm.rewriteSkipsTotal,
		pm.rewriteDuration,
		pm.originFetchDuration,
		pm.originErrorsTotal,
		pm.entitlementChecksTotal,
		pm.rateLimitedTotal,
		pm.responseBytesTotal,
		pm.activeRequests,
		pm.errorRate,
		pm.systemMemory,
	)

	// Create HTTP handler - registerer implements Gatherer interface
	gatherer, ok := registerer.(prometheus.Gatherer)
	if !ok {
		// Fallback to default gatherer if registerer doesn't implement Gatherer
		gatherer = prometheus.DefaultGatherer
	}
	pm.httpHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	logger.Debug("Prometheus metrics initialized")
	return pm
}

// RecordRequest records a processed request with timing
func (pm *PrometheusMetrics) RecordRequest(host, action string, statusCode int, duration time.Duration) {
	statusRange := getStatusCodeRange(statusCode)
	pm.requestsTotal.WithLabelValues(host, action, statusRange).Inc()
	pm.requestDuration.WithLabelValues(host, action).Observe(duration.Seconds())
}

// RecordURLsRewritten records rewritten URL count and updates the rewrite ratio
func (pm *PrometheusMetrics) RecordURLsRewritten(host string, count int) {
	if count <= 0 {
		return
	}
	pm.urlsRewrittenTotal.WithLabelValues(host).Add(float64(count))
	pm.updateRewriteRatio(host)
}

// RecordURLsSkipped records skipped URL count and updates the rewrite ratio
func (pm *PrometheusMetrics) RecordURLsSkipped(host string, count int) {
	if count <= 0 {
		return
	}
	pm.urlsSkippedTotal.WithLabelValues(host).Add(float64(count))
	pm.updateRewriteRatio(host)
}

// RecordRewriteSkip records skipped URLs for one skip reason
func (pm *PrometheusMetrics) RecordRewriteSkip(host, reason string, count uint64) {
	if count == 0 {
		return
	}
	pm.rewriteSkipsTotal.WithLabelValues(host, reason).Add(float64(count))
}

// RecordRewriteDuration records time spent in the markup pass
func (pm *PrometheusMetrics) RecordRewriteDuration(host string, duration time.Duration) {
	pm.rewriteDuration.WithLabelValues(host).Observe(duration.Seconds())
}

// RecordOriginFetch records an upstream fetch with timing
func (pm *PrometheusMetrics) RecordOriginFetch(host string, statusCode int, duration time.Duration) {
	statusRange := getStatusCodeRange(statusCode)
	pm.originFetchDuration.WithLabelValues(host, statusRange).Observe(duration.Seconds())
}

// RecordOriginError records an upstream fetch failure
func (pm *PrometheusMetrics) RecordOriginError(host, kind string) {
	pm.originErrorsTotal.WithLabelValues(host, kind).Inc()
}

// RecordEntitlementCheck records an entitlement verdict
func (pm *PrometheusMetrics) RecordEntitlementCheck(host, verdict, source string) {
	pm.entitlementChecksTotal.WithLabelValues(host, verdict, source).Inc()
}

// RecordRateLimited records a request rejected by the rate limiter
func (pm *PrometheusMetrics) RecordRateLimited(host string) {
	pm.rateLimitedTotal.WithLabelValues(host).Inc()
}

// RecordResponseBytes records response body bytes by encoding
func (pm *PrometheusMetrics) RecordResponseBytes(host, encoding string, bytes int) {
	if bytes > 0 {
		pm.responseBytesTotal.WithLabelValues(host, encoding).Add(float64(bytes))
	}
}

// RecordError records an error by type
func (pm *PrometheusMetrics) RecordError(errorType, host string) {
	pm.errorRate.WithLabelValues(errorType, host).Inc()
}

// IncActiveRequests increments active request counter
func (pm *PrometheusMetrics) IncActiveRequests() {
	pm.activeRequests.Inc()
}

// DecActiveRequests decrements active request counter
func (pm *PrometheusMetrics) DecActiveRequests() {
	pm.activeRequests.Dec()
}

// ServeHTTP serves Prometheus metrics via HTTP
func (pm *PrometheusMetrics) ServeHTTP(ctx *fasthttp.RequestCtx) {
	pm.httpHandler(ctx)
}

// getStatusCodeRange converts a status code to a range label (2xx, 3xx, 4xx, 5xx)
func getStatusCodeRange(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	default:
		return "unknown"
	}
}

// updateRewriteRatio calculates and updates the per-host rewrite ratio
func (pm *PrometheusMetrics) updateRewriteRatio(host string) {
	rewritten := pm.getCounterValue(pm.urlsRewrittenTotal.WithLabelValues(host))
	skipped := pm.getCounterValue(pm.urlsSkippedTotal.WithLabelValues(host))

	total := rewritten + skipped
	if total > 0 {
		pm.rewriteRatio.WithLabelValues(host).Set(rewritten / total)
	}
}

// getCounterValue extracts current value from a counter (helper function)
func (pm *PrometheusMetrics) getCounterValue(counter prometheus.Counter) float64 {
	// Use a metric DTO to read the current value
	metric := &dto.Metric{}
	if err := counter.Write(metric); err != nil {
		pm.logger.Warn("Failed to read counter value", zap.Error(err))
		return 0
	}
	return metric.GetCounter().GetValue()
}
