package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// MetricsCollector centralizes all metrics recording with proper labeling.
// It also keeps process-lifetime counters for the internal stats endpoint,
// which wants plain numbers rather than a Prometheus scrape.
type MetricsCollector struct {
	prometheus *PrometheusMetrics
	logger     *zap.Logger

	startTime         time.Time
	requestsProcessed atomic.Uint64
	urlsRewritten     atomic.Uint64
	urlsSkipped       atomic.Uint64
	activeRequests    atomic.Int64
	hostStats         sync.Map // host -> *hostCounters
}

// hostCounters tracks process-lifetime totals for one host.
type hostCounters struct {
	requests      atomic.Uint64
	urlsRewritten atomic.Uint64
	urlsSkipped   atomic.Uint64
}

// Snapshot is a point-in-time view of process counters for the stats endpoint.
type Snapshot struct {
	UptimeSeconds     float64                 `json:"uptime_seconds"`
	RequestsProcessed uint64                  `json:"requests_processed"`
	URLsRewritten     uint64                  `json:"urls_rewritten"`
	URLsSkipped       uint64                  `json:"urls_skipped"`
	ActiveRequests    int64                   `json:"active_requests"`
	MemoryUsedPercent float64                 `json:"memory_used_percent"`
	Hosts             map[string]HostSnapshot `json:"hosts,omitempty"`
}

// HostSnapshot is the per-host portion of a Snapshot.
type HostSnapshot struct {
	Requests      uint64 `json:"requests"`
	URLsRewritten uint64 `json:"urls_rewritten"`
	URLsSkipped   uint64 `json:"urls_skipped"`
}

// NewMetricsCollector creates a new MetricsCollector instance
func NewMetricsCollector(namespace string, logger *zap.Logger) *MetricsCollector {
	return &MetricsCollector{
		prometheus: NewPrometheusMetrics(namespace, logger),
		logger:     logger,
		startTime:  time.Now().UTC(),
	}
}

// NewMetricsCollectorWithRegistry creates a MetricsCollector with a custom registry
func NewMetricsCollectorWithRegistry(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *MetricsCollector {
	return &MetricsCollector{
		prometheus: NewPrometheusMetricsWithRegistry(namespace, registerer, logger),
		logger:     logger,
		startTime:  time.Now().UTC(),
	}
}

// countersFor returns the lifetime counters for a host, creating them on
// first use. Host labels are config-controlled, so the map stays bounded.
func (mc *MetricsCollector) countersFor(host string) *hostCounters {
	if c, ok := mc.hostStats.Load(host); ok {
		return c.(*hostCounters)
	}
	c, _ := mc.hostStats.LoadOrStore(host, &hostCounters{})
	return c.(*hostCounters)
}

// RecordRequest records a processed request with timing
func (mc *MetricsCollector) RecordRequest(host, action string, statusCode int, duration time.Duration) {
	mc.prometheus.RecordRequest(host, action, statusCode, duration)
	mc.requestsProcessed.Add(1)
	mc.countersFor(host).requests.Add(1)

	mc.logger.Debug("Recorded request metric",
		zap.String("host", host),
		zap.String("action", action),
		zap.Int("status_code", statusCode),
		zap.Duration("duration", duration))
}

// RecordRewriteOutcome records the result of one markup rewriting pass.
// skips is keyed by skip reason name.
func (mc *MetricsCollector) RecordRewriteOutcome(host string, rewritten int, skips map[string]uint64, duration time.Duration) {
	mc.prometheus.RecordURLsRewritten(host, rewritten)
	mc.prometheus.RecordRewriteDuration(host, duration)

	var skipped uint64
	for reason, count := range skips {
		mc.prometheus.RecordRewriteSkip(host, reason, count)
		skipped += count
	}
	mc.prometheus.RecordURLsSkipped(host, int(skipped))

	if rewritten > 0 {
		mc.urlsRewritten.Add(uint64(rewritten))
		mc.countersFor(host).urlsRewritten.Add(uint64(rewritten))
	}
	mc.urlsSkipped.Add(skipped)
	if skipped > 0 {
		mc.countersFor(host).urlsSkipped.Add(skipped)
	}

	mc.logger.Debug("Recorded rewrite outcome metric",
		zap.String("host", host),
		zap.Int("rewritten", rewritten),
		zap.Uint64("skipped", skipped),
		zap.Duration("duration", duration))
}

// RecordOriginFetch records an upstream fetch with timing
func (mc *MetricsCollector) RecordOriginFetch(host string, statusCode int, duration time.Duration) {
	mc.prometheus.RecordOriginFetch(host, statusCode, duration)

	mc.logger.Debug("Recorded origin fetch metric",
		zap.String("host", host),
		zap.Int("status_code", statusCode),
		zap.Duration("duration", duration))
}

// RecordOriginError records an upstream fetch failure
func (mc *MetricsCollector) RecordOriginError(host, kind string) {
	mc.prometheus.RecordOriginError(host, kind)

	mc.logger.Debug("Recorded origin error metric",
		zap.String("host", host),
		zap.String("kind", kind))
}

// RecordEntitlementCheck records an entitlement verdict
func (mc *MetricsCollector) RecordEntitlementCheck(host, verdict, source string) {
	mc.prometheus.RecordEntitlementCheck(host, verdict, source)

	mc.logger.Debug("Recorded entitlement check metric",
		zap.String("host", host),
		zap.String("verdict", verdict),
		zap.String("source", source))
}

// RecordRateLimited records a request rejected by the rate limiter
func (mc *MetricsCollector) RecordRateLimited(host string) {
	mc.prometheus.RecordRateLimited(host)

	mc.logger.Debug("Recorded rate limited metric",
		zap.String("host", host))
}

// RecordResponseBytes records response body bytes by encoding
func (mc *MetricsCollector) RecordResponseBytes(host, encoding string, bytes int) {
	mc.prometheus.RecordResponseBytes(host, encoding, bytes)
}

// RecordError records an error by type
func (mc *MetricsCollector) RecordError(errorType, host string) {
	mc.prometheus.RecordError(errorType, host)

	mc.logger.Debug("Recorded error metric",
		zap.String("error_type", errorType),
		zap.String("host", host))
}

// IncActiveRequests increments active request counter
func (mc *MetricsCollector) IncActiveRequests() {
	mc.prometheus.IncActiveRequests()
	mc.activeRequests.Add(1)
}

// DecActiveRequests decrements active request counter
func (mc *MetricsCollector) DecActiveRequests() {
	mc.prometheus.DecActiveRequests()
	mc.activeRequests.Add(-1)
}

// ServeHTTP serves Prometheus metrics via HTTP
func (mc *MetricsCollector) ServeHTTP(ctx *fasthttp.RequestCtx) {
	mc.prometheus.ServeHTTP(ctx)
}

// Stats returns a snapshot of process counters
func (mc *MetricsCollector) Stats() Snapshot {
	snap := Snapshot{
		UptimeSeconds:     time.Since(mc.startTime).Seconds(),
		RequestsProcessed: mc.requestsProcessed.Load(),
		URLsRewritten:     mc.urlsRewritten.Load(),
		URLsSkipped:       mc.urlsSkipped.Load(),
		ActiveRequests:    mc.activeRequests.Load(),
	}

	mc.hostStats.Range(func(key, value any) bool {
		if snap.Hosts == nil {
			snap.Hosts = make(map[string]HostSnapshot)
		}
		c := value.(*hostCounters)
		snap.Hosts[key.(string)] = HostSnapshot{
			Requests:      c.requests.Load(),
			URLsRewritten: c.urlsRewritten.Load(),
			URLsSkipped:   c.urlsSkipped.Load(),
		}
		return true
	})

	if v, err := mem.VirtualMemory(); err == nil {
		snap.MemoryUsedPercent = v.UsedPercent
	}

	return snap
}
