package server

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgelift/gateway/internal/gateway/clientip"
	"github.com/edgelift/gateway/internal/gateway/events"
	"github.com/edgelift/gateway/internal/gateway/reqctx"
	"github.com/edgelift/gateway/pkg/types"
)

// requestError describes a request failure with HTTP response details
type requestError struct {
	statusCode int
	message    string
	category   string
}

// handleRequestError writes the error response and records the failure in
// logs, metrics, and the event stream.
func (s *Server) handleRequestError(ctx *fasthttp.RequestCtx, rc *reqctx.RewriteContext, err error, reqErr *requestError, duration time.Duration) {
	rc.Logger.Warn("Request failed",
		zap.String("category", reqErr.category),
		zap.Int("status_code", reqErr.statusCode),
		zap.Duration("duration", duration),
		zap.Error(err))

	s.writeError(ctx, reqErr.statusCode, reqErr.message)

	// Metric labels take the configured domain. Requests that never matched a
	// host get a fixed label: Host headers from scanners must not mint label
	// values.
	metricsHost := "unknown"
	if rc.Host != nil {
		metricsHost = rc.Host.Domain
	}
	s.metricsCollector.RecordRequest(metricsHost, "error", reqErr.statusCode, duration)
	s.metricsCollector.RecordError(reqErr.category, metricsHost)

	if s.eventEmitter == nil {
		return
	}

	// Failures before client IP extraction still get an IP on the event.
	eventClientIP := rc.ClientIP
	if eventClientIP == "" {
		var headers []string
		if cfg := s.configManager.GetConfig(); cfg != nil && cfg.ClientIP != nil {
			headers = cfg.ClientIP.Headers
		}
		eventClientIP = clientip.Extract(ctx, headers)
	}

	hostID := 0
	if rc.Host != nil {
		hostID = rc.Host.ID
	}
	s.eventEmitter.Emit(events.BuildErrorEvent(
		rc.RequestID,
		eventHost(rc, ctx),
		hostID,
		rc.TargetURL,
		string(ctx.UserAgent()),
		eventClientIP,
		reqErr.category,
		err.Error(),
		reqErr.statusCode,
		s.instanceID,
	))
}

// handleRateLimited rejects a request that exceeded the per-client limit.
// The caller guarantees rc.Host is set.
func (s *Server) handleRateLimited(ctx *fasthttp.RequestCtx, rc *reqctx.RewriteContext, duration time.Duration) {
	rc.Logger.Warn("Rate limit exceeded",
		zap.String("host", rc.Host.Domain),
		zap.String("client_ip", rc.ClientIP))

	retryAfter := int(s.rateLimiter.Window().Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	ctx.Response.Header.Set("Retry-After", strconv.Itoa(retryAfter))
	s.writeError(ctx, fasthttp.StatusTooManyRequests, "Too Many Requests")

	s.metricsCollector.RecordRateLimited(rc.Host.Domain)
	s.metricsCollector.RecordRequest(rc.Host.Domain, "rate_limited", fasthttp.StatusTooManyRequests, duration)

	if s.eventEmitter != nil {
		s.eventEmitter.Emit(events.BuildRateLimitedEvent(
			rc.RequestID,
			rc.Host.Domain,
			rc.Host.ID,
			rc.TargetURL,
			string(ctx.UserAgent()),
			rc.ClientIP,
			s.instanceID,
		))
	}
}

func (s *Server) writeError(ctx *fasthttp.RequestCtx, statusCode int, message string) {
	ctx.SetStatusCode(statusCode)
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.Response.SetBodyString(message)
}

// resolveClientIPHeaders returns the client IP header list for a host:
// host-level config wins over the global config.
func (s *Server) resolveClientIPHeaders(host *types.Host) []string {
	if host != nil && host.ClientIP != nil {
		return host.ClientIP.Headers
	}
	if cfg := s.configManager.GetConfig(); cfg != nil && cfg.ClientIP != nil {
		return cfg.ClientIP.Headers
	}
	return nil
}

// ExtractClientHeaders collects request headers matching the safe list so the
// origin fetch can forward them. Matching is case-insensitive; the client's
// original header casing is preserved. Returns nil when the list is empty or
// nothing matched.
func ExtractClientHeaders(ctx *fasthttp.RequestCtx, safeHeaders []string) map[string][]string {
	if len(safeHeaders) == 0 {
		return nil
	}

	allowed := make(map[string]bool, len(safeHeaders))
	for _, h := range safeHeaders {
		allowed[strings.ToLower(h)] = true
	}

	headers := make(map[string][]string)
	ctx.Request.Header.VisitAll(func(key, value []byte) {
		name := string(key)
		if allowed[strings.ToLower(name)] {
			headers[name] = append(headers[name], string(value))
		}
	})

	if len(headers) == 0 {
		return nil
	}
	return headers
}

// eventHost names the host for event records: the configured domain when the
// request matched a tenant, otherwise the literal Host header. Events tolerate
// high cardinality, so the raw value is kept for debugging.
func eventHost(rc *reqctx.RewriteContext, ctx *fasthttp.RequestCtx) string {
	if rc.Host != nil {
		return rc.Host.Domain
	}
	return stripPort(string(ctx.Host()))
}

// stripPort removes a :port suffix from a Host header value if present.
func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// buildTargetURL reconstructs the full URL the client requested, used for
// URL rule matching and event records.
func buildTargetURL(ctx *fasthttp.RequestCtx, domain string) string {
	scheme := "http"
	if ctx.IsTLS() {
		scheme = "https"
	}
	return scheme + "://" + domain + string(ctx.RequestURI())
}
