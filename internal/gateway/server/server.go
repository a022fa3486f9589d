package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgelift/gateway/internal/common/config"
	"github.com/edgelift/gateway/internal/common/configtypes"
	"github.com/edgelift/gateway/internal/common/redis"
	"github.com/edgelift/gateway/internal/common/requestid"
	"github.com/edgelift/gateway/internal/gateway/clientip"
	"github.com/edgelift/gateway/internal/gateway/events"
	"github.com/edgelift/gateway/internal/gateway/metrics"
	"github.com/edgelift/gateway/internal/gateway/pipeline"
	"github.com/edgelift/gateway/internal/gateway/ratelimit"
	"github.com/edgelift/gateway/internal/gateway/reqctx"
	"github.com/edgelift/gateway/pkg/types"
)

// readinessTimeout caps the Redis probe behind /ready so a wedged Redis
// cannot stall load balancer health checks.
const readinessTimeout = 2 * time.Second

// Server is the public-facing proxy front end. It assigns request identity,
// resolves the tenant host from the Host header, applies rate limiting, and
// hands the assembled request context to the pipeline.
type Server struct {
	configManager    configtypes.RGConfigManager
	redis            *redis.Client
	pipeline         *pipeline.Pipeline
	rateLimiter      *ratelimit.Limiter
	metricsCollector *metrics.MetricsCollector
	eventEmitter     events.EventEmitter
	instanceID       string
	logger           *zap.Logger
}

// NewServer creates a proxy server. redisClient, rateLimiter, and
// eventEmitter may be nil when the corresponding feature is not configured.
func NewServer(
	configManager configtypes.RGConfigManager,
	redisClient *redis.Client,
	proxyPipeline *pipeline.Pipeline,
	rateLimiter *ratelimit.Limiter,
	metricsCollector *metrics.MetricsCollector,
	eventEmitter events.EventEmitter,
	instanceID string,
	logger *zap.Logger,
) *Server {
	return &Server{
		configManager:    configManager,
		redis:            redisClient,
		pipeline:         proxyPipeline,
		rateLimiter:      rateLimiter,
		metricsCollector: metricsCollector,
		eventEmitter:     eventEmitter,
		instanceID:       instanceID,
		logger:           logger,
	}
}

// HandleRequest is the fasthttp entry point for all external traffic.
// A few reserved paths are answered by the gateway itself; everything else
// is proxied to the tenant's origin.
func (s *Server) HandleRequest(ctx *fasthttp.RequestCtx) {
	customID := string(ctx.Request.Header.Peek("X-Request-ID"))
	requestID := requestid.GenerateRequestID(customID)
	ctx.Response.Header.Set("X-Request-ID", requestID)

	switch string(ctx.Path()) {
	case "/health":
		s.handleHealth(ctx)
	case "/ready":
		s.handleReady(ctx)
	case pipeline.RecoveryScriptPath:
		s.handleRecoveryScript(ctx)
	default:
		s.processProxyRequest(ctx, requestID)
	}
}

// processProxyRequest runs one proxied page request end to end: host lookup,
// client IP extraction, rate limit check, per-URL config resolution, and the
// pipeline itself.
func (s *Server) processProxyRequest(ctx *fasthttp.RequestCtx, requestID string) {
	start := time.Now()

	cfg := s.configManager.GetConfig()
	rc := reqctx.New(requestID, ctx, s.logger, cfg.Server.Timeout.ToDuration())

	s.metricsCollector.IncActiveRequests()
	defer s.metricsCollector.DecActiveRequests()

	domain := strings.ToLower(stripPort(string(ctx.Host())))
	rc.WithRequestedDomain(domain)
	rc.WithTargetURL(buildTargetURL(ctx, domain))

	host := s.configManager.GetHostByDomain(domain)
	if host == nil {
		s.handleRequestError(ctx, rc, fmt.Errorf("no host configured for domain %q", domain), &requestError{
			statusCode: fasthttp.StatusMisdirectedRequest,
			message:    "Unknown host",
			category:   "unknown_host",
		}, time.Since(start))
		return
	}
	rc.WithHost(host)

	clientIP := clientip.Extract(ctx, s.resolveClientIPHeaders(host))
	rc.WithClientIP(clientIP)

	if s.rateLimiter != nil {
		limitCtx, cancel := rc.GetContext()
		allowed := s.rateLimiter.Allow(limitCtx, host.ID, clientIP)
		cancel()
		if !allowed {
			s.handleRateLimited(ctx, rc, time.Since(start))
			return
		}
	}

	resolver := config.NewConfigResolver(cfg.Rewrite, cfg.Context, cfg.Headers, cfg.ClientIP, &cfg.Origin, host)
	resolved := resolver.ResolveForURL(rc.TargetURL)
	if !host.Enabled {
		// A disabled host is proxied untouched: no URL rules, no rewriting.
		resolved.Action = types.ActionPassthrough
		resolved.Rewrite.Enabled = false
	}
	rc.WithResolved(resolved)
	rc.WithClientHeaders(ExtractClientHeaders(ctx, resolved.SafeRequestHeaders))

	result, err := s.pipeline.Process(rc)
	if err != nil {
		s.handleRequestError(ctx, rc, err, &requestError{
			statusCode: fasthttp.StatusInternalServerError,
			message:    "Request processing failed",
			category:   "proxy_error",
		}, time.Since(start))
		return
	}

	duration := time.Since(start)
	s.metricsCollector.RecordRequest(host.Domain, result.Action, result.StatusCode, duration)

	if s.eventEmitter != nil {
		s.eventEmitter.Emit(events.BuildRequestEvent(rc, result, duration, s.instanceID))
	}

	rc.Logger.Info("Request completed",
		zap.String("host", host.Domain),
		zap.String("action", result.Action),
		zap.Int("status_code", result.StatusCode),
		zap.Int64("bytes", result.BytesServed),
		zap.Int("urls_rewritten", result.URLsRewritten),
		zap.Duration("duration", duration))
}

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.Response.SetBodyString("OK")
}

// handleReady reports readiness for load balancer rotation. Redis is checked
// only when configured; the gateway itself runs fine without it.
func (s *Server) handleReady(ctx *fasthttp.RequestCtx) {
	if s.redis != nil {
		checkCtx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
		defer cancel()
		if err := s.redis.HealthCheck(checkCtx); err != nil {
			s.logger.Warn("Readiness check failed", zap.Error(err))
			s.writeError(ctx, fasthttp.StatusServiceUnavailable, "Redis not available")
			return
		}
	}
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.Response.SetBodyString("OK")
}

// handleRecoveryScript serves the client-side script that retries failed edge
// URLs against their origin. Rewritten pages reference it by absolute path,
// so it must resolve on every proxied domain.
func (s *Server) handleRecoveryScript(ctx *fasthttp.RequestCtx) {
	if !ctx.IsGet() {
		s.writeError(ctx, fasthttp.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	ctx.SetContentType("application/javascript; charset=utf-8")
	ctx.Response.Header.Set("Cache-Control", "public, max-age=86400")
	ctx.Response.SetBody(pipeline.RecoveryScript)
}

// Shutdown releases server-owned resources. The fasthttp listener itself is
// stopped by the caller before this runs.
func (s *Server) Shutdown() error {
	if s.eventEmitter != nil {
		if err := s.eventEmitter.Close(); err != nil {
			s.logger.Warn("Failed to close event emitter", zap.Error(err))
			return err
		}
	}
	return nil
}
