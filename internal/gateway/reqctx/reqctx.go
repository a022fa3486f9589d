package reqctx

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgelift/gateway/internal/common/config"
	"github.com/edgelift/gateway/internal/rewrite"
	"github.com/edgelift/gateway/pkg/types"
)

// RewriteContext carries all request state and dependencies through the
// rewrite pipeline: classification, origin fetch, markup processing, and
// response assembly.
// The timeout fields (startTime, timeout) are immutable after creation,
// making TimeRemaining() safe to call from multiple goroutines.
type RewriteContext struct {
	// Request metadata
	RequestID string
	Logger    *zap.Logger

	// HTTP context
	HTTPCtx *fasthttp.RequestCtx

	// Timeout management (immutable after creation)
	startTime time.Time
	timeout   time.Duration

	// Request data
	TargetURL       string                 // full origin page URL being proxied
	RequestedDomain string                 // hostname the client addressed, which may be a domain alias
	Host            *types.Host            // matched tenant host
	Resolved        *config.ResolvedConfig // configuration resolved for this URL
	Class           rewrite.Class          // request classification for the context guard

	ClientHeaders map[string][]string // safe request headers extracted from the client
	ClientIP      string
}

// New creates a request context with the provided request ID, HTTP context,
// and timeout budget.
func New(requestID string, httpCtx *fasthttp.RequestCtx, baseLogger *zap.Logger, timeout time.Duration) *RewriteContext {
	logger := baseLogger.With(zap.String("request_id", requestID))

	return &RewriteContext{
		RequestID: requestID,
		Logger:    logger,
		HTTPCtx:   httpCtx,
		startTime: time.Now().UTC(),
		timeout:   timeout,
	}
}

// WithTargetURL enriches the context with the origin page URL being proxied
func (rc *RewriteContext) WithTargetURL(targetURL string) *RewriteContext {
	rc.TargetURL = targetURL
	rc.Logger = rc.Logger.With(zap.String("origin_url", targetURL))
	return rc
}

// WithRequestedDomain records the hostname from the client's Host header,
// already lowercased and stripped of any port.
func (rc *RewriteContext) WithRequestedDomain(domain string) *RewriteContext {
	rc.RequestedDomain = domain
	return rc
}

// WithHost enriches the context with the matched tenant host
func (rc *RewriteContext) WithHost(host *types.Host) *RewriteContext {
	rc.Host = host
	rc.Logger = rc.Logger.With(
		zap.String("host", host.Domain),
		zap.Int("host_id", host.ID))
	return rc
}

// WithResolved attaches the configuration resolved for this URL. The matched
// rule identifier is logged when a URL rule matched.
func (rc *RewriteContext) WithResolved(resolved *config.ResolvedConfig) *RewriteContext {
	rc.Resolved = resolved
	if resolved != nil && resolved.MatchedRuleID != "" {
		rc.Logger = rc.Logger.With(zap.String("matched_rule", resolved.MatchedRuleID))
	}
	return rc
}

// WithClass attaches the request classification
func (rc *RewriteContext) WithClass(class rewrite.Class) *RewriteContext {
	rc.Class = class
	return rc
}

// WithClientHeaders sets the extracted client request headers.
func (rc *RewriteContext) WithClientHeaders(headers map[string][]string) *RewriteContext {
	rc.ClientHeaders = headers
	return rc
}

// WithClientIP sets the extracted client IP address.
func (rc *RewriteContext) WithClientIP(ip string) *RewriteContext {
	rc.ClientIP = ip
	rc.Logger = rc.Logger.With(zap.String("client_ip", ip))
	return rc
}

// TimeRemaining returns how much time is left in the timeout budget.
// This method is safe to call from multiple goroutines since it only
// reads immutable fields.
func (rc *RewriteContext) TimeRemaining() time.Duration {
	elapsed := time.Now().UTC().Sub(rc.startTime)
	remaining := rc.timeout - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsTimedOut returns true if the request has exceeded its timeout budget
func (rc *RewriteContext) IsTimedOut() bool {
	return rc.TimeRemaining() == 0
}

// Elapsed returns how long the request has been in flight
func (rc *RewriteContext) Elapsed() time.Duration {
	return time.Now().UTC().Sub(rc.startTime)
}

// GetContext creates a context with the remaining timeout budget
func (rc *RewriteContext) GetContext() (context.Context, context.CancelFunc) {
	remaining := rc.TimeRemaining()
	if remaining <= 0 {
		// Already timed out, return cancelled context
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx, cancel
	}
	return context.WithTimeout(context.Background(), remaining)
}

// ContextWithTimeout creates a context with a specific timeout, capped by the remaining budget
func (rc *RewriteContext) ContextWithTimeout(operationTimeout time.Duration) (context.Context, context.CancelFunc) {
	remaining := rc.TimeRemaining()
	if remaining <= 0 {
		// Already timed out, return cancelled context
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx, cancel
	}

	// Use the smaller of the operation timeout or remaining budget
	timeout := operationTimeout
	if remaining < timeout {
		timeout = remaining
	}

	return context.WithTimeout(context.Background(), timeout)
}
