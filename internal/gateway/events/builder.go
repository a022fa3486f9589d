package events

import (
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/edgelift/gateway/internal/gateway/pipeline"
	"github.com/edgelift/gateway/internal/gateway/reqctx"
)

// Event type constants
const (
	EventTypeRewrite     = "rewrite"
	EventTypePassthrough = "passthrough"
	EventTypeBlock       = "block"
	EventTypeStatus      = "status"
	EventTypeRateLimited = "rate_limited"
	EventTypeError       = "error"
)

// BuildRequestEvent creates a RequestEvent from request context and result
func BuildRequestEvent(
	rc *reqctx.RewriteContext,
	result *pipeline.Result,
	duration time.Duration,
	rgInstanceID string,
) *RequestEvent {
	event := &RequestEvent{
		CreatedAt:    time.Now().UTC(),
		RgInstanceID: rgInstanceID,
		ServeTime:    duration.Seconds(),
	}

	// Populate from RewriteContext
	if rc != nil {
		event.RequestID = rc.RequestID
		event.URL = rc.TargetURL
		if rc.HTTPCtx != nil {
			event.UserAgent = string(rc.HTTPCtx.UserAgent())
		}
		event.ClientIP = rc.ClientIP

		if rc.Host != nil {
			event.Host = rc.Host.Domain
			event.HostID = rc.Host.ID
		}

		// Get matched rule from resolved config
		if rc.Resolved != nil {
			event.MatchedRule = rc.Resolved.MatchedPattern
		}
	}

	// Populate from pipeline result
	if result != nil {
		event.EventType = mapAction(result.Action)
		event.StatusCode = result.StatusCode
		event.PageSize = result.BytesServed
		event.OriginTime = result.OriginTime.Seconds()
		event.EntitlementSource = result.EntitlementSource
		event.ErrorType = result.ErrorType
		event.ErrorMessage = result.ErrorMessage

		// Rewrite detail only exists for rewrite-action requests
		if result.Action == pipeline.ActionRewrite {
			event.Rewrite = &RewriteMetricsEvent{
				URLsRewritten:  result.URLsRewritten,
				URLsSkipped:    result.URLsSkipped,
				UnsafeContext:  result.UnsafeContext,
				Signals:        strings.Join(result.Signals, ","),
				ScriptInjected: result.ScriptInjected,
				Duration:       result.RewriteTime.Seconds(),
			}
		}
	}

	return event
}

// BuildErrorEvent creates an error event for early failures (auth, validation, etc.)
func BuildErrorEvent(
	requestID string,
	host string,
	hostID int,
	url string,
	userAgent string,
	clientIP string,
	errorType string,
	errorMessage string,
	statusCode int,
	rgInstanceID string,
) *RequestEvent {
	return &RequestEvent{
		RequestID:    requestID,
		Host:         host,
		HostID:       hostID,
		URL:          url,
		UserAgent:    userAgent,
		ClientIP:     clientIP,
		EventType:    EventTypeError,
		StatusCode:   statusCode,
		ErrorType:    errorType,
		ErrorMessage: errorMessage,
		CreatedAt:    time.Now().UTC(),
		RgInstanceID: rgInstanceID,
	}
}

// BuildRateLimitedEvent creates an event for a request rejected by the
// per-client rate limit.
func BuildRateLimitedEvent(
	requestID string,
	host string,
	hostID int,
	url string,
	userAgent string,
	clientIP string,
	rgInstanceID string,
) *RequestEvent {
	return &RequestEvent{
		RequestID:    requestID,
		Host:         host,
		HostID:       hostID,
		URL:          url,
		UserAgent:    userAgent,
		ClientIP:     clientIP,
		EventType:    EventTypeRateLimited,
		StatusCode:   fasthttp.StatusTooManyRequests,
		CreatedAt:    time.Now().UTC(),
		RgInstanceID: rgInstanceID,
	}
}

// mapAction converts a pipeline action to the event type string
func mapAction(action string) string {
	switch action {
	case pipeline.ActionRewrite:
		return EventTypeRewrite
	case pipeline.ActionPassthrough:
		return EventTypePassthrough
	case pipeline.ActionBlock:
		return EventTypeBlock
	case pipeline.ActionStatus:
		return EventTypeStatus
	case pipeline.ActionError:
		return EventTypeError
	default:
		return EventTypePassthrough
	}
}
