package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgelift/gateway/internal/common/config"
	"github.com/edgelift/gateway/internal/gateway/encoding"
	"github.com/edgelift/gateway/internal/gateway/origin"
	"github.com/edgelift/gateway/internal/gateway/reqctx"
)

// ResponseWriter handles all HTTP response writing operations
// Pure HTTP writing with no business logic or metrics
type ResponseWriter struct {
	// No dependencies needed - pure HTTP writing
}

// NewResponseWriter creates a new ResponseWriter instance
func NewResponseWriter() *ResponseWriter {
	return &ResponseWriter{}
}

// WriteUpstreamResponse writes a proxied upstream page to the HTTP response.
// body is the final body to serve, which may differ from upstream.Body when
// the page was rewritten or re-encoded; contentEncoding names its encoding
// (empty for identity). source labels the response for diagnostics.
func (rw *ResponseWriter) WriteUpstreamResponse(rc *reqctx.RewriteContext, upstream *origin.Response, body []byte, contentEncoding, source string, urlsRewritten int) error {
	resp := &rc.HTTPCtx.Response

	resp.SetStatusCode(upstream.StatusCode)

	// Always preserve Location for redirects (essential for proper redirect behavior)
	// Case-insensitive lookup per RFC 7230 (upstream may send "location" lowercase)
	if upstream.StatusCode >= 300 && upstream.StatusCode < 400 {
		if locations, ok := getHeaderCaseInsensitive(upstream.Headers, "Location"); ok && len(locations) > 0 {
			resp.Header.Set("Location", locations[0])
		}
	}

	// Serve headers from the upstream (filter using safe_response_headers config)
	filteredHeaders := FilterHeaders(upstream.Headers, rc.Resolved.SafeResponseHeaders, upstream.StatusCode)
	for name, values := range filteredHeaders {
		// Skip Location as it is handled explicitly above
		if strings.EqualFold(name, "Location") {
			continue
		}
		for _, value := range values {
			resp.Header.Add(name, value)
		}
	}

	resp.Header.SetContentType(upstream.ContentType)
	if contentEncoding != "" && contentEncoding != encoding.Identity {
		resp.Header.Set("Content-Encoding", contentEncoding)
	}

	resp.Header.Set("X-Rewrite-Source", source)
	if urlsRewritten > 0 {
		// Rewritten bodies are compressed per the client's Accept-Encoding.
		resp.Header.Add("Vary", "Accept-Encoding")
		resp.Header.Set("X-Rewrite-Count", strconv.Itoa(urlsRewritten))
	}

	// Set matched rule header if available
	if rc.Resolved.MatchedRuleID != "" {
		resp.Header.Set("X-Matched-Rule", rc.Resolved.MatchedRuleID)
	}

	resp.Header.SetContentLength(len(body))
	resp.SetBody(body)

	return nil
}

// WriteStatusResponse writes a status action response (3xx, 4xx, 5xx)
func (rw *ResponseWriter) WriteStatusResponse(rc *reqctx.RewriteContext, statusConfig config.ResolvedStatusConfig) error {
	rc.Logger.Info("URL matched status rule, returning status",
		zap.Int("status_code", statusConfig.Code),
		zap.String("reason", statusConfig.Reason))

	resp := &rc.HTTPCtx.Response

	resp.SetStatusCode(statusConfig.Code)

	// Set default headers
	resp.Header.SetContentType("text/plain; charset=utf-8")
	resp.Header.Set("X-Rewrite-Action", "status")

	// Set matched rule header if available
	if rc.Resolved.MatchedRuleID != "" {
		resp.Header.Set("X-Matched-Rule", rc.Resolved.MatchedRuleID)
	}

	// Apply custom headers (can override defaults including Content-Type)
	for key, value := range statusConfig.Headers {
		resp.Header.Set(key, value)
	}

	// Generate response body based on status code class
	statusClass := statusConfig.Code / 100

	switch statusClass {
	case 3: // 3xx Redirects
		// For redirects, no body is needed (most clients ignore it)
		resp.SetBodyString("")

	case 4, 5: // 4xx and 5xx Errors
		statusText := fasthttp.StatusMessage(statusConfig.Code)

		var body string
		if statusConfig.Reason != "" {
			body = fmt.Sprintf("%s: %s", statusText, statusConfig.Reason)
		} else {
			body = statusText
		}

		resp.SetBodyString(body)

	default:
		// For other status codes (should not happen with validation), use status text
		resp.SetBodyString(fasthttp.StatusMessage(statusConfig.Code))
	}

	return nil
}

// WriteFailureResponse writes a response synthesized for a failed upstream
// fetch (502, 504).
func (rw *ResponseWriter) WriteFailureResponse(rc *reqctx.RewriteContext, upstream *origin.Response) error {
	resp := &rc.HTTPCtx.Response

	resp.SetStatusCode(upstream.StatusCode)
	resp.Header.SetContentType(upstream.ContentType)
	resp.Header.Set("X-Rewrite-Source", "error")
	resp.SetBody(upstream.Body)

	return nil
}
