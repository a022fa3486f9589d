// Package pipeline orchestrates one proxied request end to end: rule action
// dispatch, request classification, entitlement gating, the upstream fetch,
// markup rewriting with recovery script injection, and response delivery.
package pipeline

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edgelift/gateway/internal/common/config"
	"github.com/edgelift/gateway/internal/gateway/classify"
	"github.com/edgelift/gateway/internal/gateway/encoding"
	"github.com/edgelift/gateway/internal/gateway/entitlement"
	"github.com/edgelift/gateway/internal/gateway/metrics"
	"github.com/edgelift/gateway/internal/gateway/origin"
	"github.com/edgelift/gateway/internal/gateway/reqctx"
	"github.com/edgelift/gateway/internal/rewrite"
	"github.com/edgelift/gateway/pkg/types"
)

// Pipeline coordinates the per-request processing stages. One Pipeline is
// shared by all requests; per-request state lives in the RewriteContext and
// in the engine built for each rewrite.
type Pipeline struct {
	origin      *origin.Client
	classifier  *classify.Classifier
	entitlement *entitlement.Service
	metrics     *metrics.MetricsCollector
	writer      *ResponseWriter
	logger      *zap.Logger
}

// NewPipeline creates the request processing pipeline.
func NewPipeline(originClient *origin.Client, classifier *classify.Classifier, entitlementSvc *entitlement.Service, collector *metrics.MetricsCollector, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		origin:      originClient,
		classifier:  classifier,
		entitlement: entitlementSvc,
		metrics:     collector,
		writer:      NewResponseWriter(),
		logger:      logger,
	}
}

// Process answers one proxied request and reports what happened. When the
// returned error is nil the HTTP response has been written and the Result is
// non-nil; an error means nothing was written and the caller must respond.
func (p *Pipeline) Process(rc *reqctx.RewriteContext) (*Result, error) {
	resolved := rc.Resolved
	if resolved == nil {
		return nil, fmt.Errorf("resolved config not found in request context")
	}

	// Status and block rules answer without touching the upstream.
	if resolved.Action.IsStatusAction() {
		return p.serveStatus(rc)
	}

	class := p.classifier.Classify(rc)
	rc.WithClass(class)

	result := &Result{
		Action:  ActionPassthrough,
		Signals: classify.Signals(class),
	}
	if resolved.Action == types.ActionRewrite {
		result.Action = ActionRewrite
	}

	// Entitlement gates rewriting only. A host without a valid verdict is
	// still proxied, just with rewriting off.
	rewriteWanted := resolved.Action == types.ActionRewrite && resolved.Rewrite.Enabled
	if rewriteWanted && p.entitlement != nil && p.entitlement.Enabled() {
		ctx, cancel := rc.GetContext()
		verdict := p.entitlement.Check(ctx, rc.Host)
		cancel()

		result.EntitlementSource = verdict.Source
		p.metrics.RecordEntitlementCheck(rc.Host.Domain, entitlementVerdict(verdict.Allowed), verdict.Source)

		if !verdict.Allowed {
			rc.Logger.Warn("Rewriting disabled by entitlement verdict",
				zap.String("source", verdict.Source),
				zap.String("reason", verdict.Reason))
			rewriteWanted = false
		}
	}

	fetchStart := time.Now()
	upstream, err := p.origin.Fetch(rc)
	if err != nil {
		return nil, err
	}
	result.OriginTime = time.Since(fetchStart)

	if upstream.FailureKind != "" {
		return p.serveFailure(rc, result, upstream)
	}
	p.metrics.RecordOriginFetch(rc.Host.Domain, upstream.StatusCode, result.OriginTime)

	body := upstream.Body
	contentEncoding := upstreamContentEncoding(upstream.Headers)

	if rewriteWanted && isHTML(upstream.ContentType) && len(body) > 0 {
		body, contentEncoding = p.rewriteBody(rc, result, upstream, body, contentEncoding)
	}

	source := "passthrough"
	if result.RewriteApplied {
		source = "rewritten"
	}
	if err := p.writer.WriteUpstreamResponse(rc, upstream, body, contentEncoding, source, result.URLsRewritten); err != nil {
		return nil, err
	}

	result.StatusCode = upstream.StatusCode
	result.BytesServed = int64(len(body))
	result.ContentEncoding = servedEncoding(contentEncoding)
	p.metrics.RecordResponseBytes(rc.Host.Domain, result.ContentEncoding, len(body))

	return result, nil
}

// rewriteBody runs the rewrite engine over a decoded HTML body and returns
// the body and encoding to serve. Pages the engine leaves untouched are
// served with the upstream's original bytes and encoding.
func (p *Pipeline) rewriteBody(rc *reqctx.RewriteContext, result *Result, upstream *origin.Response, body []byte, contentEncoding string) ([]byte, string) {
	decoded, err := encoding.Decode(body, contentEncoding)
	if err != nil {
		rc.Logger.Warn("Skipping rewrite, upstream body cannot be decoded",
			zap.String("content_encoding", contentEncoding),
			zap.Error(err))
		return body, contentEncoding
	}

	start := time.Now()
	eng := rewrite.New(engineConfig(&rc.Resolved.Rewrite), engineBase(rc), rc.Class, classify.NewOverrides(&rc.Resolved.Context))

	out := []byte(eng.RewriteFragment(string(decoded)))
	rewriteLinkHeaders(eng, upstream.Headers)

	stats := eng.Stats()
	result.RewriteTime = time.Since(start)
	result.UnsafeContext = eng.UnsafeContext()
	result.URLsRewritten = stats.URLsRewritten
	result.SkipReasons = skipReasons(stats)
	for _, n := range result.SkipReasons {
		result.URLsSkipped += int(n)
	}
	result.RewriteApplied = stats.URLsRewritten > 0

	changed := !bytes.Equal(out, decoded)
	if result.RewriteApplied && rc.Resolved.Rewrite.InjectRecoveryScript {
		var injected bool
		out, injected = injectRecoveryScript(out)
		result.ScriptInjected = injected
		changed = changed || injected
	}

	p.metrics.RecordRewriteOutcome(rc.Host.Domain, stats.URLsRewritten, result.SkipReasons, result.RewriteTime)

	rc.Logger.Debug("Markup processed",
		zap.Int("urls_rewritten", result.URLsRewritten),
		zap.Int("urls_skipped", result.URLsSkipped),
		zap.Bool("unsafe_context", result.UnsafeContext),
		zap.Bool("script_injected", result.ScriptInjected))

	if !changed {
		return body, contentEncoding
	}

	// The processed body is identity-encoded; re-compress for clients that
	// accept gzip.
	if rc.HTTPCtx.Request.Header.HasAcceptEncoding("gzip") {
		if encoded, ok, err := encoding.Encode(out); err == nil && ok {
			return encoded, encoding.Gzip
		}
	}
	return out, ""
}

// serveStatus answers a status or block rule without an upstream fetch.
func (p *Pipeline) serveStatus(rc *reqctx.RewriteContext) (*Result, error) {
	statusCfg := rc.Resolved.Status
	if err := p.writer.WriteStatusResponse(rc, statusCfg); err != nil {
		return nil, err
	}

	action := ActionStatus
	if rc.Resolved.Action == types.ActionBlock {
		action = ActionBlock
	}

	body := rc.HTTPCtx.Response.Body()
	result := &Result{
		Action:          action,
		StatusCode:      statusCfg.Code,
		BytesServed:     int64(len(body)),
		ContentEncoding: encoding.Identity,
	}
	p.metrics.RecordResponseBytes(rc.Host.Domain, encoding.Identity, len(body))
	return result, nil
}

// serveFailure writes a synthesized upstream failure response (502, 504).
func (p *Pipeline) serveFailure(rc *reqctx.RewriteContext, result *Result, upstream *origin.Response) (*Result, error) {
	p.metrics.RecordOriginError(rc.Host.Domain, upstream.FailureKind)

	if err := p.writer.WriteFailureResponse(rc, upstream); err != nil {
		return nil, err
	}

	result.Action = ActionError
	result.ErrorType = upstream.FailureKind
	result.ErrorMessage = string(upstream.Body)
	result.StatusCode = upstream.StatusCode
	result.BytesServed = int64(len(upstream.Body))
	result.ContentEncoding = encoding.Identity
	return result, nil
}

func engineConfig(rw *config.ResolvedRewriteConfig) rewrite.Config {
	return rewrite.Config{
		Enabled:              rw.Enabled,
		EdgeDomain:           rw.EdgeDomain,
		AllowedOriginDomains: rw.AllowedOriginDomains,
		Extensions:           rw.Extensions,
	}
}

// engineBase is the origin the engine absolutizes relative URLs against: the
// proxied site as the client addressed it. Falls back to the tenant's primary
// domain when the requested hostname was not recorded.
func engineBase(rc *reqctx.RewriteContext) rewrite.Base {
	scheme := "http"
	if rc.HTTPCtx.IsTLS() {
		scheme = "https"
	}
	host := rc.RequestedDomain
	if host == "" {
		host = rc.Host.Domain
	}
	return rewrite.Base{Scheme: scheme, Host: host}
}

// skipReasons converts engine skip counters into the reason map carried by
// metrics and audit events. Only non-zero reasons are included.
func skipReasons(stats rewrite.Stats) map[string]uint64 {
	reasons := make(map[string]uint64, 5)
	add := func(r rewrite.Reason, n int) {
		if n > 0 {
			reasons[r.String()] = uint64(n)
		}
	}
	add(rewrite.ReasonEmptyURL, stats.SkippedEmpty)
	add(rewrite.ReasonInvalidURL, stats.SkippedInvalid)
	add(rewrite.ReasonEdgeURL, stats.SkippedEdge)
	add(rewrite.ReasonDomainNotAllowed, stats.SkippedDomain)
	add(rewrite.ReasonExtension, stats.SkippedExtension)

	if len(reasons) == 0 {
		return nil
	}
	return reasons
}

func isHTML(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/html")
}

func upstreamContentEncoding(headers map[string][]string) string {
	if values, ok := getHeaderCaseInsensitive(headers, "Content-Encoding"); ok && len(values) > 0 {
		return values[0]
	}
	return ""
}

func servedEncoding(contentEncoding string) string {
	normalized := strings.ToLower(strings.TrimSpace(contentEncoding))
	if normalized == "" {
		return encoding.Identity
	}
	return normalized
}

func entitlementVerdict(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}
