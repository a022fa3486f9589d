package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/edgelift/gateway/internal/common/configtypes"
	"github.com/edgelift/gateway/pkg/pattern"
	"github.com/edgelift/gateway/pkg/types"
)

// Fallback constants when optional configuration fields are nil
const (
	defaultOriginTimeout = 30 * time.Second
)

// defaultResponseHeaders are the origin response headers forwarded to the
// client when no level configures safe_response. Set-Cookie stays in the
// default set: management surfaces are proxied unrewritten but still need
// working login flows.
var defaultResponseHeaders = []string{
	"Content-Type", "Cache-Control", "Expires", "Last-Modified", "ETag",
	"Location", "Link", "Set-Cookie", "Vary",
}

// defaultClientIPHeaders are checked in order for the real client address
// when no level configures client_ip.headers.
var defaultClientIPHeaders = []string{"X-Forwarded-For", "X-Real-IP"}

// defaultContext is the stock classification pattern set, compiled once.
// Hosts and the global config override it per field with replacement
// semantics (a non-empty list replaces the parent's list completely).
var defaultContext = func() *types.ContextConfig {
	c := &types.ContextConfig{
		ManagementPaths: types.DefaultManagementPaths,
		APIPaths:        types.DefaultAPIPaths,
		CronPaths:       types.DefaultCronPaths,
		RPCPaths:        types.DefaultRPCPaths,
		InstallPaths:    types.DefaultInstallPaths,
		AsyncPaths:      types.DefaultAsyncPaths,
		AutosavePaths:   types.DefaultAutosavePaths,
		LoginCookies:    types.DefaultLoginCookies,
		AutomationUA:    types.DefaultAutomationUA,
	}
	if err := c.CompilePatterns(); err != nil {
		panic(fmt.Sprintf("default context patterns: %v", err))
	}
	return c
}()

// ResolvedConfig contains fully resolved configuration for a specific URL
// after merging global → host → rule levels
type ResolvedConfig struct {
	Action              types.URLRuleAction   // rewrite, passthrough, block, status_403, status_404, status_410, status
	Status              ResolvedStatusConfig  // status action configuration
	Rewrite             ResolvedRewriteConfig // engine configuration (rewrite action only)
	Context             ResolvedContextConfig // request classification patterns
	Origin              ResolvedOriginConfig  // upstream fetch configuration
	SafeRequestHeaders  []string              // extra client request headers to forward to origin
	SafeResponseHeaders []string              // response headers to return to client
	ClientIPHeaders     []string              // headers checked for the real client address
	MatchedRuleID       string                // Identifier of the matched URL rule (empty if no rule matched)
	MatchedPattern      string                // The URL pattern that matched (e.g., "/blog/*")
}

// ResolvedRewriteConfig contains resolved media rewriting configuration.
// Enabled defaults to true: a host fronted by this gateway is rewritten
// unless it opts out, and an empty EdgeDomain disables rewriting anyway.
type ResolvedRewriteConfig struct {
	Enabled              bool
	EdgeDomain           string
	AllowedOriginDomains []string
	Extensions           []string
	InjectRecoveryScript bool
}

// ResolvedContextConfig contains the compiled classification pattern sets
// and the context override switches.
type ResolvedContextConfig struct {
	ManagementPatterns []*pattern.Pattern
	APIPatterns        []*pattern.Pattern
	CronPatterns       []*pattern.Pattern
	RPCPatterns        []*pattern.Pattern
	InstallPatterns    []*pattern.Pattern
	AsyncPatterns      []*pattern.Pattern
	AutosavePatterns   []*pattern.Pattern
	CookiePatterns     []*pattern.Pattern
	UAPatterns         []*pattern.Pattern

	AllowAuthenticatedVisitors bool
	AllowManagementRewrite     bool
}

// ResolvedOriginConfig contains resolved upstream fetch configuration
type ResolvedOriginConfig struct {
	URL              string        // upstream base URL (host-level, required)
	Timeout          time.Duration // fetch timeout
	UserAgent        string        // empty = forward the client's User-Agent
	ValidateOriginIP bool          // reject upstreams resolving to loopback/link-local
}

// ResolvedStatusConfig contains resolved status action configuration
type ResolvedStatusConfig struct {
	Code    int               // HTTP status code (3xx, 4xx, 5xx)
	Reason  string            // Optional reason for response body
	Headers map[string]string // Custom headers (can override defaults)
}

// ConfigResolver resolves configuration from global, host, and rule levels
type ConfigResolver struct {
	globalRewrite  *types.RewriteConfig
	globalContext  *types.ContextConfig
	globalHeaders  *types.HeadersConfig
	globalClientIP *types.ClientIPConfig
	globalOrigin   *configtypes.GlobalOriginConfig
	host           *types.Host
	matcher        *PatternMatcher
}

// NewConfigResolver creates a new configuration resolver
func NewConfigResolver(globalRewrite *types.RewriteConfig, globalContext *types.ContextConfig, globalHeaders *types.HeadersConfig, globalClientIP *types.ClientIPConfig, globalOrigin *configtypes.GlobalOriginConfig, host *types.Host) *ConfigResolver {
	return &ConfigResolver{
		globalRewrite:  globalRewrite,
		globalContext:  globalContext,
		globalHeaders:  globalHeaders,
		globalClientIP: globalClientIP,
		globalOrigin:   globalOrigin,
		host:           host,
		matcher:        NewPatternMatcher(host.URLRules),
	}
}

// ResolveForURL resolves configuration for the given URL
// Deep merge order: Global → Host → URL Rule (first match)
func (r *ConfigResolver) ResolveForURL(targetURL string) *ResolvedConfig {
	// Find matching URL rule (returns nil, -1 if no match)
	matchedRule, ruleIndex := r.matcher.FindMatchingRule(targetURL)

	var ruleID string
	var matchedPattern string
	if matchedRule != nil {
		patterns := matchedRule.GetMatchPatterns()
		patternStr := ""
		if len(patterns) > 0 {
			patternStr = patterns[0]
			matchedPattern = patternStr
		}
		ruleID = formatRuleID(ruleIndex, patternStr, matchedRule)
	}

	// Determine action (default is rewrite if no rule matches)
	action := types.ActionRewrite
	if matchedRule != nil {
		action = matchedRule.Action
	}

	resolved := &ResolvedConfig{
		Action:         action,
		MatchedRuleID:  ruleID,
		MatchedPattern: matchedPattern,
	}

	// Resolve status configuration (for status actions)
	if action.IsStatusAction() {
		r.resolveStatusConfig(resolved, matchedRule)
	}

	// Resolve rewrite configuration (only for rewrite action)
	if action == types.ActionRewrite {
		r.resolveRewriteConfig(resolved, matchedRule)
	}

	// Resolve context classification (applies to all proxied actions)
	r.resolveContextConfig(resolved)

	// Resolve upstream fetch configuration (applies to all proxied actions)
	r.resolveOriginConfig(resolved)

	// Resolve safe headers configuration (applies to all actions)
	r.resolveHeaders(resolved, matchedRule)

	// Resolve client IP extraction headers
	r.resolveClientIP(resolved)

	return resolved
}

// formatRuleID generates a human-readable rule identifier
func formatRuleID(index int, pattern string, rule *types.URLRule) string {
	// Format: rule_<index>:<pattern>[?<query_condition>]
	ruleID := fmt.Sprintf("rule_%d:%s", index, pattern)

	// Add query parameter indicator if match_query is specified
	if len(rule.MatchQuery) > 0 {
		ruleID += "?..."
	}

	return ruleID
}

// resolveRewriteConfig resolves media rewriting configuration with deep merge
func (r *ConfigResolver) resolveRewriteConfig(resolved *ResolvedConfig, matchedRule *types.URLRule) {
	rw := &resolved.Rewrite

	// Defaults
	rw.Enabled = true
	rw.InjectRecoveryScript = true

	// Layer 1-3: global, host, rule
	r.applyRewriteLayer(rw, r.globalRewrite)
	r.applyRewriteLayer(rw, r.host.Rewrite)
	if matchedRule != nil {
		r.applyRewriteLayer(rw, matchedRule.Rewrite)
	}

	// An empty allow-list after all layers means the host's own domains:
	// the gateway rewrites its tenant's media, not the whole internet.
	if len(rw.AllowedOriginDomains) == 0 {
		rw.AllowedOriginDomains = r.host.Domains
	}
}

// applyRewriteLayer applies one configuration layer onto the resolved rewrite
// config. nil layers are skipped.
func (r *ConfigResolver) applyRewriteLayer(rw *ResolvedRewriteConfig, layer *types.RewriteConfig) {
	if layer == nil {
		return
	}

	if layer.Enabled != nil {
		rw.Enabled = *layer.Enabled
	}
	if layer.EdgeDomain != "" {
		rw.EdgeDomain = layer.EdgeDomain
	}
	rw.AllowedOriginDomains = applyListDirective(rw.AllowedOriginDomains, layer.AllowedOriginDomains, layer.AllowedOriginDomainsAdd)
	rw.Extensions = applyListDirective(rw.Extensions, layer.Extensions, layer.ExtensionsAdd)
	if layer.InjectRecoveryScript != nil {
		rw.InjectRecoveryScript = *layer.InjectRecoveryScript
	}
}

// resolveContextConfig resolves classification patterns per field:
// host's list if set, else global's, else the stock defaults. Lists use
// replacement semantics; there is no additive form for context patterns.
func (r *ConfigResolver) resolveContextConfig(resolved *ResolvedConfig) {
	g := r.globalContext
	h := r.host.Context

	ctx := &resolved.Context
	ctx.ManagementPatterns = pickPatterns(contextField(h, g, func(c *types.ContextConfig) []*pattern.Pattern { return c.ManagementPatterns }), defaultContext.ManagementPatterns)
	ctx.APIPatterns = pickPatterns(contextField(h, g, func(c *types.ContextConfig) []*pattern.Pattern { return c.APIPatterns }), defaultContext.APIPatterns)
	ctx.CronPatterns = pickPatterns(contextField(h, g, func(c *types.ContextConfig) []*pattern.Pattern { return c.CronPatterns }), defaultContext.CronPatterns)
	ctx.RPCPatterns = pickPatterns(contextField(h, g, func(c *types.ContextConfig) []*pattern.Pattern { return c.RPCPatterns }), defaultContext.RPCPatterns)
	ctx.InstallPatterns = pickPatterns(contextField(h, g, func(c *types.ContextConfig) []*pattern.Pattern { return c.InstallPatterns }), defaultContext.InstallPatterns)
	ctx.AsyncPatterns = pickPatterns(contextField(h, g, func(c *types.ContextConfig) []*pattern.Pattern { return c.AsyncPatterns }), defaultContext.AsyncPatterns)
	ctx.AutosavePatterns = pickPatterns(contextField(h, g, func(c *types.ContextConfig) []*pattern.Pattern { return c.AutosavePatterns }), defaultContext.AutosavePatterns)
	ctx.CookiePatterns = pickPatterns(contextField(h, g, func(c *types.ContextConfig) []*pattern.Pattern { return c.CookiePatterns }), defaultContext.CookiePatterns)
	ctx.UAPatterns = pickPatterns(contextField(h, g, func(c *types.ContextConfig) []*pattern.Pattern { return c.UAPatterns }), defaultContext.UAPatterns)

	// Switches: host over global, default false (fail closed)
	ctx.AllowAuthenticatedVisitors = resolveBoolSwitch(
		contextSwitch(h, func(c *types.ContextConfig) *bool { return c.AllowAuthenticatedVisitors }),
		contextSwitch(g, func(c *types.ContextConfig) *bool { return c.AllowAuthenticatedVisitors }),
	)
	ctx.AllowManagementRewrite = resolveBoolSwitch(
		contextSwitch(h, func(c *types.ContextConfig) *bool { return c.AllowManagementRewrite }),
		contextSwitch(g, func(c *types.ContextConfig) *bool { return c.AllowManagementRewrite }),
	)
}

// contextField returns the host's compiled list when non-empty, else the
// global's. Either config may be nil.
func contextField(host, global *types.ContextConfig, get func(*types.ContextConfig) []*pattern.Pattern) []*pattern.Pattern {
	if host != nil {
		if patterns := get(host); len(patterns) > 0 {
			return patterns
		}
	}
	if global != nil {
		if patterns := get(global); len(patterns) > 0 {
			return patterns
		}
	}
	return nil
}

func contextSwitch(c *types.ContextConfig, get func(*types.ContextConfig) *bool) *bool {
	if c == nil {
		return nil
	}
	return get(c)
}

func pickPatterns(resolved, def []*pattern.Pattern) []*pattern.Pattern {
	if len(resolved) > 0 {
		return resolved
	}
	return def
}

func resolveBoolSwitch(host, global *bool) bool {
	if host != nil {
		return *host
	}
	if global != nil {
		return *global
	}
	return false
}

// resolveOriginConfig resolves upstream fetch configuration with deep merge
func (r *ConfigResolver) resolveOriginConfig(resolved *ResolvedConfig) {
	o := &resolved.Origin
	o.URL = r.host.Origin.URL

	// Timeout: host → global → default
	o.Timeout = defaultOriginTimeout
	if r.globalOrigin != nil && r.globalOrigin.Timeout != nil {
		o.Timeout = time.Duration(*r.globalOrigin.Timeout)
	}
	if r.host.Origin.Timeout != nil {
		o.Timeout = time.Duration(*r.host.Origin.Timeout)
	}

	// UserAgent: global-only setting
	if r.globalOrigin != nil {
		o.UserAgent = r.globalOrigin.UserAgent
	}

	// ValidateOriginIP: host → global → default true
	o.ValidateOriginIP = true
	if r.globalOrigin != nil && r.globalOrigin.ValidateOriginIP != nil {
		o.ValidateOriginIP = *r.globalOrigin.ValidateOriginIP
	}
	if r.host.Origin.ValidateOriginIP != nil {
		o.ValidateOriginIP = *r.host.Origin.ValidateOriginIP
	}
}

// resolveStatusConfig resolves status action configuration
func (r *ConfigResolver) resolveStatusConfig(resolved *ResolvedConfig, matchedRule *types.URLRule) {
	// Initialize with empty headers map
	resolved.Status.Headers = make(map[string]string)

	// Infer status code from action if not explicitly provided
	statusCode := 0
	switch resolved.Action {
	case types.ActionBlock, types.ActionStatus403:
		statusCode = 403
	case types.ActionStatus404:
		statusCode = 404
	case types.ActionStatus410:
		statusCode = 410
	case types.ActionStatus:
		// For generic status action, code must be provided in Status config
		if matchedRule != nil && matchedRule.Status != nil && matchedRule.Status.Code != nil {
			statusCode = *matchedRule.Status.Code
		}
	}

	resolved.Status.Code = statusCode

	// Apply status configuration from matched rule
	if matchedRule != nil && matchedRule.Status != nil {
		// Reason
		if matchedRule.Status.Reason != "" {
			resolved.Status.Reason = matchedRule.Status.Reason
		}

		// Custom headers (deep copy to avoid mutation)
		if len(matchedRule.Status.Headers) > 0 {
			for key, value := range matchedRule.Status.Headers {
				resolved.Status.Headers[key] = value
			}
		}

		// If code explicitly provided in Status config, use it (override inferred)
		if matchedRule.Status.Code != nil {
			resolved.Status.Code = *matchedRule.Status.Code
		}
	}
}

// resolveHeaders resolves headers configuration with replacement and additive semantics.
// Each field (request/response) is resolved independently.
func (r *ConfigResolver) resolveHeaders(resolved *ResolvedConfig, matchedRule *types.URLRule) {
	responseHeaders := defaultResponseHeaders
	// Default request headers (empty - opt-in)
	var requestHeaders []string

	// Layer 1: Global configuration
	if r.globalHeaders != nil {
		requestHeaders = applyListDirective(requestHeaders, r.globalHeaders.SafeRequest, r.globalHeaders.SafeRequestAdd)
		responseHeaders = applyListDirective(responseHeaders, r.globalHeaders.SafeResponse, r.globalHeaders.SafeResponseAdd)
	}

	// Layer 2: Host configuration
	if r.host.Headers != nil {
		requestHeaders = applyListDirective(requestHeaders, r.host.Headers.SafeRequest, r.host.Headers.SafeRequestAdd)
		responseHeaders = applyListDirective(responseHeaders, r.host.Headers.SafeResponse, r.host.Headers.SafeResponseAdd)
	}

	// Layer 3: URL rule configuration
	if matchedRule != nil && matchedRule.Headers != nil {
		requestHeaders = applyListDirective(requestHeaders, matchedRule.Headers.SafeRequest, matchedRule.Headers.SafeRequestAdd)
		responseHeaders = applyListDirective(responseHeaders, matchedRule.Headers.SafeResponse, matchedRule.Headers.SafeResponseAdd)
	}

	resolved.SafeRequestHeaders = requestHeaders
	resolved.SafeResponseHeaders = responseHeaders
}

// resolveClientIP resolves client IP extraction headers: host replaces
// global, default X-Forwarded-For then X-Real-IP.
func (r *ConfigResolver) resolveClientIP(resolved *ResolvedConfig) {
	headers := defaultClientIPHeaders
	if r.globalClientIP != nil && len(r.globalClientIP.Headers) > 0 {
		headers = r.globalClientIP.Headers
	}
	if r.host.ClientIP != nil && len(r.host.ClientIP.Headers) > 0 {
		headers = r.host.ClientIP.Headers
	}
	resolved.ClientIPHeaders = headers
}

// applyListDirective applies replace or add semantics to a string list.
// If replace is non-empty, it replaces current. If add is non-empty, it adds
// (with dedup).
func applyListDirective(current, replace, add []string) []string {
	if len(replace) > 0 {
		return replace
	}
	if len(add) > 0 {
		return deduplicateStrings(append(current, add...))
	}
	return current
}

// deduplicateStrings removes duplicates (case-insensitive), preserving first occurrence.
func deduplicateStrings(values []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(values))
	for _, v := range values {
		lower := strings.ToLower(v)
		if !seen[lower] {
			seen[lower] = true
			result = append(result, v)
		}
	}
	return result
}
