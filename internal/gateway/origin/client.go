package origin

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgelift/gateway/internal/common/urlutil"
	"github.com/edgelift/gateway/internal/gateway/reqctx"
)

// Failure kinds for synthesized responses. Empty means the upstream answered.
const (
	FailureUnreachable     = "unreachable"
	FailureBudgetExhausted = "budget_exhausted"
)

// Response holds a page fetched from the tenant's upstream. FailureKind is
// set when the response was synthesized by the client instead of received
// from the upstream.
type Response struct {
	StatusCode  int
	Body        []byte
	ContentType string
	Headers     map[string][]string
	FailureKind string
}

// Client proxies requests to tenant upstream servers. A single Client is
// shared by all requests; per-host behavior (timeout, User-Agent, IP
// validation) comes from the resolved configuration on each call.
type Client struct {
	logger *zap.Logger
	plain  *fasthttp.Client
	safe   *fasthttp.Client
}

// NewClient creates an upstream client. Two fasthttp clients are kept because
// the Dial function is fixed per client while origin.validate_origin_ip is a
// per-host setting.
func NewClient(logger *zap.Logger) *Client {
	return &Client{
		logger: logger,
		plain:  &fasthttp.Client{},
		safe:   &fasthttp.Client{Dial: ssrfSafeDial},
	}
}

// BuildTargetURL joins the configured upstream base URL with the request's
// original path and query. The path bytes are used as received so percent
// encoding survives the proxy hop.
func BuildTargetURL(base string, path, query []byte) string {
	var b strings.Builder
	b.Grow(len(base) + len(path) + len(query) + 1)
	b.WriteString(strings.TrimSuffix(base, "/"))
	b.Write(path)
	if len(query) > 0 {
		b.WriteByte('?')
		b.Write(query)
	}
	return b.String()
}

// Fetch proxies the client's request to the upstream resolved for this host
// and returns the upstream response. Connection failures and timeouts are
// mapped to a synthesized 502 rather than an error so the caller always has
// a response to return; a request whose time budget is already spent gets a
// 504 without touching the network.
func (c *Client) Fetch(rc *reqctx.RewriteContext) (*Response, error) {
	originCfg := &rc.Resolved.Origin
	targetURL := BuildTargetURL(originCfg.URL, rc.HTTPCtx.URI().PathOriginal(), rc.HTTPCtx.URI().QueryString())

	if rc.IsTimedOut() {
		rc.Logger.Warn("Request budget exhausted before upstream fetch",
			zap.String("url", targetURL))
		return &Response{
			StatusCode:  fasthttp.StatusGatewayTimeout,
			Body:        []byte("Gateway Timeout"),
			ContentType: "text/plain; charset=utf-8",
			Headers:     make(map[string][]string),
			FailureKind: FailureBudgetExhausted,
		}, nil
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(targetURL)
	req.Header.SetMethodBytes(rc.HTTPCtx.Method())

	// The upstream virtual-hosts on the site's public domain, not on the
	// address we dial. Aliased domains keep the name the client used.
	publicHost := rc.RequestedDomain
	if publicHost == "" {
		publicHost = rc.Host.Domain
	}
	req.UseHostHeader = true
	req.Header.SetHost(publicHost)

	if originCfg.UserAgent != "" {
		req.Header.Set("User-Agent", originCfg.UserAgent)
	} else {
		req.Header.SetUserAgentBytes(rc.HTTPCtx.UserAgent())
	}

	// Add safe client request headers (skip User-Agent - handled above)
	for name, values := range rc.ClientHeaders {
		if strings.EqualFold(name, "user-agent") {
			continue
		}
		for i, value := range values {
			if i == 0 {
				req.Header.Set(name, value)
			} else {
				req.Header.Add(name, value)
			}
		}
	}

	// Standard proxy headers, set last so forwarded client headers cannot
	// override them.
	req.Header.Set("X-Forwarded-For", rc.ClientIP)
	req.Header.Set("X-Forwarded-Host", publicHost)
	if rc.HTTPCtx.IsTLS() {
		req.Header.Set("X-Forwarded-Proto", "https")
	} else {
		req.Header.Set("X-Forwarded-Proto", "http")
	}

	if body := rc.HTTPCtx.Request.Body(); len(body) > 0 {
		req.SetBody(body)
	}

	client := c.plain
	if originCfg.ValidateOriginIP {
		client = c.safe
	}

	if err := client.DoDeadline(req, resp, fetchDeadline(rc)); err != nil {
		// All timeout/connection errors should return 502 Bad Gateway
		// This includes read timeouts, write timeouts, dial timeouts, and connection failures
		rc.Logger.Warn("Upstream fetch failed, returning 502 Bad Gateway",
			zap.String("url", targetURL),
			zap.Error(err))

		return &Response{
			StatusCode:  fasthttp.StatusBadGateway,
			Body:        []byte("Bad Gateway: Origin unreachable"),
			ContentType: "text/plain; charset=utf-8",
			Headers:     make(map[string][]string),
			FailureKind: FailureUnreachable,
		}, nil
	}

	// Extract headers using VisitAll to capture all values for multi-value headers
	headers := make(map[string][]string)
	resp.Header.VisitAll(func(key, value []byte) {
		k := string(key)
		headers[k] = append(headers[k], string(value))
	})

	contentType := string(resp.Header.ContentType())
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}

	response := &Response{
		StatusCode:  resp.StatusCode(),
		Body:        append([]byte(nil), resp.Body()...),
		ContentType: contentType,
		Headers:     headers,
	}

	rc.Logger.Debug("Upstream fetch completed",
		zap.String("url", targetURL),
		zap.Int("status_code", response.StatusCode),
		zap.Int("response_size", len(response.Body)))

	return response, nil
}

// fetchDeadline caps the configured origin timeout by the request's remaining
// time budget so an upstream stall cannot push the whole request past
// server.timeout.
func fetchDeadline(rc *reqctx.RewriteContext) time.Time {
	timeout := rc.Resolved.Origin.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if remaining := rc.TimeRemaining(); remaining > 0 && remaining < timeout {
		timeout = remaining
	}
	return time.Now().Add(timeout)
}

// ssrfSafeDial resolves the hostname, validates all IPs are public, then connects.
// Prevents DNS rebinding attacks where an attacker's domain resolves to a private IP.
func ssrfSafeDial(addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("DNS resolution failed for %q: %w", host, err)
	}

	if len(ips) == 0 {
		return nil, fmt.Errorf("no IP addresses found for %q", host)
	}

	for _, ip := range ips {
		if err := urlutil.ValidateResolvedIP(ip); err != nil {
			return nil, fmt.Errorf("SSRF protection for %q: %w", host, err)
		}
	}

	// All IPs validated as public; connect to the first one
	return fasthttp.DialTimeout(net.JoinHostPort(ips[0].String(), port), 10*time.Second)
}
