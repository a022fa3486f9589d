package rewrite

import (
	"net/url"
	"path"
	"strings"

	"github.com/edgelift/gateway/internal/common/urlutil"
	"github.com/edgelift/gateway/pkg/types"
)

// ShouldRewrite reports whether raw may be rewritten to the edge domain.
func (e *Engine) ShouldRewrite(raw string) bool {
	return e.Eligibility(raw) == ReasonEligible
}

// Eligibility classifies raw against the double-rewrite, allow-list, and
// media-extension gates. Any ambiguous or unparseable input is ineligible.
func (e *Engine) Eligibility(raw string) Reason {
	if strings.TrimSpace(raw) == "" {
		return ReasonEmptyURL
	}

	u, err := url.Parse(e.normalize(raw))
	if err != nil || u.Host == "" {
		return ReasonInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ReasonInvalidURL
	}

	if e.cfg.EdgeDomain != "" && urlutil.HostsEquivalent(u.Host, e.cfg.EdgeDomain) {
		return ReasonEdgeURL
	}

	if len(e.cfg.AllowedOriginDomains) > 0 &&
		!urlutil.HostMatchesAny(u.Host, e.cfg.AllowedOriginDomains) {
		return ReasonDomainNotAllowed
	}

	if !e.supportedExtension(u.Path) {
		return ReasonExtension
	}

	return ReasonEligible
}

// supportedExtension checks the path's file extension against the configured
// media set. URLs without an extension are never eligible; content-type
// sniffing would need a network round-trip this engine must not perform.
func (e *Engine) supportedExtension(urlPath string) bool {
	ext := strings.ToLower(path.Ext(urlPath))
	if ext == "" || ext == "." {
		return false
	}

	extensions := e.cfg.Extensions
	if len(extensions) == 0 {
		extensions = types.DefaultMediaExtensions
	}
	for _, allowed := range extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
