package configtest

import (
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/edgelift/gateway/internal/common/config"
	"github.com/edgelift/gateway/internal/common/configtypes"
	"github.com/edgelift/gateway/internal/gateway/validate"
	"github.com/edgelift/gateway/internal/rewrite"
	"github.com/edgelift/gateway/pkg/types"
)

// URLTestResult contains the result of URL testing
type URLTestResult struct {
	URL         string           `json:"url"`
	IsAbsolute  bool             `json:"is_absolute"`
	HostResults []HostTestResult `json:"hosts"`
	Error       string           `json:"error,omitempty"` // set when no verdict could be computed
}

// HostTestResult is the rewrite verdict for one configured host. A media URL
// is judged by every host because allow-lists routinely name domains that are
// not tenants themselves (static subdomains, sibling CDNs).
type HostTestResult struct {
	HostID         int                    `json:"host_id"`
	Host           string                 `json:"host"`
	TestedURL      string                 `json:"tested_url"` // absolute URL evaluated for this host
	MatchedPattern string                 `json:"matched_pattern,omitempty"`
	Action         string                 `json:"action"`
	RewriteEnabled bool                   `json:"rewrite_enabled"`
	EdgeDomain     string                 `json:"edge_domain,omitempty"`
	Eligibility    string                 `json:"eligibility"`
	EdgeURL        string                 `json:"edge_url,omitempty"`    // synthesized edge URL when eligible
	TrueOrigin     string                 `json:"true_origin,omitempty"` // origin recovered back from the edge URL
	Config         *config.ResolvedConfig `json:"-"`
}

// TestURL tests how a URL would be rewritten under an already-validated
// configuration.
func TestURL(testURL string, result *validate.ValidationResult) (*URLTestResult, error) {
	cm, err := config.NewRGConfigManager(result.ConfigPath, zap.NewNop())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return TestURLWithManager(testURL, cm)
}

// TestURLWithManager tests a URL against the hosts of a live config manager.
// The internal management server uses this entry against its running config.
func TestURLWithManager(testURL string, cm configtypes.RGConfigManager) (*URLTestResult, error) {
	urlResult := &URLTestResult{
		URL: testURL,
	}

	parsedURL, err := url.Parse(testURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	urlResult.IsAbsolute = parsedURL.Scheme != "" && parsedURL.Host != ""

	cfg := cm.GetConfig()
	hosts := cm.GetHosts()
	if len(hosts) == 0 {
		urlResult.Error = "no hosts configured"
		return urlResult, nil
	}

	for i := range hosts {
		host := &hosts[i]

		hostURL := testURL
		if !urlResult.IsAbsolute {
			// Relative input is anchored on each host's own domain.
			hostURL = fmt.Sprintf("https://%s%s", host.Domain, testURL)
		}

		urlResult.HostResults = append(urlResult.HostResults, testURLAgainstHost(hostURL, host, cfg))
	}

	return urlResult, nil
}

// testURLAgainstHost computes the verdict one host's resolved configuration
// gives for a URL: matched rule, action, eligibility, and the edge round trip.
func testURLAgainstHost(testURL string, host *types.Host, cfg *configtypes.RgConfig) HostTestResult {
	resolver := config.NewConfigResolver(cfg.Rewrite, cfg.Context, cfg.Headers, cfg.ClientIP, &cfg.Origin, host)
	resolved := resolver.ResolveForURL(testURL)

	eng := rewrite.New(rewrite.Config{
		Enabled:              resolved.Rewrite.Enabled,
		EdgeDomain:           resolved.Rewrite.EdgeDomain,
		AllowedOriginDomains: resolved.Rewrite.AllowedOriginDomains,
		Extensions:           resolved.Rewrite.Extensions,
	}, rewrite.Base{Host: host.Domain}, rewrite.Class{}, nil)

	result := HostTestResult{
		HostID:         host.ID,
		Host:           host.Domain,
		TestedURL:      testURL,
		MatchedPattern: resolved.MatchedPattern,
		Action:         string(resolved.Action),
		RewriteEnabled: resolved.Rewrite.Enabled,
		EdgeDomain:     resolved.Rewrite.EdgeDomain,
		Eligibility:    eng.Eligibility(testURL).String(),
		Config:         resolved,
	}

	if eng.ShouldRewrite(testURL) {
		result.EdgeURL = eng.BuildEdgeURL(testURL)
		result.TrueOrigin = eng.TrueOrigin(result.EdgeURL)
	}

	return result
}
