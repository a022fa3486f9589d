package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/edgelift/gateway/pkg/types"
)

// PrepareHost prepares a host by expanding UA aliases, normalizing rewrite
// settings, compiling context patterns, and sorting URL rules.
// contextPath is used for error messages (e.g., "hosts.yaml:host_id=1").
func PrepareHost(host *types.Host, contextPath string, logger *zap.Logger) error {
	if host == nil {
		return fmt.Errorf("host cannot be nil")
	}
	if logger == nil {
		return fmt.Errorf("logger is required")
	}

	// Step 1: Expand automation UA aliases in host-level context
	if host.Context != nil && len(host.Context.AutomationUA) > 0 {
		expanded, err := ExpandUAAliases(host.Context.AutomationUA, contextPath)
		if err != nil {
			return fmt.Errorf("failed to expand automation_ua aliases: %w", err)
		}
		if len(expanded) != len(host.Context.AutomationUA) {
			logger.Debug("Expanded automation UA aliases",
				zap.String("context", contextPath),
				zap.Int("pattern_count", len(expanded)),
			)
		}
		host.Context.AutomationUA = expanded
	}

	// Step 2: Compile host-level context patterns
	if host.Context != nil {
		if err := host.Context.CompilePatterns(); err != nil {
			return fmt.Errorf("context: %w", err)
		}
	}

	// Step 3: Normalize host-level rewrite settings
	if host.Rewrite != nil {
		normalizeRewriteConfig(host.Rewrite)
	}

	// Step 4: Normalize rule-level rewrite settings
	for i := range host.URLRules {
		if host.URLRules[i].Rewrite != nil {
			normalizeRewriteConfig(host.URLRules[i].Rewrite)
		}
	}

	// Step 5: Sort URL rules by specificity (includes CompilePatterns)
	if len(host.URLRules) > 0 {
		sorted, err := SortURLRules(host.URLRules)
		if err != nil {
			return fmt.Errorf("failed to sort URL rules: %w", err)
		}
		host.URLRules = sorted
	}

	return nil
}

// normalizeRewriteConfig lowercases domains and canonicalizes extension
// entries ("JPG" and "jpg" both become ".jpg") so the engine compares
// without re-normalizing per URL.
func normalizeRewriteConfig(rc *types.RewriteConfig) {
	rc.EdgeDomain = strings.ToLower(strings.TrimSpace(rc.EdgeDomain))
	rc.AllowedOriginDomains = normalizeDomains(rc.AllowedOriginDomains)
	rc.AllowedOriginDomainsAdd = normalizeDomains(rc.AllowedOriginDomainsAdd)
	rc.Extensions = normalizeExtensions(rc.Extensions)
	rc.ExtensionsAdd = normalizeExtensions(rc.ExtensionsAdd)
}

func normalizeDomains(domains []string) []string {
	for i, d := range domains {
		domains[i] = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(d), "."))
	}
	return domains
}

func normalizeExtensions(exts []string) []string {
	for i, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[i] = ext
	}
	return exts
}
