package types

import (
	"fmt"

	"github.com/edgelift/gateway/pkg/pattern"
)

// URLRuleAction defines the action type for URL patterns
type URLRuleAction string

// Action constants
const (
	ActionRewrite     URLRuleAction = "rewrite"     // Proxy and rewrite media URLs (default behavior)
	ActionPassthrough URLRuleAction = "passthrough" // Proxy untouched, no rewriting
	ActionBlock       URLRuleAction = "block"       // Reject request with 403 (alias for status_403)
	ActionStatus403   URLRuleAction = "status_403"  // Return 403 Forbidden (explicit)
	ActionStatus404   URLRuleAction = "status_404"  // Return 404 Not Found
	ActionStatus410   URLRuleAction = "status_410"  // Return 410 Gone
	ActionStatus      URLRuleAction = "status"      // Generic status with configurable code
)

// URLRule defines behavior for URLs matching specific patterns
// any added config fields should be processed in config.expandMultiPatternRules
type URLRule struct {
	Match  interface{}   `yaml:"match" json:"match"`   // string or []string - URL pattern(s)
	Action URLRuleAction `yaml:"action" json:"action"` // "rewrite" | "passthrough" | "block" | "status_403" | "status_404" | "status_410" | "status"

	// Query parameter matching (optional, all conditions must match - AND logic)
	MatchQuery map[string]interface{} `yaml:"match_query,omitempty" json:"match_query,omitempty"`

	// Rewrite overrides (only for action="rewrite")
	Rewrite *RewriteConfig `yaml:"rewrite,omitempty" json:"rewrite,omitempty"`

	// Status configuration (only for status actions: block, status_403, status_404, status_410, status)
	Status *StatusRuleConfig `yaml:"status,omitempty" json:"status,omitempty"`

	// Headers configuration (rule-level override)
	Headers *HeadersConfig `yaml:"headers,omitempty" json:"headers,omitempty"`

	// matchPatterns is a cached, pre-computed slice of match patterns
	// Populated during UnmarshalYAML for zero-allocation access
	matchPatterns []string `yaml:"-" json:"-"`

	// patternMetadata stores pre-compiled patterns
	// Index corresponds to matchPatterns slice
	patternMetadata []*pattern.Pattern `yaml:"-" json:"-"`

	// QueryParamMetadata stores pre-compiled query parameter patterns
	// Key is the parameter name, value is array of patterns (for OR logic)
	QueryParamMetadata map[string][]*pattern.Pattern `yaml:"-" json:"-"`
}

// StatusRuleConfig defines status action configuration for HTTP status responses (3xx, 4xx, 5xx)
type StatusRuleConfig struct {
	Code    *int              `yaml:"code,omitempty" json:"code,omitempty"`       // HTTP status code (required for generic 'status' action, inferred for aliases)
	Reason  string            `yaml:"reason,omitempty" json:"reason,omitempty"`   // Optional reason for response body (4xx/5xx only)
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"` // Custom headers (Location required for 3xx)
}

// GetMatchPatterns returns URL patterns as string slice (zero-allocation after unmarshaling)
func (r *URLRule) GetMatchPatterns() []string {
	// Return cached patterns if available (populated during UnmarshalYAML)
	if r.matchPatterns != nil {
		return r.matchPatterns
	}

	// Fallback for programmatically created URLRule instances (not from YAML)
	switch v := r.Match.(type) {
	case string:
		return []string{v}
	case []interface{}:
		patterns := make([]string, 0, len(v))
		for _, p := range v {
			if str, ok := p.(string); ok {
				patterns = append(patterns, str)
			}
		}
		return patterns
	case []string:
		return v
	default:
		return []string{}
	}
}

// UnmarshalYAML implements custom YAML unmarshaling to pre-compute match patterns
func (r *URLRule) UnmarshalYAML(unmarshal func(interface{}) error) error {
	// Define a temporary type to avoid infinite recursion
	type urlRuleAlias URLRule

	alias := (*urlRuleAlias)(r)
	if err := unmarshal(alias); err != nil {
		return err
	}

	// Pre-compute match patterns for zero-allocation access
	r.matchPatterns = r.computeMatchPatterns()

	// Pre-compile regexp patterns and validate
	if err := r.compilePatterns(); err != nil {
		return err
	}

	// Validate match_query structure
	if err := r.validateMatchQuery(); err != nil {
		return err
	}

	// Pre-compile query parameter patterns
	if err := r.compileQueryParamPatterns(); err != nil {
		return err
	}

	return nil
}

// computeMatchPatterns converts Match field to []string for caching
func (r *URLRule) computeMatchPatterns() []string {
	switch v := r.Match.(type) {
	case string:
		if v == "" {
			return []string{}
		}
		return []string{v}
	case []interface{}:
		patterns := make([]string, 0, len(v))
		for _, p := range v {
			if str, ok := p.(string); ok && str != "" {
				patterns = append(patterns, str)
			}
		}
		return patterns
	case []string:
		// Filter out empty strings
		patterns := make([]string, 0, len(v))
		for _, p := range v {
			if p != "" {
				patterns = append(patterns, p)
			}
		}
		return patterns
	default:
		return []string{}
	}
}

// compilePatterns pre-compiles patterns using the unified pattern package
func (r *URLRule) compilePatterns() error {
	r.patternMetadata = make([]*pattern.Pattern, len(r.matchPatterns))

	for i, pat := range r.matchPatterns {
		compiled, err := pattern.Compile(pat)
		if err != nil {
			return fmt.Errorf("failed to compile pattern '%s': %w", pat, err)
		}
		r.patternMetadata[i] = compiled
	}

	return nil
}

// validateMatchQuery validates the match_query structure
func (r *URLRule) validateMatchQuery() error {
	if r.MatchQuery == nil {
		return nil
	}

	for key, value := range r.MatchQuery {
		if key == "" {
			return fmt.Errorf("match_query contains empty key")
		}

		// Validate value type
		switch v := value.(type) {
		case string:
			// Valid: exact match or wildcard
		case []interface{}:
			// Valid: OR logic (array of values)
			if len(v) == 0 {
				return fmt.Errorf("match_query key '%s' has empty array", key)
			}
			// Validate array elements are strings
			for _, item := range v {
				if _, ok := item.(string); !ok {
					return fmt.Errorf("match_query key '%s' array contains non-string value", key)
				}
			}
		default:
			return fmt.Errorf("match_query key '%s' has invalid type (must be string or array of strings)", key)
		}
	}

	return nil
}

// compileQueryParamPatterns pre-compiles query parameter patterns for fast matching
func (r *URLRule) compileQueryParamPatterns() error {
	if r.MatchQuery == nil {
		return nil
	}

	r.QueryParamMetadata = make(map[string][]*pattern.Pattern)

	for key, value := range r.MatchQuery {
		patterns, err := r.parseQueryParamValue(key, value)
		if err != nil {
			return err
		}
		r.QueryParamMetadata[key] = patterns
	}

	return nil
}

// parseQueryParamValue converts a query parameter value (string or []interface{}) into Pattern array
func (r *URLRule) parseQueryParamValue(key string, value interface{}) ([]*pattern.Pattern, error) {
	var patterns []*pattern.Pattern

	switch v := value.(type) {
	case string:
		// Single string value
		pat, err := parseQueryParamString(key, v)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, pat)

	case []interface{}:
		// Array of values (OR logic)
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("match_query key '%s' array item %d is not a string", key, i)
			}
			pat, err := parseQueryParamString(key, str)
			if err != nil {
				return nil, err
			}
			patterns = append(patterns, pat)
		}

	default:
		return nil, fmt.Errorf("match_query key '%s' has invalid type", key)
	}

	return patterns, nil
}

// parseQueryParamString parses a single query parameter string into a Pattern
func parseQueryParamString(key, value string) (*pattern.Pattern, error) {
	compiled, err := pattern.Compile(value)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern in match_query key '%s', value '%s': %w", key, value, err)
	}

	return compiled, nil
}

// GetCompiledPattern returns the compiled pattern for a given index
func (r *URLRule) GetCompiledPattern(index int) *pattern.Pattern {
	if index < 0 || index >= len(r.patternMetadata) {
		return nil
	}
	return r.patternMetadata[index]
}

// CompilePatterns compiles patterns for programmatically-created URLRule instances
// This is a convenience method for testing and dynamic rule creation
func (r *URLRule) CompilePatterns() error {
	// Pre-compute match patterns
	r.matchPatterns = r.computeMatchPatterns()

	// Pre-compile regexp patterns
	if err := r.compilePatterns(); err != nil {
		return err
	}

	// Validate match_query structure
	if err := r.validateMatchQuery(); err != nil {
		return err
	}

	// Pre-compile query parameter patterns
	if err := r.compileQueryParamPatterns(); err != nil {
		return err
	}

	return nil
}

// IsValid checks if the action is valid
func (a URLRuleAction) IsValid() bool {
	return a == ActionRewrite || a == ActionPassthrough ||
		a == ActionBlock || a == ActionStatus403 ||
		a == ActionStatus404 || a == ActionStatus410 ||
		a == ActionStatus
}

// IsStatusAction returns true if the action is any status-related action
func (a URLRuleAction) IsStatusAction() bool {
	return a == ActionBlock || a == ActionStatus403 ||
		a == ActionStatus404 || a == ActionStatus410 ||
		a == ActionStatus
}

// NormalizeBlockAction returns ActionStatus403 for "block"
// This ensures consistent handling while maintaining backward compatibility
func (a URLRuleAction) NormalizeBlockAction() URLRuleAction {
	if a == ActionBlock {
		return ActionStatus403
	}
	return a
}
