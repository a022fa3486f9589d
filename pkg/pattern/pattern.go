// Package pattern provides unified pattern matching across the codebase.
//
// Pattern Matching Behavior:
//
//   - Exact (no prefix): Case-insensitive exact match
//     Example: "/wp-cron.php" matches "/wp-cron.php", "/WP-CRON.PHP"
//
//   - Wildcard (*): Case-insensitive pattern with * matching any characters
//     Example: "/wp-admin/*" matches "/wp-admin/upload.php", "/WP-ADMIN/post.php"
//
//   - Regexp (~): Case-sensitive regular expression
//     Example: "~^/api/v[0-9]+/" matches "/api/v2/media" but not "/API/v2/media"
//
//   - Regexp (~*): Case-insensitive regular expression
//     Example: "~*wp-cli|wordpress" matches "WP-CLI/2.9", "WordPress/6.4"
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// PatternType defines the type of pattern matching
type PatternType int

const (
	PatternExact PatternType = iota
	PatternWildcard
	PatternRegexp
)

// Pattern represents a compiled pattern ready for matching
type Pattern struct {
	Original        string         // Original pattern string
	Type            PatternType    // Pattern type: Exact, Wildcard, or Regexp
	CleanPattern    string         // Pattern with prefix removed (for regexp)
	CaseInsensitive bool           // For ~* prefix
	compiledRegexp  *regexp.Regexp // Pre-compiled regexp (nil for exact/wildcard)
}

// DetectPatternType determines the pattern matching type
// Returns: PatternType, clean pattern (prefix removed), case-insensitive flag
func DetectPatternType(pattern string) (PatternType, string, bool) {
	if strings.HasPrefix(pattern, "~*") {
		return PatternRegexp, pattern[2:], true // case-insensitive
	}
	if strings.HasPrefix(pattern, "~") {
		return PatternRegexp, pattern[1:], false // case-sensitive
	}

	if strings.Contains(pattern, "*") {
		return PatternWildcard, pattern, false
	}

	return PatternExact, pattern, false
}

// Compile pre-compiles a pattern for efficient matching
// This function should be called once during configuration loading
func Compile(pattern string) (*Pattern, error) {
	if pattern == "" {
		return nil, fmt.Errorf("pattern cannot be empty")
	}

	patternType, cleanPattern, caseInsensitive := DetectPatternType(pattern)

	p := &Pattern{
		Original:        pattern,
		Type:            patternType,
		CleanPattern:    cleanPattern,
		CaseInsensitive: caseInsensitive,
	}

	if patternType == PatternRegexp {
		expr := cleanPattern
		if caseInsensitive {
			expr = "(?i)" + cleanPattern
		}

		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid regexp pattern '%s': %w", pattern, err)
		}
		p.compiledRegexp = re
	}

	return p, nil
}

// MustCompile is like Compile but panics on error.
// Intended for package-level defaults and tests.
func MustCompile(pattern string) *Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// CompileAll compiles a list of pattern strings, failing on the first invalid one
func CompileAll(patterns []string) ([]*Pattern, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	compiled := make([]*Pattern, len(patterns))
	for i, pat := range patterns {
		p, err := Compile(pat)
		if err != nil {
			return nil, err
		}
		compiled[i] = p
	}
	return compiled, nil
}

// Match tests if input matches the compiled pattern
// This is a method on Pattern, similar to regexp.Regexp.MatchString()
func (p *Pattern) Match(input string) bool {
	if p == nil {
		return false
	}

	switch p.Type {
	case PatternRegexp:
		if p.compiledRegexp == nil {
			return false
		}
		return p.compiledRegexp.MatchString(input)

	case PatternWildcard:
		// Wildcard matching is case-insensitive
		return MatchWildcard(strings.ToLower(input), strings.ToLower(p.CleanPattern))

	case PatternExact:
		// Exact matching is case-insensitive
		return strings.EqualFold(input, p.CleanPattern)

	default:
		return false
	}
}

// MatchAny tests if input matches any pattern in the list.
// An empty list matches nothing.
func MatchAny(patterns []*Pattern, input string) bool {
	for _, p := range patterns {
		if p.Match(input) {
			return true
		}
	}
	return false
}

// MatchWildcard performs wildcard pattern matching on raw strings (utility function)
// This is a low-level utility for special cases where you need direct wildcard
// matching without compiling a Pattern. For normal use, prefer Compile() + Match().
//
// The wildcard * matches any sequence of characters (including none)
// Multiple wildcards are supported
//
// Examples:
//   - MatchWildcard("/blog/post", "/blog/*") → true
//   - MatchWildcard("/blog/2024/post", "/blog/*") → true (recursive matching)
//   - MatchWildcard("photo.jpg", "*.jpg") → true
//   - MatchWildcard("anything", "*") → true (catch-all)
//
// Note: The wildcard * is always recursive and matches multiple path segments
func MatchWildcard(text, pattern string) bool {
	// If no wildcard, do exact match
	if !strings.Contains(pattern, "*") {
		return text == pattern
	}

	parts := strings.Split(pattern, "*")

	// Text must start with first part
	if !strings.HasPrefix(text, parts[0]) {
		return false
	}
	text = text[len(parts[0]):]

	// Text must end with last part
	if !strings.HasSuffix(text, parts[len(parts)-1]) {
		return false
	}
	text = text[:len(text)-len(parts[len(parts)-1])]

	// Check middle parts exist in order
	for i := 1; i < len(parts)-1; i++ {
		if parts[i] == "" {
			continue
		}
		idx := strings.Index(text, parts[i])
		if idx == -1 {
			return false
		}
		text = text[idx+len(parts[i]):]
	}

	return true
}
