package rewrite

import (
	"strings"
)

// parseSrcset splits a srcset attribute value into its candidates. Parsing
// is deliberately tolerant: candidates are comma-separated, each a URL
// optionally followed by a width or density descriptor. Unparseable input
// yields no candidates, which callers treat as "leave the value alone".
func parseSrcset(value string) []SourceCandidate {
	var candidates []SourceCandidate
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Fields(part)
		c := SourceCandidate{URL: fields[0]}
		if len(fields) > 1 {
			c.Descriptor = strings.Join(fields[1:], " ")
		}
		candidates = append(candidates, c)
	}
	return candidates
}

func assembleSrcset(candidates []SourceCandidate) string {
	parts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Descriptor != "" {
			parts = append(parts, c.URL+" "+c.Descriptor)
		} else {
			parts = append(parts, c.URL)
		}
	}
	return strings.Join(parts, ", ")
}

// rewriteSrcsetValue rewrites each eligible candidate URL of a srcset value.
// The value is reassembled only when at least one candidate changed, so
// untouched srcset attributes keep their original bytes.
func (e *Engine) rewriteSrcsetValue(value string) (string, bool) {
	candidates := parseSrcset(value)
	if len(candidates) == 0 {
		return value, false
	}

	changed := false
	for i := range candidates {
		edge, ok := e.recoverEligibleEdge(candidates[i].URL)
		if ok && edge != candidates[i].URL {
			candidates[i].URL = edge
			e.stats.SrcsetRewritten++
			changed = true
		}
	}
	if !changed {
		return value, false
	}
	return assembleSrcset(candidates), true
}
