package pipeline

import (
	"strings"

	"github.com/edgelift/gateway/internal/rewrite"
)

// rewriteLinkHeaderValue rewrites the bracketed target URLs of a Link header
// (preload and prefetch hints) through the engine. Eligibility already
// restricts rewriting to allowed media URLs, so relation parameters need no
// inspection; everything outside a rewritten target survives byte-for-byte.
func rewriteLinkHeaderValue(eng *rewrite.Engine, value string) (string, bool) {
	var b strings.Builder
	b.Grow(len(value))
	changed := false

	i := 0
	for i < len(value) {
		if value[i] != '<' {
			b.WriteByte(value[i])
			i++
			continue
		}
		end := strings.IndexByte(value[i+1:], '>')
		if end < 0 {
			b.WriteString(value[i:])
			break
		}

		target := value[i+1 : i+1+end]
		rewritten := eng.RewriteURL(target)
		if rewritten != target {
			changed = true
		}
		b.WriteByte('<')
		b.WriteString(rewritten)
		b.WriteByte('>')
		i += end + 2
	}

	if !changed {
		return value, false
	}
	return b.String(), true
}

// rewriteLinkHeaders applies rewriteLinkHeaderValue to every Link header in
// the upstream header map, in place.
func rewriteLinkHeaders(eng *rewrite.Engine, headers map[string][]string) {
	for name, values := range headers {
		if !strings.EqualFold(name, "Link") {
			continue
		}
		for i, value := range values {
			if rewritten, changed := rewriteLinkHeaderValue(eng, value); changed {
				values[i] = rewritten
			}
		}
		headers[name] = values
	}
}
