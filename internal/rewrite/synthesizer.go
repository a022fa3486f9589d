package rewrite

import (
	"net/url"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// normalize absolutizes relative and protocol-relative URLs against the site
// base, lowercases scheme and host, and strips default ports. Query and
// fragment bytes are preserved as given. Input that cannot be made absolute
// is returned best-effort unchanged.
func (e *Engine) normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return raw
	}

	switch {
	case strings.HasPrefix(s, "//"):
		s = e.base.scheme() + ":" + s
	case strings.HasPrefix(s, "/"):
		s = e.base.scheme() + "://" + e.base.Host + s
	}

	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return s
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Host[:strings.LastIndex(u.Host, ":")]
	}

	return u.String()
}

// BuildEdgeURL synthesizes the edge-delivery form of raw. It is total: any
// malformed-URL condition degrades to returning the normalized input
// unchanged, never an error. Results are memoized per request.
func (e *Engine) BuildEdgeURL(raw string) string {
	normalized := e.normalize(raw)

	key := xxhash.Sum64String(normalized)
	if cached, ok := e.memo[key]; ok {
		return cached
	}

	edge := e.synthesize(normalized)
	e.memo[key] = edge
	return edge
}

func (e *Engine) synthesize(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil || u.Host == "" || u.Path == "" || u.Path == "/" {
		return normalized
	}
	if e.cfg.EdgeDomain == "" {
		return normalized
	}

	var b strings.Builder
	b.Grow(len(normalized) + len(e.cfg.EdgeDomain) + 16)
	b.WriteString("https://")
	b.WriteString(e.cfg.EdgeDomain)
	b.WriteByte('/')
	b.WriteString(u.Host)
	b.WriteString(u.EscapedPath())
	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.EscapedFragment())
	}
	return b.String()
}
