package rewrite

import (
	"net/url"
	"strings"

	"github.com/edgelift/gateway/internal/common/urlutil"
)

// TrueOrigin recovers the origin form of raw. URLs not recognized as edge
// URLs of the configured edge domain are returned unchanged, as are edge
// URLs whose path does not carry the expected {host}/{path} shape. It never
// fails; the worst outcome is returning the input as given.
func (e *Engine) TrueOrigin(raw string) string {
	if e.cfg.EdgeDomain == "" {
		return raw
	}

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return raw
	}
	if !urlutil.HostsEquivalent(u.Host, e.cfg.EdgeDomain) {
		return raw
	}

	trimmed := strings.Trim(u.EscapedPath(), "/")
	host, rest, found := strings.Cut(trimmed, "/")
	if !found || host == "" || rest == "" {
		return raw
	}

	var b strings.Builder
	b.Grow(len(raw))
	b.WriteString("https://")
	b.WriteString(host)
	b.WriteByte('/')
	b.WriteString(rest)
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
