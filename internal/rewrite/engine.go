// Package rewrite implements the per-request URL rewriting engine: it decides
// whether the current context is safe to rewrite, whether a candidate URL is
// eligible, and deterministically synthesizes the edge-delivery form of
// eligible URLs in single-URL, descriptor, source-list, attribute-list, and
// HTML-fragment shapes.
//
// An Engine is built fresh for every proxied request and must not be shared:
// the memo cache, the context verdict, and the re-entrancy flag all live for
// one request only. The engine performs no I/O and never returns an error;
// every malformed or ambiguous input degrades to "do not rewrite".
package rewrite

import (
	"strings"
)

type verdict int

const (
	verdictUnknown verdict = iota
	verdictSafe
	verdictUnsafe
)

// Engine rewrites media URLs for exactly one request.
type Engine struct {
	cfg       Config
	base      Base
	class     Class
	overrides Overrides

	verdict    verdict
	memo       map[uint64]string
	processing bool
	stats      Stats
}

// New constructs a request-scoped engine. overrides may be nil when the host
// supplies no extension points.
func New(cfg Config, base Base, class Class, overrides Overrides) *Engine {
	return &Engine{
		cfg:       cfg,
		base:      base,
		class:     class,
		overrides: overrides,
		memo:      make(map[uint64]string),
	}
}

// disabled reports whether rewriting is switched off or unconfigured. All
// operations pass input through unchanged in that case.
func (e *Engine) disabled() bool {
	return !e.cfg.Enabled || e.cfg.EdgeDomain == ""
}

// Stats returns a snapshot of the per-request counters.
func (e *Engine) Stats() Stats {
	return e.stats
}

// RewriteURL rewrites a single media URL. Unsafe contexts, disabled
// configuration, and ineligible URLs all return the input unchanged.
func (e *Engine) RewriteURL(raw string) string {
	if e.disabled() || e.UnsafeContext() {
		return raw
	}
	edge, _ := e.eligibleEdge(raw)
	return edge
}

// RewriteImageDescriptor rewrites the URL of one sized image rendition.
func (e *Engine) RewriteImageDescriptor(d ImageDescriptor) ImageDescriptor {
	if e.disabled() || e.UnsafeContext() {
		return d
	}
	if edge, ok := e.eligibleEdge(d.URL); ok {
		d.URL = edge
	}
	return d
}

// RewriteSources rewrites each URL of a responsive source list, returning a
// new list of the same shape. Ineligible entries keep their original URL.
func (e *Engine) RewriteSources(sources []SourceCandidate) []SourceCandidate {
	if e.disabled() || e.UnsafeContext() || len(sources) == 0 {
		return sources
	}

	out := make([]SourceCandidate, len(sources))
	copy(out, sources)
	for i := range out {
		if edge, ok := e.eligibleEdge(out[i].URL); ok {
			out[i].URL = edge
		}
	}
	return out
}

// RewriteElementAttributes rewrites the src-like attributes of one element's
// ordered attribute list, appending the idempotence marker when anything was
// processed and the recovery descriptor for time-based media. Attribute
// lists already carrying the marker are returned unchanged.
func (e *Engine) RewriteElementAttributes(tagName string, attrs []Attr) []Attr {
	if e.disabled() || e.UnsafeContext() {
		return attrs
	}

	tagName = strings.ToLower(tagName)
	if !isMediaTag(tagName) {
		return attrs
	}
	for _, a := range attrs {
		if strings.EqualFold(a.Name, MarkerAttr) {
			return attrs
		}
	}

	out := make([]Attr, len(attrs), len(attrs)+2)
	copy(out, attrs)

	processed := false
	for i := range out {
		switch strings.ToLower(out[i].Name) {
		case "src":
			if edge, ok := e.recoverEligibleEdge(out[i].Value); ok {
				if edge != out[i].Value {
					e.stats.SrcRewritten++
				}
				out[i].Value = edge
				processed = true
			}
		case "srcset":
			if v, changed := e.rewriteSrcsetValue(out[i].Value); changed {
				out[i].Value = v
				processed = true
			}
		case "poster":
			if !isTimeBasedMedia(tagName) {
				continue
			}
			if edge, ok := e.recoverEligibleEdge(out[i].Value); ok {
				if edge != out[i].Value {
					e.stats.PosterRewritten++
				}
				out[i].Value = edge
				processed = true
			}
		}
	}

	if processed {
		out = append(out, Attr{Name: MarkerAttr, Value: markerValue})
		e.stats.TagsMarked++
	}
	if isTimeBasedMedia(tagName) && !hasAttr(out, RecoverAttr) {
		out = append(out, Attr{Name: RecoverAttr, Value: markerValue})
		e.stats.RecoveryMarked++
	}
	return out
}

// eligibleEdge synthesizes the edge form of raw when it passes eligibility.
// The second return reports whether the URL was eligible.
func (e *Engine) eligibleEdge(raw string) (string, bool) {
	if reason := e.Eligibility(raw); reason != ReasonEligible {
		e.stats.countSkip(reason)
		return raw, false
	}
	edge := e.BuildEdgeURL(raw)
	if edge != raw {
		e.stats.URLsRewritten++
	}
	return edge, true
}

// recoverEligibleEdge first recovers the true origin of raw, then applies
// the same check and synthesis. The markup paths use this variant so that
// already-rewritten URLs whose marker was stripped heal instead of staying
// stuck, and so that edge URLs never double-wrap.
func (e *Engine) recoverEligibleEdge(raw string) (string, bool) {
	origin := e.TrueOrigin(raw)
	if reason := e.Eligibility(origin); reason != ReasonEligible {
		e.stats.countSkip(reason)
		return raw, false
	}
	edge := e.BuildEdgeURL(origin)
	if edge != raw {
		e.stats.URLsRewritten++
	}
	return edge, true
}

func isMediaTag(name string) bool {
	switch name {
	case "img", "video", "audio", "source":
		return true
	}
	return false
}

func isTimeBasedMedia(name string) bool {
	return name == "video" || name == "audio"
}

func hasAttr(attrs []Attr, name string) bool {
	for _, a := range attrs {
		if strings.EqualFold(a.Name, name) {
			return true
		}
	}
	return false
}
