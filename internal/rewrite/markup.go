package rewrite

import (
	"strings"

	"github.com/edgelift/gateway/internal/common/htmlscan"
)

var mediaTagNames = []string{"img", "video", "audio", "source"}

// RewriteFragment scans an HTML fragment and rewrites eligible media URLs in
// place, stamping processed tags with the idempotence marker. All markup
// outside deliberately changed attributes survives byte-for-byte. A fragment
// arriving while another is mid-processing returns unchanged (re-entrancy
// guard), as does any fragment in an unsafe context.
func (e *Engine) RewriteFragment(fragment string) string {
	if e.disabled() || e.UnsafeContext() {
		return fragment
	}
	if e.processing {
		return fragment
	}
	e.processing = true
	defer func() { e.processing = false }()

	if !containsMediaTag(fragment) {
		return fragment
	}

	return string(htmlscan.Scan([]byte(fragment), e.processTag))
}

// containsMediaTag is the fast path: a case-insensitive scan for a media tag
// opener, so tag-free fragments never pay for tokenization. False positives
// (e.g. "<imgx") only cost a parse; false negatives cannot occur.
func containsMediaTag(fragment string) bool {
	for i := 0; i < len(fragment); i++ {
		if fragment[i] != '<' {
			continue
		}
		rest := fragment[i+1:]
		for _, name := range mediaTagNames {
			if hasFoldPrefix(rest, name) {
				return true
			}
		}
	}
	return false
}

func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func (e *Engine) processTag(tag *htmlscan.Tag) {
	if !isMediaTag(tag.Name) {
		return
	}
	e.stats.TagsScanned++

	// Already processed by an attribute-level pass.
	if tag.HasAttr(MarkerAttr) {
		return
	}

	processed := false
	switch tag.Name {
	case "img", "source":
		processed = e.rewriteTagAttr(tag, "src", &e.stats.SrcRewritten)
		if e.rewriteTagSrcset(tag) {
			processed = true
		}
	case "video", "audio":
		processed = e.rewriteTagAttr(tag, "src", &e.stats.SrcRewritten)
		if e.rewriteTagAttr(tag, "poster", &e.stats.PosterRewritten) {
			processed = true
		}
		// Sources commonly live in child elements, so the recovery
		// descriptor is attached whether or not a direct src was
		// rewritten.
		if !tag.HasAttr(RecoverAttr) {
			tag.SetAttr(RecoverAttr, markerValue)
			e.stats.RecoveryMarked++
		}
	}

	if processed {
		tag.SetAttr(MarkerAttr, markerValue)
		e.stats.TagsMarked++
	}
}

// rewriteTagAttr applies the recover, check, synthesize sequence to one
// attribute. Returns true when the attribute belonged to an eligible URL.
func (e *Engine) rewriteTagAttr(tag *htmlscan.Tag, attr string, counter *int) bool {
	val := tag.Attr(attr)
	if val == "" {
		return false
	}

	edge, ok := e.recoverEligibleEdge(val)
	if !ok {
		return false
	}
	if edge != val {
		*counter++
	}
	tag.SetAttr(attr, edge)
	return true
}

func (e *Engine) rewriteTagSrcset(tag *htmlscan.Tag) bool {
	val := tag.Attr("srcset")
	if val == "" {
		return false
	}

	rewritten, changed := e.rewriteSrcsetValue(val)
	if !changed {
		return false
	}
	tag.SetAttr("srcset", rewritten)
	return true
}
